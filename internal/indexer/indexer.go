// Package indexer runs the ingestion pipeline: extract, chunk, insert into the vector store and
// full-text index, and keep the document registry in sync.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/kiritori/internal/analyzer"
	"github.com/hyperjump/kiritori/internal/chunking"
	"github.com/hyperjump/kiritori/internal/config"
	"github.com/hyperjump/kiritori/internal/extract"
	"github.com/hyperjump/kiritori/internal/fileid"
	"github.com/hyperjump/kiritori/internal/keyword"
	"github.com/hyperjump/kiritori/internal/models"
	"github.com/hyperjump/kiritori/internal/storage"
	"github.com/hyperjump/kiritori/internal/vector"
	"go.uber.org/zap"
)

// StrategyAuto asks the recommender to choose chunking parameters.
const StrategyAuto = "auto"

// ErrNoChunks is returned when a document produced no insertable chunks.
var ErrNoChunks = errors.New("no chunks produced")

// Summarizer writes a short summary of document text.
type Summarizer interface {
	Summarize(ctx context.Context, filename, text string) (string, error)
}

// Options are the caller-supplied chunking parameters. Zero values use the configured defaults.
type Options struct {
	Strategy     string `json:"chunking_strategy"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
}

// Upload is one document to ingest.
type Upload struct {
	FileID   string
	Filename string
	Content  []byte
	Metadata map[string]string
	Options  Options
}

// Indexer ingests documents.
type Indexer struct {
	registry     storage.Registry
	files        *storage.FileStore
	store        vector.Store
	fulltext     keyword.Index
	extractor    extract.Extractor
	chunker      *chunking.Engine
	summarizer   Summarizer
	cfg          config.ChunkingConfig
	maxFileSize  int64
	ocrLanguages []string
	logger       *zap.Logger
	now          func() time.Time
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(idx *Indexer) { idx.logger = l }
}

// WithFullText also writes chunks to a full-text index.
func WithFullText(ix keyword.Index) Option {
	return func(idx *Indexer) { idx.fulltext = ix }
}

// WithSummarizer enables document summaries.
func WithSummarizer(s Summarizer) Option {
	return func(idx *Indexer) { idx.summarizer = s }
}

// WithExtractionLimits sets the maximum upload size and the OCR languages passed to the extractor.
func WithExtractionLimits(maxFileSize int64, ocrLanguages []string) Option {
	return func(idx *Indexer) {
		idx.maxFileSize = maxFileSize
		idx.ocrLanguages = ocrLanguages
	}
}

// New creates an indexer. cfg zero values are replaced with defaults.
func New(
	registry storage.Registry,
	files *storage.FileStore,
	store vector.Store,
	extractor extract.Extractor,
	cfg config.ChunkingConfig,
	opts ...Option,
) *Indexer {
	withChunkingDefaults(&cfg)
	idx := &Indexer{
		registry:  registry,
		files:     files,
		store:     store,
		extractor: extractor,
		cfg:       cfg,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.chunker = chunking.NewEngine(
		chunking.WithLogger(idx.logger),
		chunking.WithParagraphCeiling(cfg.ParagraphCeiling),
		chunking.WithLargeTextThreshold(cfg.LargeTextThreshold),
	)
	return idx
}

func withChunkingDefaults(cfg *config.ChunkingConfig) {
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyAuto
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunking.DefaultChunkSize
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = chunking.DefaultChunkOverlap
	}
	if cfg.LargeFileBytes <= 0 {
		cfg.LargeFileBytes = 5 << 20
	}
	if cfg.LargeFileChunkSize <= 0 {
		cfg.LargeFileChunkSize = 500
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
}

// Ingest extracts, chunks and stores one upload. Re-ingesting an existing file id replaces its
// chunks with a new generation once the new chunks are stored.
func (idx *Indexer) Ingest(ctx context.Context, up Upload) (*models.Document, error) {
	if up.Filename == "" {
		return nil, errors.New("filename is required")
	}
	if idx.maxFileSize > 0 && int64(len(up.Content)) > idx.maxFileSize {
		return nil, fmt.Errorf("%s: %w (%d bytes, limit %d)", up.Filename, extract.ErrFileTooLarge, len(up.Content), idx.maxFileSize)
	}
	if up.FileID == "" {
		up.FileID = fileid.New()
	}
	start := idx.now()

	existing, err := idx.registry.GetDocument(ctx, up.FileID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("look up %s: %w", up.FileID, err)
	}

	text, err := idx.extractText(ctx, up.Content, up.Filename)
	if err != nil {
		return nil, err
	}

	meta := extract.ExtractMetadata(up.Content, up.Filename)
	for k, v := range up.Metadata {
		meta[k] = v
	}
	strategy, size, overlap, err := idx.resolve(text, int64(len(up.Content)), up.Options)
	if err != nil {
		return nil, err
	}
	chunks, err := idx.chunker.Chunk(text, chunking.Params{
		Strategy:     strategy,
		ChunkSize:    size,
		ChunkOverlap: overlap,
		Filename:     up.Filename,
		DocMetadata:  meta,
	})
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", up.Filename, err)
	}

	doc := &models.Document{
		FileID:       up.FileID,
		Filename:     up.Filename,
		FileType:     meta["file_type"],
		FileSize:     int64(len(up.Content)),
		Strategy:     strategy,
		ChunkSize:    size,
		ChunkOverlap: overlap,
		Generation:   1,
		Metadata:     meta,
	}
	if existing != nil {
		doc.Generation = existing.Generation + 1
		doc.CreatedAt = existing.CreatedAt
	}

	n, err := idx.insertGeneration(ctx, doc, chunks)
	if err != nil {
		return nil, err
	}
	if _, err := idx.files.Save(up.FileID, up.Filename, up.Content); err != nil {
		idx.discardGeneration(ctx, doc.FileID, doc.Generation)
		return nil, err
	}
	if existing != nil {
		idx.dropStaleGenerations(ctx, doc.FileID, doc.Generation)
		if existing.Filename != up.Filename {
			if err := idx.files.Delete(existing.FileID, existing.Filename); err != nil {
				idx.logger.Warn("failed to remove previous upload", zap.String("file_id", up.FileID), zap.Error(err))
			}
		}
	}
	doc.ChunkCount = n
	doc.Summary = idx.summarize(ctx, doc.Filename, text)

	if existing != nil {
		err = idx.registry.UpdateDocument(ctx, doc)
	} else {
		err = idx.registry.CreateDocument(ctx, doc)
	}
	if err != nil {
		return nil, fmt.Errorf("save document %s: %w", doc.Filename, err)
	}

	idx.logger.Info("document ingested",
		zap.String("file_id", doc.FileID),
		zap.String("filename", doc.Filename),
		zap.String("strategy", string(doc.Strategy)),
		zap.Int("chunks", n),
		zap.Int("generation", doc.Generation),
		zap.Duration("took", idx.now().Sub(start)))
	return doc, nil
}

func (idx *Indexer) extractText(ctx context.Context, content []byte, filename string) (string, error) {
	elements, err := idx.extractor.Extract(ctx, content, filename, idx.ocrLanguages)
	if err != nil {
		return "", fmt.Errorf("extraction failed for %s: %w", filename, err)
	}
	text := extract.JoinText(elements)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text extracted from %s: %w", filename, chunking.ErrEmptyText)
	}
	return text, nil
}

// resolve picks the chunking parameters for a document of fileSize bytes.
func (idx *Indexer) resolve(text string, fileSize int64, opts Options) (models.ChunkStrategy, int, int, error) {
	name := opts.Strategy
	if name == "" {
		name = idx.cfg.Strategy
	}
	size, overlap := opts.ChunkSize, opts.ChunkOverlap
	if size <= 0 {
		size = idx.cfg.ChunkSize
	}
	if overlap <= 0 {
		overlap = idx.cfg.ChunkOverlap
	}

	var strategy models.ChunkStrategy
	if name == StrategyAuto {
		rec := analyzer.Recommend(analyzer.Analyze(text))
		strategy = rec.Strategy
		if opts.ChunkSize <= 0 {
			size, overlap = rec.ChunkSize, rec.ChunkOverlap
		}
	} else {
		s, err := models.ParseChunkStrategy(name)
		if err != nil {
			return "", 0, 0, err
		}
		strategy = s
	}

	if fileSize > idx.cfg.LargeFileBytes {
		strategy = models.StrategyParagraph
		size = min(size, idx.cfg.LargeFileChunkSize)
		if overlap >= size {
			overlap = size / 5
		}
	}
	return strategy, size, overlap, nil
}

func (idx *Indexer) summarize(ctx context.Context, filename, text string) string {
	if idx.summarizer == nil {
		return ""
	}
	summary, err := idx.summarizer.Summarize(ctx, filename, text)
	if err != nil {
		idx.logger.Warn("summary failed", zap.String("filename", filename), zap.Error(err))
		return ""
	}
	return summary
}

// IngestPath ingests a file from disk under a file id derived from its absolute path.
func (idx *Indexer) IngestPath(ctx context.Context, path string) (*models.Document, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return idx.Ingest(ctx, Upload{
		FileID:   fileid.ForPath(absPath),
		Filename: filepath.Base(absPath),
		Content:  content,
		Metadata: map[string]string{"source_path": absPath},
	})
}

// RemovePath deletes the document ingested from path. A path that was never ingested is not an error.
func (idx *Indexer) RemovePath(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	err = idx.Delete(ctx, fileid.ForPath(absPath))
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

// CollectFiles walks dir recursively and returns the regular files whose extension is in
// allowedExts. An empty allowedExts accepts every file.
func CollectFiles(dir string, allowedExts []string) ([]string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}
	var paths []string
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if len(allowedExts) > 0 && !extensionAllowed(filepath.Ext(path), allowedExts) {
			return nil
		}
		// Resolve symlinks so only regular files are returned
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	return paths, err
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
