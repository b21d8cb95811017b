// Package chunking splits extracted document text into ordered, sized, overlapping chunks.
package chunking

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/hyperjump/kiritori/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultChunkSize          = 1000
	DefaultChunkOverlap       = 200
	DefaultParagraphCeiling   = 2000
	DefaultLargeTextThreshold = 1_000_000
)

// ErrEmptyText is returned when the text has no non-whitespace characters.
var ErrEmptyText = errors.New("text is empty")

// Params are the per-document chunking parameters.
type Params struct {
	Strategy     models.ChunkStrategy
	ChunkSize    int
	ChunkOverlap int
	Filename     string
	DocMetadata  map[string]string
}

// Engine chunks text. It holds no per-document state and is safe for concurrent use.
type Engine struct {
	logger             *zap.Logger
	paragraphCeiling   int
	largeTextThreshold int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for warnings about degraded input.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithParagraphCeiling sets the accumulation ceiling, in characters, of the paragraph strategy.
func WithParagraphCeiling(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.paragraphCeiling = n
		}
	}
}

// WithLargeTextThreshold sets the length above which every request is downgraded to paragraph chunking.
func WithLargeTextThreshold(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.largeTextThreshold = n
		}
	}
}

// NewEngine creates a chunking engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:             zap.NewNop(),
		paragraphCeiling:   DefaultParagraphCeiling,
		largeTextThreshold: DefaultLargeTextThreshold,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// piece is a chunk before numbering. start and end are rune offsets into the sanitized text.
type piece struct {
	text       string
	start, end int
	sentences  int
}

// Chunk splits text with the requested strategy. Invalid sizes are replaced with defaults,
// and text longer than the large-text threshold is always chunked by paragraph.
// Offsets in the returned chunks are character offsets into the sanitized text.
func (e *Engine) Chunk(text string, p Params) ([]models.Chunk, error) {
	text = Sanitize(text)
	r := []rune(text)
	if isBlank(r, 0, len(r)) {
		return nil, ErrEmptyText
	}

	size, overlap := e.normalize(p.ChunkSize, p.ChunkOverlap)
	strategy := p.Strategy
	if strategy == "" {
		strategy = models.StrategyHybrid
	}
	if len(r) > e.largeTextThreshold && strategy != models.StrategyParagraph {
		e.logger.Warn("large text, forcing paragraph chunking",
			zap.String("filename", p.Filename),
			zap.Int("chars", len(r)),
			zap.String("requested", string(strategy)))
		strategy = models.StrategyParagraph
	}

	var pieces []piece
	switch strategy {
	case models.StrategyFixedSize:
		pieces = e.fixedPieces(r, 0, len(r), size, overlap, p.Filename)
	case models.StrategyParagraph:
		pieces = e.paragraphPieces(r)
	case models.StrategySentence:
		pieces = e.sentencePieces(r, size, overlap, p.Filename)
	case models.StrategyHybrid:
		pieces = e.hybridPieces(r, size, overlap, p.Filename)
	default:
		return nil, fmt.Errorf("unknown chunking strategy %q", strategy)
	}

	chunks := make([]models.Chunk, 0, len(pieces))
	for i, pc := range pieces {
		md := map[string]string{
			"filename":          p.Filename,
			"chunk_index":       strconv.Itoa(i),
			"chunking_strategy": string(strategy),
			"start_char":        strconv.Itoa(pc.start),
			"end_char":          strconv.Itoa(pc.end),
		}
		switch strategy {
		case models.StrategyFixedSize, models.StrategyHybrid:
			md["chunk_size"] = strconv.Itoa(size)
			md["chunk_overlap"] = strconv.Itoa(overlap)
		case models.StrategySentence:
			md["sentence_count"] = strconv.Itoa(pc.sentences)
		}
		for k, v := range p.DocMetadata {
			md["doc_"+k] = v
		}
		chunks = append(chunks, models.Chunk{
			Text:      pc.text,
			Index:     i,
			Strategy:  strategy,
			StartChar: pc.start,
			EndChar:   pc.end,
			Metadata:  md,
		})
	}
	e.logger.Debug("chunked text",
		zap.String("filename", p.Filename),
		zap.String("strategy", string(strategy)),
		zap.Int("chunks", len(chunks)))
	return chunks, nil
}

// normalize replaces an invalid size/overlap pair with defaults.
func (e *Engine) normalize(size, overlap int) (int, int) {
	if size <= 0 {
		e.logger.Warn("invalid chunk size, using default", zap.Int("chunk_size", size))
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		e.logger.Warn("invalid chunk overlap, using default", zap.Int("chunk_overlap", overlap))
		overlap = min(DefaultChunkOverlap, size/5)
	}
	return size, overlap
}
