package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hyperjump/kiritori/internal/config"
	"github.com/hyperjump/kiritori/internal/embedding"
	"github.com/hyperjump/kiritori/internal/extract"
	"github.com/hyperjump/kiritori/internal/fileid"
	"github.com/hyperjump/kiritori/internal/keyword"
	"github.com/hyperjump/kiritori/internal/models"
	"github.com/hyperjump/kiritori/internal/storage"
	"github.com/hyperjump/kiritori/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const threeParagraphs = "First paragraph about Invoices.\n\nSecond paragraph about totals.\n\nThird paragraph about taxes."

// switchExtractor delegates to the local extractor unless fail or blank is set.
type switchExtractor struct {
	mu    sync.Mutex
	fail  map[string]bool
	blank bool
	local *extract.LocalExtractor
}

func newSwitchExtractor() *switchExtractor {
	return &switchExtractor{fail: map[string]bool{}, local: extract.NewLocalExtractor(0)}
}

func (e *switchExtractor) Extract(ctx context.Context, content []byte, filename string, langs []string) ([]extract.Element, error) {
	e.mu.Lock()
	fail, blank := e.fail[filename], e.blank
	e.mu.Unlock()
	if fail {
		return nil, errors.New("service unreachable")
	}
	if blank {
		return nil, nil
	}
	return e.local.Extract(ctx, content, filename, langs)
}

// flakyStore fails Upsert calls selected by failOn (1-based call numbers) or all calls once failAll is set.
type flakyStore struct {
	vector.Store
	mu      sync.Mutex
	calls   int
	failOn  map[int]bool
	failAll bool
}

func (s *flakyStore) Upsert(ctx context.Context, records []vector.Record) error {
	s.mu.Lock()
	s.calls++
	fail := s.failAll || s.failOn[s.calls]
	s.mu.Unlock()
	if fail {
		return errors.New("index write failed")
	}
	return s.Store.Upsert(ctx, records)
}

type fakeSummarizer struct{ err error }

func (f fakeSummarizer) Summarize(_ context.Context, filename, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "summary of " + filename, nil
}

type harness struct {
	idx       *Indexer
	registry  *storage.SQLiteRegistry
	files     *storage.FileStore
	store     *flakyStore
	fulltext  *keyword.BleveIndex
	extractor *switchExtractor
}

func newHarness(t *testing.T, cfg config.ChunkingConfig, opts ...Option) *harness {
	t.Helper()
	dir := t.TempDir()
	registry, err := storage.NewSQLiteRegistry(filepath.Join(dir, "db", "documents.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = registry.Close() })
	files, err := storage.NewFileStore(filepath.Join(dir, "uploads"))
	require.NoError(t, err)
	mem, err := vector.NewMemoryStore(embedding.NewPlaceholderEmbedder(32))
	require.NoError(t, err)
	store := &flakyStore{Store: mem, failOn: map[int]bool{}}
	t.Cleanup(func() { _ = store.Close() })
	fulltext, err := keyword.NewBleveIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = fulltext.Close() })
	ex := newSwitchExtractor()

	if cfg.ParagraphCeiling == 0 {
		cfg.ParagraphCeiling = 10
	}
	opts = append([]Option{WithFullText(fulltext)}, opts...)
	return &harness{
		idx:       New(registry, files, store, ex, cfg, opts...),
		registry:  registry,
		files:     files,
		store:     store,
		fulltext:  fulltext,
		extractor: ex,
	}
}

func (h *harness) records(t *testing.T, fileID string) []vector.Hit {
	t.Helper()
	hits, err := h.store.Get(context.Background(), vector.Eq{Key: "file_id", Value: fileID}, 0)
	require.NoError(t, err)
	return hits
}

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		ext     string
		allowed []string
		want    bool
	}{
		{".txt", []string{".txt", ".md"}, true},
		{".TXT", []string{".txt"}, true},
		{".md", []string{"txt", "md"}, true},
		{".go", []string{".txt"}, false},
		{"", []string{".txt"}, false},
	}
	for _, tt := range tests {
		got := extensionAllowed(tt.ext, tt.allowed)
		if got != tt.want {
			t.Errorf("extensionAllowed(%q, %v) = %v, want %v", tt.ext, tt.allowed, got, tt.want)
		}
	}
}

func TestIngest_storesChunksAndDocument(t *testing.T) {
	h := newHarness(t, config.ChunkingConfig{})
	ctx := context.Background()

	doc, err := h.idx.Ingest(ctx, Upload{
		Filename: "notes.txt",
		Content:  []byte(threeParagraphs),
		Metadata: map[string]string{"source": "test"},
		Options:  Options{Strategy: "paragraph"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, doc.FileID)
	assert.Equal(t, 3, doc.ChunkCount)
	assert.Equal(t, 1, doc.Generation)
	assert.Equal(t, models.StrategyParagraph, doc.Strategy)
	assert.Equal(t, "txt", doc.FileType)
	assert.Equal(t, "test", doc.Metadata["source"])

	hits := h.records(t, doc.FileID)
	require.Len(t, hits, 3)
	for _, hit := range hits {
		assert.Equal(t, "notes.txt", hit.Metadata["filename"])
		assert.Equal(t, "1", hit.Metadata["generation"])
		assert.NotEmpty(t, hit.Metadata["date"])
		assert.NotEmpty(t, hit.Metadata["timestamp"])
		assert.Equal(t, strings.ToLower(hit.Text), hit.Metadata["content_preview"])
		assert.Equal(t, "test", hit.Metadata["doc_source"])
		assert.Equal(t, RecordID(doc.FileID, 1, mustAtoi(t, hit.Metadata["chunk_index"])), hit.ID)
	}

	n, err := h.fulltext.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	stored, err := h.registry.GetDocument(ctx, doc.FileID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.ChunkCount)

	content, err := h.files.Read(doc.FileID, "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, threeParagraphs, string(content))
}

func TestIngest_previewTruncated(t *testing.T) {
	h := newHarness(t, config.ChunkingConfig{})
	long := strings.Repeat("Abc ", 60)
	doc, err := h.idx.Ingest(context.Background(), Upload{Filename: "long.txt", Content: []byte(long), Options: Options{Strategy: "paragraph"}})
	require.NoError(t, err)
	hits := h.records(t, doc.FileID)
	require.Len(t, hits, 1)
	assert.Len(t, []rune(hits[0].Metadata["content_preview"]), 100)
	assert.True(t, strings.HasPrefix(hits[0].Metadata["content_preview"], "abc abc"))
}

func TestIngest_extractionFailureStoresNothing(t *testing.T) {
	h := newHarness(t, config.ChunkingConfig{})
	h.extractor.fail["scan.pdf"] = true
	ctx := context.Background()

	_, err := h.idx.Ingest(ctx, Upload{FileID: "f1", Filename: "scan.pdf", Content: []byte("%PDF")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extraction failed for scan.pdf")
	assert.Contains(t, err.Error(), "service unreachable")

	assert.Equal(t, 0, h.store.Count())
	count, err := h.registry.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	_, err = h.files.Read("f1", "scan.pdf")
	assert.Error(t, err)
}

func TestIngest_blankTextFails(t *testing.T) {
	h := newHarness(t, config.ChunkingConfig{})
	_, err := h.idx.Ingest(context.Background(), Upload{Filename: "empty.txt", Content: []byte("   \n ")})
	require.Error(t, err)
	assert.Equal(t, 0, h.store.Count())
}

func TestIngest_tooLarge(t *testing.T) {
	h := newHarness(t, config.ChunkingConfig{}, WithExtractionLimits(4, nil))
	_, err := h.idx.Ingest(context.Background(), Upload{Filename: "big.txt", Content: []byte("too big")})
	assert.ErrorIs(t, err, extract.ErrFileTooLarge)
}

func TestIngest_invalidStrategy(t *testing.T) {
	h := newHarness(t, config.ChunkingConfig{})
	_, err := h.idx.Ingest(context.Background(), Upload{Filename: "a.txt", Content: []byte("text"), Options: Options{Strategy: "semantic"}})
	assert.Error(t, err)
}

func TestIngest_largeFileForcesParagraph(t *testing.T) {
	h := newHarness(t, config.ChunkingConfig{LargeFileBytes: 20})
	doc, err := h.idx.Ingest(context.Background(), Upload{
		Filename: "big.txt",
		Content:  []byte(threeParagraphs),
		Options:  Options{Strategy: "sentence", ChunkSize: 2000, ChunkOverlap: 100},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StrategyParagraph, doc.Strategy)
	assert.Equal(t, 500, doc.ChunkSize)
	assert.Equal(t, 100, doc.ChunkOverlap)
}

func TestIngest_autoStrategy(t *testing.T) {
	h := newHarness(t, config.ChunkingConfig{})
	doc, err := h.idx.Ingest(context.Background(), Upload{Filename: "a.txt", Content: []byte(threeParagraphs)})
	require.NoError(t, err)
	_, err = models.ParseChunkStrategy(string(doc.Strategy))
	assert.NoError(t, err)
	assert.Less(t, doc.ChunkOverlap, doc.ChunkSize)
	assert.Positive(t, doc.ChunkCount)
}

func TestIngest_summary(t *testing.T) {
	h := newHarness(t, config.ChunkingConfig{}, WithSummarizer(fakeSummarizer{}))
	doc, err := h.idx.Ingest(context.Background(), Upload{Filename: "a.txt", Content: []byte(threeParagraphs)})
	require.NoError(t, err)
	assert.Equal(t, "summary of a.txt", doc.Summary)

	h = newHarness(t, config.ChunkingConfig{}, WithSummarizer(fakeSummarizer{err: errors.New("llm down")}))
	doc, err = h.idx.Ingest(context.Background(), Upload{Filename: "a.txt", Content: []byte(threeParagraphs)})
	require.NoError(t, err)
	assert.Empty(t, doc.Summary)
}

func TestInsertChunks_failedBatchIsSkipped(t *testing.T) {
	h := newHarness(t, config.ChunkingConfig{BatchSize: 20})
	h.store.failOn[2] = true

	chunks := make([]models.Chunk, 45)
	for i := range chunks {
		chunks[i] = models.Chunk{Text: fmt.Sprintf("chunk %d", i), Index: i}
	}
	doc := &models.Document{FileID: "f1", Filename: "a.txt"}
	n, err := h.idx.InsertChunks(context.Background(), doc, 1, chunks)
	require.NoError(t, err)
	assert.Equal(t, 25, n)
	assert.Equal(t, 25, h.store.Count())
	assert.Equal(t, 3, h.store.calls)
}

func TestInsertChunks_canceled(t *testing.T) {
	h := newHarness(t, config.ChunkingConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := h.idx.InsertChunks(ctx, &models.Document{FileID: "f1"}, 1, []models.Chunk{{Text: "x"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}

func TestIngest_allBatchesFail(t *testing.T) {
	h := newHarness(t, config.ChunkingConfig{})
	h.store.failAll = true
	_, err := h.idx.Ingest(context.Background(), Upload{FileID: "f1", Filename: "a.txt", Content: []byte(threeParagraphs)})
	assert.ErrorIs(t, err, ErrNoChunks)
	_, err = h.registry.GetDocument(context.Background(), "f1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReprocess_replacesGeneration(t *testing.T) {
	h := newHarness(t, config.ChunkingConfig{})
	ctx := context.Background()
	doc, err := h.idx.Ingest(ctx, Upload{Filename: "a.txt", Content: []byte(threeParagraphs), Options: Options{Strategy: "paragraph"}})
	require.NoError(t, err)

	re, err := h.idx.Reprocess(ctx, doc.FileID, Options{Strategy: "fixed_size", ChunkSize: 2000, ChunkOverlap: 100})
	require.NoError(t, err)
	assert.Equal(t, 2, re.Generation)
	assert.Equal(t, models.StrategyFixedSize, re.Strategy)
	assert.Equal(t, 1, re.ChunkCount)

	hits := h.records(t, doc.FileID)
	require.Len(t, hits, 1)
	assert.Equal(t, "2", hits[0].Metadata["generation"])
	n, err := h.fulltext.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	stored, err := h.registry.GetDocument(ctx, doc.FileID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Generation)
	assert.Equal(t, 2000, stored.ChunkSize)
}

func TestReprocess_chunkingFailureKeepsChunks(t *testing.T) {
	h := newHarness(t, config.ChunkingConfig{})
	ctx := context.Background()
	doc, err := h.idx.Ingest(ctx, Upload{Filename: "a.txt", Content: []byte(threeParagraphs), Options: Options{Strategy: "paragraph"}})
	require.NoError(t, err)

	h.extractor.blank = true
	_, err = h.idx.Reprocess(ctx, doc.FileID, Options{Strategy: "sentence"})
	require.Error(t, err)

	hits := h.records(t, doc.FileID)
	require.Len(t, hits, 3)
	for _, hit := range hits {
		assert.Equal(t, "1", hit.Metadata["generation"])
	}
	stored, err := h.registry.GetDocument(ctx, doc.FileID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Generation)
}

func TestReprocess_insertFailureKeepsChunks(t *testing.T) {
	h := newHarness(t, config.ChunkingConfig{})
	ctx := context.Background()
	doc, err := h.idx.Ingest(ctx, Upload{Filename: "a.txt", Content: []byte(threeParagraphs), Options: Options{Strategy: "paragraph"}})
	require.NoError(t, err)

	h.store.failAll = true
	_, err = h.idx.Reprocess(ctx, doc.FileID, Options{Strategy: "hybrid"})
	assert.ErrorIs(t, err, ErrNoChunks)
	assert.Len(t, h.records(t, doc.FileID), 3)
}

func TestReprocess_missingDocument(t *testing.T) {
	h := newHarness(t, config.ChunkingConfig{})
	_, err := h.idx.Reprocess(context.Background(), "nope", Options{})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDelete(t *testing.T) {
	h := newHarness(t, config.ChunkingConfig{})
	ctx := context.Background()
	doc, err := h.idx.Ingest(ctx, Upload{Filename: "a.txt", Content: []byte(threeParagraphs), Options: Options{Strategy: "paragraph"}})
	require.NoError(t, err)
	other, err := h.idx.Ingest(ctx, Upload{Filename: "b.txt", Content: []byte("Other document."), Options: Options{Strategy: "paragraph"}})
	require.NoError(t, err)

	require.NoError(t, h.idx.Delete(ctx, doc.FileID))
	assert.Empty(t, h.records(t, doc.FileID))
	assert.Len(t, h.records(t, other.FileID), 1)
	n, err := h.fulltext.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	_, err = h.files.Read(doc.FileID, "a.txt")
	assert.Error(t, err)

	assert.ErrorIs(t, h.idx.Delete(ctx, doc.FileID), storage.ErrNotFound)
}

func TestChunks_inOrder(t *testing.T) {
	h := newHarness(t, config.ChunkingConfig{})
	ctx := context.Background()
	doc, err := h.idx.Ingest(ctx, Upload{Filename: "a.txt", Content: []byte(threeParagraphs), Options: Options{Strategy: "paragraph"}})
	require.NoError(t, err)

	hits, err := h.idx.Chunks(ctx, doc.FileID)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "First paragraph about Invoices.", hits[0].Text)
	assert.Equal(t, "Third paragraph about taxes.", hits[2].Text)
}

func TestAnalyze(t *testing.T) {
	h := newHarness(t, config.ChunkingConfig{})
	ctx := context.Background()
	doc, err := h.idx.Ingest(ctx, Upload{Filename: "a.txt", Content: []byte(threeParagraphs)})
	require.NoError(t, err)

	a, err := h.idx.Analyze(ctx, doc.FileID)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", a.Filename)
	assert.Equal(t, 3, a.Profile.Text.ParagraphCount)
	assert.Less(t, a.Recommendation.ChunkOverlap, a.Recommendation.ChunkSize)
}

func TestPreview(t *testing.T) {
	h := newHarness(t, config.ChunkingConfig{})
	chunks, err := h.idx.Preview(threeParagraphs, "p.txt", Options{Strategy: "paragraph"})
	require.NoError(t, err)
	assert.Len(t, chunks, 3)
	assert.Equal(t, 0, h.store.Count())
}

func TestIngestPath_reingestReplaces(t *testing.T) {
	h := newHarness(t, config.ChunkingConfig{Strategy: "paragraph"})
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("Hello world content."), 0600))

	doc, err := h.idx.IngestPath(ctx, path)
	require.NoError(t, err)
	abs, _ := filepath.Abs(path)
	assert.Equal(t, fileid.ForPath(abs), doc.FileID)
	assert.Equal(t, abs, doc.Metadata["source_path"])

	require.NoError(t, os.WriteFile(path, []byte("Updated content."), 0600))
	doc2, err := h.idx.IngestPath(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, doc.FileID, doc2.FileID)
	assert.Equal(t, 2, doc2.Generation)

	hits := h.records(t, doc.FileID)
	require.Len(t, hits, 1)
	assert.Equal(t, "Updated content.", hits[0].Text)

	require.NoError(t, h.idx.RemovePath(ctx, path))
	assert.Empty(t, h.records(t, doc.FileID))
	assert.NoError(t, h.idx.RemovePath(ctx, path))
}

func TestIngestPath_notRegularFile(t *testing.T) {
	h := newHarness(t, config.ChunkingConfig{})
	_, err := h.idx.IngestPath(context.Background(), t.TempDir())
	assert.Error(t, err)
	_, err = h.idx.IngestPath(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestIngestBatch(t *testing.T) {
	h := newHarness(t, config.ChunkingConfig{Workers: 2})
	h.extractor.fail["bad.txt"] = true
	uploads := []Upload{
		{Filename: "a.txt", Content: []byte("Alpha document.")},
		{Filename: "bad.txt", Content: []byte("Broken.")},
		{Filename: "c.txt", Content: []byte("Gamma document.")},
	}
	results := h.idx.IngestBatch(context.Background(), uploads)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, "c.txt", results[2].Filename)
	assert.NotNil(t, results[2].Document)

	count, err := h.registry.CountDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))
	for _, p := range []string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.txt"), filepath.Join(sub, "c.txt"), filepath.Join(dir, "skip.xyz")} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0600))
	}

	paths, err := CollectFiles(dir, []string{".txt"})
	require.NoError(t, err)
	assert.Len(t, paths, 3)

	all, err := CollectFiles(dir, nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = CollectFiles(filepath.Join(dir, "a.txt"), nil)
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	h := newHarness(t, config.ChunkingConfig{})
	ctx := context.Background()
	_, err := h.idx.Ingest(ctx, Upload{Filename: "a.txt", Content: []byte(threeParagraphs), Options: Options{Strategy: "paragraph"}})
	require.NoError(t, err)

	st, err := h.idx.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Documents)
	assert.Equal(t, 3, st.Chunks)
	assert.Equal(t, uint64(3), st.FullTextDocs)
	assert.Equal(t, int64(len(threeParagraphs)), st.UploadBytes)
}

func mustAtoi(t *testing.T, s string) int {
	t.Helper()
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	require.NoError(t, err)
	return n
}
