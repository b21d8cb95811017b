package indexer

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/kiritori/internal/keyword"
	"github.com/hyperjump/kiritori/internal/models"
	"github.com/hyperjump/kiritori/internal/retrieval"
	"github.com/hyperjump/kiritori/internal/vector"
	"go.uber.org/zap"
)

// Chunk metadata keys written at insert time, in addition to the chunker's own keys.
const (
	KeyFilename   = "filename"
	KeyGeneration = "generation"
	KeyTimestamp  = "timestamp"

	previewLength = 100
)

// RecordID returns the vector record id of a chunk.
func RecordID(fileID string, generation, chunkIndex int) string {
	return fmt.Sprintf("%s_%d_%d", fileID, generation, chunkIndex)
}

// InsertChunks writes chunks as generation of doc in batches. A failed batch is logged and
// skipped; the returned count covers only the batches that were stored. The error is
// non-nil only when ctx is done.
func (idx *Indexer) InsertChunks(ctx context.Context, doc *models.Document, generation int, chunks []models.Chunk) (int, error) {
	now := idx.now().UTC()
	records := make([]vector.Record, len(chunks))
	for i, ch := range chunks {
		md := make(map[string]string, len(ch.Metadata)+6)
		for k, v := range ch.Metadata {
			md[k] = v
		}
		md[retrieval.KeyFileID] = doc.FileID
		md[KeyFilename] = doc.Filename
		md[retrieval.KeyChunkIndex] = strconv.Itoa(ch.Index)
		md[KeyGeneration] = strconv.Itoa(generation)
		md[KeyTimestamp] = now.Format(time.RFC3339)
		md[retrieval.KeyDate] = now.Format("2006-01-02")
		md[retrieval.KeyContentPreview] = preview(ch.Text)
		records[i] = vector.Record{
			ID:       RecordID(doc.FileID, generation, ch.Index),
			Text:     ch.Text,
			Metadata: md,
		}
	}

	inserted := 0
	for start := 0; start < len(records); start += idx.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}
		end := min(start+idx.cfg.BatchSize, len(records))
		batch := records[start:end]
		if err := idx.store.Upsert(ctx, batch); err != nil {
			idx.logger.Warn("chunk batch insert failed",
				zap.String("file_id", doc.FileID),
				zap.Int("batch_start", start),
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
			continue
		}
		inserted += len(batch)
		idx.indexFullText(ctx, doc.FileID, batch)
	}
	return inserted, nil
}

func (idx *Indexer) indexFullText(ctx context.Context, fileID string, batch []vector.Record) {
	if idx.fulltext == nil {
		return
	}
	entries := make([]keyword.Entry, len(batch))
	for i, rec := range batch {
		entries[i] = keyword.Entry{ID: rec.ID, Text: rec.Text, Metadata: rec.Metadata}
	}
	if err := idx.fulltext.Index(ctx, entries); err != nil {
		idx.logger.Warn("full-text index failed", zap.String("file_id", fileID), zap.Error(err))
	}
}

// insertGeneration stores chunks as doc.Generation and removes the partial generation if
// nothing or only part of it could be confirmed.
func (idx *Indexer) insertGeneration(ctx context.Context, doc *models.Document, chunks []models.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%s: %w", doc.Filename, ErrNoChunks)
	}
	n, err := idx.InsertChunks(ctx, doc, doc.Generation, chunks)
	if err != nil {
		idx.discardGeneration(context.WithoutCancel(ctx), doc.FileID, doc.Generation)
		return 0, fmt.Errorf("insert chunks for %s: %w", doc.Filename, err)
	}
	if n == 0 {
		idx.discardGeneration(ctx, doc.FileID, doc.Generation)
		return 0, fmt.Errorf("insert chunks for %s: %w", doc.Filename, ErrNoChunks)
	}
	if n < len(chunks) {
		idx.logger.Warn("partial chunk insert",
			zap.String("file_id", doc.FileID),
			zap.Int("inserted", n),
			zap.Int("chunks", len(chunks)))
	}
	return n, nil
}

func (idx *Indexer) discardGeneration(ctx context.Context, fileID string, generation int) {
	filter := vector.And{
		vector.Eq{Key: retrieval.KeyFileID, Value: fileID},
		vector.Eq{Key: KeyGeneration, Value: strconv.Itoa(generation)},
	}
	if _, err := idx.removeChunks(ctx, filter); err != nil {
		idx.logger.Warn("failed to discard partial generation",
			zap.String("file_id", fileID), zap.Int("generation", generation), zap.Error(err))
	}
}

func (idx *Indexer) dropStaleGenerations(ctx context.Context, fileID string, current int) {
	filter := vector.And{
		vector.Eq{Key: retrieval.KeyFileID, Value: fileID},
		vector.Ne{Key: KeyGeneration, Value: strconv.Itoa(current)},
	}
	n, err := idx.removeChunks(ctx, filter)
	if err != nil {
		idx.logger.Warn("failed to remove stale chunks",
			zap.String("file_id", fileID), zap.Int("generation", current), zap.Error(err))
		return
	}
	idx.logger.Debug("stale chunks removed", zap.String("file_id", fileID), zap.Int("removed", n))
}

// removeChunks deletes matching chunks from the vector store and the full-text index.
func (idx *Indexer) removeChunks(ctx context.Context, filter vector.Filter) (int, error) {
	var ids []string
	if idx.fulltext != nil {
		hits, err := idx.store.Get(ctx, filter, 0)
		if err != nil {
			return 0, fmt.Errorf("list chunks: %w", err)
		}
		ids = make([]string, len(hits))
		for i, h := range hits {
			ids[i] = h.ID
		}
	}
	n, err := idx.store.Delete(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("delete chunks: %w", err)
	}
	if len(ids) > 0 {
		if err := idx.fulltext.Delete(ctx, ids); err != nil {
			return n, fmt.Errorf("delete full-text entries: %w", err)
		}
	}
	return n, nil
}

// Chunks returns the current generation of a document's chunks in chunk order.
func (idx *Indexer) Chunks(ctx context.Context, fileID string) ([]vector.Hit, error) {
	doc, err := idx.registry.GetDocument(ctx, fileID)
	if err != nil {
		return nil, err
	}
	hits, err := idx.store.Get(ctx, vector.And{
		vector.Eq{Key: retrieval.KeyFileID, Value: fileID},
		vector.Eq{Key: KeyGeneration, Value: strconv.Itoa(doc.Generation)},
	}, 0)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(hits, func(i, j int) bool {
		a, _ := strconv.Atoi(hits[i].Metadata[retrieval.KeyChunkIndex])
		b, _ := strconv.Atoi(hits[j].Metadata[retrieval.KeyChunkIndex])
		return a < b
	})
	return hits, nil
}

func preview(text string) string {
	r := []rune(text)
	if len(r) > previewLength {
		r = r[:previewLength]
	}
	return strings.ToLower(string(r))
}
