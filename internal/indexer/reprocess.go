package indexer

import (
	"context"
	"fmt"

	"github.com/hyperjump/kiritori/internal/analyzer"
	"github.com/hyperjump/kiritori/internal/chunking"
	"github.com/hyperjump/kiritori/internal/models"
	"github.com/hyperjump/kiritori/internal/retrieval"
	"github.com/hyperjump/kiritori/internal/storage"
	"github.com/hyperjump/kiritori/internal/vector"
	"go.uber.org/zap"
)

// Analysis is the structure profile and chunking recommendation of a document.
type Analysis struct {
	FileID         string                  `json:"file_id,omitempty"`
	Filename       string                  `json:"filename,omitempty"`
	Profile        *analyzer.Profile       `json:"structure_profile"`
	Recommendation analyzer.Recommendation `json:"recommendation"`
}

// AnalyzeText profiles raw text.
func AnalyzeText(text string) *Analysis {
	p := analyzer.Analyze(text)
	return &Analysis{Profile: p, Recommendation: analyzer.Recommend(p)}
}

// Analyze profiles a stored document.
func (idx *Indexer) Analyze(ctx context.Context, fileID string) (*Analysis, error) {
	doc, err := idx.registry.GetDocument(ctx, fileID)
	if err != nil {
		return nil, err
	}
	content, err := idx.files.Read(doc.FileID, doc.Filename)
	if err != nil {
		return nil, err
	}
	text, err := idx.extractText(ctx, content, doc.Filename)
	if err != nil {
		return nil, err
	}
	a := AnalyzeText(text)
	a.FileID = doc.FileID
	a.Filename = doc.Filename
	return a, nil
}

// Preview chunks raw text without storing anything.
func (idx *Indexer) Preview(text, filename string, opts Options) ([]models.Chunk, error) {
	strategy, size, overlap, err := idx.resolve(text, int64(len(text)), opts)
	if err != nil {
		return nil, err
	}
	return idx.chunker.Chunk(text, chunking.Params{
		Strategy:     strategy,
		ChunkSize:    size,
		ChunkOverlap: overlap,
		Filename:     filename,
	})
}

// Reprocess re-chunks a stored document with new parameters. The previous chunks are removed
// only after the new generation has been stored; on any failure they stay queryable.
func (idx *Indexer) Reprocess(ctx context.Context, fileID string, opts Options) (*models.Document, error) {
	doc, err := idx.registry.GetDocument(ctx, fileID)
	if err != nil {
		return nil, err
	}
	content, err := idx.files.Read(doc.FileID, doc.Filename)
	if err != nil {
		return nil, err
	}
	text, err := idx.extractText(ctx, content, doc.Filename)
	if err != nil {
		return nil, err
	}
	strategy, size, overlap, err := idx.resolve(text, doc.FileSize, opts)
	if err != nil {
		return nil, err
	}
	chunks, err := idx.chunker.Chunk(text, chunking.Params{
		Strategy:     strategy,
		ChunkSize:    size,
		ChunkOverlap: overlap,
		Filename:     doc.Filename,
		DocMetadata:  doc.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", doc.Filename, err)
	}

	next := *doc
	next.Generation = doc.Generation + 1
	next.Strategy = strategy
	next.ChunkSize = size
	next.ChunkOverlap = overlap
	n, err := idx.insertGeneration(ctx, &next, chunks)
	if err != nil {
		idx.logger.Warn("reprocess failed, keeping previous chunks",
			zap.String("file_id", fileID), zap.Int("generation", doc.Generation), zap.Error(err))
		return nil, err
	}
	next.ChunkCount = n
	if err := idx.registry.UpdateDocument(ctx, &next); err != nil {
		idx.discardGeneration(ctx, fileID, next.Generation)
		return nil, fmt.Errorf("save document %s: %w", doc.Filename, err)
	}
	idx.dropStaleGenerations(ctx, fileID, next.Generation)

	idx.logger.Info("document reprocessed",
		zap.String("file_id", fileID),
		zap.String("strategy", string(strategy)),
		zap.Int("chunk_size", size),
		zap.Int("chunk_overlap", overlap),
		zap.Int("chunks", n),
		zap.Int("generation", next.Generation))
	return &next, nil
}

// Delete removes a document's chunks, its stored upload and its registry row.
func (idx *Indexer) Delete(ctx context.Context, fileID string) error {
	doc, err := idx.registry.GetDocument(ctx, fileID)
	if err != nil {
		return err
	}
	n, err := idx.removeChunks(ctx, vector.Eq{Key: retrieval.KeyFileID, Value: fileID})
	if err != nil {
		return err
	}
	if err := idx.files.Delete(doc.FileID, doc.Filename); err != nil {
		return err
	}
	if err := idx.registry.DeleteDocument(ctx, fileID); err != nil {
		return fmt.Errorf("delete document %s: %w", fileID, err)
	}
	idx.logger.Info("document deleted", zap.String("file_id", fileID), zap.Int("chunks", n))
	return nil
}

// Status reports registry and index sizes.
type Status struct {
	Documents    int64  `json:"documents"`
	Chunks       int    `json:"chunks"`
	FullTextDocs uint64 `json:"fulltext_entries"`
	UploadBytes  int64  `json:"upload_bytes"`
}

// Status returns current counts.
func (idx *Indexer) Status(ctx context.Context) (*Status, error) {
	docs, err := idx.registry.CountDocuments(ctx)
	if err != nil {
		return nil, err
	}
	st := &Status{Documents: docs, Chunks: idx.store.Count()}
	if st.UploadBytes, err = storage.DiskUsageBytes(idx.files.Dir()); err != nil {
		return nil, err
	}
	if idx.fulltext != nil {
		if st.FullTextDocs, err = idx.fulltext.DocCount(); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// Registry returns the document registry.
func (idx *Indexer) Registry() storage.Registry {
	return idx.registry
}
