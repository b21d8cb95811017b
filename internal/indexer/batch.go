package indexer

import (
	"context"

	"github.com/hyperjump/kiritori/internal/models"
	"golang.org/x/sync/errgroup"
)

// BatchResult is the outcome of one upload in IngestBatch.
type BatchResult struct {
	Filename string           `json:"filename"`
	Document *models.Document `json:"document,omitempty"`
	Err      error            `json:"-"`
}

// IngestBatch ingests uploads on a bounded worker pool, one document per worker. One failed
// document does not stop the others. Results are in upload order.
func (idx *Indexer) IngestBatch(ctx context.Context, uploads []Upload) []BatchResult {
	results := make([]BatchResult, len(uploads))
	var g errgroup.Group
	g.SetLimit(idx.cfg.Workers)
	for i, up := range uploads {
		g.Go(func() error {
			results[i].Filename = up.Filename
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			doc, err := idx.Ingest(ctx, up)
			results[i].Document = doc
			results[i].Err = err
			return nil
		})
	}
	_ = g.Wait()
	return results
}
