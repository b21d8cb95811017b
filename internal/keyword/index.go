// Package keyword provides the full-text chunk index used when vector similarity finds nothing.
package keyword

import (
	"context"

	"github.com/hyperjump/kiritori/internal/vector"
)

// Entry is one chunk to index. Metadata is stored as-is and returned on hits.
type Entry struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Index is a full-text index over chunk records.
type Index interface {
	Index(ctx context.Context, entries []Entry) error
	// Retrieve matches query against chunk content and returns up to k hits satisfying filter.
	Retrieve(ctx context.Context, query string, filter vector.Filter, k int) ([]vector.Hit, error)
	Delete(ctx context.Context, ids []string) error
	DocCount() (uint64, error)
	Close() error
}
