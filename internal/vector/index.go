// Package vector stores chunk text, metadata and embeddings, and serves filtered similarity queries.
package vector

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Record is a stored chunk. Vector is computed from Text on upsert when empty.
type Record struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
	Vector   []float32         `json:"vector,omitempty"`
}

// Hit is a record returned from a query or get. Score is the inner product with the
// query embedding, or zero for exact-match gets.
type Hit struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
	Score    float64           `json:"score"`
}

// Store is the vector index used by ingestion and retrieval.
type Store interface {
	// Upsert inserts or replaces records by ID.
	Upsert(ctx context.Context, records []Record) error
	// Query embeds text and returns the k nearest records matching filter, best first.
	Query(ctx context.Context, text string, filter Filter, k int) ([]Hit, error)
	// Get returns up to limit records matching filter in insertion order. limit <= 0 means all.
	Get(ctx context.Context, filter Filter, limit int) ([]Hit, error)
	// Delete removes every record matching filter and returns how many were removed.
	Delete(ctx context.Context, filter Filter) (int, error)
	Count() int
	Close() error
}
