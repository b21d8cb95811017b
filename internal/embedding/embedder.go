// Package embedding provides text embedding backends, a fallback chain across them, and caching.
package embedding

import (
	"context"

	"github.com/hyperjump/kiritori/pkg/utils"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	// Name identifies the backend and model, e.g. "ollama:nomic-embed-text".
	Name() string
	Close() error
}

// NormalizeL2Slice normalizes the slice in place to unit L2 norm.
func NormalizeL2Slice(x []float32) {
	utils.NormalizeL2(x)
}
