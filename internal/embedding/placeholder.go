package embedding

import (
	"context"
	"math"
	"strings"
)

// PlaceholderEmbedder is the last-resort backend. It derives a fixed-dimension vector from
// hashed word features, so identical texts get identical embeddings and texts sharing words
// land near each other. It never fails.
type PlaceholderEmbedder struct {
	dimensions int
}

// NewPlaceholderEmbedder returns a placeholder embedder of the given dimensions.
func NewPlaceholderEmbedder(dimensions int) *PlaceholderEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &PlaceholderEmbedder{dimensions: dimensions}
}

// Embed returns a normalized bag-of-hashed-words vector.
func (e *PlaceholderEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	emb := make([]float32, e.dimensions)
	for _, w := range SplitWords(strings.ToLower(text)) {
		h := HashString(w)
		emb[h%uint64(e.dimensions)] += 1
		emb[(h>>17)%uint64(e.dimensions)] += 0.5
	}
	// Give empty input a stable non-zero direction.
	if allZero(emb) {
		for i := range emb {
			emb[i] = float32(math.Sin(float64(i+1))*0.1 + 0.01)
		}
	}
	NormalizeL2Slice(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *PlaceholderEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *PlaceholderEmbedder) Dimensions() int {
	return e.dimensions
}

// Name returns "placeholder".
func (e *PlaceholderEmbedder) Name() string {
	return "placeholder"
}

// Close is a no-op for PlaceholderEmbedder.
func (e *PlaceholderEmbedder) Close() error {
	return nil
}

func allZero(x []float32) bool {
	for _, v := range x {
		if v != 0 {
			return false
		}
	}
	return true
}
