package embedding

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// FallbackEmbedder tries each backend in order and returns the first result. Every backend must
// share one dimension so vectors from different backends stay comparable.
type FallbackEmbedder struct {
	backends []Embedder
	logger   *zap.Logger
}

// NewFallbackEmbedder builds a chain over backends. logger may be nil.
func NewFallbackEmbedder(logger *zap.Logger, backends ...Embedder) (*FallbackEmbedder, error) {
	if len(backends) == 0 {
		return nil, errors.New("fallback embedder needs at least one backend")
	}
	dims := backends[0].Dimensions()
	for _, b := range backends[1:] {
		if b.Dimensions() != dims {
			return nil, fmt.Errorf("backend %s has dimension %d, expected %d", b.Name(), b.Dimensions(), dims)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackEmbedder{backends: backends, logger: logger}, nil
}

// Embed returns the first successful backend embedding.
func (f *FallbackEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var errs []error
	for _, b := range f.backends {
		vec, err := b.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.logger.Warn("embedding backend failed, trying next", zap.String("backend", b.Name()), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
	}
	return nil, fmt.Errorf("all embedding backends failed: %w", errors.Join(errs...))
}

// EmbedBatch returns the first backend that embeds the whole batch.
func (f *FallbackEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var errs []error
	for _, b := range f.backends {
		vecs, err := b.EmbedBatch(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.logger.Warn("embedding backend failed, trying next",
			zap.String("backend", b.Name()),
			zap.Int("texts", len(texts)),
			zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
	}
	return nil, fmt.Errorf("all embedding backends failed: %w", errors.Join(errs...))
}

// Dimensions returns the shared dimension of the chain.
func (f *FallbackEmbedder) Dimensions() int {
	return f.backends[0].Dimensions()
}

// Name identifies the chain by its primary backend.
func (f *FallbackEmbedder) Name() string {
	return "fallback:" + f.backends[0].Name()
}

// Close closes every backend and returns the joined errors.
func (f *FallbackEmbedder) Close() error {
	var errs []error
	for _, b := range f.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
