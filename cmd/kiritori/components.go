package main

import (
	"fmt"
	"strings"

	"github.com/hyperjump/kiritori/internal/config"
	"github.com/hyperjump/kiritori/internal/embedding"
	"github.com/hyperjump/kiritori/internal/extract"
	"github.com/hyperjump/kiritori/internal/indexer"
	"github.com/hyperjump/kiritori/internal/keyword"
	"github.com/hyperjump/kiritori/internal/llm"
	"github.com/hyperjump/kiritori/internal/retrieval"
	"github.com/hyperjump/kiritori/internal/storage"
	"github.com/hyperjump/kiritori/internal/vector"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Registry *storage.SQLiteRegistry
	Embedder embedding.Embedder
	Store    vector.Store
	FullText *keyword.BleveIndex
	Indexer  *indexer.Indexer
	Engine   *retrieval.Engine
	Composer *llm.Composer
}

// Close releases every component that holds files or connections.
func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.FullText != nil {
		_ = c.FullText.Close()
	}
	if c.Registry != nil {
		_ = c.Registry.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

// buildEmbedder chains the configured backends. Backends that fail to start are skipped; the
// placeholder backend is appended when nothing else is usable.
func buildEmbedder(cfg config.EmbeddingConfig, logger *zap.Logger) (embedding.Embedder, error) {
	var backends []embedding.Embedder
	for _, name := range cfg.Backends {
		switch strings.ToLower(name) {
		case "ollama":
			backends = append(backends, embedding.NewOllamaEmbedder(cfg.OllamaURL, cfg.Model, cfg.Dimensions, 0))
		case "onnx":
			e, err := embedding.NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
			if err != nil {
				logger.Warn("onnx embedder unavailable", zap.String("model_path", cfg.ModelPath), zap.Error(err))
				continue
			}
			backends = append(backends, e)
		case "placeholder":
			backends = append(backends, embedding.NewPlaceholderEmbedder(cfg.Dimensions))
		default:
			return nil, fmt.Errorf("unknown embedding backend %q", name)
		}
	}
	if len(backends) == 0 {
		backends = append(backends, embedding.NewPlaceholderEmbedder(cfg.Dimensions))
	}
	chain, err := embedding.NewFallbackEmbedder(logger, backends...)
	if err != nil {
		return nil, err
	}
	return embedding.NewCachedEmbedder(chain, cfg.CacheSize), nil
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (c *Components, err error) {
	c = &Components{}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	c.Registry, err = storage.NewSQLiteRegistry(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize registry: %w", err)
	}
	files, err := storage.NewFileStore(cfg.Storage.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize upload store: %w", err)
	}

	c.Embedder, err = buildEmbedder(cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Store, err = vector.NewStore(cfg.Vector.Type, cfg.Vector.Path, c.Embedder)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	c.FullText, err = keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize full-text index: %w", err)
	}
	logger.Info("stores initialized",
		zap.String("vector_type", cfg.Vector.Type),
		zap.String("embedder", c.Embedder.Name()),
		zap.Int("vectors", c.Store.Count()))

	extractor, err := extract.New(cfg.Extraction)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize extractor: %w", err)
	}

	c.Composer = llm.NewComposer(llm.NewOllamaClient(cfg.LLM), cfg.LLM, logger)
	opts := []indexer.Option{
		indexer.WithLogger(logger),
		indexer.WithFullText(c.FullText),
		indexer.WithExtractionLimits(cfg.Extraction.MaxFileSize, cfg.Extraction.OCRLanguages),
	}
	if cfg.LLM.Summaries {
		opts = append(opts, indexer.WithSummarizer(c.Composer))
	}
	c.Indexer = indexer.New(c.Registry, files, c.Store, extractor, cfg.Chunking, opts...)
	c.Engine = retrieval.NewEngine(c.Store, c.FullText, &cfg.Retrieval, logger)
	return c, nil
}
