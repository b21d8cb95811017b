package config

import "time"

const dataRoot = "/usr/local/var/kiritori/data"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadSize == 0 {
		cfg.Server.MaxUploadSize = 500 << 20
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = dataRoot + "/db/documents.db"
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = dataRoot + "/uploads"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = dataRoot + "/indices/bleve"
	}
	if cfg.Vector.Type == "" {
		cfg.Vector.Type = "bolt"
	}
	if cfg.Vector.Path == "" {
		cfg.Vector.Path = dataRoot + "/indices/vectors.db"
	}

	if len(cfg.Embedding.Backends) == 0 {
		cfg.Embedding.Backends = []string{"ollama", "placeholder"}
	}
	if cfg.Embedding.OllamaURL == "" {
		cfg.Embedding.OllamaURL = "http://localhost:11434"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = dataRoot + "/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}

	if cfg.Extraction.Backend == "" {
		cfg.Extraction.Backend = "unstructured"
	}
	if cfg.Extraction.UnstructuredURL == "" {
		cfg.Extraction.UnstructuredURL = "http://localhost:8000/general/v0/general"
	}
	if cfg.Extraction.Timeout == 0 {
		cfg.Extraction.Timeout = 120 * time.Second
	}
	if cfg.Extraction.MaxFileSize == 0 {
		cfg.Extraction.MaxFileSize = 500 << 20
	}
	if cfg.Extraction.RequestsPerSec == 0 {
		cfg.Extraction.RequestsPerSec = 2
	}
	if len(cfg.Extraction.OCRLanguages) == 0 {
		cfg.Extraction.OCRLanguages = []string{"eng"}
	}

	if cfg.LLM.URL == "" {
		cfg.LLM.URL = "http://localhost:11434"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama3"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}
	if cfg.LLM.RequestsPerSec == 0 {
		cfg.LLM.RequestsPerSec = 5
	}

	if cfg.Chunking.Strategy == "" {
		cfg.Chunking.Strategy = "auto"
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 1000
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 200
	}
	if cfg.Chunking.ParagraphCeiling == 0 {
		cfg.Chunking.ParagraphCeiling = 2000
	}
	if cfg.Chunking.LargeTextThreshold == 0 {
		cfg.Chunking.LargeTextThreshold = 1_000_000
	}
	if cfg.Chunking.LargeFileBytes == 0 {
		cfg.Chunking.LargeFileBytes = 5 << 20
	}
	if cfg.Chunking.LargeFileChunkSize == 0 {
		cfg.Chunking.LargeFileChunkSize = 500
	}
	if cfg.Chunking.BatchSize == 0 {
		cfg.Chunking.BatchSize = 20
	}
	if cfg.Chunking.Workers == 0 {
		cfg.Chunking.Workers = 4
	}

	if cfg.Retrieval.DefaultStrategy == "" {
		cfg.Retrieval.DefaultStrategy = "hybrid"
	}
	if cfg.Retrieval.DefaultTopK == 0 {
		cfg.Retrieval.DefaultTopK = 10
	}
	if cfg.Retrieval.MaxTopK == 0 {
		cfg.Retrieval.MaxTopK = 100
	}
	if cfg.Retrieval.Timeout == 0 {
		cfg.Retrieval.Timeout = 30 * time.Second
	}
	if cfg.Retrieval.SemanticWeight == 0 && cfg.Retrieval.KeywordWeight == 0 {
		cfg.Retrieval.SemanticWeight = 0.5
		cfg.Retrieval.KeywordWeight = 0.5
	}

	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".xlsx", ".pptx", ".odp", ".ods", ".odt", ".rtf"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
