// Package config provides configuration loading and structs for the kiritori server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Vector     VectorConfig     `yaml:"vector"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Extraction ExtractionConfig `yaml:"extraction"`
	LLM        LLMConfig        `yaml:"llm"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	MaxUploadSize int64  `yaml:"max_upload_size"`
}

// StorageConfig holds paths for the document registry, uploads and the full-text index.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	UploadDir      string `yaml:"upload_dir"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// VectorConfig selects the vector store backend.
type VectorConfig struct {
	Type string `yaml:"type"` // "memory" or "bolt"
	Path string `yaml:"path"`
}

// EmbeddingConfig holds embedder settings. Backends are tried in order.
type EmbeddingConfig struct {
	Backends   []string `yaml:"backends"` // "ollama", "onnx", "placeholder"
	OllamaURL  string   `yaml:"ollama_url"`
	Model      string   `yaml:"model"`
	ModelPath  string   `yaml:"model_path"`
	Dimensions int      `yaml:"dimensions"`
	MaxTokens  int      `yaml:"max_tokens"`
	CacheSize  int      `yaml:"cache_size"`
}

// ExtractionConfig holds text extraction settings.
type ExtractionConfig struct {
	Backend         string        `yaml:"backend"` // "unstructured" or "local"
	UnstructuredURL string        `yaml:"unstructured_url"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxFileSize     int64         `yaml:"max_file_size"`
	RequestsPerSec  float64       `yaml:"requests_per_sec"`
	OCRLanguages    []string      `yaml:"ocr_languages"`
}

// LLMConfig holds the generation backend settings.
type LLMConfig struct {
	URL            string        `yaml:"url"`
	Model          string        `yaml:"model"`
	MaxTokens      int           `yaml:"max_tokens"`
	Timeout        time.Duration `yaml:"timeout"`
	SystemPrompt   string        `yaml:"system_prompt"`
	Summaries      bool          `yaml:"summaries"`
	RequestsPerSec float64       `yaml:"requests_per_sec"`
}

// ChunkingConfig holds chunking defaults and ingestion tuning.
type ChunkingConfig struct {
	Strategy           string `yaml:"strategy"` // chunking strategy or "auto"
	ChunkSize          int    `yaml:"chunk_size"`
	ChunkOverlap       int    `yaml:"chunk_overlap"`
	ParagraphCeiling   int    `yaml:"paragraph_ceiling"`
	LargeTextThreshold int    `yaml:"large_text_threshold"`
	LargeFileBytes     int64  `yaml:"large_file_bytes"`
	LargeFileChunkSize int    `yaml:"large_file_chunk_size"`
	BatchSize          int    `yaml:"batch_size"`
	Workers            int    `yaml:"workers"`
}

// RetrievalConfig holds retrieval defaults.
type RetrievalConfig struct {
	DefaultStrategy   string        `yaml:"default_strategy"`
	DefaultTopK       int           `yaml:"default_top_k"`
	MaxTopK           int           `yaml:"max_top_k"`
	Timeout           time.Duration `yaml:"timeout"`
	SemanticWeight    float64       `yaml:"semantic_weight"`
	KeywordWeight     float64       `yaml:"keyword_weight"`
	HybridKeywordOnly bool          `yaml:"hybrid_keyword_only"`
}

// WatchConfig holds inbox directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, applies the environment overlay,
// expands paths, and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := ApplyEnv(&cfg, os.Getenv); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.UploadDir = expandPath(cfg.Storage.UploadDir, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Vector.Path = expandPath(cfg.Vector.Path, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyEnv overlays deployment settings taken from environment variables.
// getenv is usually os.Getenv; tests pass a map lookup.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("UNSTRUCTURED_URL"); v != "" {
		cfg.Extraction.UnstructuredURL = v
	}
	if v := getenv("OLLAMA_URL"); v != "" {
		cfg.LLM.URL = v
		cfg.Embedding.OllamaURL = v
	}
	if v := getenv("DEFAULT_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := getenv("UPLOAD_DIR"); v != "" {
		cfg.Storage.UploadDir = v
	}
	if v := getenv("VECTOR_DB_PATH"); v != "" {
		cfg.Vector.Path = v
	}
	if v := getenv("MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MAX_TOKENS %q: %w", v, err)
		}
		cfg.LLM.MaxTokens = n
	}
	if v := getenv("TOP_K"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TOP_K %q: %w", v, err)
		}
		cfg.Retrieval.DefaultTopK = n
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
