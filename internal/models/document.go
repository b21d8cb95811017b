// Package models defines core data structures for documents, chunks, retrieval requests and results.
package models

import (
	"fmt"
	"time"
)

// ChunkStrategy names a chunking algorithm.
type ChunkStrategy string

const (
	StrategyFixedSize ChunkStrategy = "fixed_size"
	StrategyParagraph ChunkStrategy = "paragraph"
	StrategySentence  ChunkStrategy = "sentence"
	StrategyHybrid    ChunkStrategy = "hybrid"
)

// ChunkStrategies lists every supported chunking strategy.
var ChunkStrategies = []ChunkStrategy{StrategyFixedSize, StrategyParagraph, StrategySentence, StrategyHybrid}

// ParseChunkStrategy validates s against the supported strategies.
func ParseChunkStrategy(s string) (ChunkStrategy, error) {
	for _, st := range ChunkStrategies {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown chunking strategy %q", s)
}

// Document is the registry record of an ingested file. Chunk content lives in the vector store.
type Document struct {
	FileID       string            `json:"file_id" db:"file_id"`
	Filename     string            `json:"filename" db:"filename"`
	FileType     string            `json:"file_type" db:"file_type"`
	FileSize     int64             `json:"file_size" db:"file_size"`
	Summary      string            `json:"summary,omitempty" db:"summary"`
	ChunkCount   int               `json:"chunk_count" db:"chunk_count"`
	Strategy     ChunkStrategy     `json:"chunking_strategy" db:"chunking_strategy"`
	ChunkSize    int               `json:"chunk_size" db:"chunk_size"`
	ChunkOverlap int               `json:"chunk_overlap" db:"chunk_overlap"`
	Generation   int               `json:"generation" db:"generation"`
	Metadata     map[string]string `json:"metadata,omitempty" db:"metadata"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at" db:"updated_at"`
}

// Chunk is one contiguous, trimmed span of document text.
type Chunk struct {
	Text      string            `json:"text"`
	Index     int               `json:"chunk_index"`
	Strategy  ChunkStrategy     `json:"chunking_strategy"`
	StartChar int               `json:"start_char"`
	EndChar   int               `json:"end_char"`
	Metadata  map[string]string `json:"metadata"`
}
