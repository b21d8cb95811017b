// Package extract turns uploaded document bytes into text elements.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/kiritori/internal/config"
)

// ErrFileTooLarge is returned when content exceeds the extractor's size limit.
var ErrFileTooLarge = errors.New("file too large")

// Element is a block of extracted text, e.g. a paragraph, title, page or table.
type Element struct {
	Type     string                 `json:"type"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Extractor extracts text elements from a document. langs are OCR language hints.
type Extractor interface {
	Extract(ctx context.Context, content []byte, filename string, langs []string) ([]Element, error)
}

// New returns the extractor selected by cfg.Backend ("unstructured" or "local").
func New(cfg config.ExtractionConfig) (Extractor, error) {
	switch cfg.Backend {
	case "unstructured":
		return NewUnstructuredClient(cfg.UnstructuredURL,
			WithTimeout(cfg.Timeout),
			WithMaxFileSize(cfg.MaxFileSize),
			WithRateLimit(cfg.RequestsPerSec),
		), nil
	case "local", "":
		return NewLocalExtractor(cfg.MaxFileSize), nil
	default:
		return nil, fmt.Errorf("unknown extraction backend %q", cfg.Backend)
	}
}

// JoinText joins the non-blank element texts with blank lines.
func JoinText(elements []Element) string {
	parts := make([]string, 0, len(elements))
	for _, el := range elements {
		if t := strings.TrimSpace(el.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

var now = time.Now

// ExtractMetadata returns the basic file attributes recorded with every upload.
func ExtractMetadata(content []byte, filename string) map[string]string {
	return map[string]string{
		"filename":        filepath.Base(filename),
		"file_size":       strconv.Itoa(len(content)),
		"file_type":       FileType(filename),
		"extraction_date": now().UTC().Format(time.RFC3339),
	}
}

// FileType returns the lowercased extension of filename without the dot.
func FileType(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

func checkSize(content []byte, max int64) error {
	if max > 0 && int64(len(content)) > max {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFileTooLarge, len(content), max)
	}
	return nil
}
