package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalExtractor extracts text in-process from PDF, Office, OpenDocument, RTF and plain files.
// It does no OCR; language hints are ignored.
type LocalExtractor struct {
	maxFileSize int64
}

// NewLocalExtractor returns a LocalExtractor. maxFileSize <= 0 disables the size check.
func NewLocalExtractor(maxFileSize int64) *LocalExtractor {
	return &LocalExtractor{maxFileSize: maxFileSize}
}

// Extract dispatches on the filename extension. Unknown extensions are read as plain text.
func (e *LocalExtractor) Extract(ctx context.Context, content []byte, filename string, _ []string) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkSize(content, e.maxFileSize); err != nil {
		return nil, err
	}
	var (
		elements []Element
		err      error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		elements, err = extractPDF(content)
	case ".docx":
		elements, err = extractDOCX(content)
	case ".xlsx":
		elements, err = extractExcel(content)
	case ".pptx":
		elements, err = extractPPTX(content)
	case ".odt", ".odp", ".ods":
		elements, err = extractOpenDocument(content)
	case ".rtf":
		elements, err = extractRTF(content)
	default:
		elements = extractPlain(content)
	}
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filepath.Base(filename), err)
	}
	return elements, nil
}

// ExtractFile reads path and extracts it.
func (e *LocalExtractor) ExtractFile(ctx context.Context, path string) ([]Element, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.Extract(ctx, content, path, nil)
}
