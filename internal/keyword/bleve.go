package keyword

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/hyperjump/kiritori/internal/vector"
)

const minPage = 50

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

type chunkDoc struct {
	Content  string `json:"content"`
	FileID   string `json:"file_id"`
	Metadata string `json:"metadata"`
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	docMapping.Dynamic = false

	// Standard analyzer: lowercase + tokenize, no stemming, so exact words match.
	content := bleve.NewTextFieldMapping()
	content.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", content)

	docMapping.AddFieldMappingsAt("file_id", bleve.NewKeywordFieldMapping())

	// Metadata is stored verbatim as JSON; dynamic mapping would turn ISO dates into datetimes.
	meta := bleve.NewTextFieldMapping()
	meta.Index = false
	meta.Store = true
	meta.IncludeInAll = false
	meta.IncludeTermVectors = false
	docMapping.AddFieldMappingsAt("metadata", meta)

	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path gives an in-memory index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := newMapping()
	if path == "" {
		index, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index adds or replaces entries in one batch.
func (b *BleveIndex) Index(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	batch := b.index.NewBatch()
	for _, e := range entries {
		md, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata for %s: %w", e.ID, err)
		}
		doc := chunkDoc{Content: e.Text, FileID: e.Metadata["file_id"], Metadata: string(md)}
		if err := batch.Index(e.ID, doc); err != nil {
			return fmt.Errorf("index %s: %w", e.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("Bleve batch failed: %w", err)
	}
	return nil
}

// Retrieve runs a match query over content and pages through hits until k satisfy filter.
func (b *BleveIndex) Retrieve(ctx context.Context, query string, filter vector.Filter, k int) ([]vector.Hit, error) {
	if k <= 0 || strings.TrimSpace(query) == "" {
		return []vector.Hit{}, nil
	}
	page := k * 4
	if page < minPage {
		page = minPage
	}

	q := bleve.NewMatchQuery(query)
	q.SetField("content")

	out := make([]vector.Hit, 0, k)
	for from := 0; len(out) < k; from += page {
		req := bleve.NewSearchRequestOptions(q, page, from, false)
		req.Fields = []string{"content", "metadata"}
		results, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("Bleve search failed: %w", err)
		}
		for _, hit := range results.Hits {
			md, err := decodeMetadata(hit.Fields["metadata"])
			if err != nil {
				return nil, fmt.Errorf("decode metadata for %s: %w", hit.ID, err)
			}
			if !vector.Matches(filter, md) {
				continue
			}
			text, _ := hit.Fields["content"].(string)
			out = append(out, vector.Hit{ID: hit.ID, Text: text, Metadata: md, Score: hit.Score})
			if len(out) == k {
				break
			}
		}
		if len(results.Hits) < page {
			break
		}
	}
	return out, nil
}

func decodeMetadata(v interface{}) (map[string]string, error) {
	s, _ := v.(string)
	md := map[string]string{}
	if s == "" {
		return md, nil
	}
	if err := json.Unmarshal([]byte(s), &md); err != nil {
		return nil, err
	}
	return md, nil
}

// Delete removes entries by ID. Unknown IDs are ignored.
func (b *BleveIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("Bleve delete failed: %w", err)
	}
	return nil
}

// DocCount returns the total number of indexed chunks.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
