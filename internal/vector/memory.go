package vector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnfilteredDelete is returned by Delete when called without a filter.
var ErrUnfilteredDelete = errors.New("delete requires a filter")

// MemoryStore is an in-memory store using brute-force inner product search.
// Vectors are expected to be normalized, so scores are cosine similarities.
type MemoryStore struct {
	embedder   Embedder
	dimensions int
	records    []*Record
	index      map[string]int
	mu         sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store that embeds text with embedder.
func NewMemoryStore(embedder Embedder) (*MemoryStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	return &MemoryStore{
		embedder: embedder,
		index:    make(map[string]int),
	}, nil
}

// Type returns the store type identifier.
func (m *MemoryStore) Type() string {
	return string(StoreTypeMemory)
}

// Upsert embeds records that carry no vector and stores them.
func (m *MemoryStore) Upsert(ctx context.Context, records []Record) error {
	prepared, err := m.prepare(ctx, records)
	if err != nil {
		return err
	}
	return m.insert(prepared)
}

// prepare fills in missing vectors. The input slice is not modified.
func (m *MemoryStore) prepare(ctx context.Context, records []Record) ([]Record, error) {
	out := make([]Record, len(records))
	var texts []string
	var pending []int
	for i, r := range records {
		if r.ID == "" {
			return nil, fmt.Errorf("record %d has no id", i)
		}
		out[i] = r
		if len(r.Vector) == 0 {
			texts = append(texts, r.Text)
			pending = append(pending, i)
		}
	}
	if len(texts) > 0 {
		vecs, err := m.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed records: %w", err)
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
		}
		for j, i := range pending {
			out[i].Vector = vecs[j]
		}
	}
	return out, nil
}

// checkDims reports whether records can be inserted without a dimension mismatch.
func (m *MemoryStore) checkDims(records []Record) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return validateDims(m.dimensions, records)
}

func validateDims(dims int, records []Record) error {
	for _, r := range records {
		if dims == 0 {
			dims = len(r.Vector)
		}
		if len(r.Vector) != dims {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(r.Vector), dims)
		}
	}
	return nil
}

func (m *MemoryStore) insert(records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := validateDims(m.dimensions, records); err != nil {
		return err
	}
	if m.dimensions == 0 && len(records) > 0 {
		m.dimensions = len(records[0].Vector)
	}
	for _, r := range records {
		rec := r
		rec.Vector = append([]float32(nil), r.Vector...)
		rec.Metadata = copyMetadata(r.Metadata)
		if i, ok := m.index[r.ID]; ok {
			m.records[i] = &rec
			continue
		}
		m.index[r.ID] = len(m.records)
		m.records = append(m.records, &rec)
	}
	return nil
}

// Query returns the top-k records matching filter by inner product with the embedded text.
func (m *MemoryStore) Query(ctx context.Context, text string, filter Filter, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	query, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.records) == 0 {
		return nil, nil
	}
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	type scored struct {
		rec   *Record
		score float64
	}
	var scores []scored
	for i, rec := range m.records {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if !Matches(filter, rec.Metadata) {
			continue
		}
		scores = append(scores, scored{rec: rec, score: dot(query, rec.Vector)})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if k > len(scores) {
		k = len(scores)
	}
	hits := make([]Hit, k)
	for i := 0; i < k; i++ {
		hits[i] = toHit(scores[i].rec, scores[i].score)
	}
	return hits, nil
}

// Get returns records matching filter in insertion order.
func (m *MemoryStore) Get(ctx context.Context, filter Filter, limit int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var hits []Hit
	for _, rec := range m.records {
		if limit > 0 && len(hits) >= limit {
			break
		}
		if Matches(filter, rec.Metadata) {
			hits = append(hits, toHit(rec, 0))
		}
	}
	return hits, nil
}

// Delete removes records matching filter.
func (m *MemoryStore) Delete(ctx context.Context, filter Filter) (int, error) {
	ids, err := m.remove(ctx, filter)
	return len(ids), err
}

func (m *MemoryStore) remove(ctx context.Context, filter Filter) ([]string, error) {
	if filter == nil {
		return nil, ErrUnfilteredDelete
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed []string
	kept := make([]*Record, 0, len(m.records))
	for _, rec := range m.records {
		if filter.Match(rec.Metadata) {
			removed = append(removed, rec.ID)
			continue
		}
		kept = append(kept, rec)
	}
	if len(removed) == 0 {
		return nil, nil
	}
	m.records = kept
	m.index = make(map[string]int, len(kept))
	for i, rec := range kept {
		m.index[rec.ID] = i
	}
	return removed, nil
}

// Count returns the number of stored records.
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error {
	return nil
}

func toHit(rec *Record, score float64) Hit {
	return Hit{ID: rec.ID, Text: rec.Text, Metadata: copyMetadata(rec.Metadata), Score: score}
}

func copyMetadata(md map[string]string) map[string]string {
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

// dot is the inner product of a and b, or zero when their lengths differ.
func dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i] * b[i])
	}
	return sum
}
