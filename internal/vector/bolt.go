package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var bucketRecords = []byte("records")

// BoltStore persists records in a bbolt file and serves reads from an in-memory copy
// loaded when the store is opened.
type BoltStore struct {
	db  *bbolt.DB
	mem *MemoryStore
}

// NewBoltStore opens or creates the store at path.
func NewBoltStore(path string, embedder Embedder) (*BoltStore, error) {
	mem, err := NewMemoryStore(embedder)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create vector store dir: %w", err)
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}
	var loaded []Record
	err = db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketRecords)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketRecords, err)
		}
		return b.ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode record %s: %w", k, err)
			}
			loaded = append(loaded, rec)
			return nil
		})
	})
	if err == nil {
		err = mem.insert(loaded)
	}
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db, mem: mem}, nil
}

// Type returns the store type identifier.
func (s *BoltStore) Type() string {
	return string(StoreTypeBolt)
}

// Upsert embeds, persists and then caches records. A batch whose dimensions do not match the
// store is rejected before anything is written.
func (s *BoltStore) Upsert(ctx context.Context, records []Record) error {
	prepared, err := s.mem.prepare(ctx, records)
	if err != nil {
		return err
	}
	if err := s.mem.checkDims(prepared); err != nil {
		return err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		for _, rec := range prepared {
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(rec.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to persist records: %w", err)
	}
	return s.mem.insert(prepared)
}

// Query delegates to the in-memory copy.
func (s *BoltStore) Query(ctx context.Context, text string, filter Filter, k int) ([]Hit, error) {
	return s.mem.Query(ctx, text, filter, k)
}

// Get delegates to the in-memory copy.
func (s *BoltStore) Get(ctx context.Context, filter Filter, limit int) ([]Hit, error) {
	return s.mem.Get(ctx, filter, limit)
}

// Delete removes matching records from memory and from disk.
func (s *BoltStore) Delete(ctx context.Context, filter Filter) (int, error) {
	ids, err := s.mem.remove(ctx, filter)
	if err != nil || len(ids) == 0 {
		return 0, err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		for _, id := range ids {
			if err := b.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete records: %w", err)
	}
	return len(ids), nil
}

// Count returns the number of stored records.
func (s *BoltStore) Count() int {
	return s.mem.Count()
}

// Close closes the bolt file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
