package vector

import (
	"context"
	"path/filepath"
	"testing"
)

func TestNewStore_Memory(t *testing.T) {
	s, err := NewStore("memory", "", letterEmbedder{})
	if err != nil {
		t.Fatalf("NewStore(memory): %v", err)
	}
	defer s.Close()

	err = s.Upsert(context.Background(), []Record{{ID: "a", Text: "abc"}})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if s.Count() != 1 {
		t.Errorf("Count=%d, want 1", s.Count())
	}
}

func TestNewStore_Empty(t *testing.T) {
	// Empty string should default to memory
	s, err := NewStore("", "", letterEmbedder{})
	if err != nil {
		t.Fatalf("NewStore(''): %v", err)
	}
	defer s.Close()
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("expected *MemoryStore, got %T", s)
	}
}

func TestNewStore_Bolt(t *testing.T) {
	s, err := NewStore("bolt", filepath.Join(t.TempDir(), "v.db"), letterEmbedder{})
	if err != nil {
		t.Fatalf("NewStore(bolt): %v", err)
	}
	defer s.Close()
	if _, ok := s.(*BoltStore); !ok {
		t.Errorf("expected *BoltStore, got %T", s)
	}
	if _, err := NewStore("bolt", "", letterEmbedder{}); err == nil {
		t.Error("expected error for bolt store without path")
	}
}

func TestNewStore_Unknown(t *testing.T) {
	if _, err := NewStore("chroma", "", letterEmbedder{}); err == nil {
		t.Error("expected error for unknown store type")
	}
}
