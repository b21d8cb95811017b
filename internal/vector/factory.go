package vector

import "fmt"

// StoreType represents the type of vector store to use.
type StoreType string

const (
	// StoreTypeMemory keeps everything in process memory. Used by tests and one-shot CLI runs.
	StoreTypeMemory StoreType = "memory"
	// StoreTypeBolt persists records in a bbolt file.
	StoreTypeBolt StoreType = "bolt"
)

// NewStore creates a vector store of the specified type.
// Supported types: "memory" (default), "bolt". path is ignored for memory stores.
func NewStore(storeType, path string, embedder Embedder) (Store, error) {
	switch StoreType(storeType) {
	case StoreTypeMemory, "":
		return NewMemoryStore(embedder)
	case StoreTypeBolt:
		if path == "" {
			return nil, fmt.Errorf("bolt store requires a path")
		}
		return NewBoltStore(path, embedder)
	default:
		return nil, fmt.Errorf("unknown store type: %s (supported: memory, bolt)", storeType)
	}
}
