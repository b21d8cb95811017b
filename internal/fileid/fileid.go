// Package fileid generates document file ids.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"

	"github.com/google/uuid"
)

const pathPrefix = "path-"

// New returns a random file id for an uploaded document.
func New() string {
	return uuid.New().String()
}

// ForPath returns a stable file id for the given absolute path.
// Same path always yields the same id, so re-ingesting a watched file replaces it.
func ForPath(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return pathPrefix + hex.EncodeToString(hash[:16])
}
