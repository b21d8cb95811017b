package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps original uploads on disk so documents can be reprocessed.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns where the upload for fileID is stored.
func (s *FileStore) Path(fileID, filename string) string {
	name := strings.ReplaceAll(filepath.Base(filename), string(os.PathSeparator), "_")
	return filepath.Join(s.dir, fileID+"_"+name)
}

// Save writes content for fileID and returns the stored path.
func (s *FileStore) Save(fileID, filename string, content []byte) (string, error) {
	path := s.Path(fileID, filename)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("save upload %s: %w", filename, err)
	}
	return path, nil
}

// Read returns the stored upload for fileID.
func (s *FileStore) Read(fileID, filename string) ([]byte, error) {
	content, err := os.ReadFile(s.Path(fileID, filename))
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", filename, err)
	}
	return content, nil
}

// Delete removes the stored upload. A missing file is not an error.
func (s *FileStore) Delete(fileID, filename string) error {
	if err := os.Remove(s.Path(fileID, filename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete upload %s: %w", filename, err)
	}
	return nil
}

// Dir returns the upload directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// DiskUsageBytes returns the total size in bytes of the given files or directories.
// Empty and missing paths contribute 0.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		err := filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			return 0, err
		}
	}
	return total, nil
}
