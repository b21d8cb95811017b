package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()

	// Single file
	f1 := filepath.Join(dir, "f1.txt")
	if err := os.WriteFile(f1, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := DiskUsageBytes(f1)
	if err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Errorf("single file: got %d bytes, want 5", got)
	}

	// Nested directory
	sub := filepath.Join(dir, "sub", "deep")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "a"), []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "b"), []byte("c"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err = DiskUsageBytes(filepath.Join(dir, "sub"))
	if err != nil {
		t.Fatal(err)
	}
	if got != 3 {
		t.Errorf("dir: got %d bytes, want 3", got)
	}

	// Missing and empty paths are skipped
	got, err = DiskUsageBytes("", f1, filepath.Join(dir, "nonexistent"))
	if err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Errorf("with missing: got %d bytes, want 5", got)
	}
}

func TestFileStore(t *testing.T) {
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatal(err)
	}

	path, err := fs.Save("id1", "notes.txt", []byte("some notes"))
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "id1_notes.txt" {
		t.Errorf("path = %s", path)
	}

	content, err := fs.Read("id1", "notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "some notes" {
		t.Errorf("content = %q", content)
	}

	if err := fs.Delete("id1", "notes.txt"); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Read("id1", "notes.txt"); err == nil {
		t.Error("expected error reading deleted upload")
	}
	if err := fs.Delete("id1", "notes.txt"); err != nil {
		t.Errorf("deleting missing upload: %v", err)
	}
}

func TestFileStore_PathUsesBaseName(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	got := fs.Path("id", "../../etc/passwd")
	if filepath.Dir(got) != fs.Dir() {
		t.Errorf("path %s escapes %s", got, fs.Dir())
	}
}
