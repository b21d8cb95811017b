package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kiritori/internal/models"
)

// SQLiteRegistry implements Registry using SQLite.
type SQLiteRegistry struct {
	db *sql.DB
}

// NewSQLiteRegistry opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteRegistry(dbPath string) (*SQLiteRegistry, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteRegistry{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		file_id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		file_type TEXT,
		file_size INTEGER NOT NULL DEFAULT 0,
		summary TEXT,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		chunking_strategy TEXT,
		chunk_size INTEGER NOT NULL DEFAULT 0,
		chunk_overlap INTEGER NOT NULL DEFAULT 0,
		generation INTEGER NOT NULL DEFAULT 0,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);
	CREATE INDEX IF NOT EXISTS idx_documents_filename ON documents(filename);
	`
	_, err := db.Exec(schema)
	return err
}

const documentColumns = `file_id, filename, file_type, file_size, summary, chunk_count,
	chunking_strategy, chunk_size, chunk_overlap, generation, metadata, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row scanner) (*models.Document, error) {
	var doc models.Document
	var fileType, summary, strategy, metadataJSON sql.NullString
	if err := row.Scan(&doc.FileID, &doc.Filename, &fileType, &doc.FileSize, &summary, &doc.ChunkCount,
		&strategy, &doc.ChunkSize, &doc.ChunkOverlap, &doc.Generation, &metadataJSON,
		&doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	doc.FileType = fileType.String
	doc.Summary = summary.String
	doc.Strategy = models.ChunkStrategy(strategy.String)
	if metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &doc, nil
}

// CreateDocument inserts a document. CreatedAt and UpdatedAt are set to now.
func (s *SQLiteRegistry) CreateDocument(ctx context.Context, doc *models.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.FileID, doc.Filename, doc.FileType, doc.FileSize, doc.Summary, doc.ChunkCount,
		string(doc.Strategy), doc.ChunkSize, doc.ChunkOverlap, doc.Generation, string(metadataJSON),
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document %s: %w", doc.FileID, err)
	}
	return nil
}

// GetDocument returns a document by file id, or ErrNotFound.
func (s *SQLiteRegistry) GetDocument(ctx context.Context, fileID string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE file_id = ?`, fileID)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// UpdateDocument rewrites an existing document and bumps UpdatedAt.
func (s *SQLiteRegistry) UpdateDocument(ctx context.Context, doc *models.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	doc.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET filename = ?, file_type = ?, file_size = ?, summary = ?, chunk_count = ?,
		 chunking_strategy = ?, chunk_size = ?, chunk_overlap = ?, generation = ?, metadata = ?, updated_at = ?
		 WHERE file_id = ?`,
		doc.Filename, doc.FileType, doc.FileSize, doc.Summary, doc.ChunkCount,
		string(doc.Strategy), doc.ChunkSize, doc.ChunkOverlap, doc.Generation, string(metadataJSON), doc.UpdatedAt,
		doc.FileID,
	)
	if err != nil {
		return fmt.Errorf("update document %s: %w", doc.FileID, err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, doc.FileID)
	}
	return nil
}

// DeleteDocument removes a document by file id. Deleting a missing document is not an error.
func (s *SQLiteRegistry) DeleteDocument(ctx context.Context, fileID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE file_id = ?`, fileID)
	return err
}

// ListDocuments returns documents newest first.
func (s *SQLiteRegistry) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC, file_id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []*models.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// CountDocuments returns the total number of documents.
func (s *SQLiteRegistry) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteRegistry) Close() error {
	return s.db.Close()
}
