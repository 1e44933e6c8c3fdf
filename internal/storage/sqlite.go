// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/studykit/studykit/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL,
		original_filename TEXT NOT NULL,
		file_path TEXT NOT NULL,
		file_size INTEGER NOT NULL DEFAULT 0,
		file_type TEXT NOT NULL,
		status TEXT NOT NULL,
		upload_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);

	CREATE TABLE IF NOT EXISTS content_chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id INTEGER NOT NULL,
		content TEXT NOT NULL,
		page_number INTEGER NOT NULL DEFAULT 0,
		slide_number INTEGER NOT NULL DEFAULT 0,
		topic TEXT,
		section_title TEXT,
		word_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON content_chunks(document_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_position ON content_chunks(document_id, page_number, slide_number);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateDocument inserts a document and assigns its numeric ID.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc.UploadDate.IsZero() {
		doc.UploadDate = time.Now()
	}
	if doc.Status == "" {
		doc.Status = models.StatusProcessing
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (filename, original_filename, file_path, file_size, file_type, status, upload_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.Filename, doc.OriginalFilename, doc.FilePath, doc.FileSize, doc.FileType, doc.Status, doc.UploadDate,
	)
	if err != nil {
		return err
	}
	doc.ID, err = res.LastInsertId()
	return err
}

// GetDocument returns a document by ID.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id int64) (*models.Document, error) {
	var doc models.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, original_filename, file_path, file_size, file_type, status, upload_date
		 FROM documents WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.Filename, &doc.OriginalFilename, &doc.FilePath, &doc.FileSize, &doc.FileType, &doc.Status, &doc.UploadDate)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// UpdateDocumentStatus transitions the lifecycle status of a document.
func (s *SQLiteStorage) UpdateDocumentStatus(ctx context.Context, id int64, status models.DocumentStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ? WHERE id = ?`, status, id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %d", id)
	}
	return nil
}

// DeleteDocument removes a document by ID. Chunks are removed separately
// via DeleteChunksByDocumentID.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return err
}

// ListDocuments returns documents with offset and limit, newest first.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, original_filename, file_path, file_size, file_type, status, upload_date
		 FROM documents ORDER BY upload_date DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// ListDocumentsByStatus returns all documents in the given status, oldest first.
// Used by the index engine to rebuild from COMPLETED documents.
func (s *SQLiteStorage) ListDocumentsByStatus(ctx context.Context, status models.DocumentStatus) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, original_filename, file_path, file_size, file_type, status, upload_date
		 FROM documents WHERE status = ? ORDER BY id`,
		status,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func scanDocuments(rows *sql.Rows) ([]*models.Document, error) {
	var docs []*models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.OriginalFilename, &doc.FilePath, &doc.FileSize, &doc.FileType, &doc.Status, &doc.UploadDate); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// BatchCreateChunks inserts multiple chunks in a transaction and assigns their IDs.
func (s *SQLiteStorage) BatchCreateChunks(ctx context.Context, chunks []*models.ContentChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO content_chunks (document_id, content, page_number, slide_number, topic, section_title, word_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, chunk := range chunks {
		chunk.CreatedAt = now
		res, err := stmt.ExecContext(ctx,
			chunk.DocumentID, chunk.Content, chunk.PageNumber, chunk.SlideNumber,
			chunk.Topic, chunk.SectionTitle, chunk.WordCount, chunk.CreatedAt,
		)
		if err != nil {
			return err
		}
		if chunk.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetChunksByDocumentID returns all chunks for a document in reconstruction
// order: page ascending, then slide ascending, absent values sorting as 0.
func (s *SQLiteStorage) GetChunksByDocumentID(ctx context.Context, docID int64) ([]*models.ContentChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, content, page_number, slide_number, topic, section_title, word_count, created_at
		 FROM content_chunks WHERE document_id = ? ORDER BY page_number, slide_number`,
		docID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.ContentChunk
	for rows.Next() {
		var chunk models.ContentChunk
		var topic, section sql.NullString
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content, &chunk.PageNumber, &chunk.SlideNumber,
			&topic, &section, &chunk.WordCount, &chunk.CreatedAt); err != nil {
			return nil, err
		}
		chunk.Topic = topic.String
		chunk.SectionTitle = section.String
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

// DeleteChunksByDocumentID removes all chunks for a document.
func (s *SQLiteStorage) DeleteChunksByDocumentID(ctx context.Context, docID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM content_chunks WHERE document_id = ?`, docID)
	return err
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountChunks returns the total number of content chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM content_chunks`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
