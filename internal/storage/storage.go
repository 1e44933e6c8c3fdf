// Package storage defines the persistence interface for documents and content chunks.
package storage

import (
	"context"

	"github.com/studykit/studykit/internal/models"
)

// Storage defines document and chunk persistence operations.
// Documents and chunks are keyed by numeric identity assigned on insert.
type Storage interface {
	// Document operations
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id int64) (*models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id int64, status models.DocumentStatus) error
	DeleteDocument(ctx context.Context, id int64) error
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)
	ListDocumentsByStatus(ctx context.Context, status models.DocumentStatus) ([]*models.Document, error)

	// Chunk operations. GetChunksByDocumentID returns chunks ordered by
	// (page_number, slide_number) ascending, absent values sorting as 0.
	BatchCreateChunks(ctx context.Context, chunks []*models.ContentChunk) error
	GetChunksByDocumentID(ctx context.Context, docID int64) ([]*models.ContentChunk, error)
	DeleteChunksByDocumentID(ctx context.Context, docID int64) error

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
