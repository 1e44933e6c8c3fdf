package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/studykit/studykit/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDocumentCRUD(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	doc := &models.Document{
		Filename:         "abc123.pdf",
		OriginalFilename: "lecture.pdf",
		FilePath:         "/tmp/abc123.pdf",
		FileSize:         2048,
		FileType:         "pdf",
	}
	if err := s.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if doc.ID == 0 {
		t.Fatal("document ID not assigned")
	}
	if doc.Status != models.StatusProcessing {
		t.Errorf("default status = %s, want PROCESSING", doc.Status)
	}

	got, err := s.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.OriginalFilename != "lecture.pdf" || got.FileSize != 2048 {
		t.Errorf("got %+v", got)
	}

	if err := s.UpdateDocumentStatus(ctx, doc.ID, models.StatusCompleted); err != nil {
		t.Fatalf("UpdateDocumentStatus: %v", err)
	}
	got, err = s.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", got.Status)
	}

	if err := s.DeleteDocument(ctx, doc.ID); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if _, err := s.GetDocument(ctx, doc.ID); err == nil {
		t.Error("document still readable after delete")
	}
}

func TestUpdateStatusMissingDocument(t *testing.T) {
	s := newTestStorage(t)
	if err := s.UpdateDocumentStatus(context.Background(), 999, models.StatusFailed); err == nil {
		t.Error("expected error for missing document")
	}
}

func TestBatchCreateChunksAssignsIDs(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	doc := &models.Document{Filename: "x", OriginalFilename: "x.txt", FilePath: "/tmp/x", FileType: "txt"}
	if err := s.CreateDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}

	chunks := []*models.ContentChunk{
		{DocumentID: doc.ID, Content: "page two", PageNumber: 2, SectionTitle: "Page 2"},
		{DocumentID: doc.ID, Content: "page one", PageNumber: 1, SectionTitle: "Page 1"},
	}
	for _, c := range chunks {
		c.WordCount = 2
	}
	if err := s.BatchCreateChunks(ctx, chunks); err != nil {
		t.Fatalf("BatchCreateChunks: %v", err)
	}
	if chunks[0].ID == 0 || chunks[1].ID == 0 || chunks[0].ID == chunks[1].ID {
		t.Errorf("chunk IDs = %d, %d", chunks[0].ID, chunks[1].ID)
	}

	got, err := s.GetChunksByDocumentID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetChunksByDocumentID: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d chunks", len(got))
	}
	// Reconstruction order: page ascending, regardless of insert order.
	if got[0].PageNumber != 1 || got[1].PageNumber != 2 {
		t.Errorf("order = page %d, page %d", got[0].PageNumber, got[1].PageNumber)
	}
}

func TestListDocumentsByStatus(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	for i, status := range []models.DocumentStatus{models.StatusCompleted, models.StatusFailed, models.StatusCompleted} {
		doc := &models.Document{
			Filename:         "f",
			OriginalFilename: "f.txt",
			FilePath:         "/tmp/f",
			FileType:         "txt",
			Status:           status,
		}
		if err := s.CreateDocument(ctx, doc); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	completed, err := s.ListDocumentsByStatus(ctx, models.StatusCompleted)
	if err != nil {
		t.Fatalf("ListDocumentsByStatus: %v", err)
	}
	if len(completed) != 2 {
		t.Errorf("completed = %d, want 2", len(completed))
	}
	if len(completed) == 2 && completed[0].ID > completed[1].ID {
		t.Error("expected oldest-first order")
	}
}

func TestCounts(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	doc := &models.Document{Filename: "x", OriginalFilename: "x.txt", FilePath: "/tmp/x", FileType: "txt"}
	if err := s.CreateDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if err := s.BatchCreateChunks(ctx, []*models.ContentChunk{
		{DocumentID: doc.ID, Content: "a"},
		{DocumentID: doc.ID, Content: "b"},
	}); err != nil {
		t.Fatal(err)
	}

	docs, err := s.CountDocuments(ctx)
	if err != nil || docs != 1 {
		t.Errorf("CountDocuments = %d, %v", docs, err)
	}
	chunks, err := s.CountChunks(ctx)
	if err != nil || chunks != 2 {
		t.Errorf("CountChunks = %d, %v", chunks, err)
	}

	if err := s.DeleteChunksByDocumentID(ctx, doc.ID); err != nil {
		t.Fatal(err)
	}
	chunks, _ = s.CountChunks(ctx)
	if chunks != 0 {
		t.Errorf("CountChunks after delete = %d", chunks)
	}
}
