package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/studykit/studykit/internal/archive"
	"github.com/studykit/studykit/internal/extract"
	"github.com/studykit/studykit/internal/index"
	"github.com/studykit/studykit/internal/models"
	"github.com/studykit/studykit/internal/storage"
)

func newTestIngestor(t *testing.T) (*Ingestor, storage.Storage, *index.Engine) {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "studykit.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	engine, err := index.NewEngine(filepath.Join(dir, "index.bleve"))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })

	ing := NewIngestor(store, extract.NewExtractor(), archive.NewUnpacker(),
		engine, filepath.Join(dir, "uploads"), nil)
	return ing, store, engine
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIngestTextFile(t *testing.T) {
	ing, store, engine := newTestIngestor(t)
	ctx := context.Background()

	src := writeTempFile(t, "notes.txt", "Query Optimization Basics\ncost models and join ordering")
	docs, err := ing.Ingest(ctx, src, "notes.txt")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d documents, want 1", len(docs))
	}
	doc := docs[0]
	if doc.Status != models.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", doc.Status)
	}
	if doc.OriginalFilename != "notes.txt" || doc.FileType != "txt" {
		t.Errorf("identity = %s/%s", doc.OriginalFilename, doc.FileType)
	}
	if doc.Filename == "notes.txt" {
		t.Error("stored filename should differ from the original")
	}
	if _, err := os.Stat(doc.FilePath); err != nil {
		t.Errorf("stored file missing: %v", err)
	}

	chunks, err := store.GetChunksByDocumentID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetChunksByDocumentID: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Topic != "Query Optimization Basics" {
		t.Errorf("topic = %q", chunks[0].Topic)
	}
	if chunks[0].WordCount != 8 {
		t.Errorf("word count = %d, want 8", chunks[0].WordCount)
	}

	results, err := engine.Search(ctx, "optimization", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].DocumentID != doc.ID {
		t.Fatalf("search results = %+v", results)
	}
	if results[0].Filename != "notes.txt" {
		t.Errorf("result filename = %q, want original name", results[0].Filename)
	}
}

func TestIngestRejectsUnsupportedType(t *testing.T) {
	ing, _, _ := newTestIngestor(t)
	src := writeTempFile(t, "image.png", "not a document")
	if _, err := ing.Ingest(context.Background(), src, "image.png"); err == nil {
		t.Fatal("expected error for unsupported file type")
	}
}

func TestIngestArchiveCreatesDocumentPerMember(t *testing.T) {
	ing, store, engine := newTestIngestor(t)
	ctx := context.Background()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"week1/intro.txt":   "introduction to sorting algorithms",
		"week1/summary.txt": "summary of sorting complexity",
		"week1/chart.png":   "binary",
	} {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(t.TempDir(), "week1.zip")
	if err := os.WriteFile(src, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	docs, err := ing.Ingest(ctx, src, "week1.zip")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("got %d documents, want archive plus 2 members", len(docs))
	}
	if docs[0].OriginalFilename != "week1.zip" || docs[0].FileType != "zip" {
		t.Errorf("first document = %s/%s, want the archive record", docs[0].OriginalFilename, docs[0].FileType)
	}
	for _, doc := range docs {
		if doc.Status != models.StatusCompleted {
			t.Errorf("%s status = %s, want COMPLETED", doc.OriginalFilename, doc.Status)
		}
	}

	count, err := store.CountDocuments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("document count = %d, want 3", count)
	}

	results, err := engine.Search(ctx, "sorting", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d search results, want 2", len(results))
	}
}

func TestIngestArchiveWithoutUsableMembersMarksFailed(t *testing.T) {
	ing, store, _ := newTestIngestor(t)
	ctx := context.Background()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("chart.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte("binary")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(t.TempDir(), "images.zip")
	if err := os.WriteFile(src, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	docs, err := ing.Ingest(ctx, src, "images.zip")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d documents, want only the archive record", len(docs))
	}
	if docs[0].Status != models.StatusFailed {
		t.Errorf("archive status = %s, want FAILED", docs[0].Status)
	}

	stored, err := store.GetDocument(ctx, docs[0].ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if stored.Status != models.StatusFailed {
		t.Errorf("persisted archive status = %s, want FAILED", stored.Status)
	}
}

func TestIngestCorruptArchiveMarksFailed(t *testing.T) {
	ing, store, _ := newTestIngestor(t)
	ctx := context.Background()

	src := writeTempFile(t, "broken.zip", "this is not a zip file")
	docs, err := ing.Ingest(ctx, src, "broken.zip")
	if err == nil {
		t.Fatal("expected error for an unopenable archive")
	}
	if len(docs) != 1 {
		t.Fatalf("got %d documents, want the archive record", len(docs))
	}
	stored, err := store.GetDocument(ctx, docs[0].ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if stored.Status != models.StatusFailed {
		t.Errorf("persisted archive status = %s, want FAILED", stored.Status)
	}
}

func TestDeleteRemovesEverything(t *testing.T) {
	ing, store, engine := newTestIngestor(t)
	ctx := context.Background()

	src := writeTempFile(t, "notes.txt", "consistency models explained")
	docs, err := ing.Ingest(ctx, src, "notes.txt")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	doc := docs[0]

	if err := ing.Delete(ctx, doc.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := store.GetDocument(ctx, doc.ID); err == nil {
		t.Error("document record still present after delete")
	}
	if _, err := os.Stat(doc.FilePath); !os.IsNotExist(err) {
		t.Error("stored file still present after delete")
	}
	results, err := engine.Search(ctx, "consistency", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d search results after delete, want 0", len(results))
	}
}

func TestReindexReplacesChunks(t *testing.T) {
	ing, store, engine := newTestIngestor(t)
	ctx := context.Background()

	src := writeTempFile(t, "notes.txt", "first version of the notes")
	docs, err := ing.Ingest(ctx, src, "notes.txt")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	doc := docs[0]

	// Replace the stored file contents, then reindex.
	if err := os.WriteFile(doc.FilePath, []byte("second revision entirely"), 0644); err != nil {
		t.Fatal(err)
	}
	updated, err := ing.Reindex(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if updated.Status != models.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", updated.Status)
	}

	chunks, err := store.GetChunksByDocumentID(ctx, doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 || chunks[0].Content != "second revision entirely" {
		t.Fatalf("chunks after reindex = %+v", chunks)
	}

	if results, _ := engine.Search(ctx, "version", 10); len(results) != 0 {
		t.Errorf("stale content still searchable: %+v", results)
	}
	results, err := engine.Search(ctx, "revision", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results for new content, want 1", len(results))
	}
}

func TestRebuildIndexFromStorage(t *testing.T) {
	ing, _, engine := newTestIngestor(t)
	ctx := context.Background()

	src := writeTempFile(t, "notes.txt", "replication strategies overview")
	if _, err := ing.Ingest(ctx, src, "notes.txt"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if err := ing.RebuildIndex(ctx); err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}
	results, err := engine.Search(ctx, "replication", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results after rebuild, want 1", len(results))
	}
}
