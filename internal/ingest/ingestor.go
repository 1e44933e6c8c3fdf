// Package ingest orchestrates document intake: file storage, content
// extraction, chunk persistence, and index updates.
package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studykit/studykit/internal/archive"
	"github.com/studykit/studykit/internal/extract"
	"github.com/studykit/studykit/internal/index"
	"github.com/studykit/studykit/internal/models"
	"github.com/studykit/studykit/internal/storage"
)

// Ingestor coordinates the intake pipeline. Each supported file becomes one
// document. A ZIP archive gets a document record of its own, tracking the
// batch outcome, and every supported member becomes its own document.
type Ingestor struct {
	store     storage.Storage
	extractor *extract.Extractor
	unpacker  *archive.Unpacker
	engine    *index.Engine
	uploadDir string
	logger    *zap.Logger
}

// NewIngestor returns an Ingestor that stores accepted files under uploadDir.
func NewIngestor(store storage.Storage, extractor *extract.Extractor, unpacker *archive.Unpacker, engine *index.Engine, uploadDir string, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		store:     store,
		extractor: extractor,
		unpacker:  unpacker,
		engine:    engine,
		uploadDir: uploadDir,
		logger:    logger,
	}
}

// Ingest takes the file at srcPath, identified by its original filename, and
// runs it through the full pipeline. A .zip source is recorded as a document
// of its own and every supported member ingested individually; anything else
// becomes a single document. Returns the documents created, including failed
// ones (check Status). srcPath is not modified or removed.
func (i *Ingestor) Ingest(ctx context.Context, srcPath, originalName string) ([]*models.Document, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == ".zip" {
		return i.ingestArchive(ctx, srcPath, originalName)
	}
	if !extract.IsSupported(originalName) {
		return nil, fmt.Errorf("unsupported file type: %s", originalName)
	}
	doc, err := i.ingestFile(ctx, srcPath, originalName)
	if doc == nil {
		return nil, err
	}
	return []*models.Document{doc}, err
}

// ingestArchive records the archive itself as a document, so the batch outcome
// is observable through document status, then ingests every supported member
// as its own document. The archive record carries no chunks; it ends COMPLETED
// when at least one member was processed and FAILED otherwise.
func (i *Ingestor) ingestArchive(ctx context.Context, srcPath, originalName string) ([]*models.Document, error) {
	arc, err := i.recordFile(ctx, srcPath, originalName)
	if err != nil {
		return nil, err
	}
	docs := []*models.Document{arc}

	processed, unpackErr := i.unpacker.Unpack(ctx, srcPath, func(ctx context.Context, name, tempPath string) error {
		doc, err := i.ingestFile(ctx, tempPath, name)
		if doc != nil {
			docs = append(docs, doc)
		}
		return err
	})

	status := models.StatusCompleted
	if unpackErr != nil || processed == 0 {
		status = models.StatusFailed
	}
	if serr := i.store.UpdateDocumentStatus(ctx, arc.ID, status); serr == nil {
		arc.Status = status
	}
	if unpackErr != nil {
		return docs, fmt.Errorf("archive ingestion failed: %w", unpackErr)
	}
	return docs, nil
}

// ingestFile copies the source into the upload directory, records the
// document, and processes it. The returned document is non-nil once a record
// exists, even if processing failed afterwards.
func (i *Ingestor) ingestFile(ctx context.Context, srcPath, originalName string) (*models.Document, error) {
	doc, err := i.recordFile(ctx, srcPath, originalName)
	if err != nil {
		return nil, err
	}

	if err := i.process(ctx, doc); err != nil {
		i.logger.Error("document processing failed",
			zap.Int64("document_id", doc.ID),
			zap.String("filename", originalName),
			zap.Error(err))
		if serr := i.store.UpdateDocumentStatus(ctx, doc.ID, models.StatusFailed); serr == nil {
			doc.Status = models.StatusFailed
		}
		return doc, err
	}
	doc.Status = models.StatusCompleted
	return doc, nil
}

// recordFile copies the source into the upload directory and persists a
// PROCESSING document record for it.
func (i *Ingestor) recordFile(ctx context.Context, srcPath, originalName string) (*models.Document, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	storedName := uuid.New().String() + ext
	destPath := filepath.Join(i.uploadDir, storedName)

	size, err := copyFile(srcPath, destPath)
	if err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", originalName, err)
	}

	doc := &models.Document{
		Filename:         storedName,
		OriginalFilename: originalName,
		FilePath:         destPath,
		FileSize:         size,
		FileType:         strings.TrimPrefix(ext, "."),
		Status:           models.StatusProcessing,
	}
	if err := i.store.CreateDocument(ctx, doc); err != nil {
		os.Remove(destPath)
		return nil, fmt.Errorf("failed to record %s: %w", originalName, err)
	}
	return doc, nil
}

// process extracts the document, persists its chunks, and indexes them. The
// document is marked COMPLETED as soon as its chunks are committed; if the
// incremental index update fails, a full rebuild from storage is attempted
// so the index converges with the database.
func (i *Ingestor) process(ctx context.Context, doc *models.Document) error {
	fragments := i.extractor.Extract(doc.FilePath, doc.OriginalFilename)

	chunks := make([]*models.ContentChunk, 0, len(fragments))
	for _, frag := range fragments {
		chunk := &models.ContentChunk{
			DocumentID:   doc.ID,
			PageNumber:   frag.PageNumber,
			SlideNumber:  frag.SlideNumber,
			Topic:        frag.Topic,
			SectionTitle: frag.SectionTitle,
		}
		chunk.SetContent(frag.Text)
		chunks = append(chunks, chunk)
	}
	if len(chunks) > 0 {
		if err := i.store.BatchCreateChunks(ctx, chunks); err != nil {
			return fmt.Errorf("failed to persist chunks: %w", err)
		}
	}

	indexErr := i.indexChunks(doc, chunks)

	if err := i.store.UpdateDocumentStatus(ctx, doc.ID, models.StatusCompleted); err != nil {
		return fmt.Errorf("failed to mark document completed: %w", err)
	}

	if indexErr != nil {
		i.logger.Warn("incremental index update failed, rebuilding index",
			zap.Int64("document_id", doc.ID), zap.Error(indexErr))
		if err := i.RebuildIndex(ctx); err != nil {
			return fmt.Errorf("index rebuild after failed update: %w", err)
		}
	}

	i.logger.Info("document ingested",
		zap.Int64("document_id", doc.ID),
		zap.String("filename", doc.OriginalFilename),
		zap.Int("chunks", len(chunks)))
	return nil
}

func (i *Ingestor) indexChunks(doc *models.Document, chunks []*models.ContentChunk) error {
	for _, chunk := range chunks {
		if err := i.engine.AddEntry(entryFromChunk(doc, chunk)); err != nil {
			return err
		}
	}
	return i.engine.Commit()
}

// Reindex re-extracts a document from its stored file and replaces its chunks
// and index entries.
func (i *Ingestor) Reindex(ctx context.Context, docID int64) (*models.Document, error) {
	doc, err := i.store.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}

	old, err := i.store.GetChunksByDocumentID(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing chunks: %w", err)
	}
	i.engine.DeleteChunks(chunkIDs(old))
	if err := i.engine.Commit(); err != nil {
		return nil, fmt.Errorf("failed to remove stale index entries: %w", err)
	}
	if err := i.store.DeleteChunksByDocumentID(ctx, docID); err != nil {
		return nil, fmt.Errorf("failed to remove existing chunks: %w", err)
	}

	if err := i.store.UpdateDocumentStatus(ctx, docID, models.StatusProcessing); err != nil {
		return nil, err
	}
	doc.Status = models.StatusProcessing

	if err := i.process(ctx, doc); err != nil {
		if serr := i.store.UpdateDocumentStatus(ctx, docID, models.StatusFailed); serr == nil {
			doc.Status = models.StatusFailed
		}
		return doc, err
	}
	doc.Status = models.StatusCompleted
	return doc, nil
}

// RebuildIndex reconstructs the search index from every completed document's
// stored chunks. Documents still processing or failed are left out.
func (i *Ingestor) RebuildIndex(ctx context.Context) error {
	docs, err := i.store.ListDocumentsByStatus(ctx, models.StatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	var entries []*index.Entry
	for _, doc := range docs {
		chunks, err := i.store.GetChunksByDocumentID(ctx, doc.ID)
		if err != nil {
			return fmt.Errorf("failed to load chunks for document %d: %w", doc.ID, err)
		}
		for _, chunk := range chunks {
			entries = append(entries, entryFromChunk(doc, chunk))
		}
	}

	if err := i.engine.RebuildAll(ctx, entries); err != nil {
		return err
	}
	i.logger.Info("search index rebuilt",
		zap.Int("documents", len(docs)), zap.Int("entries", len(entries)))
	return nil
}

// Delete removes a document, its chunks, its index entries, and its stored file.
func (i *Ingestor) Delete(ctx context.Context, docID int64) error {
	doc, err := i.store.GetDocument(ctx, docID)
	if err != nil {
		return err
	}

	chunks, err := i.store.GetChunksByDocumentID(ctx, docID)
	if err != nil {
		return fmt.Errorf("failed to load chunks: %w", err)
	}
	i.engine.DeleteChunks(chunkIDs(chunks))
	if err := i.engine.Commit(); err != nil {
		return fmt.Errorf("failed to remove index entries: %w", err)
	}

	if err := i.store.DeleteChunksByDocumentID(ctx, docID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	if err := i.store.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
		i.logger.Warn("failed to remove stored file",
			zap.Int64("document_id", docID), zap.String("path", doc.FilePath), zap.Error(err))
	}

	i.logger.Info("document deleted", zap.Int64("document_id", docID),
		zap.String("filename", doc.OriginalFilename))
	return nil
}

func entryFromChunk(doc *models.Document, chunk *models.ContentChunk) *index.Entry {
	return &index.Entry{
		ChunkID:      chunk.ID,
		DocumentID:   doc.ID,
		Content:      chunk.Content,
		Filename:     doc.OriginalFilename,
		Topic:        chunk.Topic,
		SectionTitle: chunk.SectionTitle,
		PageNumber:   chunk.PageNumber,
		SlideNumber:  chunk.SlideNumber,
	}
}

func chunkIDs(chunks []*models.ContentChunk) []int64 {
	ids := make([]int64, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return ids
}

func copyFile(src, dest string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, err
	}
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	n, err := io.Copy(out, in)
	if err != nil {
		return 0, err
	}
	return n, out.Close()
}
