// Package models defines core data structures for documents, content chunks, and search results.
package models

import (
	"strconv"
	"strings"
	"time"
)

// DocumentStatus is the processing lifecycle state of an uploaded document.
type DocumentStatus string

const (
	// StatusProcessing means ingestion is still running.
	StatusProcessing DocumentStatus = "PROCESSING"
	// StatusCompleted means ingestion produced at least one content chunk.
	StatusCompleted DocumentStatus = "COMPLETED"
	// StatusFailed means ingestion produced no content or hit an unrecoverable error.
	StatusFailed DocumentStatus = "FAILED"
)

// Document represents one uploaded study-material unit with a processing lifecycle.
// Status is mutated only by the ingestion orchestrator.
type Document struct {
	ID               int64          `json:"id" db:"id"`
	Filename         string         `json:"filename" db:"filename"`
	OriginalFilename string         `json:"original_filename" db:"original_filename"`
	FilePath         string         `json:"-" db:"file_path"`
	FileSize         int64          `json:"file_size" db:"file_size"`
	FileType         string         `json:"file_type" db:"file_type"`
	Status           DocumentStatus `json:"status" db:"status"`
	UploadDate       time.Time      `json:"upload_date" db:"upload_date"`
}

// ContentChunk is one extracted, addressable unit of text belonging to a document
// (a page, a slide, or a section). PageNumber and SlideNumber are 0 when absent;
// chunk ordering within a document treats absent as 0.
type ContentChunk struct {
	ID           int64     `json:"id" db:"id"`
	DocumentID   int64     `json:"document_id" db:"document_id"`
	Content      string    `json:"content" db:"content"`
	PageNumber   int       `json:"page_number,omitempty" db:"page_number"`
	SlideNumber  int       `json:"slide_number,omitempty" db:"slide_number"`
	Topic        string    `json:"topic,omitempty" db:"topic"`
	SectionTitle string    `json:"section_title,omitempty" db:"section_title"`
	WordCount    int       `json:"word_count" db:"word_count"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// SetContent sets the chunk text and recomputes the word count
// (whitespace-delimited token count).
func (c *ContentChunk) SetContent(text string) {
	c.Content = text
	c.WordCount = len(strings.Fields(text))
}

// Location returns a human-readable position label derived from whichever
// of page or slide number is set.
func (c *ContentChunk) Location() string {
	if c.PageNumber > 0 {
		return "Page " + strconv.Itoa(c.PageNumber)
	}
	if c.SlideNumber > 0 {
		return "Slide " + strconv.Itoa(c.SlideNumber)
	}
	return "Unknown"
}
