// Package cli provides CLI output formatting for StudyKit.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/studykit/studykit/internal/models"
	"github.com/studykit/studykit/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat validates an output format string.
func ParseFormat(s string) (OutputFormat, error) {
	switch s {
	case "", "text":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results for %q in %dms\n\n", response.Total, response.Query, response.QueryTime)
	for _, result := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%s | %s | Score: %.4f\n", result.Filename, resultLocation(result), result.Score)
		if result.Topic != "" {
			fmt.Fprintf(w, "Topic: %s\n", result.Topic)
		}
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(result.Content, 200))
	}
	return nil
}

func resultLocation(result *models.SearchResult) string {
	switch {
	case result.PageNumber > 0:
		return fmt.Sprintf("Page %d", result.PageNumber)
	case result.SlideNumber > 0:
		return fmt.Sprintf("Slide %d", result.SlideNumber)
	case result.SectionTitle != "":
		return result.SectionTitle
	default:
		return "Unknown"
	}
}

// WriteDocuments writes a document listing to w.
func WriteDocuments(w io.Writer, docs []*models.Document, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, docs)
	}
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents.")
		return nil
	}
	for _, doc := range docs {
		fmt.Fprintf(w, "%-6d %-10s %-6s %8d  %s\n",
			doc.ID, doc.Status, doc.FileType, doc.FileSize, doc.OriginalFilename)
	}
	return nil
}

// WriteStats writes storage and index statistics to w.
func WriteStats(w io.Writer, stats *models.Stats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	fmt.Fprintf(w, "documents:        %d\n", stats.Documents)
	fmt.Fprintf(w, "chunks:           %d\n", stats.Chunks)
	fmt.Fprintf(w, "indexed_entries:  %d\n", stats.IndexedEntries)
	if stats.IndexPath != "" {
		fmt.Fprintf(w, "index_path:       %s\n", stats.IndexPath)
	}
	if stats.DiskUsageBytes > 0 {
		fmt.Fprintf(w, "disk_usage_bytes: %d\n", stats.DiskUsageBytes)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
