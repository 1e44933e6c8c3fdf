package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/studykit/studykit/internal/models"
)

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != OutputText {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if f, err := ParseFormat("json"); err != nil || f != OutputJSON {
		t.Errorf("ParseFormat(json) = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

func TestWriteSearchResultsText(t *testing.T) {
	resp := &models.SearchResponse{
		Results: []*models.SearchResult{
			{Filename: "lecture.pdf", PageNumber: 3, Score: 0.9, Topic: "Sorting", Content: "quicksort partitions the array"},
			{Filename: "deck.pptx", SlideNumber: 2, Score: 0.5, Content: "merge sort recursion"},
		},
		Total:     2,
		Query:     "sort",
		QueryTime: 1,
	}
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, resp, OutputText); err != nil {
		t.Fatalf("WriteSearchResults: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Found 2 results", "lecture.pdf", "Page 3", "Topic: Sorting", "deck.pptx", "Slide 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSearchResultsJSON(t *testing.T) {
	resp := &models.SearchResponse{
		Results: []*models.SearchResult{{Filename: "a.txt", Content: "x"}},
		Total:   1,
		Query:   "x",
	}
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, resp, OutputJSON); err != nil {
		t.Fatalf("WriteSearchResults: %v", err)
	}
	var decoded models.SearchResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Total != 1 {
		t.Errorf("decoded total = %d", decoded.Total)
	}
}

func TestWriteDocuments(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDocuments(&buf, nil, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No documents.") {
		t.Errorf("empty listing output = %q", buf.String())
	}

	buf.Reset()
	docs := []*models.Document{
		{ID: 1, Status: models.StatusCompleted, FileType: "pdf", FileSize: 1024, OriginalFilename: "lecture.pdf"},
	}
	if err := WriteDocuments(&buf, docs, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "lecture.pdf") || !strings.Contains(buf.String(), "COMPLETED") {
		t.Errorf("listing output = %q", buf.String())
	}
}
