package models

import "testing"

func TestSetContent(t *testing.T) {
	var c ContentChunk
	c.SetContent("  three little words  ")
	if c.Content != "  three little words  " {
		t.Errorf("content = %q", c.Content)
	}
	if c.WordCount != 3 {
		t.Errorf("word count = %d, want 3", c.WordCount)
	}

	c.SetContent("")
	if c.WordCount != 0 {
		t.Errorf("word count for empty = %d", c.WordCount)
	}
}

func TestLocation(t *testing.T) {
	tests := []struct {
		chunk ContentChunk
		want  string
	}{
		{ContentChunk{PageNumber: 4}, "Page 4"},
		{ContentChunk{SlideNumber: 2}, "Slide 2"},
		{ContentChunk{PageNumber: 1, SlideNumber: 9}, "Page 1"},
		{ContentChunk{}, "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.chunk.Location(); got != tt.want {
			t.Errorf("Location(%+v) = %q, want %q", tt.chunk, got, tt.want)
		}
	}
}
