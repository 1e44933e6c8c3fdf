package models

// SearchRequest is a search call with optional exact-match filters.
// Filters narrow the result set; they are never wildcard-expanded.
type SearchRequest struct {
	Query    string `json:"query"`
	Limit    int    `json:"limit,omitempty"`
	Filename string `json:"filename,omitempty"`
	Topic    string `json:"topic,omitempty"`
}

// SearchResult is a single search hit: one indexed content chunk.
// PageNumber and SlideNumber are 0 when absent.
type SearchResult struct {
	DocumentID   int64   `json:"document_id"`
	ChunkID      int64   `json:"chunk_id"`
	Content      string  `json:"content"`
	Filename     string  `json:"filename"`
	Topic        string  `json:"topic"`
	SectionTitle string  `json:"section_title"`
	PageNumber   int     `json:"page_number,omitempty"`
	SlideNumber  int     `json:"slide_number,omitempty"`
	Score        float64 `json:"score"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query"`
}

// Stats reports document counts and index size.
type Stats struct {
	Documents      int64  `json:"documents"`
	Chunks         int64  `json:"chunks"`
	IndexedEntries uint64 `json:"indexed_entries"`
	IndexPath      string `json:"index_path,omitempty"`
	DiskUsageBytes int64  `json:"disk_usage_bytes,omitempty"`
}
