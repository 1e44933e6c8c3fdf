// Package index provides the Bleve-backed full-text search engine over
// extracted content chunks.
package index

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/studykit/studykit/internal/models"
)

// candidateFloor is the minimum number of candidates fetched for a non-empty
// query so that positional re-sorting sees enough of the result set.
const candidateFloor = 1000

// Entry is one indexed content chunk. Field names follow the json tags.
type Entry struct {
	ChunkID      int64  `json:"chunk_id"`
	DocumentID   int64  `json:"document_id"`
	Content      string `json:"content"`
	Filename     string `json:"filename"`
	Topic        string `json:"topic"`
	SectionTitle string `json:"section_title"`
	PageNumber   int    `json:"page_number"`
	SlideNumber  int    `json:"slide_number"`
}

// Engine wraps a Bleve index with batched writes and study-material query
// semantics. Staged entries become searchable only after Commit. Mutations
// take the write lock; searches share the read lock, so RebuildAll cannot
// swap the index handle out from under an in-flight query.
type Engine struct {
	mu    sync.RWMutex
	index bleve.Index
	batch *bleve.Batch
	path  string
}

// NewEngine creates or opens a Bleve index at path. An existing index is
// reused; remove the directory to force a mapping change to take effect.
func NewEngine(path string) (*Engine, error) {
	idx, err := openOrCreate(path)
	if err != nil {
		return nil, err
	}
	return &Engine{index: idx, batch: idx.NewBatch(), path: path}, nil
}

func openOrCreate(path string) (bleve.Index, error) {
	if _, err := os.Stat(path); err == nil {
		idx, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open index: %w", openErr)
		}
		return idx, nil
	}
	idx, err := bleve.New(path, buildMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	return idx, nil
}

func buildMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so queries match
	// the exact words students typed into their notes.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("section_title", textFieldMapping)

	// Filename and topic are filter targets and must match exactly.
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("filename", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("topic", keywordFieldMapping)

	im.AddDocumentMapping("entry", docMapping)
	im.DefaultType = "entry"
	im.DefaultMapping = docMapping
	return im
}

// AddEntry stages an entry for indexing. It becomes searchable after Commit.
func (e *Engine) AddEntry(entry *Entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.batch.Index(strconv.FormatInt(entry.ChunkID, 10), entry)
}

// DeleteChunks stages removal of the given chunk entries. Takes effect on Commit.
func (e *Engine) DeleteChunks(chunkIDs []int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range chunkIDs {
		e.batch.Delete(strconv.FormatInt(id, 10))
	}
}

// Commit applies all staged mutations atomically and makes them searchable.
func (e *Engine) Commit() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.batch.Size() == 0 {
		return nil
	}
	if err := e.index.Batch(e.batch); err != nil {
		return fmt.Errorf("failed to commit index batch: %w", err)
	}
	e.batch = e.index.NewBatch()
	return nil
}

// RebuildAll replaces the entire index with the given entries. The on-disk
// index is recreated from scratch, so entries must be the full corpus.
func (e *Engine) RebuildAll(ctx context.Context, entries []*Entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.index.Close(); err != nil {
		return fmt.Errorf("failed to close index for rebuild: %w", err)
	}
	if err := os.RemoveAll(e.path); err != nil {
		return fmt.Errorf("failed to remove index for rebuild: %w", err)
	}
	idx, err := bleve.New(e.path, buildMapping())
	if err != nil {
		return fmt.Errorf("failed to recreate index: %w", err)
	}
	e.index = idx
	e.batch = idx.NewBatch()

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.batch.Index(strconv.FormatInt(entry.ChunkID, 10), entry); err != nil {
			return fmt.Errorf("failed to stage entry %d: %w", entry.ChunkID, err)
		}
	}
	if e.batch.Size() > 0 {
		if err := e.index.Batch(e.batch); err != nil {
			return fmt.Errorf("failed to apply rebuild batch: %w", err)
		}
		e.batch = e.index.NewBatch()
	}
	return nil
}

// Search runs a normalized full-text query and returns results in reading
// order: document, then page, then slide, ascending with absent positions
// sorting first. An empty query returns the whole corpus and ignores
// maxResults; otherwise up to maxResults results are returned out of at least
// candidateFloor score-ranked candidates.
func (e *Engine) Search(ctx context.Context, query string, maxResults int) ([]*models.SearchResult, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return e.searchAll(ctx)
	}

	candidates := maxResults
	if candidates < candidateFloor {
		candidates = candidateFloor
	}
	req := bleve.NewSearchRequest(buildQuery(trimmed))
	req.Size = candidates
	req.Fields = []string{"*"}

	e.mu.RLock()
	res, err := e.index.SearchInContext(ctx, req)
	e.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	results := hitsToResults(res)
	sortByPosition(results)
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

// SearchWithFilters behaves like Search but restricts results to the given
// exact filename and/or topic. Filtered results keep score order.
func (e *Engine) SearchWithFilters(ctx context.Context, query, filename, topic string, maxResults int) ([]*models.SearchResult, error) {
	trimmed := strings.TrimSpace(query)

	var base blevequery.Query
	if trimmed == "" {
		base = bleve.NewMatchAllQuery()
	} else {
		base = buildQuery(trimmed)
	}

	conjuncts := []blevequery.Query{base}
	if filename != "" {
		tq := bleve.NewTermQuery(filename)
		tq.SetField("filename")
		conjuncts = append(conjuncts, tq)
	}
	if topic != "" {
		tq := bleve.NewTermQuery(topic)
		tq.SetField("topic")
		conjuncts = append(conjuncts, tq)
	}

	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(conjuncts...))
	req.Size = maxResults
	req.Fields = []string{"*"}

	e.mu.RLock()
	res, err := e.index.SearchInContext(ctx, req)
	e.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("filtered search failed: %w", err)
	}
	return hitsToResults(res), nil
}

// searchAll returns every indexed entry in reading order.
func (e *Engine) searchAll(ctx context.Context) ([]*models.SearchResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	total, err := e.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("failed to get index size: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(total)
	req.Fields = []string{"*"}

	res, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	results := hitsToResults(res)
	sortByPosition(results)
	return results, nil
}

// Suggestions returns up to max distinct completion candidates for prefix:
// indexed words that start with the prefix (case-insensitive) and are strictly
// longer than it.
func (e *Engine) Suggestions(ctx context.Context, prefix string, max int) ([]string, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" || max <= 0 {
		return nil, nil
	}

	pq := bleve.NewPrefixQuery(prefix)
	pq.SetField("content")
	req := bleve.NewSearchRequest(pq)
	req.Size = candidateFloor
	req.Fields = []string{"content"}

	e.mu.RLock()
	res, err := e.index.SearchInContext(ctx, req)
	e.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("suggestion search failed: %w", err)
	}

	seen := make(map[string]struct{})
	var out []string
	for _, hit := range res.Hits {
		content, _ := hit.Fields["content"].(string)
		for _, word := range strings.Fields(content) {
			word = strings.Trim(word, ".,;:!?\"'()[]{}")
			lower := strings.ToLower(word)
			if len(lower) <= len(prefix) || !strings.HasPrefix(lower, prefix) {
				continue
			}
			if _, ok := seen[lower]; ok {
				continue
			}
			seen[lower] = struct{}{}
			out = append(out, lower)
			if len(out) >= max {
				return out, nil
			}
		}
	}
	return out, nil
}

// EntryCount returns the number of committed index entries.
func (e *Engine) EntryCount() (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.index.DocCount()
}

// Path returns the on-disk index location.
func (e *Engine) Path() string {
	return e.path
}

// Close closes the underlying index.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.Close()
}

func hitsToResults(res *bleve.SearchResult) []*models.SearchResult {
	out := make([]*models.SearchResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		r := &models.SearchResult{Score: hit.Score}
		if id, err := strconv.ParseInt(hit.ID, 10, 64); err == nil {
			r.ChunkID = id
		}
		// Stored numeric fields come back as float64.
		if v, ok := hit.Fields["document_id"].(float64); ok {
			r.DocumentID = int64(v)
		}
		if v, ok := hit.Fields["page_number"].(float64); ok {
			r.PageNumber = int(v)
		}
		if v, ok := hit.Fields["slide_number"].(float64); ok {
			r.SlideNumber = int(v)
		}
		r.Content, _ = hit.Fields["content"].(string)
		r.Filename, _ = hit.Fields["filename"].(string)
		r.Topic, _ = hit.Fields["topic"].(string)
		r.SectionTitle, _ = hit.Fields["section_title"].(string)
		out = append(out, r)
	}
	return out
}

// sortByPosition orders results for sequential reading: by document, then
// page, then slide, all ascending. Absent positions are 0 and sort first.
func sortByPosition(results []*models.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.DocumentID != b.DocumentID {
			return a.DocumentID < b.DocumentID
		}
		if a.PageNumber != b.PageNumber {
			return a.PageNumber < b.PageNumber
		}
		return a.SlideNumber < b.SlideNumber
	})
}
