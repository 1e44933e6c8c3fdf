package index

import (
	"strings"

	"github.com/blevesearch/bleve/v2"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
)

// wildcardTokenLimit is the largest query, in tokens, that still gets
// substring wildcard expansion. Longer queries match on whole words only.
const wildcardTokenLimit = 3

// abbreviations expands well-known study shorthand into the terms lecture
// material actually uses. A query containing the shorthand anywhere, even
// embedded in a longer token like "rdbms", gets the long forms OR-ed in.
var abbreviations = map[string][]string{
	"dbms": {"database", "database management system"},
}

// buildQuery turns a raw user query into a Bleve query.
//
// Queries carrying explicit syntax characters are handed to the query string
// parser as-is; if parsing fails, the raw input is retried as a literal
// lowercase term. Plain queries are tokenized and OR-ed: short queries get
// substring wildcard expansion per token, and known abbreviations appearing
// anywhere in the query OR in their long forms.
func buildQuery(raw string) blevequery.Query {
	if strings.ContainsAny(raw, "*?()") {
		qsq := bleve.NewQueryStringQuery(raw)
		if parsed, err := qsq.Parse(); err == nil {
			return parsed
		}
		return bleve.NewTermQuery(strings.ToLower(raw))
	}

	lower := strings.ToLower(raw)
	tokens := strings.Fields(lower)
	if len(tokens) == 0 {
		return bleve.NewMatchAllQuery()
	}

	wildcard := len(tokens) <= wildcardTokenLimit
	qs := make([]blevequery.Query, 0, len(tokens))
	for _, token := range tokens {
		qs = append(qs, tokenQuery(token, wildcard))
	}
	for abbr, expansions := range abbreviations {
		if !strings.Contains(lower, abbr) {
			continue
		}
		for _, exp := range expansions {
			if strings.Contains(exp, " ") {
				qs = append(qs, bleve.NewMatchPhraseQuery(exp))
			} else {
				qs = append(qs, bleve.NewMatchQuery(exp))
			}
		}
	}
	if len(qs) == 1 {
		return qs[0]
	}
	return bleve.NewDisjunctionQuery(qs...)
}

func tokenQuery(token string, wildcard bool) blevequery.Query {
	if wildcard && len(token) > 1 {
		return bleve.NewWildcardQuery("*" + token + "*")
	}
	return bleve.NewMatchQuery(token)
}
