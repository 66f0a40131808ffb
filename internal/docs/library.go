package docs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// maxExcerpt bounds how much of a document a single search hit returns.
const maxExcerpt = 1200

// Snippet is one search hit.
type Snippet struct {
	// File is the document's file name within the library.
	File string
	// Excerpt is the matching region of the document.
	Excerpt string
}

// Library is a directory of downloaded reference documents searched by
// plain term matching. Good enough for an agent that refines its own
// queries.
type Library struct {
	dir string
}

// NewLibrary opens the library rooted at dir.
func NewLibrary(dir string) *Library {
	return &Library{dir: dir}
}

// Search scores every document by how often the query terms occur and
// returns excerpts from the best matches.
func (l *Library) Search(query string, limit int) ([]Snippet, error) {
	terms := splitTerms(query)
	if len(terms) == 0 {
		return nil, fmt.Errorf("docs: empty query")
	}
	if limit <= 0 {
		limit = 3
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("docs: reading library: %w", err)
	}

	type scored struct {
		snippet Snippet
		score   int
	}
	var hits []scored

	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".partial") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(l.dir, entry.Name()))
		if err != nil {
			continue
		}
		content := string(data)
		lower := strings.ToLower(content)

		score := 0
		firstMatch := -1
		for _, term := range terms {
			n := strings.Count(lower, term)
			score += n
			if n > 0 {
				if idx := strings.Index(lower, term); firstMatch < 0 || idx < firstMatch {
					firstMatch = idx
				}
			}
		}
		if score == 0 {
			continue
		}
		hits = append(hits, scored{
			snippet: Snippet{File: entry.Name(), Excerpt: excerpt(content, firstMatch)},
			score:   score,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]Snippet, len(hits))
	for i, h := range hits {
		out[i] = h.snippet
	}
	return out, nil
}

func splitTerms(query string) []string {
	var terms []string
	for _, f := range strings.Fields(strings.ToLower(query)) {
		f = strings.Trim(f, ".,;:!?\"'()")
		if len(f) >= 3 {
			terms = append(terms, f)
		}
	}
	return terms
}

// excerpt returns a window of the document centered near the first match.
func excerpt(content string, at int) string {
	if at < 0 {
		at = 0
	}
	start := at - maxExcerpt/4
	if start < 0 {
		start = 0
	}
	end := start + maxExcerpt
	if end > len(content) {
		end = len(content)
	}
	return content[start:end]
}
