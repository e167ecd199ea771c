package engine

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/halden/vaultd/internal/models"
)

const searchLimit = 50

// Match weights per query token. A hit on a title token counts double.
const (
	weightExact  = 3.0
	weightPrefix = 2.0
	weightFuzzy  = 1.0
)

// searchIndex is an inverted index over title + content, rebuilt from the
// registry together with the other derived structures.
type searchIndex struct {
	tokens      map[string]map[string]int      // token → path → occurrences
	titleTokens map[string]map[string]struct{} // token → paths whose title contains it
}

func newSearchIndex() *searchIndex {
	return &searchIndex{
		tokens:      make(map[string]map[string]int),
		titleTokens: make(map[string]map[string]struct{}),
	}
}

func (si *searchIndex) rebuild(notes map[string]*models.NoteRecord) {
	si.tokens = make(map[string]map[string]int, len(si.tokens))
	si.titleTokens = make(map[string]map[string]struct{}, len(si.titleTokens))

	for path, rec := range notes {
		for _, tok := range tokenize(rec.Title) {
			set := si.titleTokens[tok]
			if set == nil {
				set = make(map[string]struct{})
				si.titleTokens[tok] = set
			}
			set[path] = struct{}{}
			si.add(tok, path)
		}
		for _, tok := range tokenize(rec.Content) {
			si.add(tok, path)
		}
	}
}

func (si *searchIndex) add(tok, path string) {
	m := si.tokens[tok]
	if m == nil {
		m = make(map[string]int)
		si.tokens[tok] = m
	}
	m[path]++
}

// matchToken returns the best weight of query token qt against index token
// tok: exact, prefix, or fuzzy-subsequence (short tokens are exempt from
// fuzzy matching to avoid noise).
func matchToken(qt, tok string) float64 {
	if tok == qt {
		return weightExact
	}
	if strings.HasPrefix(tok, qt) {
		return weightPrefix
	}
	if len(qt) >= 3 && fuzzyScore(qt, tok) >= 0.5 {
		return weightFuzzy
	}
	return 0
}

// SearchResult is one ranked full-text hit.
type SearchResult struct {
	Path    string  `json:"path"`
	Title   string  `json:"title"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet,omitempty"`
}

// Search answers a full-text query. Space-separated tokens prefixed "tag:"
// are pulled out and ANDed as exact tag-membership filters (value
// normalised, a leading "#" stripped); the remaining tokens run against the
// inverted index with prefix and fuzzy tolerance, every token required.
// Results are capped at 50. Tag-only queries return matching notes sorted by
// title; an empty query returns nothing.
func (e *Engine) Search(query string) ([]SearchResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.requireVaultLocked(); err != nil {
		return nil, err
	}

	var tagFilters, free []string
	for _, field := range strings.Fields(query) {
		lower := strings.ToLower(field)
		if strings.HasPrefix(lower, "tag:") {
			tag := strings.TrimPrefix(strings.TrimPrefix(lower, "tag:"), "#")
			if tag != "" {
				tagFilters = append(tagFilters, tag)
			}
			continue
		}
		free = append(free, lower)
	}
	if len(tagFilters) == 0 && len(free) == 0 {
		return []SearchResult{}, nil
	}

	// Exact tag membership, ANDed.
	var tagSet map[string]struct{}
	for _, tag := range tagFilters {
		paths := e.tagPaths[tag]
		if len(paths) == 0 {
			return []SearchResult{}, nil
		}
		if tagSet == nil {
			tagSet = make(map[string]struct{}, len(paths))
			for p := range paths {
				tagSet[p] = struct{}{}
			}
			continue
		}
		for p := range tagSet {
			if _, ok := paths[p]; !ok {
				delete(tagSet, p)
			}
		}
		if len(tagSet) == 0 {
			return []SearchResult{}, nil
		}
	}

	if len(free) == 0 {
		return e.tagOnlyResultsLocked(tagSet), nil
	}

	// Free-text: every query token must match some index token for the path.
	var scores map[string]float64
	for _, qt := range free {
		contrib := make(map[string]float64)
		for tok, paths := range e.search.tokens {
			w := matchToken(qt, tok)
			if w == 0 {
				continue
			}
			titled := e.search.titleTokens[tok]
			for p := range paths {
				pw := w
				if _, ok := titled[p]; ok {
					pw *= 2
				}
				if pw > contrib[p] {
					contrib[p] = pw
				}
			}
		}
		if scores == nil {
			scores = contrib
			continue
		}
		for p, s := range scores {
			add, ok := contrib[p]
			if !ok {
				delete(scores, p)
				continue
			}
			scores[p] = s + add
		}
	}

	out := make([]SearchResult, 0, len(scores))
	for p, s := range scores {
		if tagSet != nil {
			if _, ok := tagSet[p]; !ok {
				continue
			}
		}
		rec := e.notes[p]
		out = append(out, SearchResult{
			Path:    p,
			Title:   rec.Title,
			Score:   s,
			Snippet: snippet(rec.Content, free[0]),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].Path < out[j].Path
	})
	if len(out) > searchLimit {
		out = out[:searchLimit]
	}
	return out, nil
}

func (e *Engine) tagOnlyResultsLocked(tagSet map[string]struct{}) []SearchResult {
	out := make([]SearchResult, 0, len(tagSet))
	for p := range tagSet {
		out = append(out, SearchResult{Path: p, Title: e.notes[p].Title})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].Path < out[j].Path
	})
	if len(out) > searchLimit {
		out = out[:searchLimit]
	}
	return out
}

// snippet returns a short window of content around the first occurrence of
// term, or the leading content when the term only matched via prefix/fuzzy.
func snippet(content, term string) string {
	const window = 60
	lower := strings.ToLower(content)
	idx := strings.Index(lower, term)
	if idx < 0 {
		idx = 0
	}
	start := idx - window/2
	if start < 0 {
		start = 0
	}
	end := idx + len(term) + window/2
	if end > len(content) {
		end = len(content)
	}
	// Byte offsets can land inside a multi-byte rune; clamp outward.
	for start > 0 && !utf8.RuneStart(content[start]) {
		start--
	}
	for end < len(content) && !utf8.RuneStart(content[end]) {
		end++
	}
	s := strings.TrimSpace(content[start:end])
	s = strings.ReplaceAll(s, "\n", " ")
	if start > 0 {
		s = "…" + s
	}
	if end < len(content) {
		s += "…"
	}
	return s
}

// tokenize splits text into lowercase terms of length >= 2. Letters, digits,
// "/", "_", "-" are word characters, so tags and kebab names stay whole.
func tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '/' && r != '_' && r != '-'
	})
	var out []string
	for _, w := range words {
		if len(w) >= 2 {
			out = append(out, w)
		}
	}
	return out
}
