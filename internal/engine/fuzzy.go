package engine

import (
	"sort"
	"strings"

	"github.com/halden/vaultd/internal/models"
)

// fuzzyScore ranks target against query with a greedy, case-insensitive
// subsequence scan. Each matched character scores 2 points when it
// immediately follows the previous match, 1 otherwise; the total is divided
// by the target length, so shorter and tighter targets win. A query that is
// not a subsequence of target scores 0. The empty query scores 1
// (match-everything); quick-switch short-circuits that case before calling.
func fuzzyScore(query, target string) float64 {
	t := []rune(strings.ToLower(target))
	if len(t) == 0 {
		return 0
	}
	q := []rune(strings.ToLower(query))
	if len(q) == 0 {
		return 1
	}

	points := 0
	prev := -2
	pos := 0
	for _, qc := range q {
		idx := -1
		for i := pos; i < len(t); i++ {
			if t[i] == qc {
				idx = i
				break
			}
		}
		if idx < 0 {
			return 0
		}
		if idx == prev+1 {
			points += 2
		} else {
			points++
		}
		prev = idx
		pos = idx + 1
	}
	return float64(points) / float64(len(t))
}

// QuickSwitchResult is one ranked quick-switch candidate.
type QuickSwitchResult struct {
	Path  string  `json:"path"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// QuickSwitchResponse carries the ranked candidates plus whether some note's
// normalized title equals the query exactly (the caller uses this to offer a
// "create note" affordance).
type QuickSwitchResponse struct {
	Results       []QuickSwitchResult `json:"results"`
	HasExactMatch bool                `json:"has_exact_match"`
}

const quickSwitchLimit = 50

// QuickSwitch ranks notes against query by fuzzy-matching the normalized
// title first and the lowercase relative path second. Any title match
// outranks a path-only match; within a tier higher score wins, ties break by
// title. An empty query returns nothing.
func (e *Engine) QuickSwitch(query string) (QuickSwitchResponse, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.requireVaultLocked(); err != nil {
		return QuickSwitchResponse{}, err
	}

	norm := models.NormalizeTitle(query)
	resp := QuickSwitchResponse{Results: []QuickSwitchResult{}}
	if norm == "" {
		return resp, nil
	}

	type candidate struct {
		QuickSwitchResult
		titleTier bool
	}
	var cands []candidate
	for _, rec := range e.notes {
		if rec.NormalizedTitle == norm {
			resp.HasExactMatch = true
		}
		if s := fuzzyScore(norm, rec.NormalizedTitle); s > 0 {
			cands = append(cands, candidate{QuickSwitchResult{rec.Path, rec.Title, s}, true})
			continue
		}
		if s := fuzzyScore(norm, rec.RelPathLower); s > 0 {
			cands = append(cands, candidate{QuickSwitchResult{rec.Path, rec.Title, s}, false})
		}
	}

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].titleTier != cands[j].titleTier {
			return cands[i].titleTier
		}
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		if cands[i].Title != cands[j].Title {
			return cands[i].Title < cands[j].Title
		}
		return cands[i].Path < cands[j].Path
	})

	if len(cands) > quickSwitchLimit {
		cands = cands[:quickSwitchLimit]
	}
	for _, c := range cands {
		resp.Results = append(resp.Results, c.QuickSwitchResult)
	}
	return resp, nil
}
