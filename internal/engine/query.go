package engine

import (
	"sort"
	"strings"

	"github.com/halden/vaultd/internal/models"
)

// TagCount is one entry of the vault-wide tag summary.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// TagSummary lists every tag with its note count, sorted by count descending
// then tag ascending.
func (e *Engine) TagSummary() ([]TagCount, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.requireVaultLocked(); err != nil {
		return nil, err
	}
	out := make([]TagCount, 0, len(e.tagPaths))
	for tag, paths := range e.tagPaths {
		out = append(out, TagCount{Tag: tag, Count: len(paths)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out, nil
}

// NotesForTag returns the paths of notes carrying tag, sorted by their titles.
// Unknown tags yield an empty list.
func (e *Engine) NotesForTag(tag string) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.requireVaultLocked(); err != nil {
		return nil, err
	}
	tag = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
	set := e.tagPaths[tag]
	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		ti, tj := e.notes[paths[i]].Title, e.notes[paths[j]].Title
		if ti != tj {
			return ti < tj
		}
		return paths[i] < paths[j]
	})
	return paths, nil
}

// ListNotes returns paginated note summaries, optionally filtered by tag and
// sorted by "title", "path", or "updated_at" (default path).
func (e *Engine) ListNotes(limit, offset int, tag, sortKey string) ([]models.NoteRecord, int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.requireVaultLocked(); err != nil {
		return nil, 0, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var recs []models.NoteRecord
	if tag != "" {
		tag = strings.ToLower(strings.TrimPrefix(tag, "#"))
		for p := range e.tagPaths[tag] {
			recs = append(recs, *e.notes[p])
		}
	} else {
		for _, rec := range e.notes {
			recs = append(recs, *rec)
		}
	}

	switch sortKey {
	case "title":
		sort.Slice(recs, func(i, j int) bool {
			if recs[i].Title != recs[j].Title {
				return recs[i].Title < recs[j].Title
			}
			return recs[i].Path < recs[j].Path
		})
	case "updated_at":
		sort.Slice(recs, func(i, j int) bool {
			if !recs[i].LastModified.Equal(recs[j].LastModified) {
				return recs[i].LastModified.After(recs[j].LastModified)
			}
			return recs[i].Path < recs[j].Path
		})
	default:
		sort.Slice(recs, func(i, j int) bool { return recs[i].Path < recs[j].Path })
	}

	total := len(recs)
	if offset >= total {
		return []models.NoteRecord{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	// Listings never carry content.
	page := make([]models.NoteRecord, end-offset)
	for i, rec := range recs[offset:end] {
		rec.Content = ""
		page[i] = rec
	}
	return page, total, nil
}
