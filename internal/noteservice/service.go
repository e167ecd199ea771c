package noteservice

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/halden/vaultd/internal/apperr"
	"github.com/halden/vaultd/internal/checksum"
	"github.com/halden/vaultd/internal/engine"
	"github.com/halden/vaultd/internal/models"
	"github.com/halden/vaultd/internal/storage"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	Path      string           `json:"path"`
	Title     string           `json:"title"`
	Content   string           `json:"content"`
	Checksum  string           `json:"checksum"`
	Tags      []string         `json:"tags"`
	Headings  []models.Heading `json:"headings"`
	Backlinks []string         `json:"backlinks"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service coordinates storage writes with the in-memory index. Reads are
// served from the index; writes go to storage first and are indexed
// immediately so API responses never lag behind the filesystem.
type Service struct {
	store storage.Provider
	eng   *engine.Engine
}

// NewService creates a new note service.
func NewService(store storage.Provider, eng *engine.Engine) *Service {
	return &Service{store: store, eng: eng}
}

// GetNote returns the indexed note enriched with backlinks and headings.
func (s *Service) GetNote(_ context.Context, path string) (*NoteDetail, error) {
	rec, err := s.eng.Note(path)
	if err != nil {
		return nil, err
	}
	return s.buildNoteDetail(rec)
}

// CreateNote writes a new note and indexes it.
func (s *Service) CreateNote(_ context.Context, path string, content []byte) (*NoteDetail, error) {
	exists, err := s.store.Exists(path)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := s.eng.IndexOne(path); err != nil {
		return nil, err
	}
	rec, err := s.eng.Note(path)
	if err != nil {
		return nil, err
	}
	return s.buildNoteDetail(rec)
}

// UpdateNote writes updated content with optimistic concurrency. A non-empty
// ifMatch must equal the checksum of the stored content or the write is
// rejected with ErrConflict.
func (s *Service) UpdateNote(_ context.Context, path string, content []byte, ifMatch string) (*NoteDetail, error) {
	existing, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := s.eng.IndexOne(path); err != nil {
		return nil, err
	}
	rec, err := s.eng.Note(path)
	if err != nil {
		return nil, err
	}
	return s.buildNoteDetail(rec)
}

// DeleteNote removes a note from storage and the index.
func (s *Service) DeleteNote(_ context.Context, path string) error {
	if err := s.store.Delete(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	return s.eng.Remove(path)
}

// ListNotes returns paginated notes with optional tag filter.
func (s *Service) ListNotes(_ context.Context, limit, offset int, tag, sort string) ([]NoteListItem, int, error) {
	recs, total, err := s.eng.ListNotes(limit, offset, tag, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]NoteListItem, len(recs))
	for i, r := range recs {
		items[i] = NoteListItem{
			Path:      r.Path,
			Title:     r.Title,
			Checksum:  r.Checksum,
			Tags:      nonNilSlice(r.Tags),
			UpdatedAt: r.LastModified,
		}
	}
	return items, total, nil
}

// Search delegates ranked search, including tag: filters, to the index.
func (s *Service) Search(_ context.Context, query string) ([]engine.SearchResult, error) {
	return s.eng.Search(query)
}

// QuickSwitch delegates fuzzy title and path matching to the index.
func (s *Service) QuickSwitch(_ context.Context, query string) (engine.QuickSwitchResponse, error) {
	return s.eng.QuickSwitch(query)
}

// Backlinks returns all note paths that link to the given target, sorted.
func (s *Service) Backlinks(_ context.Context, target string) ([]string, error) {
	bl, err := s.eng.Backlinks(target)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(bl), nil
}

// Resolve maps a wikilink title to the note path it resolves to.
func (s *Service) Resolve(_ context.Context, title string) (string, bool, error) {
	return s.eng.ResolveTitle(title)
}

// Outline returns the heading structure of a note.
func (s *Service) Outline(_ context.Context, path string) ([]models.Heading, error) {
	hs, err := s.eng.Outline(path)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(hs), nil
}

// Tags returns every tag with its note count.
func (s *Service) Tags(_ context.Context) ([]engine.TagCount, error) {
	return s.eng.TagSummary()
}

// NotesForTag returns the paths of all notes carrying the tag.
func (s *Service) NotesForTag(_ context.Context, tag string) ([]string, error) {
	paths, err := s.eng.NotesForTag(tag)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(paths), nil
}

// LocalGraph returns the 1-hop neighborhood of a note.
func (s *Service) LocalGraph(_ context.Context, path string) (engine.Graph, error) {
	return s.eng.LocalGraph(path)
}

// GlobalGraph returns the vault-wide link graph.
func (s *Service) GlobalGraph(_ context.Context) (engine.Graph, error) {
	return s.eng.GlobalGraph()
}

// PreviewRename reports which files a rename would rewrite.
func (s *Service) PreviewRename(_ context.Context, source, target string) (engine.RenamePreview, error) {
	return s.eng.PrepareRename(source, target)
}

// Rename moves a note and rewrites links that pointed at it.
func (s *Service) Rename(_ context.Context, source, target string) (engine.RenameResult, error) {
	return s.eng.ApplyRename(source, target)
}

// IndexFile re-indexes a single file from its current on-disk content.
func (s *Service) IndexFile(_ context.Context, path string) error {
	return s.eng.IndexOne(path)
}

// RemoveFromIndex drops a file's index record without touching the vault.
func (s *Service) RemoveFromIndex(_ context.Context, path string) error {
	return s.eng.Remove(path)
}

// Rescan rebuilds the whole index from the vault.
func (s *Service) Rescan(ctx context.Context) error {
	return s.eng.IndexAll(ctx)
}

func (s *Service) buildNoteDetail(rec models.NoteRecord) (*NoteDetail, error) {
	bl, err := s.eng.Backlinks(rec.Path)
	if err != nil {
		return nil, err
	}
	hs, err := s.eng.Outline(rec.Path)
	if err != nil {
		return nil, err
	}
	return &NoteDetail{
		Path:      rec.Path,
		Title:     rec.Title,
		Content:   rec.Content,
		Checksum:  rec.Checksum,
		Tags:      nonNilSlice(rec.Tags),
		Headings:  nonNilSlice(hs),
		Backlinks: nonNilSlice(bl),
		UpdatedAt: rec.LastModified,
	}, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
