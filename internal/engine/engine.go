// Package engine implements the vault index: a registry of parsed notes, the
// derived title/backlink/tag/search structures, and the rename coordinator
// that keeps cross-note references consistent.
//
// The registry is the only primary store. The title resolver, backlink graph,
// tag graph, and search index are rebuilt from it after every mutation batch;
// nothing patches derived state incrementally. One RWMutex serialises all
// mutation batches against each other and against queries, so a rename's
// multi-file rewrite can never interleave with a watcher-driven re-index.
package engine

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/halden/vaultd/internal/apperr"
	"github.com/halden/vaultd/internal/models"
	"github.com/halden/vaultd/internal/parser"
	"github.com/halden/vaultd/internal/snapshot"
	"github.com/halden/vaultd/internal/storage"
)

// Engine owns one vault's index. Create with New, attach a vault with Mount.
// Every query issued before Mount fails with apperr.ErrVaultNotSet.
type Engine struct {
	log  *slog.Logger
	snap snapshot.Store // nil means no persistence

	mu        sync.RWMutex
	store     storage.Provider
	notes     map[string]*models.NoteRecord  // path → record
	titles    map[string]string              // normalized title → path
	backlinks map[string]map[string]struct{} // target path → source paths
	tagPaths  map[string]map[string]struct{} // tag → paths
	search    *searchIndex
}

// Option configures an Engine.
type Option func(*Engine)

// WithSnapshot attaches a persistent snapshot store.
func WithSnapshot(s snapshot.Store) Option {
	return func(e *Engine) { e.snap = s }
}

// New creates an empty, unmounted engine.
func New(logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		log:       logger,
		notes:     make(map[string]*models.NoteRecord),
		titles:    make(map[string]string),
		backlinks: make(map[string]map[string]struct{}),
		tagPaths:  make(map[string]map[string]struct{}),
		search:    newSearchIndex(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Mount attaches a vault. The index stays empty until IndexAll runs.
func (e *Engine) Mount(store storage.Provider) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store = store
}

// requireVaultLocked must be called with at least the read lock held.
func (e *Engine) requireVaultLocked() error {
	if e.store == nil {
		return apperr.ErrVaultNotSet
	}
	return nil
}

// ResolveTitle returns the canonical path for a title. found is false when no
// indexed note carries that normalized title; absence is not an error.
func (e *Engine) ResolveTitle(title string) (path string, found bool, err error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.requireVaultLocked(); err != nil {
		return "", false, err
	}
	p, ok := e.titles[models.NormalizeTitle(title)]
	return p, ok, nil
}

// Backlinks returns the source paths linking to path, sorted lexicographically.
// An unindexed path yields an empty list, not an error.
func (e *Engine) Backlinks(path string) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.requireVaultLocked(); err != nil {
		return nil, err
	}
	return sortedKeys(e.backlinks[cleanPath(path)]), nil
}

// Note returns a copy of the indexed record for path.
func (e *Engine) Note(path string) (models.NoteRecord, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.requireVaultLocked(); err != nil {
		return models.NoteRecord{}, err
	}
	rec, ok := e.notes[cleanPath(path)]
	if !ok {
		return models.NoteRecord{}, apperr.ErrNotFound
	}
	return *rec, nil
}

// Outline returns the heading outline of an indexed note.
func (e *Engine) Outline(path string) ([]models.Heading, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.requireVaultLocked(); err != nil {
		return nil, err
	}
	rec, ok := e.notes[cleanPath(path)]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return parser.ExtractHeadings(rec.Content), nil
}

// cleanPath normalises an engine identity key: slash-separated, no leading
// "./" noise.
func cleanPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.TrimPrefix(p, "./")
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
