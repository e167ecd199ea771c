package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/halden/vaultd/internal/checksum"
	"github.com/halden/vaultd/internal/models"
	"github.com/halden/vaultd/internal/parser"
	"github.com/halden/vaultd/internal/snapshot"
)

const scanReadConcurrency = 8

// IndexAll replaces the entire registry from a full vault scan. File reads
// run in parallel; registry inserts are sequential in lexicographic path
// order, so duplicate-title collisions resolve reproducibly (last wins).
// A single unreadable file is logged and skipped, not fatal.
func (e *Engine) IndexAll(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireVaultLocked(); err != nil {
		return err
	}

	metas, err := e.store.List("")
	if err != nil {
		return fmt.Errorf("engine: scan vault: %w", err)
	}

	contents := make([][]byte, len(metas))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(scanReadConcurrency)
	for i, m := range metas {
		g.Go(func() error {
			data, readErr := e.store.Read(m.Path)
			if readErr != nil {
				e.log.Warn("scan: read failed", slog.String("path", m.Path), slog.String("error", readErr.Error()))
				return nil
			}
			contents[i] = data
			return nil
		})
	}
	_ = g.Wait()

	e.notes = make(map[string]*models.NoteRecord, len(metas))
	e.titles = make(map[string]string, len(metas))
	for i, m := range metas {
		if contents[i] == nil {
			continue
		}
		e.upsertLocked(m.Path, string(contents[i]), m.UpdatedAt)
	}
	e.rebuildDerivedLocked()
	e.persistScanLocked()
	e.log.Info("scan: indexed vault", slog.Int("notes", len(e.notes)))
	return nil
}

// Restore seeds the registry from the snapshot store and reconciles it
// against the vault, so a restart re-reads only files that changed on disk
// since the snapshot was written. Without a snapshot, or with an empty or
// unreadable one, it falls back to a full scan.
func (e *Engine) Restore(ctx context.Context) error {
	if e.snap == nil {
		return e.IndexAll(ctx)
	}
	rows, err := e.snap.AllNotes()
	if err != nil {
		e.log.Warn("snapshot: restore failed, rescanning", slog.String("error", err.Error()))
		return e.IndexAll(ctx)
	}
	if len(rows) == 0 {
		return e.IndexAll(ctx)
	}

	e.mu.Lock()
	if err := e.requireVaultLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.notes = make(map[string]*models.NoteRecord, len(rows))
	e.titles = make(map[string]string, len(rows))
	// Rows arrive in path order, so title collisions resolve as a scan would.
	for _, row := range rows {
		path := cleanPath(row.Path)
		if prior, ok := e.notes[path]; ok {
			if e.titles[prior.NormalizedTitle] == path {
				delete(e.titles, prior.NormalizedTitle)
			}
		}
		rec := &models.NoteRecord{
			Path:            path,
			Title:           row.Title,
			NormalizedTitle: models.NormalizeTitle(row.Title),
			Content:         row.Content,
			OutgoingTargets: row.Links,
			Tags:            row.Tags,
			LastModified:    row.UpdatedAt,
			RelPathLower:    strings.ToLower(path),
			Checksum:        row.Checksum,
		}
		e.notes[path] = rec
		e.titles[rec.NormalizedTitle] = path
	}
	e.rebuildDerivedLocked()
	restored := len(e.notes)
	e.mu.Unlock()

	indexed, removed, err := e.Reconcile(ctx)
	if err != nil {
		return err
	}
	e.log.Info("scan: restored from snapshot",
		slog.Int("restored", restored),
		slog.Int("reindexed", len(indexed)),
		slog.Int("removed", len(removed)))
	return nil
}

// IndexOne parses a single file's current on-disk content and upserts its
// record. The prior title entry is removed first so a title change cannot
// leave a stale forward mapping.
func (e *Engine) IndexOne(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireVaultLocked(); err != nil {
		return err
	}
	path = cleanPath(path)
	if !models.IsNotePath(path) {
		return nil
	}
	data, err := e.store.Read(path)
	if err != nil {
		return fmt.Errorf("engine: index %s: %w", path, err)
	}
	meta, err := e.store.Stat(path)
	if err != nil {
		return fmt.Errorf("engine: index %s: %w", path, err)
	}
	e.upsertLocked(path, string(data), meta.UpdatedAt)
	e.rebuildDerivedLocked()
	e.persistNoteLocked(path)
	return nil
}

// Remove deletes a note's record and its title entry. Removing an unindexed
// path is a no-op.
func (e *Engine) Remove(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireVaultLocked(); err != nil {
		return err
	}
	path = cleanPath(path)
	if _, ok := e.notes[path]; !ok {
		return nil
	}
	e.removeLocked(path)
	e.rebuildDerivedLocked()
	if e.snap != nil {
		if err := e.snap.DeleteNote(path); err != nil {
			e.log.Warn("snapshot: delete failed", slog.String("path", path), slog.String("error", err.Error()))
		}
	}
	return nil
}

// Reconcile brings the registry back in line with disk state: changed or new
// files are re-indexed, records without a file are removed. Used by the
// watcher after rename bursts and at startup when a snapshot is present.
func (e *Engine) Reconcile(ctx context.Context) (indexed, removed []string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireVaultLocked(); err != nil {
		return nil, nil, err
	}

	metas, err := e.store.List("")
	if err != nil {
		return nil, nil, fmt.Errorf("engine: reconcile: %w", err)
	}

	disk := make(map[string]struct{}, len(metas))
	mutated := false
	for _, m := range metas {
		select {
		case <-ctx.Done():
			return indexed, removed, ctx.Err()
		default:
		}
		disk[m.Path] = struct{}{}
		if rec, ok := e.notes[m.Path]; ok && rec.Checksum == m.Checksum {
			continue
		}
		data, readErr := e.store.Read(m.Path)
		if readErr != nil {
			e.log.Warn("reconcile: read failed", slog.String("path", m.Path), slog.String("error", readErr.Error()))
			continue
		}
		e.upsertLocked(m.Path, string(data), m.UpdatedAt)
		indexed = append(indexed, m.Path)
		mutated = true
	}
	for p := range e.notes {
		if _, ok := disk[p]; !ok {
			e.removeLocked(p)
			removed = append(removed, p)
			mutated = true
		}
	}
	if mutated {
		e.rebuildDerivedLocked()
		e.persistScanLocked()
	}
	return indexed, removed, nil
}

// upsertLocked parses content and replaces the record for path wholesale.
func (e *Engine) upsertLocked(path, content string, modTime time.Time) {
	path = cleanPath(path)
	if prior, ok := e.notes[path]; ok {
		if e.titles[prior.NormalizedTitle] == path {
			delete(e.titles, prior.NormalizedTitle)
		}
	}

	title := models.TitleFromPath(path)
	links := parser.ExtractWikilinks(content)
	targets := make([]string, 0, len(links))
	for _, l := range links {
		targets = append(targets, l.NormalizedTarget())
	}

	rec := &models.NoteRecord{
		Path:            path,
		Title:           title,
		NormalizedTitle: models.NormalizeTitle(title),
		Content:         content,
		OutgoingTargets: targets,
		Tags:            parser.ExtractTags(content),
		LastModified:    modTime,
		RelPathLower:    strings.ToLower(path),
		Checksum:        checksum.Sum([]byte(content)),
	}
	e.notes[path] = rec
	e.titles[rec.NormalizedTitle] = path
}

func (e *Engine) removeLocked(path string) {
	rec, ok := e.notes[path]
	if !ok {
		return
	}
	if e.titles[rec.NormalizedTitle] == path {
		delete(e.titles, rec.NormalizedTitle)
	}
	delete(e.notes, path)
}

// persistNoteLocked writes one record through to the snapshot store.
func (e *Engine) persistNoteLocked(path string) {
	if e.snap == nil {
		return
	}
	rec, ok := e.notes[path]
	if !ok {
		return
	}
	if err := e.snap.UpsertNote(snapshotRow(rec)); err != nil {
		e.log.Warn("snapshot: upsert failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}

// persistScanLocked syncs the snapshot store with the registry after a bulk
// mutation: changed records are upserted, stale rows deleted.
func (e *Engine) persistScanLocked() {
	if e.snap == nil {
		return
	}
	prior, err := e.snap.AllChecksums()
	if err != nil {
		e.log.Warn("snapshot: checksums failed", slog.String("error", err.Error()))
		prior = map[string]string{}
	}
	for p, rec := range e.notes {
		if prior[p] == rec.Checksum {
			continue
		}
		if err := e.snap.UpsertNote(snapshotRow(rec)); err != nil {
			e.log.Warn("snapshot: upsert failed", slog.String("path", p), slog.String("error", err.Error()))
		}
	}
	for p := range prior {
		if _, ok := e.notes[p]; !ok {
			if err := e.snap.DeleteNote(p); err != nil {
				e.log.Warn("snapshot: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			}
		}
	}
}

func snapshotRow(rec *models.NoteRecord) snapshot.NoteRow {
	return snapshot.NoteRow{
		Path:      rec.Path,
		Title:     rec.Title,
		Checksum:  rec.Checksum,
		Content:   rec.Content,
		Tags:      rec.Tags,
		Links:     rec.OutgoingTargets,
		UpdatedAt: rec.LastModified,
	}
}
