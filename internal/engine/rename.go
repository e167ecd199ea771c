package engine

import (
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"

	"github.com/halden/vaultd/internal/apperr"
	"github.com/halden/vaultd/internal/models"
	"github.com/halden/vaultd/internal/parser"
)

// caseInsensitiveFS reports whether the platform's default filesystem
// ignores letter case. A case-only rename is permitted there even though the
// target "exists", and must route through an intermediate name so the
// filesystem observes two distinct renames. Variable so tests can force it.
var caseInsensitiveFS = runtime.GOOS == "darwin" || runtime.GOOS == "windows"

// RenamePreview describes what applying a rename would touch. Computing it
// never mutates state.
type RenamePreview struct {
	SourcePath    string   `json:"source_path"`
	TargetPath    string   `json:"target_path"`
	OldTitle      string   `json:"old_title"`
	NewTitle      string   `json:"new_title"`
	AffectedFiles []string `json:"affected_files"`
}

// RenameResult reports the outcome of applying a rename. On partial failure
// UpdatedFiles holds the files already rewritten and FailedFiles the failed
// one plus every file not yet attempted; nothing is rolled back.
type RenameResult struct {
	OK           bool     `json:"ok"`
	Error        string   `json:"error,omitempty"`
	UpdatedFiles []string `json:"updated_files"`
	FailedFiles  []string `json:"failed_files"`
}

// PrepareRename computes the preview for moving sourcePath to targetPath:
// the affected files are the current backlink set of sourcePath, sorted.
func (e *Engine) PrepareRename(sourcePath, targetPath string) (RenamePreview, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.requireVaultLocked(); err != nil {
		return RenamePreview{}, err
	}
	sourcePath = cleanPath(sourcePath)
	targetPath = cleanPath(targetPath)
	return RenamePreview{
		SourcePath:    sourcePath,
		TargetPath:    targetPath,
		OldTitle:      models.TitleFromPath(sourcePath),
		NewTitle:      models.TitleFromPath(targetPath),
		AffectedFiles: sortedKeys(e.backlinks[sourcePath]),
	}, nil
}

// ApplyRename moves sourcePath to targetPath and rewrites every wikilink that
// resolved to the source. The write lock is held for the whole operation so
// no other mutation can interleave with the multi-file rewrite sequence.
//
// A conflicting target (and a vault-not-set engine) surface as a returned
// error; mid-rewrite I/O failures surface inside the result with OK false.
func (e *Engine) ApplyRename(sourcePath, targetPath string) (RenameResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := RenameResult{UpdatedFiles: []string{}, FailedFiles: []string{}}
	if err := e.requireVaultLocked(); err != nil {
		return res, err
	}

	sourcePath = cleanPath(sourcePath)
	targetPath = cleanPath(targetPath)
	if sourcePath == targetPath {
		res.OK = true
		return res, nil
	}

	caseOnly := strings.EqualFold(sourcePath, targetPath)

	// Conflict check before touching anything.
	exists, err := e.store.Exists(targetPath)
	if err != nil {
		return res, err
	}
	if exists && !(caseOnly && caseInsensitiveFS) {
		return res, fmt.Errorf("engine: rename target %s: %w", targetPath, apperr.ErrAlreadyExists)
	}

	// Move. Case-only renames on a case-insensitive filesystem go through an
	// intermediate name; a single rename can silently no-op there.
	if caseOnly && caseInsensitiveFS {
		intermediate := targetPath + ".vaultd-rename"
		if err := e.store.Move(sourcePath, intermediate); err != nil {
			return res, err
		}
		if err := e.store.Move(intermediate, targetPath); err != nil {
			return res, err
		}
	} else {
		if err := e.store.Move(sourcePath, targetPath); err != nil {
			return res, err
		}
	}

	// Non-note assets carry no links to rewrite.
	if !models.IsNotePath(targetPath) {
		if _, indexed := e.notes[sourcePath]; indexed {
			e.removeLocked(sourcePath)
			e.rebuildDerivedLocked()
			if e.snap != nil {
				_ = e.snap.DeleteNote(sourcePath)
			}
		}
		res.OK = true
		return res, nil
	}

	// Resolution snapshot from before any registry mutation: rewriting must
	// judge link targets against the world as it was, or the rename would
	// invalidate its own link set.
	titleSnapshot := make(map[string]string, len(e.titles))
	for t, p := range e.titles {
		titleSnapshot[t] = p
	}

	oldTitle := models.TitleFromPath(sourcePath)
	newTitle := models.TitleFromPath(targetPath)

	rewritten := map[string]string{}
	if oldTitle != newTitle {
		// Affected set: pre-move backlinks of the source, with a self-link
		// remapped to the file's new location.
		affected := make([]string, 0, len(e.backlinks[sourcePath]))
		for p := range e.backlinks[sourcePath] {
			if p == sourcePath {
				p = targetPath
			}
			affected = append(affected, p)
		}
		sort.Strings(affected)

		resolvesToSource := func(normalizedTarget string) bool {
			return titleSnapshot[normalizedTarget] == sourcePath
		}

		for i, p := range affected {
			data, readErr := e.store.Read(p)
			if readErr != nil {
				return e.failRename(res, affected[i:], readErr), nil
			}
			content := string(data)
			updated := parser.RewriteWikilinks(content, resolvesToSource, newTitle)
			if updated == content {
				continue
			}
			if writeErr := e.store.Write(p, []byte(updated)); writeErr != nil {
				return e.failRename(res, affected[i:], writeErr), nil
			}
			res.UpdatedFiles = append(res.UpdatedFiles, p)
			rewritten[p] = updated
		}
	}

	// Reconcile the registry: drop the old record, re-index the moved file
	// and every rewritten file, rebuild derived state once.
	e.removeLocked(sourcePath)
	if e.snap != nil {
		_ = e.snap.DeleteNote(sourcePath)
	}
	e.reindexAfterRenameLocked(targetPath)
	for p := range rewritten {
		if p != targetPath {
			e.reindexAfterRenameLocked(p)
		}
	}
	e.rebuildDerivedLocked()

	e.log.Info("rename applied",
		slog.String("source", sourcePath),
		slog.String("target", targetPath),
		slog.Int("updated_files", len(res.UpdatedFiles)))
	res.OK = true
	return res, nil
}

// failRename finalises a partial-failure result: the current file and every
// file not yet attempted count as failed, and the registry is left to the
// watcher's reconciliation pass.
func (e *Engine) failRename(res RenameResult, remaining []string, err error) RenameResult {
	res.OK = false
	res.Error = err.Error()
	res.FailedFiles = append(res.FailedFiles, remaining...)
	e.log.Error("rename failed mid-rewrite",
		slog.String("error", err.Error()),
		slog.Int("updated", len(res.UpdatedFiles)),
		slog.Int("failed", len(res.FailedFiles)))
	return res
}

func (e *Engine) reindexAfterRenameLocked(path string) {
	data, err := e.store.Read(path)
	if err != nil {
		e.log.Warn("rename: reindex read failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	meta, err := e.store.Stat(path)
	if err != nil {
		e.log.Warn("rename: reindex stat failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	e.upsertLocked(path, string(data), meta.UpdatedAt)
	e.persistNoteLocked(path)
}
