package engine

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/halden/vaultd/internal/models"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "indexed" or "removed".
type EventCallback func(kind, path string)

// Watch starts an fsnotify watcher on the vault root and feeds file change
// events into the engine until ctx is cancelled. It calls cb (if non-nil)
// after each successful index mutation.
//
// Directories created at runtime are added to the watch list. Rename events
// arrive on the old path only, so the old record is dropped immediately and
// a debounced reconciliation pass picks up the file at its new location.
func Watch(ctx context.Context, eng *Engine, vaultRoot string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, vaultRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", vaultRoot))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			indexed, removed, recErr := eng.Reconcile(ctx)
			if recErr != nil {
				logger.Warn("watcher: reconcile failed", slog.String("error", recErr.Error()))
				continue
			}
			if cb != nil {
				for _, p := range indexed {
					cb("indexed", p)
				}
				for _, p := range removed {
					cb("removed", p)
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// New directories join the watch list; any notes already inside
			// are picked up by a reconciliation pass.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					}
					scheduleReconcile()
					continue
				}
			}

			if !models.IsNotePath(absPath) {
				continue
			}

			rel, relErr := filepath.Rel(vaultRoot, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if idxErr := eng.IndexOne(rel); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
					continue
				}
				logger.Debug("watcher: indexed", slog.String("path", rel))
				if cb != nil {
					cb("indexed", rel)
				}

			case ev.Op&fsnotify.Remove != 0:
				if delErr := eng.Remove(rel); delErr != nil {
					logger.Warn("watcher: remove failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: removed", slog.String("path", rel))
				if cb != nil {
					cb("removed", rel)
				}

			case ev.Op&fsnotify.Rename != 0:
				if delErr := eng.Remove(rel); delErr != nil {
					logger.Warn("watcher: rename remove failed", slog.String("path", rel), slog.String("error", delErr.Error()))
				} else {
					logger.Debug("watcher: rename old removed", slog.String("path", rel))
					if cb != nil {
						cb("removed", rel)
					}
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and every subdirectory to the watcher,
// skipping hidden directories.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); name != "." && strings.HasPrefix(name, ".") && p != root {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}
