package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/halden/vaultd/internal/apperr"
)

// eventually polls cond until it holds or the deadline passes. Filesystem
// notifications and the debounced reconcile are asynchronous, so assertions
// on watcher effects have to wait.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal(msg)
}

func startWatcher(t *testing.T, eng *Engine, dir string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, eng, dir, testLogger(), nil) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Errorf("watcher exited: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("watcher did not stop")
		}
	})
	// Give fsnotify a moment to establish the directory watches.
	time.Sleep(50 * time.Millisecond)
}

func TestWatchIndexesNewNote(t *testing.T) {
	eng, dir := newTestEngine(t)
	scan(t, eng)
	startWatcher(t, eng, dir)

	writeNote(t, dir, "Fresh.md", "hello [[World]]")
	eventually(t, func() bool {
		_, found, err := eng.ResolveTitle("fresh")
		return err == nil && found
	}, "new note was not indexed")
}

func TestWatchPicksUpEdits(t *testing.T) {
	eng, dir := newTestEngine(t)
	writeNote(t, dir, "A.md", "no tags yet")
	scan(t, eng)
	startWatcher(t, eng, dir)

	writeNote(t, dir, "A.md", "now with #urgent")
	eventually(t, func() bool {
		paths, err := eng.NotesForTag("urgent")
		return err == nil && len(paths) == 1
	}, "edit was not reindexed")
}

func TestWatchRemovesDeletedNote(t *testing.T) {
	eng, dir := newTestEngine(t)
	writeNote(t, dir, "Gone.md", "bye")
	scan(t, eng)
	startWatcher(t, eng, dir)

	if err := os.Remove(filepath.Join(dir, "Gone.md")); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool {
		_, err := eng.Note("Gone.md")
		return errors.Is(err, apperr.ErrNotFound)
	}, "deleted note still indexed")
}

func TestWatchReconcilesAfterExternalRename(t *testing.T) {
	eng, dir := newTestEngine(t)
	writeNote(t, dir, "Old.md", "content")
	scan(t, eng)
	startWatcher(t, eng, dir)

	if err := os.Rename(filepath.Join(dir, "Old.md"), filepath.Join(dir, "New.md")); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool {
		_, oldFound, _ := eng.ResolveTitle("old")
		_, newFound, _ := eng.ResolveTitle("new")
		return !oldFound && newFound
	}, "external rename was not reconciled")
}

func TestWatchIndexesNoteInNewDirectory(t *testing.T) {
	eng, dir := newTestEngine(t)
	scan(t, eng)
	startWatcher(t, eng, dir)

	sub := filepath.Join(dir, "projects")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	// Let the watcher pick up the new directory before writing into it.
	time.Sleep(100 * time.Millisecond)
	writeNote(t, dir, "projects/Plan.md", "nested")
	eventually(t, func() bool {
		_, found, err := eng.ResolveTitle("plan")
		return err == nil && found
	}, "note in new directory was not indexed")
}
