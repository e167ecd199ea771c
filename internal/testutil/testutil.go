// Package testutil provides shared test helpers for setting up vaults,
// engines and snapshot databases.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/halden/vaultd/internal/engine"
	"github.com/halden/vaultd/internal/snapshot"
	"github.com/halden/vaultd/internal/storage"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SnapshotDB creates a temporary SQLite snapshot that is automatically
// cleaned up.
func SnapshotDB(t *testing.T) *snapshot.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "vaultd-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := snapshot.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Vault creates a temporary vault directory with a storage.Provider.
func Vault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// Engine creates an engine mounted on a fresh temporary vault.
func Engine(t *testing.T) (*engine.Engine, storage.Provider, string) {
	t.Helper()
	vaultDir, store := Vault(t)
	eng := engine.New(Logger())
	eng.Mount(store)
	return eng, store, vaultDir
}
