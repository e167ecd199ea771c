// Package storage defines the vault file-system abstraction.
package storage

import "github.com/halden/vaultd/internal/models"

// Provider is the interface for vault file operations. All paths are relative
// to the vault root and slash-separated.
type Provider interface {
	// List returns metadata for every note file under dir, sorted by path.
	List(dir string) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
	// Exists reports whether a filesystem entry exists at path.
	Exists(path string) (bool, error)
	// Stat returns metadata for a single file.
	Stat(path string) (models.NoteMetadata, error)
}
