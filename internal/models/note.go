// Package models defines the domain types for vaultd.
package models

import (
	"path"
	"strings"
	"time"
)

// NoteRecord is one indexed note as held by the engine's registry.
//
// Path is the identity key: a vault-relative, slash-separated file path. It is
// immutable for the record's lifetime; a rename produces a new record.
type NoteRecord struct {
	Path            string    `json:"path"`
	Title           string    `json:"title"`
	NormalizedTitle string    `json:"normalized_title"`
	Content         string    `json:"-"`
	OutgoingTargets []string  `json:"outgoing_targets,omitempty"`
	Tags            []string  `json:"tags,omitempty"`
	LastModified    time.Time `json:"last_modified"`
	RelPathLower    string    `json:"-"`
	Checksum        string    `json:"checksum"`
}

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Heading is one outline entry extracted from a note body.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// NoteExt is the file extension that marks a note. Anything else in the vault
// is an asset: it can be moved but carries no links to index or rewrite.
const NoteExt = ".md"

// IsNotePath reports whether p names a note file.
func IsNotePath(p string) bool {
	return strings.HasSuffix(strings.ToLower(p), NoteExt)
}

// TitleFromPath derives a note title from its path: the base name with the
// extension stripped. Folder names are never part of a title.
func TitleFromPath(p string) string {
	base := path.Base(p)
	ext := path.Ext(base)
	return strings.TrimSuffix(base, ext)
}

// NormalizeTitle produces the resolution key for a title.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}
