package api

import (
	"github.com/halden/vaultd/internal/engine"
	"github.com/halden/vaultd/internal/noteservice"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Path    string `json:"path" example:"notes/hello.md" validate:"required"`
	Content string `json:"content" example:"# Hello\nWorld" validate:"required"`
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Content string `json:"content" example:"# Updated\nContent" validate:"required"`
}

// RenameRequest is the request body for previewing or applying a rename.
type RenameRequest struct {
	Source string `json:"source" example:"notes/old.md" validate:"required"`
	Target string `json:"target" example:"notes/new.md" validate:"required"`
}

// IndexFileRequest is the request body for single-file index maintenance.
type IndexFileRequest struct {
	Path string `json:"path" example:"notes/daily.md" validate:"required"`
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps ranked search results.
type SearchResponse struct {
	Results []engine.SearchResult `json:"results" validate:"required"`
}

// BacklinksResponse wraps the backlink list of one note.
type BacklinksResponse struct {
	Path      string   `json:"path" example:"notes/hello.md"`
	Backlinks []string `json:"backlinks" validate:"required"`
}

// ResolveResponse reports what a wikilink title resolves to.
type ResolveResponse struct {
	Title string `json:"title" example:"Hello"`
	Path  string `json:"path,omitempty" example:"notes/hello.md"`
	Found bool   `json:"found"`
}

// TagsResponse wraps the tag summary.
type TagsResponse struct {
	Tags []engine.TagCount `json:"tags" validate:"required"`
}

// TagNotesResponse lists the notes that carry one tag.
type TagNotesResponse struct {
	Tag   string   `json:"tag" example:"project"`
	Notes []string `json:"notes" validate:"required"`
}

// AttachmentUploadResponse is returned after a successful attachment upload.
type AttachmentUploadResponse struct {
	Filename string `json:"filename" example:"image.png" validate:"required"`
	Size     int64  `json:"size" example:"12345" validate:"required"`
	URL      string `json:"url" example:"/attachments/image.png" validate:"required"`
}
