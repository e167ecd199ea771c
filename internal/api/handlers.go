package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/halden/vaultd/internal/apperr"
	"github.com/halden/vaultd/internal/noteservice"
	"github.com/halden/vaultd/internal/sse"
)

// EventPublisher receives note lifecycle notifications for the event stream.
// The SSE broker implements it; a nil publisher disables notifications.
type EventPublisher interface {
	PublishNoteEvent(kind, path string)
}

// Handler holds API route handlers.
type Handler struct {
	svc    *noteservice.Service
	events EventPublisher
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service, events EventPublisher) *Handler {
	return &Handler{svc: svc, events: events}
}

// notePath extracts the note path from the URL (everything after /api/notes/).
// Supports encoded slashes from OpenAPI clients (e.g. topics%2Fnote.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func (h *Handler) writeEngineError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrVaultNotSet):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("vault not mounted"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes with optional pagination and filtering
//	@Tags			notes
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			sort	query		string	false	"Sort field"	Enums(updated_at, title, path)
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListNotes(r.Context(), limit, offset, q.Get("tag"), q.Get("sort"))
	if err != nil {
		h.writeEngineError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: total})
}

// GetNote handles GET /api/notes/*.
//
//	@Summary		Get a single note by path
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	note, err := h.svc.GetNote(r.Context(), path)
	if err != nil {
		h.writeEngineError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path and content are required"))
		return
	}
	note, err := h.svc.CreateNote(r.Context(), req.Path, []byte(req.Content))
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			writeJSON(w, http.StatusConflict, errorBody("note already exists"))
			return
		}
		h.writeEngineError(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/*.
//
//	@Summary		Update a note with optimistic concurrency
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			path		path	string				true	"Note path"
//	@Param			If-Match	header	string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body	UpdateNoteRequest	true	"Updated content"
//	@Success		200		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}

	var req UpdateNoteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	ifMatch := r.Header.Get("If-Match")
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch = strings.Trim(ifMatch, `"`)

	note, err := h.svc.UpdateNote(r.Context(), path, []byte(req.Content), ifMatch)
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
			return
		}
		h.writeEngineError(w, "update note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/*.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			path	path	string	true	"Note path"
//	@Success		204		"Note deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeleteNote(r.Context(), path); err != nil {
		h.writeEngineError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Ranked search across titles, bodies and tag: filters
//	@Tags			search
//	@Produce		json
//	@Param			q	query		string	true	"Search query, free text plus optional tag:name filters"
//	@Success		200	{object}	SearchResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	results, err := h.svc.Search(r.Context(), q)
	if err != nil {
		h.writeEngineError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// QuickSwitch handles GET /api/quickswitch.
//
//	@Summary		Fuzzy-match note titles and paths for the quick switcher
//	@Tags			search
//	@Produce		json
//	@Param			q	query		string	true	"Fuzzy query"
//	@Success		200	{object}	engine.QuickSwitchResponse
//	@Security		BearerAuth
//	@Router			/quickswitch [get]
func (h *Handler) QuickSwitch(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.QuickSwitch(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeEngineError(w, "quickswitch", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Backlinks handles GET /api/backlinks.
//
//	@Summary		List notes linking to a path
//	@Tags			graph
//	@Produce		json
//	@Param			path	query		string	true	"Note path"
//	@Success		200		{object}	BacklinksResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/backlinks [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	bl, err := h.svc.Backlinks(r.Context(), path)
	if err != nil {
		h.writeEngineError(w, "backlinks", err)
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Path: path, Backlinks: bl})
}

// Resolve handles GET /api/resolve.
//
//	@Summary		Resolve a wikilink title to a note path
//	@Tags			graph
//	@Produce		json
//	@Param			title	query		string	true	"Wikilink title"
//	@Success		200		{object}	ResolveResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/resolve [get]
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if title == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'title' is required"))
		return
	}
	path, found, err := h.svc.Resolve(r.Context(), title)
	if err != nil {
		h.writeEngineError(w, "resolve", err)
		return
	}
	writeJSON(w, http.StatusOK, ResolveResponse{Title: title, Path: path, Found: found})
}

// Outline handles GET /api/outline.
//
//	@Summary		Get the heading outline of a note
//	@Tags			notes
//	@Produce		json
//	@Param			path	query		string	true	"Note path"
//	@Success		200		{object}	map[string]any
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/outline [get]
func (h *Handler) Outline(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	hs, err := h.svc.Outline(r.Context(), path)
	if err != nil {
		h.writeEngineError(w, "outline", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path, "headings": hs})
}

// Tags handles GET /api/tags.
//
//	@Summary		List all tags with note counts
//	@Tags			tags
//	@Produce		json
//	@Success		200	{object}	TagsResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.Tags(r.Context())
	if err != nil {
		h.writeEngineError(w, "tags", err)
		return
	}
	writeJSON(w, http.StatusOK, TagsResponse{Tags: tags})
}

// TagNotes handles GET /api/tags/{tag}.
//
//	@Summary		List notes carrying a tag
//	@Tags			tags
//	@Produce		json
//	@Param			tag	path		string	true	"Tag name without #"
//	@Success		200	{object}	TagNotesResponse
//	@Security		BearerAuth
//	@Router			/tags/{tag} [get]
func (h *Handler) TagNotes(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	notes, err := h.svc.NotesForTag(r.Context(), tag)
	if err != nil {
		h.writeEngineError(w, "tag notes", err)
		return
	}
	writeJSON(w, http.StatusOK, TagNotesResponse{Tag: tag, Notes: notes})
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the vault-wide link graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	engine.Graph
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.GlobalGraph(r.Context())
	if err != nil {
		h.writeEngineError(w, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// LocalGraph handles GET /api/graph/local.
//
//	@Summary		Get the 1-hop link neighborhood of a note
//	@Tags			graph
//	@Produce		json
//	@Param			path	query		string	true	"Note path"
//	@Success		200		{object}	engine.Graph
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/graph/local [get]
func (h *Handler) LocalGraph(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	g, err := h.svc.LocalGraph(r.Context(), path)
	if err != nil {
		h.writeEngineError(w, "local graph", err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// RenamePreview handles POST /api/rename/preview.
//
//	@Summary		Preview which files a rename would rewrite
//	@Tags			rename
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RenameRequest	true	"Rename to preview"
//	@Success		200		{object}	engine.RenamePreview
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/rename/preview [post]
func (h *Handler) RenamePreview(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Source == "" || req.Target == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("source and target are required"))
		return
	}
	prev, err := h.svc.PreviewRename(r.Context(), req.Source, req.Target)
	if err != nil {
		h.writeEngineError(w, "rename preview", err)
		return
	}
	writeJSON(w, http.StatusOK, prev)
}

// Rename handles POST /api/rename.
//
// A target conflict maps to 409. A mid-rewrite failure is reported in the
// body with ok=false and a 200 status: the move already happened and the
// caller needs the partial result, not an opaque error.
//
//	@Summary		Rename a note and rewrite links pointing at it
//	@Tags			rename
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RenameRequest	true	"Rename to apply"
//	@Success		200		{object}	engine.RenameResult
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/rename [post]
func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Source == "" || req.Target == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("source and target are required"))
		return
	}
	res, err := h.svc.Rename(r.Context(), req.Source, req.Target)
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			writeJSON(w, http.StatusConflict, errorBody("rename target already exists"))
			return
		}
		h.writeEngineError(w, "rename", err)
		return
	}
	// The file moved even when some backlink rewrites failed, so the event
	// fires on every applied rename.
	if h.events != nil {
		h.events.PublishNoteEvent(sse.KindRenamed, req.Target)
	}
	writeJSON(w, http.StatusOK, res)
}

// IndexFile handles POST /api/index/files.
//
//	@Summary		Re-index a single vault file
//	@Tags			index
//	@Accept			json
//	@Param			body	body	IndexFileRequest	true	"File to index"
//	@Success		204		"File indexed"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/index/files [post]
func (h *Handler) IndexFile(w http.ResponseWriter, r *http.Request) {
	var req IndexFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.IndexFile(r.Context(), req.Path); err != nil {
		h.writeEngineError(w, "index file", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveIndexedFile handles DELETE /api/index/files. It drops the index
// record only; the file on disk is left alone.
//
//	@Summary		Remove a file from the index
//	@Tags			index
//	@Accept			json
//	@Param			body	body	IndexFileRequest	true	"File to remove from the index"
//	@Success		204		"Index record removed"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/index/files [delete]
func (h *Handler) RemoveIndexedFile(w http.ResponseWriter, r *http.Request) {
	var req IndexFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.RemoveFromIndex(r.Context(), req.Path); err != nil {
		h.writeEngineError(w, "remove from index", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Rescan handles POST /api/index/scan.
//
//	@Summary		Rebuild the index from the vault directory
//	@Tags			index
//	@Success		202	"Rescan completed"
//	@Security		BearerAuth
//	@Router			/index/scan [post]
func (h *Handler) Rescan(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Rescan(r.Context()); err != nil {
		h.writeEngineError(w, "rescan", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
