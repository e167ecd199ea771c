package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/halden/vaultd/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group;
// events, if non-nil, receives rename notifications (the broker serves both
// roles). vaultRoot is used to resolve the attachments directory.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler, events EventPublisher, vaultRoot string) chi.Router {
	h := NewHandler(svc, events)
	ah := NewAttachmentHandler(vaultRoot)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/*", h.GetNote)
	r.Put("/notes/*", h.UpdateNote)
	r.Delete("/notes/*", h.DeleteNote)

	// Search and navigation.
	r.Get("/search", h.Search)
	r.Get("/quickswitch", h.QuickSwitch)
	r.Get("/outline", h.Outline)

	// Links and graph.
	r.Get("/backlinks", h.Backlinks)
	r.Get("/resolve", h.Resolve)
	r.Get("/graph", h.Graph)
	r.Get("/graph/local", h.LocalGraph)

	// Tags.
	r.Get("/tags", h.Tags)
	r.Get("/tags/{tag}", h.TagNotes)

	// Rename.
	r.Post("/rename/preview", h.RenamePreview)
	r.Post("/rename", h.Rename)

	// Index maintenance.
	r.Post("/index/scan", h.Rescan)
	r.Post("/index/files", h.IndexFile)
	r.Delete("/index/files", h.RemoveIndexedFile)

	// Attachments upload (auth-protected).
	r.Post("/attachments", ah.Upload)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
