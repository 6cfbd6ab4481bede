package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Projects.
	r.Get("/projects", h.ListProjects)
	r.Post("/projects", h.CreateProject)
	r.Get("/projects/active", h.ActiveProject)
	r.Put("/projects/{projectID}", h.UpdateProject)
	r.Delete("/projects/{projectID}", h.DeleteProject)
	r.Post("/projects/{projectID}/switch", h.SwitchProject)
	r.Post("/projects/{projectID}/reset", h.ResetProject)
	r.Post("/projects/{projectID}/reindex", h.ReindexProject)

	// Notes.
	r.Get("/projects/{projectID}/notes", h.ListNotes)
	r.Post("/projects/{projectID}/notes", h.CreateNote)
	r.Get("/projects/{projectID}/notes/{noteID}", h.GetNote)
	r.Put("/projects/{projectID}/notes/{noteID}", h.UpdateNote)
	r.Delete("/projects/{projectID}/notes/{noteID}", h.DeleteNote)
	r.Post("/projects/{projectID}/notes/{noteID}/export", h.ExportNote)

	// Version history.
	r.Get("/projects/{projectID}/notes/{noteID}/versions", h.ListVersions)
	r.Get("/projects/{projectID}/notes/{noteID}/versions/{versionID}", h.GetVersion)
	r.Post("/projects/{projectID}/notes/{noteID}/versions/{versionID}/restore", h.RestoreVersion)
	r.Post("/projects/{projectID}/notes/{noteID}/versions/{versionID}/export", h.ExportVersion)

	// Search.
	r.Get("/search", h.Search)

	// Backup.
	r.Post("/backup", h.RunBackup)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
