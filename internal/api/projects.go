package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/backup"
	"github.com/starford/raido/internal/noteservice"
	"github.com/starford/raido/internal/projectservice"
)

// Handler holds API route handlers.
type Handler struct {
	projects *projectservice.Service
	notes    *noteservice.Service
	backups  *backup.Service
}

// NewHandler creates a new Handler.
func NewHandler(projects *projectservice.Service, notes *noteservice.Service, backups *backup.Service) *Handler {
	return &Handler{projects: projects, notes: notes, backups: backups}
}

// writeServiceError maps service-layer errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrProjectNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("conflict"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListProjects handles GET /projects.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	includeStats := r.URL.Query().Get("includeStats") == "true"
	projects, err := h.projects.List(r.Context(), includeStats)
	if err != nil {
		writeServiceError(w, "list projects", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

// CreateProject handles POST /projects.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	p, err := h.projects.Create(r.Context(), req.Name)
	if err != nil {
		writeServiceError(w, "create project", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// UpdateProject handles PUT /projects/{projectID}.
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var req UpdateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	p, err := h.projects.Update(r.Context(), chi.URLParam(r, "projectID"), req.Name)
	if err != nil {
		writeServiceError(w, "update project", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteProject handles DELETE /projects/{projectID}.
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.projects.Delete(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeServiceError(w, "delete project", err)
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SwitchProject handles POST /projects/{projectID}/switch.
func (h *Handler) SwitchProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.projects.SwitchActive(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeServiceError(w, "switch project", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ActiveProject handles GET /projects/active.
func (h *Handler) ActiveProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.projects.Active(r.Context())
	if err != nil {
		writeServiceError(w, "active project", err)
		return
	}
	if p == nil {
		writeJSON(w, http.StatusOK, map[string]any{"project": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"project": p})
}

// ResetProject handles POST /projects/{projectID}/reset.
func (h *Handler) ResetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.projects.Reset(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeServiceError(w, "reset project", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ReindexProject handles POST /projects/{projectID}/reindex.
func (h *Handler) ReindexProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.projects.Reindex(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeServiceError(w, "reindex project", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// RunBackup handles POST /backup.
func (h *Handler) RunBackup(w http.ResponseWriter, r *http.Request) {
	sum, err := h.backups.Run(r.Context())
	if err != nil {
		writeServiceError(w, "backup", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
