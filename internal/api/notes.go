package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/noteservice"
	"github.com/starford/raido/internal/search"
)

// ListNotes handles GET /projects/{projectID}/notes.
// Query parameters: cursor (opaque token), limit, search.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	page, err := h.notes.List(r.Context(), chi.URLParam(r, "projectID"),
		q.Get("cursor"), limit, q.Get("search"))
	if err != nil {
		writeServiceError(w, "list notes", err)
		return
	}
	resp := map[string]any{"items": page.Items, "nextCursor": nil}
	if page.NextCursor != "" {
		resp["nextCursor"] = page.NextCursor
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetNote handles GET /projects/{projectID}/notes/{noteID}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	n, err := h.notes.Get(r.Context(), chi.URLParam(r, "projectID"), chi.URLParam(r, "noteID"))
	if err != nil {
		writeServiceError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// CreateNote handles POST /projects/{projectID}/notes.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	n, err := h.notes.Create(r.Context(), chi.URLParam(r, "projectID"), req.Title, req.Content, req.Tags)
	if err != nil {
		writeServiceError(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// ifMatchVersion extracts an optimistic-concurrency hint from the If-Match
// header. Surrounding quotes are stripped (standard ETag format).
func ifMatchVersion(r *http.Request) *int {
	raw := strings.Trim(r.Header.Get("If-Match"), `"`)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &v
}

// UpdateNote handles PUT /projects/{projectID}/notes/{noteID}.
//
// The version hint may arrive as lastKnownVersion in the body or as an
// If-Match header; the body value wins when both are present.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	lastKnown := req.LastKnownVersion
	if lastKnown == nil {
		lastKnown = ifMatchVersion(r)
	}

	result, err := h.notes.Update(r.Context(), chi.URLParam(r, "projectID"), chi.URLParam(r, "noteID"),
		noteservice.UpdateInput{
			Title:            req.Title,
			Content:          req.Content,
			Tags:             req.Tags,
			Mode:             noteservice.UpdateMode(req.Mode),
			LastKnownVersion: lastKnown,
		})
	if err != nil {
		writeServiceError(w, "update note", err)
		return
	}

	switch res := result.(type) {
	case noteservice.Updated:
		writeJSON(w, http.StatusOK, res.Note)
	case noteservice.Conflict:
		writeJSON(w, http.StatusConflict, ConflictResponse{
			Error:   "version conflict",
			Current: res.Current,
		})
	case noteservice.NotFound:
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case noteservice.InvalidRequest:
		writeJSON(w, http.StatusBadRequest, errorBody(res.Reason))
	}
}

// DeleteNote handles DELETE /projects/{projectID}/notes/{noteID}.
// The purgeVersions query flag explicitly removes the note's snapshots.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	purge := r.URL.Query().Get("purgeVersions") == "true"
	deleted, err := h.notes.Delete(r.Context(), chi.URLParam(r, "projectID"), chi.URLParam(r, "noteID"), purge)
	if err != nil {
		writeServiceError(w, "delete note", err)
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /search. Scope to one project with projectId;
// mode selects keyword (default) or the semantic stub.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	mode := search.ModeKeyword
	if r.URL.Query().Get("mode") == string(search.ModeSemantic) {
		mode = search.ModeSemantic
	}

	var projectID *string
	if pid := r.URL.Query().Get("projectId"); pid != "" {
		projectID = &pid
	}

	results, err := h.notes.Search(r.Context(), projectID, q, mode, limit)
	if err != nil {
		writeServiceError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// ListVersions handles GET /projects/{projectID}/notes/{noteID}/versions.
func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	versions, err := h.notes.ListVersions(r.Context(), chi.URLParam(r, "projectID"), chi.URLParam(r, "noteID"), limit)
	if err != nil {
		writeServiceError(w, "list versions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

// GetVersion handles GET /projects/{projectID}/notes/{noteID}/versions/{versionID}.
func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	v, err := h.notes.GetVersion(r.Context(), chi.URLParam(r, "projectID"),
		chi.URLParam(r, "noteID"), chi.URLParam(r, "versionID"))
	if err != nil {
		writeServiceError(w, "get version", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// RestoreVersion handles POST /projects/{projectID}/notes/{noteID}/versions/{versionID}/restore.
func (h *Handler) RestoreVersion(w http.ResponseWriter, r *http.Request) {
	n, err := h.notes.RestoreVersion(r.Context(), chi.URLParam(r, "projectID"),
		chi.URLParam(r, "noteID"), chi.URLParam(r, "versionID"))
	if err != nil {
		writeServiceError(w, "restore version", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// ExportNote handles POST /projects/{projectID}/notes/{noteID}/export.
func (h *Handler) ExportNote(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err := h.notes.QueueExport(r.Context(), chi.URLParam(r, "projectID"),
		chi.URLParam(r, "noteID"), req.Format); err != nil {
		writeServiceError(w, "queue export", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ExportVersion handles POST /projects/{projectID}/notes/{noteID}/versions/{versionID}/export.
func (h *Handler) ExportVersion(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err := h.notes.QueueVersionExport(r.Context(), chi.URLParam(r, "projectID"),
		chi.URLParam(r, "noteID"), chi.URLParam(r, "versionID"), req.Format); err != nil {
		writeServiceError(w, "queue version export", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
