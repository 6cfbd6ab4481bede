package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/raido/internal/noteservice"
)

// CreateProjectRequest is the request body for creating a project.
type CreateProjectRequest struct {
	Name string `json:"name"`
}

// Validate validates the request.
func (r CreateProjectRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
	)
}

// UpdateProjectRequest is the request body for renaming a project.
type UpdateProjectRequest struct {
	Name string `json:"name"`
}

// Validate validates the request.
func (r UpdateProjectRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
	)
}

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

// Validate validates the request.
func (r CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required),
	)
}

// UpdateNoteRequest is the request body for updating a note. Nil fields
// mean "unchanged". LastKnownVersion may instead arrive via the If-Match
// header; a body value takes precedence when both are present.
type UpdateNoteRequest struct {
	Title            *string  `json:"title"`
	Content          *string  `json:"content"`
	Tags             []string `json:"tags"`
	Mode             string   `json:"mode"`
	LastKnownVersion *int     `json:"lastKnownVersion"`
}

// Validate validates the request.
func (r UpdateNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Mode, validation.Required,
			validation.In(string(noteservice.ModeFull), string(noteservice.ModePartial))),
	)
}

// ExportRequest is the request body for queueing a note or version export.
type ExportRequest struct {
	Format string `json:"format"`
}

// Validate validates the request.
func (r ExportRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Format, validation.Required, validation.In("md", "pdf", "txt")),
	)
}

// ConflictResponse carries the current server-side note on a stale write
// so the caller can re-render without another round trip.
type ConflictResponse struct {
	Error   string `json:"error"`
	Current any    `json:"current"`
}
