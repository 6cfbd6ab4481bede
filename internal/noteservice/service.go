// Package noteservice implements note CRUD with optimistic concurrency,
// cursor pagination, keyword search, and the append-only version history.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/cursor"
	"github.com/starford/raido/internal/events"
	"github.com/starford/raido/internal/excerpt"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/search"
	"github.com/starford/raido/internal/store"
)

const (
	// MaxPageSize bounds list page sizes; requests are clamped to [1, 200].
	MaxPageSize     = 200
	defaultPageSize = 50
)

// Service coordinates the note store, version snapshots, and event
// publication. Events are published after the transaction commits and are
// fire-and-forget: a slow or disconnected subscriber never affects the
// mutating caller.
type Service struct {
	db  *store.DB
	pub events.Publisher
}

// NewService creates a note service publishing to pub.
func NewService(db *store.DB, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Discard{}
	}
	return &Service{db: db, pub: pub}
}

// Page is one cursor page of notes. NextCursor is empty on the final page.
type Page struct {
	Items      []models.Note `json:"items"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

// List returns one page of a project's notes ordered by
// (updatedAt desc, createdAt desc, id desc). An empty cursorToken starts
// from the beginning; otherwise the page begins strictly after the token's
// sort key. Successive pages are disjoint and tile the full filtered set.
func (s *Service) List(_ context.Context, projectID, cursorToken string, limit int, searchFilter string) (*Page, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	var after *cursor.Key
	if cursorToken != "" {
		key, err := cursor.Decode(cursorToken)
		if err != nil {
			return nil, fmt.Errorf("%w: bad cursor", apperr.ErrInvalidRequest)
		}
		after = &key
	}

	// Fetch one extra row to learn whether another page exists.
	rows, err := s.db.ListNotesPage(projectID, after, limit+1, searchFilter)
	if err != nil {
		return nil, err
	}

	page := &Page{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		last := page.Items[len(page.Items)-1]
		page.NextCursor = cursor.Encode(cursor.Key{
			UpdatedAt: last.UpdatedAt,
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}

// Get returns a note scoped to its owning project.
func (s *Service) Get(_ context.Context, projectID, noteID string) (*models.Note, error) {
	return s.db.GetNote(projectID, noteID)
}

// Create inserts a note at version 1, snapshots it, and emits note.created.
func (s *Service) Create(_ context.Context, projectID, title, content string, tags []string) (*models.Note, error) {
	if _, err := s.db.GetProject(projectID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrProjectNotFound
		}
		return nil, err
	}

	now := time.Now().UTC()
	if tags == nil {
		tags = []string{}
	}
	n := models.Note{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Title:     title,
		Content:   content,
		Excerpt:   excerpt.Generate(content),
		Tags:      tags,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.CreateNote(n, snapshot(n, now)); err != nil {
		return nil, err
	}

	s.pub.Publish(events.New(events.NoteCreated, n))
	return &n, nil
}

// UpdateMode selects which fields an update must carry.
type UpdateMode string

const (
	// ModeFull replaces title and content; both are required.
	ModeFull UpdateMode = "full"
	// ModePartial patches any subset; at least one field is required.
	ModePartial UpdateMode = "partial"
)

// UpdateInput carries an update request. Nil pointers mean "unchanged";
// a nil Tags slice leaves tags untouched.
type UpdateInput struct {
	Title            *string
	Content          *string
	Tags             []string
	Mode             UpdateMode
	LastKnownVersion *int
}

// UpdateResult is the sum type of update outcomes. Conflict and NotFound
// are expected, frequent results, not faults; callers must switch on the
// concrete type.
type UpdateResult interface{ updateResult() }

// Updated carries the resulting note. For a no-op write (all resolved
// fields identical to the stored ones) Note is the unmodified note and no
// new version exists.
type Updated struct{ Note *models.Note }

// Conflict carries the current server-side note so the caller can
// re-render without another round trip.
type Conflict struct{ Current *models.Note }

// NotFound reports that the note does not exist in the project.
type NotFound struct{}

// InvalidRequest reports missing required fields for the chosen mode.
type InvalidRequest struct{ Reason string }

func (Updated) updateResult()        {}
func (Conflict) updateResult()       {}
func (NotFound) updateResult()       {}
func (InvalidRequest) updateResult() {}

// Update applies an optimistic-concurrency update.
//
// The version check runs before any field validation: a stale
// LastKnownVersion always yields Conflict with the unmodified current note,
// regardless of what fields were requested. A write whose resolved fields
// equal the stored ones succeeds without bumping the version or creating a
// snapshot.
func (s *Service) Update(_ context.Context, projectID, noteID string, in UpdateInput) (UpdateResult, error) {
	current, err := s.db.GetNote(projectID, noteID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return NotFound{}, nil
		}
		return nil, err
	}

	if in.LastKnownVersion != nil && *in.LastKnownVersion != current.Version {
		return Conflict{Current: current}, nil
	}

	switch in.Mode {
	case ModeFull:
		if in.Title == nil || in.Content == nil {
			return InvalidRequest{Reason: "full update requires title and content"}, nil
		}
	case ModePartial:
		if in.Title == nil && in.Content == nil && in.Tags == nil {
			return InvalidRequest{Reason: "partial update requires at least one field"}, nil
		}
	default:
		return InvalidRequest{Reason: "unknown update mode"}, nil
	}

	next := *current
	changed := false
	if in.Title != nil && *in.Title != current.Title {
		next.Title = *in.Title
		changed = true
	}
	if in.Content != nil && *in.Content != current.Content {
		next.Content = *in.Content
		changed = true
	}
	if in.Tags != nil && !slices.Equal(in.Tags, current.Tags) {
		next.Tags = in.Tags
		changed = true
	}

	if !changed {
		// Idempotent no-op write: same note, same version, no snapshot.
		return Updated{Note: current}, nil
	}

	now := time.Now().UTC()
	next.Excerpt = excerpt.Generate(next.Content)
	next.Version = current.Version + 1
	next.UpdatedAt = now

	if err := s.db.UpdateNote(next, snapshot(next, now)); err != nil {
		// The store re-verifies the version inside the write transaction, so
		// a writer that raced past our read surfaces here rather than as a
		// constraint failure.
		if errors.Is(err, apperr.ErrConflict) {
			latest, getErr := s.db.GetNote(projectID, noteID)
			if getErr != nil {
				if errors.Is(getErr, apperr.ErrNotFound) {
					return NotFound{}, nil
				}
				return nil, getErr
			}
			return Conflict{Current: latest}, nil
		}
		if errors.Is(err, apperr.ErrNotFound) {
			return NotFound{}, nil
		}
		return nil, err
	}

	s.pub.Publish(events.New(events.NoteUpdated, next))
	return Updated{Note: &next}, nil
}

// Delete removes a note. With purgeVersions its snapshots are deleted
// explicitly; otherwise the cascade takes them with the note. Returns
// false when the note did not exist.
func (s *Service) Delete(_ context.Context, projectID, noteID string, purgeVersions bool) (bool, error) {
	deleted, err := s.db.DeleteNote(projectID, noteID, purgeVersions)
	if err != nil || !deleted {
		return deleted, err
	}
	s.pub.Publish(events.New(events.NoteDeleted, map[string]string{
		"noteId":    noteID,
		"projectId": projectID,
	}))
	return true, nil
}

// Search scores notes against a keyword query. A nil projectID searches
// across all projects.
func (s *Service) Search(_ context.Context, projectID *string, query string, mode search.Mode, limit int) ([]models.SearchResult, error) {
	candidates, err := s.db.SearchCandidates(projectID, query)
	if err != nil {
		return nil, err
	}
	return search.Rank(candidates, query, mode, limit), nil
}

// ListVersions returns a note's snapshots newest first.
func (s *Service) ListVersions(_ context.Context, projectID, noteID string, limit int) ([]models.NoteVersionSummary, error) {
	if _, err := s.db.GetNote(projectID, noteID); err != nil {
		return nil, err
	}
	return s.db.ListVersions(noteID, limit)
}

// GetVersion returns one full snapshot including content.
func (s *Service) GetVersion(_ context.Context, projectID, noteID, versionID string) (*models.NoteVersion, error) {
	if _, err := s.db.GetNote(projectID, noteID); err != nil {
		return nil, err
	}
	return s.db.GetVersion(noteID, versionID)
}

// RestoreVersion copies a snapshot's title, content, and excerpt onto the
// live note and bumps its version by one. The restore itself is versioned:
// a new snapshot is appended, the counter never rewinds.
func (s *Service) RestoreVersion(_ context.Context, projectID, noteID, versionID string) (*models.Note, error) {
	current, err := s.db.GetNote(projectID, noteID)
	if err != nil {
		return nil, err
	}
	v, err := s.db.GetVersion(noteID, versionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	next := *current
	next.Title = v.Title
	next.Content = v.Content
	next.Excerpt = v.Excerpt
	next.Version = current.Version + 1
	next.UpdatedAt = now

	if err := s.db.UpdateNote(next, snapshot(next, now)); err != nil {
		return nil, err
	}

	s.pub.Publish(events.New(events.NoteVersionRestored, map[string]any{
		"noteId":    noteID,
		"projectId": projectID,
		"versionId": versionID,
		"version":   next.Version,
	}))
	return &next, nil
}

// QueueExport records an export request for a note and notifies clients.
// The export itself is performed by an external collaborator.
func (s *Service) QueueExport(_ context.Context, projectID, noteID, format string) error {
	if _, err := s.db.GetNote(projectID, noteID); err != nil {
		return err
	}
	s.pub.Publish(events.New(events.NoteExportQueued, map[string]string{
		"noteId":    noteID,
		"projectId": projectID,
		"format":    format,
	}))
	return nil
}

// QueueVersionExport records an export request for a single snapshot.
func (s *Service) QueueVersionExport(ctx context.Context, projectID, noteID, versionID, format string) error {
	if _, err := s.GetVersion(ctx, projectID, noteID, versionID); err != nil {
		return err
	}
	s.pub.Publish(events.New(events.VersionExportQueued, map[string]string{
		"noteId":    noteID,
		"projectId": projectID,
		"versionId": versionID,
		"format":    format,
	}))
	return nil
}

// snapshot builds the immutable version row for the note's current state.
func snapshot(n models.Note, at time.Time) models.NoteVersion {
	return models.NoteVersion{
		ID:        uuid.NewString(),
		NoteID:    n.ID,
		Title:     n.Title,
		Content:   n.Content,
		Excerpt:   n.Excerpt,
		Version:   n.Version,
		CreatedAt: at,
	}
}
