// Package projectservice implements project CRUD, the persisted
// active-project pointer, and the cascading reset/delete operations.
package projectservice

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/appstate"
	"github.com/starford/raido/internal/events"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/store"
)

// Service coordinates project mutations with the persisted active-project
// pointer and event publication.
type Service struct {
	db    *store.DB
	state *appstate.File
	pub   events.Publisher
}

// NewService creates a project service.
func NewService(db *store.DB, state *appstate.File, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Discard{}
	}
	return &Service{db: db, state: state, pub: pub}
}

// List returns all projects sorted by name ascending. With includeStats
// each project carries its derived aggregates.
func (s *Service) List(_ context.Context, includeStats bool) ([]models.Project, error) {
	projects, err := s.db.ListProjects()
	if err != nil {
		return nil, err
	}
	if includeStats {
		for i := range projects {
			stats, err := s.db.ProjectStats(projects[i].ID)
			if err != nil {
				return nil, err
			}
			projects[i].Stats = stats
		}
	}
	return projects, nil
}

// Get returns a single project.
func (s *Service) Get(_ context.Context, id string) (*models.Project, error) {
	return s.db.GetProject(id)
}

// Create inserts a new empty project. The name is trimmed of surrounding
// whitespace; an empty result is invalid.
func (s *Service) Create(_ context.Context, name string) (*models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.ErrInvalidRequest
	}

	now := time.Now().UTC()
	p := models.Project{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.InsertProject(p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Update renames a project.
func (s *Service) Update(_ context.Context, id, name string) (*models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.ErrInvalidRequest
	}
	if err := s.db.RenameProject(id, name, time.Now().UTC().UnixNano()); err != nil {
		return nil, err
	}
	return s.db.GetProject(id)
}

// Delete removes a project and everything it owns. If the active pointer
// referenced the project it is cleared so clients do not resurrect a dead
// id. Returns false when the project did not exist.
func (s *Service) Delete(_ context.Context, id string) (bool, error) {
	deleted, err := s.db.DeleteProject(id)
	if err != nil || !deleted {
		return deleted, err
	}

	if st, loadErr := s.state.Load(); loadErr == nil && st.ActiveProjectID == id {
		if clearErr := s.state.Clear(); clearErr != nil {
			// The project is already gone; a stale pointer is repaired on
			// the next switch.
			return true, nil
		}
	}

	s.pub.Publish(events.New(events.ProjectDeleted, map[string]string{"projectId": id}))
	return true, nil
}

// SwitchActive marks a project as the process-wide active one and persists
// the pointer so it survives restarts.
func (s *Service) SwitchActive(_ context.Context, id string) (*models.Project, error) {
	p, err := s.db.GetProject(id)
	if err != nil {
		return nil, err
	}
	if err := s.state.Save(appstate.State{ActiveProjectID: id}); err != nil {
		return nil, err
	}
	s.pub.Publish(events.New(events.ProjectSwitched, map[string]string{"projectId": id}))
	return p, nil
}

// Active returns the currently active project, or nil when none is set or
// the pointer references a project that no longer exists.
func (s *Service) Active(_ context.Context) (*models.Project, error) {
	st, err := s.state.Load()
	if err != nil {
		return nil, err
	}
	if st.ActiveProjectID == "" {
		return nil, nil
	}
	p, err := s.db.GetProject(st.ActiveProjectID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	return p, err
}

// Reset deletes all notes and versions owned by the project while keeping
// the project itself, zeroing its counters.
func (s *Service) Reset(_ context.Context, id string) (*models.Project, error) {
	if err := s.db.ResetProject(id, time.Now().UTC().UnixNano()); err != nil {
		return nil, err
	}
	s.pub.Publish(events.New(events.ProjectReset, map[string]string{"projectId": id}))
	return s.db.GetProject(id)
}

// Reindex recomputes the denormalized note count and lastIndexedAt from the
// live notes and notifies clients that the index job finished.
func (s *Service) Reindex(_ context.Context, id string) (*models.Project, error) {
	p, err := s.db.RecountProject(id)
	if err != nil {
		return nil, err
	}
	s.pub.Publish(events.New(events.IndexJobCompleted, map[string]any{
		"projectId": id,
		"noteCount": p.NoteCount,
	}))
	return p, nil
}
