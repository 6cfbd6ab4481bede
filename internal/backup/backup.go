// Package backup coordinates backup runs over an external archiver.
// Producing the actual archive (zip layout, destination handling) is the
// collaborator's concern; this package only drives the batch and reports
// the outcome.
package backup

import (
	"context"
	"log/slog"

	"github.com/starford/raido/internal/events"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/store"
)

// Archiver writes one project's data to the backup destination.
type Archiver interface {
	Archive(ctx context.Context, project models.Project) error
}

// Summary reports one backup run.
type Summary struct {
	Archived int `json:"archived"`
	Failed   int `json:"failed"`
}

// Service runs backups across all projects.
type Service struct {
	db       *store.DB
	archiver Archiver
	pub      events.Publisher
	logger   *slog.Logger
}

// NewService creates a backup service. archiver may be nil, in which case
// runs succeed trivially with zero archived projects.
func NewService(db *store.DB, archiver Archiver, pub events.Publisher, logger *slog.Logger) *Service {
	if pub == nil {
		pub = events.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, archiver: archiver, pub: pub, logger: logger}
}

// Run archives every project. Each project is attempted independently: one
// failure is logged and counted, never aborting the rest of the batch. A
// backup.completed event with the summary is emitted afterwards.
func (s *Service) Run(ctx context.Context) (Summary, error) {
	projects, err := s.db.ListProjects()
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	if s.archiver != nil {
		for _, p := range projects {
			if err := s.archiver.Archive(ctx, p); err != nil {
				sum.Failed++
				s.logger.Warn("backup: archive failed",
					slog.String("project_id", p.ID),
					slog.String("error", err.Error()))
				continue
			}
			sum.Archived++
		}
	}

	s.pub.Publish(events.New(events.BackupCompleted, sum))
	return sum, nil
}
