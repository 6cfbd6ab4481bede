package internal

import "github.com/starford/raido/internal/backup"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config   *Config
	archiver backup.Archiver
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithArchiver sets the backup archiver. Without one, backup runs succeed
// trivially with zero archived projects.
func WithArchiver(ar backup.Archiver) Option {
	return func(a *application) {
		a.archiver = ar
	}
}
