package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/models"
)

const projectCols = `id, name, note_count, last_indexed_at, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (*models.Project, error) {
	var p models.Project
	var lastIndexed sql.NullInt64
	var created, updated int64
	if err := row.Scan(&p.ID, &p.Name, &p.NoteCount, &lastIndexed, &created, &updated); err != nil {
		return nil, err
	}
	p.LastIndexedAt = fromNullNanos(lastIndexed)
	p.CreatedAt = fromNanos(created)
	p.UpdatedAt = fromNanos(updated)
	return &p, nil
}

// InsertProject persists a new project.
func (db *DB) InsertProject(p models.Project) error {
	return db.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO projects (id, name, note_count, created_at, updated_at)
			VALUES (?, ?, 0, ?, ?)
		`, p.ID, p.Name, toNanos(p.CreatedAt), toNanos(p.UpdatedAt))
		if err != nil {
			return fmt.Errorf("store: insert project: %w", err)
		}
		return nil
	})
}

// GetProject returns a project by id, or apperr.ErrNotFound.
func (db *DB) GetProject(id string) (*models.Project, error) {
	row := db.conn.QueryRow(`SELECT `+projectCols+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get project: %w", err)
	}
	return p, nil
}

// ListProjects returns all projects ordered by name ascending.
func (db *DB) ListProjects() ([]models.Project, error) {
	rows, err := db.conn.Query(`SELECT ` + projectCols + ` FROM projects ORDER BY name COLLATE NOCASE ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list projects: %w", err)
	}
	defer rows.Close()

	out := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// RenameProject updates a project's name. Returns apperr.ErrNotFound when
// no project has the given id.
func (db *DB) RenameProject(id, name string, updatedAt int64) error {
	return db.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE projects SET name = ?, updated_at = ? WHERE id = ?`, name, updatedAt, id)
		if err != nil {
			return fmt.Errorf("store: rename project: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return apperr.ErrNotFound
		}
		return nil
	})
}

// DeleteProject removes a project; owned notes and their versions go with
// it via cascade. Returns false when the project did not exist.
func (db *DB) DeleteProject(id string) (bool, error) {
	var deleted bool
	err := db.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM projects WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("store: delete project: %w", err)
		}
		n, _ := res.RowsAffected()
		deleted = n > 0
		return nil
	})
	return deleted, err
}

// ResetProject deletes all notes owned by the project (versions cascade),
// zeroes the note count, and clears lastIndexedAt. The project row itself
// survives. Returns apperr.ErrNotFound for an unknown project.
func (db *DB) ResetProject(id string, updatedAt int64) error {
	return db.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE projects SET note_count = 0, last_indexed_at = NULL, updated_at = ?
			WHERE id = ?
		`, updatedAt, id)
		if err != nil {
			return fmt.Errorf("store: reset project: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return apperr.ErrNotFound
		}
		if _, err := tx.Exec(`DELETE FROM notes WHERE project_id = ?`, id); err != nil {
			return fmt.Errorf("store: reset delete notes: %w", err)
		}
		return nil
	})
}

// ProjectStats computes derived aggregates for a project's notes.
func (db *DB) ProjectStats(id string) (*models.ProjectStats, error) {
	var stats models.ProjectStats
	var avg sql.NullFloat64
	var latest sql.NullInt64

	err := db.conn.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM note_versions v JOIN notes n ON n.id = v.note_id WHERE n.project_id = ?),
			COALESCE(AVG(LENGTH(content)), 0),
			MAX(updated_at)
		FROM notes WHERE project_id = ?
	`, id, id).Scan(&stats.VersionCount, &avg, &latest)
	if err != nil {
		return nil, fmt.Errorf("store: project stats: %w", err)
	}
	stats.AvgNoteLength = avg.Float64
	stats.LatestNoteUpdate = fromNullNanos(latest)

	tags, err := db.uniqueTagCount(id)
	if err != nil {
		return nil, err
	}
	stats.UniqueTagCount = tags
	return &stats, nil
}

// uniqueTagCount decodes the per-note tag lists and counts distinct tags.
func (db *DB) uniqueTagCount(projectID string) (int, error) {
	rows, err := db.conn.Query(`SELECT tags FROM notes WHERE project_id = ?`, projectID)
	if err != nil {
		return 0, fmt.Errorf("store: tag count: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return 0, err
		}
		for _, tag := range decodeTags(raw) {
			seen[tag] = struct{}{}
		}
	}
	return len(seen), rows.Err()
}

// RecountProject recomputes the denormalized note count and lastIndexedAt
// from the live notes. Returns the refreshed project.
func (db *DB) RecountProject(id string) (*models.Project, error) {
	err := db.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE projects SET
				note_count      = (SELECT COUNT(*) FROM notes WHERE project_id = projects.id),
				last_indexed_at = (SELECT MAX(updated_at) FROM notes WHERE project_id = projects.id)
			WHERE id = ?
		`, id)
		if err != nil {
			return fmt.Errorf("store: recount project: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return apperr.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return db.GetProject(id)
}
