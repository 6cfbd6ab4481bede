package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/models"
)

// insertVersion appends an immutable snapshot inside an existing write
// transaction. Versions are only ever created alongside a note mutation,
// never committed independently.
func insertVersion(tx *sql.Tx, v models.NoteVersion) error {
	_, err := tx.Exec(`
		INSERT INTO note_versions (id, note_id, title, content, excerpt, version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, v.ID, v.NoteID, v.Title, v.Content, v.Excerpt, v.Version, toNanos(v.CreatedAt))
	if err != nil {
		return fmt.Errorf("store: insert version: %w", err)
	}
	return nil
}

// ListVersions returns up to limit snapshots of a note, newest first by
// created_at with version number as tiebreak.
func (db *DB) ListVersions(noteID string, limit int) ([]models.NoteVersionSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(`
		SELECT id, note_id, title, excerpt, version, created_at
		FROM note_versions
		WHERE note_id = ?
		ORDER BY created_at DESC, version DESC
		LIMIT ?
	`, noteID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list versions: %w", err)
	}
	defer rows.Close()

	out := []models.NoteVersionSummary{}
	for rows.Next() {
		var v models.NoteVersionSummary
		var created int64
		if err := rows.Scan(&v.ID, &v.NoteID, &v.Title, &v.Excerpt, &v.Version, &created); err != nil {
			return nil, err
		}
		v.CreatedAt = fromNanos(created)
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetVersion returns a full snapshot including content, scoped to its note.
func (db *DB) GetVersion(noteID, versionID string) (*models.NoteVersion, error) {
	var v models.NoteVersion
	var created int64
	err := db.conn.QueryRow(`
		SELECT id, note_id, title, content, excerpt, version, created_at
		FROM note_versions
		WHERE id = ? AND note_id = ?
	`, versionID, noteID).Scan(&v.ID, &v.NoteID, &v.Title, &v.Content, &v.Excerpt, &v.Version, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get version: %w", err)
	}
	v.CreatedAt = fromNanos(created)
	return &v, nil
}

// CountVersions returns the number of stored snapshots for a note.
func (db *DB) CountVersions(noteID string) (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM note_versions WHERE note_id = ?`, noteID).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count versions: %w", err)
	}
	return n, nil
}
