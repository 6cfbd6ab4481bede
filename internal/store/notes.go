package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/cursor"
	"github.com/starford/raido/internal/models"
)

const noteCols = `id, project_id, title, content, excerpt, tags, version, created_at, updated_at`

func encodeTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	raw, _ := json.Marshal(tags)
	return string(raw)
}

func decodeTags(raw string) []string {
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil || tags == nil {
		return []string{}
	}
	return tags
}

func scanNote(row interface{ Scan(...any) error }) (*models.Note, error) {
	var n models.Note
	var tags string
	var created, updated int64
	if err := row.Scan(&n.ID, &n.ProjectID, &n.Title, &n.Content, &n.Excerpt, &tags, &n.Version, &created, &updated); err != nil {
		return nil, err
	}
	n.Tags = decodeTags(tags)
	n.CreatedAt = fromNanos(created)
	n.UpdatedAt = fromNanos(updated)
	return &n, nil
}

// CreateNote inserts a note together with its first version snapshot and
// bumps the owning project's counters, all in one transaction.
func (db *DB) CreateNote(n models.Note, v models.NoteVersion) error {
	return db.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO notes (id, project_id, title, content, excerpt, tags, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, n.ID, n.ProjectID, n.Title, n.Content, n.Excerpt, encodeTags(n.Tags), n.Version,
			toNanos(n.CreatedAt), toNanos(n.UpdatedAt))
		if err != nil {
			return fmt.Errorf("store: insert note: %w", err)
		}
		if err := insertVersion(tx, v); err != nil {
			return err
		}
		_, err = tx.Exec(`
			UPDATE projects SET note_count = note_count + 1, last_indexed_at = ?
			WHERE id = ?
		`, toNanos(n.UpdatedAt), n.ProjectID)
		if err != nil {
			return fmt.Errorf("store: bump note count: %w", err)
		}
		return nil
	})
}

// UpdateNote rewrites a note's mutable fields, appends the snapshot for the
// new version, and refreshes the project's lastIndexedAt. The write lands
// only when the stored version is exactly one below n.Version; a racing
// writer that got there first leaves zero rows affected and the caller gets
// apperr.ErrConflict instead of a duplicate-snapshot constraint failure.
func (db *DB) UpdateNote(n models.Note, v models.NoteVersion) error {
	return db.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE notes SET title = ?, content = ?, excerpt = ?, tags = ?, version = ?, updated_at = ?
			WHERE id = ? AND project_id = ? AND version = ?
		`, n.Title, n.Content, n.Excerpt, encodeTags(n.Tags), n.Version, toNanos(n.UpdatedAt),
			n.ID, n.ProjectID, n.Version-1)
		if err != nil {
			return fmt.Errorf("store: update note: %w", err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			var one int
			err := tx.QueryRow(`SELECT 1 FROM notes WHERE id = ? AND project_id = ?`,
				n.ID, n.ProjectID).Scan(&one)
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("store: recheck note: %w", err)
			}
			return apperr.ErrConflict
		}
		if err := insertVersion(tx, v); err != nil {
			return err
		}
		_, err = tx.Exec(`UPDATE projects SET last_indexed_at = ? WHERE id = ?`,
			toNanos(n.UpdatedAt), n.ProjectID)
		if err != nil {
			return fmt.Errorf("store: touch project: %w", err)
		}
		return nil
	})
}

// DeleteNote removes a note and decrements the owning project's note count
// (floored at zero). With purgeVersions the snapshots are deleted
// explicitly; otherwise the foreign-key cascade removes them with the note.
// The purge runs only after the delete confirmed the note belongs to
// projectID, so a mismatched project never touches another note's history.
func (db *DB) DeleteNote(projectID, noteID string, purgeVersions bool) (bool, error) {
	var deleted bool
	err := db.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM notes WHERE id = ? AND project_id = ?`, noteID, projectID)
		if err != nil {
			return fmt.Errorf("store: delete note: %w", err)
		}
		n, _ := res.RowsAffected()
		deleted = n > 0
		if !deleted {
			return nil
		}
		if purgeVersions {
			if _, err := tx.Exec(`DELETE FROM note_versions WHERE note_id = ?`, noteID); err != nil {
				return fmt.Errorf("store: purge versions: %w", err)
			}
		}
		_, err = tx.Exec(`
			UPDATE projects SET note_count = MAX(note_count - 1, 0) WHERE id = ?
		`, projectID)
		if err != nil {
			return fmt.Errorf("store: drop note count: %w", err)
		}
		return nil
	})
	return deleted, err
}

// GetNote returns a note scoped to its owning project, or apperr.ErrNotFound.
func (db *DB) GetNote(projectID, noteID string) (*models.Note, error) {
	row := db.conn.QueryRow(`SELECT `+noteCols+` FROM notes WHERE id = ? AND project_id = ?`,
		noteID, projectID)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get note: %w", err)
	}
	return n, nil
}

// ListNotesPage returns up to limit notes of a project ordered by
// (updated_at desc, created_at desc, id desc). With a non-nil after key the
// page starts strictly after that key under the same ordering. A non-empty
// search narrows the set to notes whose title, content, or tags contain it
// case-insensitively; the filter is applied before pagination so pages of a
// filtered listing still tile the full filtered set.
func (db *DB) ListNotesPage(projectID string, after *cursor.Key, limit int, search string) ([]models.Note, error) {
	query := `SELECT ` + noteCols + ` FROM notes WHERE project_id = ?`
	args := []any{projectID}

	if search != "" {
		like := "%" + search + "%"
		query += ` AND (title LIKE ? COLLATE NOCASE OR content LIKE ? COLLATE NOCASE OR tags LIKE ? COLLATE NOCASE)`
		args = append(args, like, like, like)
	}

	if after != nil {
		query += ` AND (updated_at < ?
			OR (updated_at = ? AND created_at < ?)
			OR (updated_at = ? AND created_at = ? AND id < ?))`
		u, c := toNanos(after.UpdatedAt), toNanos(after.CreatedAt)
		args = append(args, u, u, c, u, c, after.ID)
	}

	query += ` ORDER BY updated_at DESC, created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list notes: %w", err)
	}
	defer rows.Close()

	out := []models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// SearchCandidates returns notes whose title, content, or tags contain the
// query case-insensitively. A nil projectID searches across all projects.
// Relevance scoring happens in the search package; this only narrows the
// candidate set.
func (db *DB) SearchCandidates(projectID *string, query string) ([]models.Note, error) {
	like := "%" + query + "%"
	sqlQuery := `SELECT ` + noteCols + ` FROM notes
		WHERE (title LIKE ? COLLATE NOCASE OR content LIKE ? COLLATE NOCASE OR tags LIKE ? COLLATE NOCASE)`
	args := []any{like, like, like}
	if projectID != nil {
		sqlQuery += ` AND project_id = ?`
		args = append(args, *projectID)
	}

	rows, err := db.conn.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("store: search candidates: %w", err)
	}
	defer rows.Close()

	out := []models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}
