// Package models defines the domain types for Raido.
package models

import "time"

// Project is a top-level container that owns notes.
type Project struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	NoteCount     int           `json:"noteCount"`
	LastIndexedAt *time.Time    `json:"lastIndexedAt,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
	Stats         *ProjectStats `json:"stats,omitempty"`
}

// ProjectStats holds derived aggregates over a project's notes.
// Never stored; computed on demand.
type ProjectStats struct {
	VersionCount     int        `json:"versionCount"`
	UniqueTagCount   int        `json:"uniqueTagCount"`
	AvgNoteLength    float64    `json:"avgNoteLength"`
	LatestNoteUpdate *time.Time `json:"latestNoteUpdate,omitempty"`
}

// Note is a titled, taggable document with a monotonic version history.
// Tags are an ordered list and are not deduplicated by the store.
type Note struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Excerpt   string    `json:"excerpt"`
	Tags      []string  `json:"tags"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NoteVersion is an immutable snapshot of a note at a past version number.
type NoteVersion struct {
	ID        string    `json:"id"`
	NoteID    string    `json:"noteId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Excerpt   string    `json:"excerpt"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
}

// NoteVersionSummary is a lightweight version listing item without content.
type NoteVersionSummary struct {
	ID        string    `json:"id"`
	NoteID    string    `json:"noteId"`
	Title     string    `json:"title"`
	Excerpt   string    `json:"excerpt"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
}

// SearchResult is a scored search hit.
type SearchResult struct {
	Note    Note    `json:"note"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet"`
}
