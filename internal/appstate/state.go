// Package appstate persists the process-wide active-project pointer so it
// survives restarts. The pointer is the only piece of global state in the
// system; it lives in a small JSON file written atomically.
package appstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// State is the persisted shape of the file.
type State struct {
	ActiveProjectID string `json:"activeProjectId,omitempty"`
}

// File stores State on disk with atomic replace semantics.
type File struct {
	path string

	mu        sync.Mutex
	lastSaved *State
}

// NewFile creates a state file handle. The file itself is created lazily
// on first Save.
func NewFile(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("appstate: resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("appstate: create dir: %w", err)
	}
	return &File{path: abs}, nil
}

// Path returns the absolute location of the state file.
func (f *File) Path() string { return f.path }

// Load reads the current state. A missing file yields the zero state.
func (f *File) Load() (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("appstate: read: %w", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("appstate: parse: %w", err)
	}
	return s, nil
}

// Save atomically replaces the state file: tmp file, fsync, rename.
func (f *File) Save(s State) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("appstate: marshal: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".raido-state-*")
	if err != nil {
		return fmt.Errorf("appstate: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("appstate: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("appstate: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("appstate: close temp: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("appstate: rename: %w", err)
	}
	success = true
	f.lastSaved = &s
	return nil
}

// savedByUs reports whether s matches the most recent in-process Save. The
// watcher uses this to tell our own writes apart from external ones.
func (f *File) savedByUs(s State) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSaved != nil && *f.lastSaved == s
}

// Clear resets the pointer. The file remains with zero state so watchers
// still observe the change.
func (f *File) Clear() error {
	return f.Save(State{})
}
