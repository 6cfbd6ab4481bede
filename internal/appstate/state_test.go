package appstate

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func stateFile(t *testing.T) *File {
	t.Helper()
	f, err := NewFile(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestLoadMissingFileIsZeroState(t *testing.T) {
	f := stateFile(t)
	s, err := f.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.ActiveProjectID != "" {
		t.Errorf("state = %+v, want zero", s)
	}
}

func TestSaveLoadClearRoundTrip(t *testing.T) {
	f := stateFile(t)

	if err := f.Save(State{ActiveProjectID: "p1"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	s, err := f.Load()
	if err != nil {
		t.Fatal(err)
	}
	if s.ActiveProjectID != "p1" {
		t.Errorf("loaded = %+v", s)
	}

	if err := f.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	s, _ = f.Load()
	if s.ActiveProjectID != "" {
		t.Errorf("state after clear = %+v", s)
	}
}

func TestWatchSeesExternalChange(t *testing.T) {
	f := stateFile(t)
	if err := f.Save(State{ActiveProjectID: "old"}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan State, 4)
	done := make(chan struct{})
	go func() {
		_ = f.Watch(ctx, slog.Default(), func(s State) { changed <- s })
		close(done)
	}()

	// Let the watcher register before mutating.
	time.Sleep(100 * time.Millisecond)

	// Simulate another process rewriting the file.
	other, err := NewFile(f.Path())
	if err != nil {
		t.Fatal(err)
	}
	if err := other.Save(State{ActiveProjectID: "new"}); err != nil {
		t.Fatal(err)
	}

	select {
	case s := <-changed:
		if s.ActiveProjectID != "new" {
			t.Errorf("observed state = %+v", s)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher never observed the change")
	}

	cancel()
	<-done
}

func TestWatchSkipsOwnWrites(t *testing.T) {
	f := stateFile(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan State, 4)
	done := make(chan struct{})
	go func() {
		_ = f.Watch(ctx, slog.Default(), func(s State) { changed <- s })
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)

	// A write through the same File was already announced by its caller and
	// must not come back through the watcher.
	if err := f.Save(State{ActiveProjectID: "mine"}); err != nil {
		t.Fatal(err)
	}

	select {
	case s := <-changed:
		t.Errorf("watcher echoed our own write: %+v", s)
	case <-time.After(600 * time.Millisecond):
	}

	cancel()
	<-done
}
