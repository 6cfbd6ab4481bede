package appstate

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch observes the state file for external modification (another process
// switching the active project) and invokes onChange with the reloaded
// state until ctx is cancelled. Writes made through this File are skipped:
// the code path that saved them already announced the change.
//
// The parent directory is watched rather than the file itself because the
// atomic rename in Save replaces the inode. Bursts of events for one
// rewrite are debounced before reloading.
func (f *File) Watch(ctx context.Context, logger *slog.Logger, onChange func(State)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(f.path)); err != nil {
		return err
	}

	logger.Info("appstate watcher: started", slog.String("path", f.path))

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(200 * time.Millisecond)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("appstate watcher: stopped")
			return nil

		case <-reloadCh:
			s, err := f.Load()
			if err != nil {
				logger.Warn("appstate watcher: reload failed", slog.String("error", err.Error()))
				continue
			}
			if f.savedByUs(s) {
				continue
			}
			if onChange != nil {
				onChange(s)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Name != f.path {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				scheduleReload()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("appstate watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
