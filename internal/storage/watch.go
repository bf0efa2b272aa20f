package storage

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc is called after the backing file was changed by someone else.
type ReloadFunc func(ctx context.Context) error

const reloadDebounce = 200 * time.Millisecond

// Watch observes the directory holding f and calls reload whenever the file
// is replaced or rewritten by another process, until ctx is cancelled.
//
// The directory is watched rather than the file because atomic writes
// rename a temp file over the original, which drops a per-file watch.
// Writes made through f itself are recognised by checksum and skipped.
func Watch(ctx context.Context, f *JSONFile, logger *slog.Logger, reload ReloadFunc) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(f.Path())); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("path", f.Path()))

	var debounce *time.Timer
	var debounceCh <-chan time.Time

	schedule := func() {
		if debounce == nil {
			debounce = time.NewTimer(reloadDebounce)
			debounceCh = debounce.C
		} else {
			debounce.Reset(reloadDebounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-debounceCh:
			if f.OwnWrite() {
				logger.Debug("watcher: skipping own write", slog.String("path", f.Path()))
				continue
			}
			if err := reload(ctx); err != nil {
				logger.Warn("watcher: reload failed", slog.String("path", f.Path()), slog.String("error", err.Error()))
				continue
			}
			logger.Info("watcher: reloaded stories", slog.String("path", f.Path()))

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != f.Path() {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
