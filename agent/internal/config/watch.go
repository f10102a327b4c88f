package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads the file at path whenever it is written or replaced and
// passes each valid Config to onChange. A file that fails to load is logged
// and skipped, so the caller keeps whatever it applied last. Watch returns
// nil when ctx is cancelled.
func Watch(ctx context.Context, path string, logger *zap.SugaredLogger, onChange func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watcher: %w", err)
	}
	defer w.Close()

	// The directory, not the file: a rename-over save replaces the inode.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("config: watch %s: %w", filepath.Dir(path), err)
	}
	logger.Infow("config: watching for changes", "path", path)

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !touches(ev, target) {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				logger.Errorw("config: reload failed, keeping previous config", "path", path, "err", err)
				continue
			}
			logger.Infow("config: reloaded", "path", path, "op", ev.Op.String())
			onChange(cfg)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Errorw("config: watcher error", "err", err)
		}
	}
}

// touches reports whether ev rewrote the file at target.
func touches(ev fsnotify.Event, target string) bool {
	if filepath.Clean(ev.Name) != target {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)
}
