package indexstate

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the state whenever the persisted pair changes on disk, so a
// process serving queries picks up an index rebuilt by another process.
// Events are coalesced for debounce so that both renames land before the
// reload. A failed reload keeps the previous snapshot. Watch blocks until ctx
// is cancelled.
func (s *State) Watch(ctx context.Context, debounce time.Duration) error {
	if s.indexPath == "" || s.metadataPath == "" {
		return nil
	}
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	targets := map[string]struct{}{
		filepath.Clean(s.indexPath):    {},
		filepath.Clean(s.metadataPath): {},
	}
	dirs := map[string]struct{}{}
	for path := range targets {
		dirs[filepath.Dir(path)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if _, watched := targets[filepath.Clean(ev.Name)]; !watched {
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename) {
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("index_watch_error", "error", err)
		case <-timer.C:
			if err := s.Reload(); err != nil {
				slog.Warn("index_reload_failed", "index_path", s.indexPath, "error", err)
				continue
			}
			rows := 0
			if snap := s.Current(); snap != nil {
				rows = snap.Len()
			}
			slog.Info("index_reloaded", "index_path", s.indexPath, "rows", rows)
		}
	}
}
