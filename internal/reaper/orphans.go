package reaper

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/NguyenThaoVi0702/meeting-minutes-app/pkg/logger"

	"github.com/fsnotify/fsnotify"
)

// WatchOrphans watches root (the shared object-store directory, spec §6
// "Persisted layout") for per-job directories left behind by a crashed
// Assembler: a directory whose name doesn't match any known Job's
// ChunkDir(). It uses fsnotify for prompt detection and falls back to plain
// polling on interval if the watch can't be established, since the
// underlying inotify/kqueue facility isn't guaranteed available in every
// deployment environment.
func (r *Reaper) WatchOrphans(ctx context.Context, root string, interval time.Duration) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("reaper: fsnotify unavailable, falling back to polling", "error", err.Error())
		r.pollOrphans(ctx, root, interval)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(root); err != nil {
		logger.Warn("reaper: could not watch shared audio path, falling back to polling", "path", root, "error", err.Error())
		r.pollOrphans(ctx, root, interval)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.sweepOrphans(ctx, root)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove) != 0 {
				r.sweepOrphans(ctx, root)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("reaper: fsnotify error", "error", err.Error())
		case <-ticker.C:
			r.sweepOrphans(ctx, root)
		}
	}
}

func (r *Reaper) pollOrphans(ctx context.Context, root string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.sweepOrphans(ctx, root)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweepOrphans(ctx, root)
		}
	}
}

func (r *Reaper) sweepOrphans(ctx context.Context, root string) {
	entries, err := os.ReadDir(root)
	if err != nil {
		logger.Warn("reaper: could not list shared audio path", "path", root, "error", err.Error())
		return
	}

	known, err := r.jobs.ListKnownDirectories(ctx)
	if err != nil {
		logger.Error("reaper: list known directories failed", "error", err.Error())
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() || known[entry.Name()] {
			continue
		}
		logger.Warn("reaper: orphaned job directory found", "path", filepath.Join(root, entry.Name()))
	}
}
