package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads Config from the resolved config file whenever it
// changes on disk. Only a subset of fields are actually safe to apply
// live (anything baked into a collaborator at construction time, like
// which vector backend is in use, is not); callers apply whatever subset
// their onReload closure knows how to update.
type Watcher struct {
	watcher *fsnotify.Watcher
}

// Watch starts watching the file Load would read for path and calls
// onReload with each successfully reloaded Config. The watch loop runs
// in its own goroutine until ctx is done or Close is called. If path
// resolves to no file (same resolution Load itself uses), Watch returns
// a no-op Watcher and a nil error: there is nothing to watch.
//
// The containing directory is watched rather than the file itself, since
// editors and config-management tools often replace a file with a
// rename rather than writing it in place.
func Watch(ctx context.Context, path string, logger *zap.Logger, onReload func(*Config)) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	resolved, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}
	if resolved == "" {
		return &Watcher{}, nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}
	dir := filepath.Dir(resolved)
	base := filepath.Base(resolved)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching config directory %s: %w", dir, err)
	}

	go func() {
		defer fw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != base {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					logger.Warn("config reload failed, keeping previous config", zap.Error(err))
					continue
				}
				logger.Info("config file changed, reloaded", zap.String("path", resolved))
				onReload(cfg)
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", zap.Error(err))
			}
		}
	}()

	return &Watcher{watcher: fw}, nil
}

// Close stops the watch loop, if one is running. Safe to call even when
// Watch returned a no-op Watcher or was already closed.
func (w *Watcher) Close() error {
	if w == nil || w.watcher == nil {
		return nil
	}
	return w.watcher.Close()
}
