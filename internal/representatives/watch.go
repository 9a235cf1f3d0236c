package representatives

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/JaimeStill/pathways/pkg/lifecycle"
)

// Watch reloads the directory whenever its file is written or replaced.
// The watcher runs until the coordinator shuts down.
func (d *Directory) Watch(lc *lifecycle.Coordinator, logger *slog.Logger) error {
	if d.path == "" {
		return fmt.Errorf("watch directory: no file path")
	}
	logger = logger.With("system", "representatives", "path", d.path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// The parent is watched so replace-by-rename writes are observed.
	if err := watcher.Add(filepath.Dir(d.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("add watch path: %w", err)
	}

	target := filepath.Clean(d.path)
	go func() {
		for {
			select {
			case <-lc.Context().Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := d.Reload(); err != nil {
					logger.Warn("directory reload failed", "error", err)
					continue
				}
				logger.Info("directory reloaded", "entries", d.Len())
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("directory watcher error", "error", err)
			}
		}
	}()

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		if err := watcher.Close(); err != nil {
			logger.Error("directory watcher close failed", "error", err)
		}
	})

	logger.Info("watching representative directory", "entries", d.Len())
	return nil
}
