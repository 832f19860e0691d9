package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch watches the config file and calls onChange with the freshly
// loaded configuration after every write. A reload that fails to parse
// is logged and skipped; the previous configuration stays in effect.
// Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	logger.Info("watching config file for changes", slog.String("path", path))

	for {
		select {
		case <-ctx.Done():
			logger.Debug("config watch stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Atomic-save editors replace the file (rename + create)
			// instead of writing in place, which drops the watch on the
			// old inode; re-add the path so subsequent saves are seen.
			if event.Op.Has(fsnotify.Rename) || event.Op.Has(fsnotify.Remove) {
				_ = watcher.Remove(path)
				if err := watcher.Add(path); err != nil {
					logger.Error("failed to re-watch config file",
						slog.String("error", err.Error()),
						slog.String("path", path))
					continue
				}
			} else if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			logger.Info("config file changed, reloading", slog.String("path", event.Name))

			cfg, err := Load(path)
			if err != nil {
				logger.Error("failed to reload config",
					slog.String("error", err.Error()),
					slog.String("path", path))
				continue
			}
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("config watch error", slog.String("error", err.Error()))
		}
	}
}
