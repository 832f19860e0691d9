package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"
)

func TestWatch_ReloadsOnWriteAndRename(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloads := make(chan *Config, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, logger, func(cfg *Config) { reloads <- cfg })
	}()

	// Let the watcher register before touching the file.
	time.Sleep(200 * time.Millisecond)

	if err := os.WriteFile(path, []byte("server:\n  port: 9091\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	waitForPort(t, reloads, 9091, "in-place write")

	// Atomic-save editors write a sibling file and rename it over the
	// watched path; the watcher must survive the inode swap.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte("server:\n  port: 9092\n"), 0o644); err != nil {
		t.Fatalf("write replacement: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename replacement: %v", err)
	}
	waitForPort(t, reloads, 9092, "atomic replace")

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
}

// waitForPort drains reload notifications until one carries the wanted
// port; duplicate events for a single save are normal.
func waitForPort(t *testing.T, reloads <-chan *Config, want int, step string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-reloads:
			if cfg.Server.Port == want {
				return
			}
		case <-deadline:
			t.Fatalf("no reload with port %d after %s", want, step)
		}
	}
}
