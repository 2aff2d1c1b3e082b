package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last write.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads a config file when it changes on disk.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	hash     string
	onChange func(*Config, string)
	logger   *slog.Logger
	debounce time.Duration
}

// NewWatcher watches path's directory so editors that replace the file
// atomically are still observed. onChange receives the new config and its
// hash; it is not called when the content hash is unchanged or the new
// file fails to load.
func NewWatcher(path, currentHash string, onChange func(*Config, string), logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", dir, err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", dir, err)
	}
	return &Watcher{
		watcher:  w,
		path:     filepath.Clean(path),
		hash:     currentHash,
		onChange: onChange,
		logger:   logger,
		debounce: DefaultDebounce,
	}, nil
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	reload := make(chan struct{}, 1)
	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(w.debounce, func() {
					select {
					case reload <- struct{}{}:
					default:
					}
				})
			}

		case <-reload:
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, hash, err := LoadWithHash(w.path)
	if err != nil {
		w.logger.Error("config hot-reload failed", "path", w.path, "error", err)
		return
	}
	if hash == w.hash {
		return
	}
	w.hash = hash
	w.logger.Info("config reloaded", "path", w.path, "hash", hash)
	if w.onChange != nil {
		w.onChange(cfg, hash)
	}
}
