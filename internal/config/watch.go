package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce coalesces editor save bursts into one reload.
const defaultDebounce = 150 * time.Millisecond

// Watcher reloads one config file whenever it changes on disk.
type Watcher struct {
	path     string
	defaults Config
	debounce time.Duration
	fw       *fsnotify.Watcher
}

// NewWatcher watches the directory holding path so atomic rename-on-save editors are seen.
func NewWatcher(path string, defaults Config) (*Watcher, error) {
	path = filepath.Clean(path)
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}
	return &Watcher{
		path:     path,
		defaults: defaults,
		debounce: defaultDebounce,
		fw:       fw,
	}, nil
}

// Run blocks until ctx is done, calling onReload with every successfully reloaded config
// and onError with load or watch failures. A failed reload keeps the previous config in effect.
func (w *Watcher) Run(ctx context.Context, onReload func(Config), onError func(error)) error {
	defer w.fw.Close()

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	var pendingSince time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pendingSince = time.Now()
			}

		case <-ticker.C:
			if pendingSince.IsZero() || time.Since(pendingSince) < w.debounce {
				continue
			}
			pendingSince = time.Time{}
			cfg, err := Load(w.path, w.defaults)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			if onError != nil {
				onError(fmt.Errorf("config watcher: %w", err))
			}
		}
	}
}
