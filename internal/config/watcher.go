package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher reloads the config file on change and notifies a callback with
// the freshly parsed config. Invalid intermediate writes are skipped.
type Watcher struct {
	loader   *Loader
	fw       *fsnotify.Watcher
	onChange func(*Config)

	mu     sync.Mutex
	closed bool
}

// NewWatcher starts watching the loader's config file. onChange runs on the
// watcher goroutine; callers must do their own locking.
func NewWatcher(loader *Loader, onChange func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fs watcher: %w", err)
	}

	// Watch the directory, not the file: editors replace files on save
	// and a file watch dies with the old inode.
	dir := filepath.Dir(loader.GetConfigPath())
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	w := &Watcher{
		loader:   loader,
		fw:       fw,
		onChange: onChange,
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	target := w.loader.GetConfigPath()

	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(target) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := w.loader.Load()
			if err != nil {
				log.Warn().Err(err).Str("path", target).Msg("Ignoring config change, reload failed")
				continue
			}

			log.Info().Str("path", target).Msg("Config reloaded")
			w.onChange(cfg)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Config watcher error")
		}
	}
}

// Close stops the watcher
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.fw.Close()
}
