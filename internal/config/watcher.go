package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher reloads the configuration when the config file changes and
// invokes a callback with the new configuration.
type Watcher struct {
	loader   *Loader
	onChange func(*Config)

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates a watcher for the loader's config file.
func NewWatcher(loader *Loader, onChange func(*Config)) *Watcher {
	return &Watcher{
		loader:   loader,
		onChange: onChange,
	}
}

// Start begins watching. It watches the containing directory because
// many editors replace the file on save, which drops file-level watches.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher != nil {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(w.loader.configPath)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return err
	}

	w.watcher = fw
	w.done = make(chan struct{})
	go w.loop(fw, w.done)

	log.Info().Str("path", w.loader.configPath).Msg("Config watcher started")
	return nil
}

func (w *Watcher) loop(fw *fsnotify.Watcher, done chan struct{}) {
	target := filepath.Clean(w.loader.configPath)
	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			cfg, err := w.loader.Load()
			if err != nil {
				log.Warn().Err(err).Msg("Config reload failed, keeping previous config")
				continue
			}
			log.Info().Msg("Config reloaded")
			w.onChange(cfg)

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Config watcher error")

		case <-done:
			return
		}
	}
}

// Stop stops watching. Safe to call multiple times.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher == nil {
		return
	}
	close(w.done)
	if err := w.watcher.Close(); err != nil {
		log.Debug().Err(err).Msg("Config watcher close error")
	}
	w.watcher = nil
}
