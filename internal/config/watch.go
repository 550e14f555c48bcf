package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file whenever it changes on disk and passes the
// result to onChange. Invalid files are logged and skipped.
type Watcher struct {
	path     string
	defaults *Config
	onChange func(*Config)
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWatcher watches the directory holding path so that editors replacing the
// file by rename are noticed too.
func NewWatcher(path string, defaults *Config, onChange func(*Config), logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	return &Watcher{
		path:     filepath.Clean(path),
		defaults: defaults,
		onChange: onChange,
		logger:   logger,
		fsw:      fsw,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

func (w *Watcher) Start() {
	go func() {
		defer close(w.doneCh)
		for {
			select {
			case ev, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != w.path {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				w.reload()
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				w.logger.Warn("config watch error", "err", err)
			case <-w.stopCh:
				return
			}
		}
	}()
}

func (w *Watcher) Stop() {
	close(w.stopCh)
	w.fsw.Close()
	<-w.doneCh
}

func (w *Watcher) reload() {
	// Truncating writers produce an empty file before the new content lands.
	if fi, err := os.Stat(w.path); err != nil || fi.Size() == 0 {
		return
	}
	cfg, err := Load(w.path, w.defaults)
	if err != nil {
		w.logger.Warn("config reload failed", "path", w.path, "err", err)
		return
	}
	w.logger.Info("config reloaded", "path", w.path)
	w.onChange(cfg)
}
