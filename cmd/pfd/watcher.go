package main

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"sriov-pf/internal/config"
)

// configWatcher reloads the configuration file when it changes on disk.
// The parent directory is watched rather than the file itself so editors
// that replace the file atomically are still seen.
type configWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	apply   func(*config.Config)
	stopCh  chan struct{}
}

func newConfigWatcher(path string, apply func(*config.Config)) (*configWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	w := &configWatcher{
		watcher: watcher,
		path:    path,
		apply:   apply,
		stopCh:  make(chan struct{}),
	}
	go w.processEvents()
	logrus.WithField("config_file", path).Info("watching configuration for changes")
	return w, nil
}

func (w *configWatcher) stop() {
	close(w.stopCh)
	w.watcher.Close()
}

func (w *configWatcher) processEvents() {
	var pending <-chan time.Time
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Debounce: editors produce bursts of events per save.
			pending = time.After(500 * time.Millisecond)
		case <-pending:
			pending = nil
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logrus.WithError(err).Error("configuration watcher error")
		case <-w.stopCh:
			return
		}
	}
}

func (w *configWatcher) reload() {
	cfg, err := config.LoadConfig(w.path)
	if err != nil {
		logrus.WithError(err).Error("ignoring unreadable configuration")
		return
	}
	w.apply(cfg)
}
