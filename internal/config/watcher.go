package config

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vmdash/vmdash/internal/logger"
)

// Watcher reloads the config file on change and delivers the re-resolved
// Effective settings to onReload. Grounded on the teacher's
// daemon/services/collectors/filewatcher.go: watch the parent directory
// (fsnotify watches directories, not files) and debounce rapid-fire events.
type Watcher struct {
	fsw      *fsnotify.Watcher
	path     string
	base     Effective
	debounce time.Duration
	log      *logger.Logger
}

// NewWatcher creates a Watcher for path. Each reload re-applies the file on
// top of base; settings the reloaded file leaves unset keep their value in
// base.
func NewWatcher(path string, base Effective, log *logger.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return &Watcher{fsw: fsw, path: path, base: base, debounce: 300 * time.Millisecond, log: log}, nil
}

// Run watches for changes until stop is closed, invoking onReload with the
// freshly resolved Effective settings after each debounced change.
func (w *Watcher) Run(stop <-chan struct{}, onReload func(Effective)) {
	var timer *time.Timer
	abs, _ := filepath.Abs(w.path)

	fire := func() {
		fc, err := LoadFile(w.path)
		if err != nil {
			if w.log != nil {
				w.log.Warning("config: reload failed: %v", err)
			}
			return
		}
		onReload(ApplyFile(w.base, fc))
	}

	for {
		select {
		case <-stop:
			_ = w.fsw.Close()
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			evAbs, _ := filepath.Abs(ev.Name)
			if evAbs != abs || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, fire)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.log != nil {
				w.log.Warning("config: watcher error: %v", err)
			}
		}
	}
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
