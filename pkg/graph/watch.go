package graph

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// StalenessWatcher flags external container files that changed on disk
// behind the session's back. Filesystem events arrive on a background
// goroutine; the engine reads the flags from its own thread, so the set
// is the only shared state and sits behind a mutex.
type StalenessWatcher struct {
	fw *fsnotify.Watcher

	mu       sync.Mutex
	modified map[string]bool
}

// NewStalenessWatcher starts a watcher. Close it when the session ends.
func NewStalenessWatcher() (*StalenessWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create filesystem watcher: %w", err)
	}
	w := &StalenessWatcher{fw: fw, modified: make(map[string]bool)}
	go w.run()
	return w, nil
}

func (w *StalenessWatcher) run() {
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.mu.Lock()
				w.modified[ev.Name] = true
				w.mu.Unlock()
			}
		case _, ok := <-w.fw.Errors:
			if !ok {
				return
			}
		}
	}
}

// Watch starts tracking path.
func (w *StalenessWatcher) Watch(path string) error {
	return w.fw.Add(path)
}

// Unwatch stops tracking path and clears its flag.
func (w *StalenessWatcher) Unwatch(path string) {
	_ = w.fw.Remove(path)
	w.Reset(path)
}

// Modified reports whether path changed since the last Reset.
func (w *StalenessWatcher) Modified(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.modified[path]
}

// Reset clears path's modification flag, as after a reload or save.
func (w *StalenessWatcher) Reset(path string) {
	w.mu.Lock()
	delete(w.modified, path)
	w.mu.Unlock()
}

// Close stops the watcher.
func (w *StalenessWatcher) Close() error {
	return w.fw.Close()
}

// SetWatcher installs a staleness watcher. External descriptors then
// report RestoreStampChanged when their file changes on disk, not only
// when a known container re-saves.
func (s *Session) SetWatcher(w *StalenessWatcher) { s.watcher = w }

func (s *Session) watchPath(key string) {
	if s.watcher == nil || strings.Contains(key, "://") {
		return
	}
	if err := s.watcher.Watch(key); err != nil {
		s.logger.Warn("cannot watch external container", "path", key, "error", err)
	}
}

func (s *Session) unwatchPath(key string) {
	if s.watcher == nil || strings.Contains(key, "://") {
		return
	}
	s.watcher.Unwatch(key)
}

func (info *docInfo) isModified() bool {
	if info.modified {
		return true
	}
	if w := info.sess.watcher; w != nil && w.Modified(info.key) {
		info.modified = true
	}
	return info.modified
}
