// Package watcher monitors the workspace for external file changes
// so stale exploration knowledge can be invalidated.
package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/danib549/gofer/internal/git"
	"github.com/danib549/gofer/internal/logging"
)

// Operation is the kind of file system change observed.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// ChangeHandler receives debounced file change notifications.
type ChangeHandler func(path string, op Operation)

// Config controls watcher behavior.
type Config struct {
	Enabled    bool
	DebounceMs int
	MaxWatches int
}

// DefaultConfig returns the default watcher configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		DebounceMs: 500,
		MaxWatches: 1000,
	}
}

// skipDirs are directories never worth watching.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	".idea":        true,
	".vscode":      true,
	"__pycache__":  true,
	"target":       true,
	"build":        true,
	"dist":         true,
}

// Watcher watches a directory tree and reports changes after a
// debounce window.
type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	workDir    string
	ignore     *git.Ignore
	debounce   time.Duration
	maxWatches int

	onChange ChangeHandler
	pending  map[string]time.Time
	mu       sync.Mutex
	done     chan struct{}
	running  bool
	stopOnce sync.Once
}

// New creates a watcher for workDir. A disabled config yields an
// inert watcher whose Start and Stop are no-ops.
func New(workDir string, ignore *git.Ignore, cfg Config) (*Watcher, error) {
	if !cfg.Enabled {
		return &Watcher{}, nil
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounceMs := cfg.DebounceMs
	if debounceMs <= 0 {
		debounceMs = 500
	}
	maxWatches := cfg.MaxWatches
	if maxWatches <= 0 {
		maxWatches = 1000
	}

	return &Watcher{
		fsWatcher:  fsWatcher,
		workDir:    workDir,
		ignore:     ignore,
		debounce:   time.Duration(debounceMs) * time.Millisecond,
		maxWatches: maxWatches,
		pending:    make(map[string]time.Time),
		done:       make(chan struct{}),
	}, nil
}

// SetOnChange sets the change notification callback.
func (w *Watcher) SetOnChange(handler ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = handler
}

// Start begins watching. Safe to call on a disabled watcher.
func (w *Watcher) Start() error {
	if w.fsWatcher == nil {
		return nil
	}

	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addDirectories(); err != nil {
		return err
	}

	go w.processEvents()
	go w.processDebounce()
	return nil
}

// Stop shuts the watcher down.
func (w *Watcher) Stop() error {
	if w.fsWatcher == nil {
		return nil
	}

	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	w.stopOnce.Do(func() {
		close(w.done)
	})
	return w.fsWatcher.Close()
}

// IsRunning reports whether the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// WatchedPaths returns the number of directories being watched.
func (w *Watcher) WatchedPaths() int {
	if w.fsWatcher == nil {
		return 0
	}
	return len(w.fsWatcher.WatchList())
}

// addDirectories registers directories under workDir, bounded by
// maxWatches.
func (w *Watcher) addDirectories() error {
	watchCount := 0

	return filepath.WalkDir(w.workDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if watchCount >= w.maxWatches {
			return filepath.SkipDir
		}
		if skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		if w.ignore != nil && w.ignore.IsIgnored(path) {
			return filepath.SkipDir
		}

		if err := w.fsWatcher.Add(path); err != nil {
			logging.Debug("failed to watch directory", "path", path, "error", err)
			return nil
		}
		watchCount++
		return nil
	})
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			logging.Debug("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if w.ignore != nil && w.ignore.IsIgnored(path) {
		return
	}

	// Editors produce churn through dotfiles and backup files.
	base := filepath.Base(path)
	if len(base) > 0 && (base[0] == '.' || base[0] == '#' || base[len(base)-1] == '~') {
		return
	}

	// New directories get added to the watch set.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() && !skipDirs[info.Name()] {
			w.mu.Lock()
			if len(w.fsWatcher.WatchList()) < w.maxWatches {
				_ = w.fsWatcher.Add(path)
			}
			w.mu.Unlock()
		}
	}

	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processDebounce() {
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.flushPending()
		}
	}
}

// flushPending delivers events whose paths have been quiet for the
// debounce window.
func (w *Watcher) flushPending() {
	w.mu.Lock()
	handler := w.onChange
	if handler == nil || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}

	now := time.Now()
	var ready []string
	for path, eventTime := range w.pending {
		if now.Sub(eventTime) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		handler(path, detectOperation(path))
	}
}

// detectOperation classifies a change. Create and modify are not
// distinguishable after debouncing, so both report as modify.
func detectOperation(path string) Operation {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return OpDelete
	}
	return OpModify
}
