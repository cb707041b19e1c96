// Package watcher tracks workspace changes so cached project context can be
// invalidated instead of going stale mid-session.
package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"kodo/internal/config"
	"kodo/internal/git"
	"kodo/internal/logging"
)

const maxWatchedDirs = 1000

// skipDirs are directories never worth watching regardless of ignore rules.
var skipDirs = map[string]bool{
	".git": true, ".hg": true, ".svn": true,
	"node_modules": true, "vendor": true, "target": true,
	"dist": true, "build": true, "__pycache__": true,
	".idea": true, ".vscode": true,
}

// Watcher watches the workspace tree and flips a staleness flag when files
// change. Consumers poll Stale and rebuild their context profile when set.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	workDir   string
	ignore    *git.Ignore
	debounce  time.Duration

	mu       sync.Mutex
	stale    bool
	pending  map[string]time.Time
	onChange func()

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a Watcher for workDir. When disabled by config it returns a
// no-op watcher that never reports staleness.
func New(workDir string, ignore *git.Ignore, cfg config.WatcherConfig) (*Watcher, error) {
	if !cfg.Enabled {
		return &Watcher{workDir: workDir}, nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounceMs := cfg.DebounceMs
	if debounceMs <= 0 {
		debounceMs = 500
	}

	return &Watcher{
		fsWatcher: fsw,
		workDir:   workDir,
		ignore:    ignore,
		debounce:  time.Duration(debounceMs) * time.Millisecond,
		pending:   make(map[string]time.Time),
		done:      make(chan struct{}),
	}, nil
}

// SetOnChange registers a callback invoked once per debounced change burst.
func (w *Watcher) SetOnChange(fn func()) {
	w.mu.Lock()
	w.onChange = fn
	w.mu.Unlock()
}

// Start begins watching. On a disabled watcher it is a no-op.
func (w *Watcher) Start() error {
	if w.fsWatcher == nil {
		return nil
	}
	if err := w.addDirectories(); err != nil {
		return err
	}
	go w.loop()
	go w.flushLoop()
	return nil
}

// Stop shuts the watcher down.
func (w *Watcher) Stop() error {
	if w.fsWatcher == nil {
		return nil
	}
	w.stopOnce.Do(func() { close(w.done) })
	return w.fsWatcher.Close()
}

// Stale reports whether the workspace changed since the last Refresh.
func (w *Watcher) Stale() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stale
}

// Refresh clears the staleness flag after the consumer has rebuilt its view.
func (w *Watcher) Refresh() {
	w.mu.Lock()
	w.stale = false
	w.mu.Unlock()
}

func (w *Watcher) addDirectories() error {
	count := 0
	return filepath.WalkDir(w.workDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if skipDirs[d.Name()] || (w.ignore != nil && w.ignore.Match(path, true)) {
			return filepath.SkipDir
		}
		if count >= maxWatchedDirs {
			return filepath.SkipAll
		}
		if err := w.fsWatcher.Add(path); err != nil {
			logging.Debug("cannot watch directory", "path", path, "error", err)
			return nil
		}
		count++
		return nil
	})
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			logging.Debug("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	base := filepath.Base(path)
	if base == "" || base[0] == '.' || base[0] == '#' || base[len(base)-1] == '~' {
		return
	}
	if w.ignore != nil && w.ignore.Match(path, false) {
		return
	}

	// New directories join the watch set so nested changes are seen too.
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() && !skipDirs[base] {
			if len(w.fsWatcher.WatchList()) < maxWatchedDirs {
				_ = w.fsWatcher.Add(path)
			}
		}
	}

	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

// flushLoop promotes debounced pending events into the staleness flag.
func (w *Watcher) flushLoop() {
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) flush() {
	now := time.Now()

	w.mu.Lock()
	settled := false
	for path, t := range w.pending {
		if now.Sub(t) >= w.debounce {
			delete(w.pending, path)
			settled = true
		}
	}
	var notify func()
	if settled && !w.stale {
		w.stale = true
		notify = w.onChange
	}
	w.mu.Unlock()

	if notify != nil {
		notify()
	}
}
