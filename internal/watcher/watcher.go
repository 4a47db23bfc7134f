// Package watcher nudges the scheduler when a local source directory
// changes, so edits surface without waiting for the next polling tick.
// Detection itself stays with the mtime scan; the watcher is purely a hint.
package watcher

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"golden-go/internal/golden"
)

// Watcher debounces filesystem events per alias and invokes a notify
// callback once a source has settled.
type Watcher struct {
	debounce time.Duration
	notify   func(alias string)
	logger   golden.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New creates a Watcher. notify is called from a timer goroutine once per
// settled burst of events for an alias.
func New(debounce time.Duration, notify func(alias string), logger golden.Logger) *Watcher {
	return &Watcher{
		debounce: debounce,
		notify:   notify,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
	}
}

// Run watches the given alias→source-directory map until ctx is cancelled.
// A source that cannot be watched degrades to polling with a warning; it is
// never an error.
func (w *Watcher) Run(ctx context.Context, sources map[string]string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	roots := make(map[string]string, len(sources)) // source root → alias
	for alias, dir := range sources {
		if err := addTree(fsw, dir); err != nil {
			w.logger.Warn("cannot watch source, falling back to polling", "alias", alias, "dir", dir, "error", err)
			continue
		}
		roots[filepath.Clean(dir)] = alias
	}

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fsw, roots, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, roots map[string]string, ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)

	alias, root := "", ""
	for r, a := range roots {
		if path == r || strings.HasPrefix(path, r+string(filepath.Separator)) {
			if len(r) > len(root) {
				alias, root = a, r
			}
		}
	}
	if alias == "" {
		return
	}

	rel, err := filepath.Rel(root, path)
	if err != nil || hasHiddenSegment(rel) {
		return
	}

	// New subdirectories need their own watch to see deeper edits.
	if ev.Op.Has(fsnotify.Create) {
		if err := addTree(fsw, path); err == nil {
			w.logger.Debug("watching new directory", "path", path)
		}
	}

	w.bump(alias)
}

// bump (re)starts the alias's debounce timer.
func (w *Watcher) bump(alias string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[alias]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[alias] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, alias)
		w.mu.Unlock()
		w.notify(alias)
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for alias, t := range w.timers {
		t.Stop()
		delete(w.timers, alias)
	}
}

// addTree watches dir and every visible subdirectory beneath it. A file
// path is a silent no-op (fsnotify watches parents).
func addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fsw.Add(p)
	})
}

func hasHiddenSegment(rel string) bool {
	if rel == "." {
		return false
	}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
