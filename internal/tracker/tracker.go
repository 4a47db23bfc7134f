// Package tracker keeps superseded snapshots alive while readers still use
// them. QueryTracker counts live references per path; CleanupManager deletes
// unreferenced paths once a grace period has elapsed.
package tracker

import "sync"

// QueryTracker is an in-memory reference count of snapshot paths currently
// being read. Callers bracket any alias-resolved read with Acquire/Release.
type QueryTracker struct {
	mu   sync.Mutex
	refs map[string]int
}

// NewQueryTracker creates an empty tracker.
func NewQueryTracker() *QueryTracker {
	return &QueryTracker{refs: make(map[string]int)}
}

// Acquire records a reader entering path.
func (t *QueryTracker) Acquire(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refs[path]++
}

// Release records a reader leaving path. Releasing below zero is a caller
// bug and clamps to zero.
func (t *QueryTracker) Release(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.refs[path] <= 1 {
		delete(t.refs, path)
		return
	}
	t.refs[path]--
}

// Refs returns the live reference count for path.
func (t *QueryTracker) Refs(path string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refs[path]
}
