package tracker

import (
	"context"
	"os"
	"sync"
	"time"

	"golden-go/internal/golden"
)

// PathGuard restricts what the cleanup manager may delete. The snapshot
// store's IsVersionPath satisfies it.
type PathGuard interface {
	IsVersionPath(path string) bool
}

// CleanupManager deletes superseded snapshots once they are unreferenced
// and a grace period has elapsed since they stopped being the active
// binding.
type CleanupManager struct {
	tracker *QueryTracker
	guard   PathGuard
	grace   time.Duration
	clock   golden.Clock
	logger  golden.Logger

	mu      sync.Mutex
	retired map[string]time.Time // path → when it stopped being active
}

// NewCleanupManager creates a cleanup manager.
func NewCleanupManager(tracker *QueryTracker, guard PathGuard, grace time.Duration, clock golden.Clock, logger golden.Logger) *CleanupManager {
	return &CleanupManager{
		tracker: tracker,
		guard:   guard,
		grace:   grace,
		clock:   clock,
		logger:  logger,
		retired: make(map[string]time.Time),
	}
}

// Schedule hands a previously-bound snapshot path over for deferred
// deletion. Paths outside the versioned tree are refused.
func (c *CleanupManager) Schedule(path string) {
	if path == "" {
		return
	}
	if !c.guard.IsVersionPath(path) {
		c.logger.Warn("refusing to schedule non-version path for cleanup", "path", path)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.retired[path]; !ok {
		c.retired[path] = c.clock.Now()
		c.logger.Debug("snapshot scheduled for cleanup", "path", path)
	}
}

// Pending returns how many paths await deletion.
func (c *CleanupManager) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.retired)
}

// Sweep deletes every scheduled path whose reference count is zero and
// whose grace period has elapsed. It returns the deleted paths.
func (c *CleanupManager) Sweep() []string {
	now := c.clock.Now()

	c.mu.Lock()
	var due []string
	for path, retiredAt := range c.retired {
		if now.Sub(retiredAt) < c.grace {
			continue
		}
		if c.tracker.Refs(path) > 0 {
			continue
		}
		due = append(due, path)
	}
	for _, path := range due {
		delete(c.retired, path)
	}
	c.mu.Unlock()

	var deleted []string
	for _, path := range due {
		if err := os.RemoveAll(path); err != nil {
			c.logger.Warn("deleting snapshot failed", "path", path, "error", err)
			continue
		}
		c.logger.Info("snapshot deleted", "path", path)
		deleted = append(deleted, path)
	}
	return deleted
}

// Run sweeps on the given interval until the context is cancelled.
func (c *CleanupManager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
