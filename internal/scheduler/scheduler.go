// Package scheduler runs the periodic refresh loop: one background loop
// that wakes on a fixed interval, lists every registered alias, and
// dispatches refreshes to a bounded worker pool. It owns all failure state
// (consecutive-failure counters, reclone cooldowns) and the auto-recovery
// policy.
package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"golden-go/internal/golden"
)

// RefreshRunner is the slice of RefreshService the scheduler drives.
type RefreshRunner interface {
	ExecuteRefresh(ctx context.Context, alias string) (*golden.RefreshResult, error)
}

// Recloner performs the fresh clone during recovery.
type Recloner interface {
	Clone(ctx context.Context, url, dir string) error
}

// Config carries the scheduler's tuning knobs.
type Config struct {
	Interval         time.Duration
	Workers          int
	FailureThreshold int // consecutive transient failures before reclone
	RecloneCooldown  time.Duration
}

// Scheduler is the refresh loop. Failure counters and cooldowns are fields
// of the scheduler (never package state) so tests construct independent
// instances; the maps are alias-scoped and guarded by one mutex.
type Scheduler struct {
	cfg      Config
	registry golden.Registry
	service  RefreshRunner
	git      Recloner
	layout   golden.Layout
	logger   golden.Logger
	clock    golden.Clock
	ids      golden.IDGenerator

	mu            sync.Mutex
	inFlight      map[string]bool
	failures      map[string]int       // consecutive transient failures per alias
	cooldownUntil map[string]time.Time // earliest next reclone attempt per alias

	nudge chan string
}

// New creates a Scheduler.
func New(cfg Config, registry golden.Registry, service RefreshRunner, git Recloner, layout golden.Layout, logger golden.Logger, clock golden.Clock, ids golden.IDGenerator) *Scheduler {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 3
	}
	return &Scheduler{
		cfg:           cfg,
		registry:      registry,
		service:       service,
		git:           git,
		layout:        layout,
		logger:        logger,
		clock:         clock,
		ids:           ids,
		inFlight:      make(map[string]bool),
		failures:      make(map[string]int),
		cooldownUntil: make(map[string]time.Time),
		nudge:         make(chan string, 16),
	}
}

// Run executes the refresh loop until ctx is cancelled. Cancellation is a
// clean stop: in-flight refreshes run to completion before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)

	s.logger.Info("scheduler started", "interval", s.cfg.Interval, "workers", s.cfg.Workers)

	for {
		select {
		case <-ctx.Done():
			err := g.Wait()
			s.logger.Info("scheduler stopped")
			return err
		case alias := <-s.nudge:
			s.dispatch(&g, alias)
		case <-ticker.C:
			s.dispatchAll(&g)
		}
	}
}

// TriggerNow asks for an out-of-band refresh of one alias (used by the
// filesystem watcher). Dropped silently when the nudge queue is full; the
// next scheduled tick covers it.
func (s *Scheduler) TriggerNow(alias string) {
	select {
	case s.nudge <- alias:
	default:
	}
}

// RefreshAll refreshes every registered alias once, bounded by the worker
// pool, and waits for completion. Used by the one-shot CLI path.
func (s *Scheduler) RefreshAll(ctx context.Context) error {
	recs, err := s.registry.List()
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for _, rec := range recs {
		alias := rec.Alias
		g.Go(func() error {
			s.RefreshOne(ctx, alias)
			return nil
		})
	}
	return g.Wait()
}

// RefreshOne refreshes a single alias, applying the full bookkeeping and
// recovery policy. Concurrent refreshes of the same alias are never allowed;
// the second caller gets a skipped result.
func (s *Scheduler) RefreshOne(ctx context.Context, alias string) *golden.RefreshResult {
	if !s.markInFlight(alias) {
		s.logger.Debug("refresh already in flight", "alias", alias)
		return &golden.RefreshResult{Alias: alias, Message: "Refresh already in flight"}
	}
	defer s.clearInFlight(alias)
	return s.refreshAlias(ctx, alias)
}

// FailureCount returns the consecutive transient-failure count for an alias.
func (s *Scheduler) FailureCount(alias string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[alias]
}

// dispatchAll lists every registered alias and submits one refresh job per
// alias, all source kinds uniformly.
func (s *Scheduler) dispatchAll(g *errgroup.Group) {
	recs, err := s.registry.List()
	if err != nil {
		s.logger.Error("listing aliases failed", "error", err)
		return
	}
	for _, rec := range recs {
		s.dispatch(g, rec.Alias)
	}
}

func (s *Scheduler) dispatch(g *errgroup.Group, alias string) {
	if !s.markInFlight(alias) {
		s.logger.Debug("refresh already in flight", "alias", alias)
		return
	}

	ok := g.TryGo(func() error {
		defer s.clearInFlight(alias)
		// The loop's shutdown must let in-flight refreshes finish; each
		// subprocess still carries its own timeout.
		s.refreshAlias(context.WithoutCancel(context.Background()), alias)
		return nil
	})
	if !ok {
		s.clearInFlight(alias)
		s.logger.Warn("worker pool saturated, skipping refresh", "alias", alias)
	}
}

// refreshAlias runs one refresh and applies the failure/recovery policy.
// Errors never escape: they become a logged op-log row, a registry
// last-error update, and counter bookkeeping.
func (s *Scheduler) refreshAlias(ctx context.Context, alias string) *golden.RefreshResult {
	started := s.clock.Now()

	res, err := s.service.ExecuteRefresh(ctx, alias)
	if res == nil {
		res = &golden.RefreshResult{Alias: alias}
		if err != nil {
			res.Message = err.Error()
		}
	}

	if err == nil && res.Success {
		s.resetFailures(alias)
		if res.VersionPath == "" {
			// A successful contact without new content still clears the
			// failure surface.
			if serr := s.registry.SetLastError(alias, ""); serr != nil {
				s.logger.Warn("clearing last error failed", "alias", alias, "error", serr)
			}
		}
		s.appendOp(res, started)
		return res
	}

	s.logger.Error("refresh failed", "alias", alias, "error", err)
	if serr := s.registry.SetLastError(alias, res.Message); serr != nil {
		s.logger.Warn("recording last error failed", "alias", alias, "error", serr)
	}
	s.appendOp(res, started)

	s.handleFailure(ctx, alias, err)
	return res
}

func (s *Scheduler) appendOp(res *golden.RefreshResult, started time.Time) {
	op := &golden.RefreshOp{
		ID:         s.ids.New(),
		Alias:      res.Alias,
		Message:    res.Message,
		StartedAt:  started,
		FinishedAt: s.clock.Now(),
	}
	switch {
	case res.Success && res.VersionPath != "":
		op.Status = golden.OpSuccess
	case res.Success:
		op.Status = golden.OpNoChange
	default:
		op.Status = golden.OpError
	}
	if err := s.registry.AppendOp(op); err != nil {
		s.logger.Warn("appending refresh op failed", "alias", res.Alias, "error", err)
	}
}

// handleFailure applies the recovery policy after a failed refresh:
// corruption-classified errors trigger a reclone immediately, transient
// ones only after FailureThreshold consecutive occurrences, and every
// reclone attempt is gated by the per-alias cooldown.
func (s *Scheduler) handleFailure(ctx context.Context, alias string, err error) {
	category, classified := golden.IsFetchError(err)
	if !classified {
		// Generic failures (indexing, snapshotting) count as transient but
		// never take the git-specific corruption fast path.
		category = golden.FetchTransient
	}

	var count int
	if category == golden.FetchTransient {
		s.mu.Lock()
		s.failures[alias]++
		count = s.failures[alias]
		s.mu.Unlock()
	}

	if category != golden.FetchCorruption && count < s.cfg.FailureThreshold {
		s.logger.Info("transient failure recorded", "alias", alias, "consecutive", count)
		return
	}

	rec, rerr := s.registry.Get(alias)
	if rerr != nil || rec == nil {
		s.logger.Error("loading record for recovery failed", "alias", alias, "error", rerr)
		return
	}
	if rec.SourceKind != golden.SourceGit {
		// Only git sources have a master clone to rebuild.
		s.logger.Warn("failure threshold reached for non-git source", "alias", alias, "consecutive", count)
		return
	}

	s.mu.Lock()
	until, cooling := s.cooldownUntil[alias]
	s.mu.Unlock()
	if cooling && s.clock.Now().Before(until) {
		s.logger.Warn("reclone needed but within cooldown", "alias", alias, "until", until)
		return
	}

	ok := s.attemptReclone(ctx, alias, rec.Upstream)
	s.mu.Lock()
	s.cooldownUntil[alias] = s.clock.Now().Add(s.cfg.RecloneCooldown)
	s.mu.Unlock()

	if ok {
		s.logger.Info("reclone succeeded, next cycle will refresh", "alias", alias)
	}
}

// attemptReclone deletes only this alias's flat master clone and clones a
// fresh copy into the same path. It never touches the versioned tree or a
// sibling alias. Recovery prepares a clean base for the next scheduled
// attempt; it does not re-run the refresh itself.
func (s *Scheduler) attemptReclone(ctx context.Context, alias, upstream string) bool {
	master := s.layout.MasterClone(alias)
	if filepath.Dir(master) != s.layout.ReposDir() || filepath.Base(master) != alias {
		s.logger.Error("refusing reclone outside repos dir", "alias", alias, "path", master)
		return false
	}

	s.logger.Warn("recloning master copy", "alias", alias, "upstream", upstream)

	if err := os.RemoveAll(master); err != nil {
		s.logger.Error("removing master clone failed", "alias", alias, "error", err)
		return false
	}
	if err := s.git.Clone(ctx, upstream, master); err != nil {
		s.logger.Error("reclone failed", "alias", alias, "error", err)
		return false
	}
	return true
}

func (s *Scheduler) resetFailures(alias string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, alias)
}

func (s *Scheduler) markInFlight(alias string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[alias] {
		return false
	}
	s.inFlight[alias] = true
	return true
}

func (s *Scheduler) clearInFlight(alias string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, alias)
}
