package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"golden-go/internal/alias"
	"golden-go/internal/config"
	"golden-go/internal/detect"
	"golden-go/internal/fs"
	"golden-go/internal/gitx"
	"golden-go/internal/golden"
	"golden-go/internal/registry"
	"golden-go/internal/run"
	"golden-go/internal/scheduler"
	"golden-go/internal/snapshot"
	"golden-go/internal/tracker"
	"golden-go/internal/watcher"
)

// sweepInterval paces the daemon's cleanup sweeps; the grace period itself
// comes from config.
const sweepInterval = 30 * time.Second

// App is the application layer between the CLI and the refresh engine. It
// constructs all dependencies from config and manages their lifecycle on
// Close.
type App struct {
	cfg       *config.Config
	layout    golden.Layout
	registry  golden.Registry
	aliases   *alias.Manager
	git       *gitx.Client
	tracker   *tracker.QueryTracker
	cleanup   *tracker.CleanupManager
	service   *golden.RefreshService
	scheduler *scheduler.Scheduler
	logger    golden.Logger
	logFile   *os.File
}

// NewApp creates a fully wired App from the given config. operation
// identifies the CLI command being run (e.g. "Refresh", "Serve"). The
// caller must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	layout := golden.Layout{BaseDir: cfg.BaseDir}

	reg, err := registry.NewRegistryFromConfig(cfg.Registry)
	if err != nil {
		return nil, fmt.Errorf("creating registry: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z") + "-" + operation
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		reg.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	clock := golden.RealClock{}
	runner := run.ExecRunner{}
	git := gitx.NewClient(runner, cfg.Refresh.FetchTimeout.Std(), cfg.Refresh.CloneTimeout.Std())
	store := snapshot.NewStore(layout.VersionedDir())
	aliases := alias.NewManager(layout.AliasesDir())

	pipeline := snapshot.NewPipeline(runner, git, store,
		cfg.Indexer.Binary, cfg.Indexer.Artifacts,
		cfg.Refresh.IndexTimeout.Std(), cfg.Refresh.CloneTimeout.Std(),
		logger, clock)

	queries := tracker.NewQueryTracker()
	cleanup := tracker.NewCleanupManager(queries, store, cfg.Refresh.CleanupGrace.Std(), clock, logger)

	localDet := detect.NewLocalDetector(fs.NewIgnoreMatcher(cfg.Detect.Ignore))
	gitDet := detect.NewGitDetector(git, logger)

	service := golden.NewRefreshService(reg, aliases, localDet, gitDet, pipeline, cleanup, layout, logger, clock)

	sched := scheduler.New(scheduler.Config{
		Interval:         cfg.Refresh.Interval.Std(),
		Workers:          cfg.Refresh.Workers,
		FailureThreshold: cfg.Refresh.FailureThreshold,
		RecloneCooldown:  cfg.Refresh.RecloneCooldown.Std(),
	}, reg, service, git, layout, logger, clock, golden.UUIDGenerator{})

	return &App{
		cfg:       cfg,
		layout:    layout,
		registry:  reg,
		aliases:   aliases,
		git:       git,
		tracker:   queries,
		cleanup:   cleanup,
		service:   service,
		scheduler: sched,
		logger:    logger,
		logFile:   logFile,
	}, nil
}

// Close releases the registry connection and the log file.
func (a *App) Close() error {
	err := a.registry.Close()
	if a.logFile != nil {
		a.logFile.Close()
	}
	return err
}

// RegisterRepo registers a new golden repository. For git sources the
// default branch is discovered when not given and the master clone is
// created immediately, so the first refresh can publish without waiting on
// the network.
func (a *App) RegisterRepo(ctx context.Context, aliasName, kindRaw, upstream, branch string, temporal, scip bool) error {
	kind, err := golden.ParseSourceKind(kindRaw)
	if err != nil {
		return err
	}

	existing, err := a.registry.Get(aliasName)
	if err != nil {
		return fmt.Errorf("checking for existing alias: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("alias already registered: %s", aliasName)
	}

	switch kind {
	case golden.SourceLocal:
		abs, err := filepath.Abs(upstream)
		if err != nil {
			return fmt.Errorf("resolving source path: %w", err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("stat source: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("source is not a directory: %s", abs)
		}
		upstream = abs
	case golden.SourceGit:
		if branch == "" {
			branch, err = a.git.DefaultBranch(ctx, upstream)
			if err != nil {
				return fmt.Errorf("discovering default branch: %w", err)
			}
		}
		master := a.layout.MasterClone(aliasName)
		if _, err := os.Stat(master); os.IsNotExist(err) {
			if err := os.MkdirAll(a.layout.ReposDir(), 0755); err != nil {
				return fmt.Errorf("creating repos directory: %w", err)
			}
			if err := a.git.Clone(ctx, upstream, master); err != nil {
				return fmt.Errorf("cloning master copy: %w", err)
			}
		}
	}

	rec := &golden.RepoRecord{
		Alias:          aliasName,
		SourceKind:     kind,
		Upstream:       upstream,
		DefaultBranch:  branch,
		EnableTemporal: temporal,
		EnableSCIP:     scip,
		CreatedAt:      time.Now().UTC(),
	}
	if err := a.registry.Create(rec); err != nil {
		return err
	}

	a.logger.Info("repository registered", "alias", aliasName, "kind", string(kind), "upstream", upstream)
	return nil
}

// RemoveRepo unregisters an alias and drops its binding. Snapshot and clone
// directories are left on disk for the operator to reclaim.
func (a *App) RemoveRepo(aliasName string) error {
	if err := a.registry.Delete(aliasName); err != nil {
		return err
	}
	if err := a.aliases.Remove(aliasName); err != nil {
		return err
	}
	a.logger.Info("repository unregistered", "alias", aliasName)
	return nil
}

// ListRepos returns all registered records.
func (a *App) ListRepos() ([]*golden.RepoRecord, error) {
	return a.registry.List()
}

// GetRepo returns one record, or nil when unregistered.
func (a *App) GetRepo(aliasName string) (*golden.RepoRecord, error) {
	return a.registry.Get(aliasName)
}

// RefreshOne runs one refresh cycle for an alias, including recovery
// bookkeeping, and sweeps cleanup afterward.
func (a *App) RefreshOne(ctx context.Context, aliasName string) *golden.RefreshResult {
	res := a.scheduler.RefreshOne(ctx, aliasName)
	a.cleanup.Sweep()
	return res
}

// RefreshAll refreshes every registered alias once.
func (a *App) RefreshAll(ctx context.Context) error {
	if err := a.scheduler.RefreshAll(ctx); err != nil {
		return err
	}
	a.cleanup.Sweep()
	return nil
}

// Serve runs the scheduler daemon until ctx is cancelled: the refresh loop,
// periodic cleanup sweeps, and (when enabled) the local-source watcher.
func (a *App) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.scheduler.Run(ctx) })
	g.Go(func() error {
		a.cleanup.Run(ctx, sweepInterval)
		return nil
	})

	if a.cfg.Watch.Enabled {
		sources, err := a.localSources()
		if err != nil {
			return err
		}
		if len(sources) > 0 {
			w := watcher.New(a.cfg.Watch.Debounce.Std(), a.scheduler.TriggerNow, a.logger)
			g.Go(func() error { return w.Run(ctx, sources) })
		}
	}

	return g.Wait()
}

// Resolve returns the physical path readers should use for an alias.
func (a *App) Resolve(aliasName string) (string, error) {
	return a.service.ActualRepoPath(aliasName)
}

// History returns the most recent refresh operations, newest first.
func (a *App) History(limit int) ([]*golden.RefreshOp, error) {
	return a.registry.ListOps(limit)
}

// FailureCount exposes the in-memory consecutive-failure counter.
func (a *App) FailureCount(aliasName string) int {
	return a.scheduler.FailureCount(aliasName)
}

func (a *App) localSources() (map[string]string, error) {
	recs, err := a.registry.List()
	if err != nil {
		return nil, err
	}
	sources := make(map[string]string)
	for _, rec := range recs {
		if rec.SourceKind == golden.SourceLocal {
			sources[rec.Alias] = rec.Upstream
		}
	}
	return sources, nil
}
