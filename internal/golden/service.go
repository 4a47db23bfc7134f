package golden

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// RefreshResult is the structured outcome of one refresh attempt.
type RefreshResult struct {
	Alias       string
	Success     bool
	Message     string
	VersionPath string // set when a new snapshot was published
}

// RefreshService coordinates change detection, the snapshot pipeline and
// publishing for a single refresh. It holds no failure state; the scheduler
// owns counters and recovery.
type RefreshService struct {
	registry Registry
	aliases  AliasStore
	local    LocalDetector
	git      GitDetector
	pipeline Pipeline
	cleanup  CleanupScheduler
	layout   Layout
	logger   Logger
	clock    Clock
}

// NewRefreshService creates a RefreshService with the provided dependencies.
func NewRefreshService(registry Registry, aliases AliasStore, local LocalDetector, git GitDetector, pipeline Pipeline, cleanup CleanupScheduler, layout Layout, logger Logger, clock Clock) *RefreshService {
	return &RefreshService{
		registry: registry,
		aliases:  aliases,
		local:    local,
		git:      git,
		pipeline: pipeline,
		cleanup:  cleanup,
		layout:   layout,
		logger:   logger,
		clock:    clock,
	}
}

// ExecuteRefresh runs one refresh cycle for an alias: detect, index,
// snapshot, publish. A nil error with Success=true means the upstream was
// contacted successfully, whether or not a new version was produced.
//
// Git detection failures return a *FetchError for the caller to classify;
// every other failure is generic and counts as transient.
func (s *RefreshService) ExecuteRefresh(ctx context.Context, alias string) (*RefreshResult, error) {
	rec, err := s.registry.Get(alias)
	if err != nil {
		return nil, fmt.Errorf("loading registry record: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("alias is not registered: %s", alias)
	}

	result := &RefreshResult{Alias: alias}

	// The path that gets indexed and snapshotted is always the live source:
	// the master clone for git, the registered directory for local. The
	// alias may currently be bound to an old snapshot; detection must never
	// look there.
	var source string
	switch rec.SourceKind {
	case SourceGit:
		source = s.layout.MasterClone(alias)
	case SourceLocal:
		source = rec.Upstream
	default:
		return nil, fmt.Errorf("record %s has unknown source kind %q", alias, rec.SourceKind)
	}

	changed, err := s.detect(ctx, rec, source)
	if err != nil {
		result.Message = err.Error()
		return result, err
	}

	if !changed {
		result.Success = true
		result.Message = "No changes detected"
		return result, nil
	}

	s.logger.Info("changes detected", "alias", alias, "source", source)

	if err := s.pipeline.IndexSource(ctx, alias, source); err != nil {
		result.Message = err.Error()
		return result, err
	}

	versionPath, err := s.pipeline.CreateSnapshot(ctx, alias, source)
	if err != nil {
		result.Message = err.Error()
		return result, err
	}

	oldPath, err := s.aliases.Resolve(alias)
	if err != nil && !os.IsNotExist(err) {
		result.Message = err.Error()
		return result, fmt.Errorf("resolving previous binding: %w", err)
	}

	if err := s.aliases.Swap(alias, versionPath); err != nil {
		pubErr := &PublishError{Alias: alias, Err: err}
		result.Message = pubErr.Error()
		return result, pubErr
	}

	if err := s.registry.TouchRefresh(alias, s.clock.Now()); err != nil {
		// The snapshot is already live; a stale timestamp is not worth
		// failing the cycle over.
		s.logger.Warn("updating last-refresh timestamp failed", "alias", alias, "error", err)
	}

	if oldPath != "" && oldPath != versionPath {
		s.cleanup.Schedule(oldPath)
	}

	s.logger.Info("published new version", "alias", alias, "version", filepath.Base(versionPath))

	result.Success = true
	result.Message = "Published " + filepath.Base(versionPath)
	result.VersionPath = versionPath
	return result, nil
}

// detect dispatches to the change-detection strategy for the record's
// source kind. Local repositories never touch the git fetch path.
func (s *RefreshService) detect(ctx context.Context, rec *RepoRecord, source string) (bool, error) {
	switch rec.SourceKind {
	case SourceGit:
		if _, err := os.Stat(source); err != nil {
			if os.IsNotExist(err) {
				// A missing master clone cannot be fetched into; recovery
				// rebuilds it from upstream.
				return false, &FetchError{
					Category: FetchCorruption,
					Err:      fmt.Errorf("master clone missing: %s", source),
				}
			}
			return false, fmt.Errorf("stat master clone: %w", err)
		}
		// A registered alias with no binding has never been published; the
		// master clone is current from registration and needs its first
		// snapshot regardless of upstream movement.
		if _, err := s.aliases.Resolve(rec.Alias); err != nil {
			if os.IsNotExist(err) {
				return true, nil
			}
			return false, fmt.Errorf("resolving binding: %w", err)
		}
		return s.git.HasChanges(ctx, source)
	case SourceLocal:
		changed, err := s.local.HasChanges(source, s.layout.VersionsDir(rec.Alias))
		if err != nil {
			return false, fmt.Errorf("scanning local source: %w", err)
		}
		return changed, nil
	}
	return false, fmt.Errorf("unknown source kind %q", rec.SourceKind)
}

// ActualRepoPath resolves an alias to the physical directory readers should
// use: the current binding when one exists, otherwise the live source.
func (s *RefreshService) ActualRepoPath(alias string) (string, error) {
	target, err := s.aliases.Resolve(alias)
	if err == nil {
		return target, nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("resolving alias: %w", err)
	}

	rec, err := s.registry.Get(alias)
	if err != nil {
		return "", fmt.Errorf("loading registry record: %w", err)
	}
	if rec == nil {
		return "", fmt.Errorf("alias is not registered: %s", alias)
	}
	if rec.SourceKind == SourceGit {
		return s.layout.MasterClone(alias), nil
	}
	return rec.Upstream, nil
}

// IsFetchError reports whether err carries a classified git failure and, if
// so, returns its category.
func IsFetchError(err error) (FetchCategory, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Category, true
	}
	return "", false
}
