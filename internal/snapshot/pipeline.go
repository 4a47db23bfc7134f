package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golden-go/internal/golden"
	"golden-go/internal/run"
)

// GitRepairer runs the clean-working-tree commands inside a cloned snapshot
// that carries version-control metadata.
type GitRepairer interface {
	RefreshIndex(ctx context.Context, dir string) error
	RestoreAll(ctx context.Context, dir string) error
}

// Pipeline produces new immutable versions in two phases: index the live
// source once, then CoW-clone it so the copy inherits the index for free.
type Pipeline struct {
	runner       run.Runner
	git          GitRepairer
	store        *Store
	indexerBin   string
	artifacts    []string
	indexTimeout time.Duration
	cloneTimeout time.Duration
	logger       golden.Logger
	clock        golden.Clock
}

// NewPipeline creates a snapshot pipeline.
func NewPipeline(runner run.Runner, git GitRepairer, store *Store, indexerBin string, artifacts []string, indexTimeout, cloneTimeout time.Duration, logger golden.Logger, clock golden.Clock) *Pipeline {
	return &Pipeline{
		runner:       runner,
		git:          git,
		store:        store,
		indexerBin:   indexerBin,
		artifacts:    artifacts,
		indexTimeout: indexTimeout,
		cloneTimeout: cloneTimeout,
		logger:       logger,
		clock:        clock,
	}
}

// IndexSource runs the indexer against the live source directory. The
// config-repair step must never run here: it rewrites embedded paths and
// would corrupt the shared working copy.
func (p *Pipeline) IndexSource(ctx context.Context, alias, source string) error {
	p.logger.Info("indexing source", "alias", alias, "source", source)

	spec := run.Spec{
		Name:    p.indexerBin,
		Args:    []string{"index", "--fts"},
		Dir:     source,
		Timeout: p.indexTimeout,
	}
	res, err := p.runner.Run(ctx, spec)
	if err != nil {
		return &golden.IndexError{Stage: "index", Err: err}
	}
	if !res.Ok() {
		return &golden.IndexError{Stage: "index", Err: run.Errorf(spec, res)}
	}
	return nil
}

// CreateSnapshot CoW-clones source into a fresh v_<unix> directory, repairs
// clone-local state, and validates the result. It returns the new version's
// absolute path. Existing versions are never touched; on failure only the
// directory created by this call is removed.
func (p *Pipeline) CreateSnapshot(ctx context.Context, alias, source string) (string, error) {
	versionsDir := p.store.VersionsDir(alias)
	if err := os.MkdirAll(versionsDir, 0755); err != nil {
		return "", &golden.SnapshotError{Path: versionsDir, Err: err}
	}

	dest := p.store.VersionPath(alias, p.clock.Now())
	if _, err := os.Stat(dest); err == nil {
		return "", &golden.SnapshotError{Path: dest, Err: fmt.Errorf("version already exists")}
	}

	if err := p.clone(ctx, source, dest); err != nil {
		p.discard(dest)
		return "", err
	}

	// Version-control repair applies only to snapshots that actually carry
	// VCS metadata; a plain document corpus must never see git commands.
	if hasGitDir(dest) {
		if err := p.git.RefreshIndex(ctx, dest); err != nil {
			p.discard(dest)
			return "", &golden.SnapshotError{Path: dest, Err: fmt.Errorf("refreshing git index: %w", err)}
		}
		if err := p.git.RestoreAll(ctx, dest); err != nil {
			p.discard(dest)
			return "", &golden.SnapshotError{Path: dest, Err: fmt.Errorf("restoring working tree: %w", err)}
		}
	}

	// Index metadata embeds absolute paths; the clone needs them rewritten
	// to its own location. Only ever run against the clone.
	if err := p.fixConfig(ctx, dest); err != nil {
		p.discard(dest)
		return "", err
	}

	if err := p.validate(dest); err != nil {
		p.discard(dest)
		return "", err
	}

	p.logger.Info("snapshot created", "alias", alias, "path", dest)
	return dest, nil
}

// clone copies source to dest with copy-on-write when the filesystem
// supports it. `--reflink=auto` already degrades to a byte copy on
// non-reflink filesystems; the second attempt covers cp binaries without
// the flag at all.
func (p *Pipeline) clone(ctx context.Context, source, dest string) error {
	spec := run.Spec{
		Name:    "cp",
		Args:    []string{"-a", "--reflink=auto", source, dest},
		Timeout: p.cloneTimeout,
	}
	res, err := p.runner.Run(ctx, spec)
	if err != nil {
		return &golden.SnapshotError{Path: dest, Err: err}
	}
	if res.Ok() {
		return nil
	}

	if strings.Contains(res.Stderr, "reflink") || strings.Contains(res.Stderr, "illegal option") || strings.Contains(res.Stderr, "unrecognized option") {
		p.logger.Warn("cp does not support --reflink, falling back to full copy", "dest", dest)
		p.discard(dest)
		fallback := run.Spec{
			Name:    "cp",
			Args:    []string{"-a", source, dest},
			Timeout: p.cloneTimeout,
		}
		res, err = p.runner.Run(ctx, fallback)
		if err != nil {
			return &golden.SnapshotError{Path: dest, Err: err}
		}
		if res.Ok() {
			return nil
		}
		return &golden.SnapshotError{Path: dest, Err: run.Errorf(fallback, res)}
	}

	return &golden.SnapshotError{Path: dest, Err: run.Errorf(spec, res)}
}

func (p *Pipeline) fixConfig(ctx context.Context, dest string) error {
	spec := run.Spec{
		Name:    p.indexerBin,
		Args:    []string{"fix-config", "--force"},
		Dir:     dest,
		Timeout: p.indexTimeout,
	}
	res, err := p.runner.Run(ctx, spec)
	if err != nil {
		return &golden.IndexError{Stage: "fix-config", Err: err}
	}
	if !res.Ok() {
		return &golden.IndexError{Stage: "fix-config", Err: run.Errorf(spec, res)}
	}
	return nil
}

// validate confirms the expected index artifacts exist in the new snapshot.
// A snapshot that fails validation is never eligible for publishing.
func (p *Pipeline) validate(dest string) error {
	for _, artifact := range p.artifacts {
		if _, err := os.Stat(filepath.Join(dest, artifact)); err != nil {
			return &golden.SnapshotError{Path: dest, Err: fmt.Errorf("missing index artifact %q: %w", artifact, err)}
		}
	}
	return nil
}

// discard removes a version directory created by this call. The guard keeps
// the blast radius to the store's own version paths.
func (p *Pipeline) discard(dest string) {
	if !p.store.IsVersionPath(dest) {
		return
	}
	if err := os.RemoveAll(dest); err != nil {
		p.logger.Warn("removing failed snapshot", "path", dest, "error", err)
	}
}

func hasGitDir(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil && info.IsDir()
}
