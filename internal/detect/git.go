package detect

import (
	"context"

	"golden-go/internal/golden"
)

// puller is the slice of the git client that detection needs.
type puller interface {
	Pull(ctx context.Context, dir string) error
	RevParse(ctx context.Context, dir, ref string) (string, error)
}

// GitDetector detects upstream changes for a git-backed repository by
// fast-forwarding the master clone and comparing heads. A changed head
// means the clone already holds the new content, ready for indexing.
type GitDetector struct {
	git    puller
	logger golden.Logger
}

// NewGitDetector creates a git change detector.
func NewGitDetector(git puller, logger golden.Logger) *GitDetector {
	return &GitDetector{git: git, logger: logger}
}

// HasChanges pulls masterPath from its upstream and reports whether HEAD
// moved. Failures surface as *golden.FetchError with a classified category
// rather than a boolean.
func (d *GitDetector) HasChanges(ctx context.Context, masterPath string) (bool, error) {
	before, err := d.git.RevParse(ctx, masterPath, "HEAD")
	if err != nil {
		return false, err
	}

	if err := d.git.Pull(ctx, masterPath); err != nil {
		return false, err
	}

	after, err := d.git.RevParse(ctx, masterPath, "HEAD")
	if err != nil {
		return false, err
	}

	if before != after {
		d.logger.Debug("upstream moved", "path", masterPath, "from", before, "to", after)
		return true, nil
	}
	return false, nil
}
