package golden

import (
	"context"
	"time"
)

// Registry is the durable record of every golden repository plus the
// refresh-operation log.
type Registry interface {
	// Create inserts a new repository record. Fails if the alias exists.
	Create(rec *RepoRecord) error

	// Get returns the record for an alias, or nil if it is not registered.
	Get(alias string) (*RepoRecord, error)

	// List returns all records ordered by alias.
	List() ([]*RepoRecord, error)

	// TouchRefresh records a successful publish time and clears the last error.
	TouchRefresh(alias string, at time.Time) error

	// SetLastError records the most recent failure message for dashboards.
	SetLastError(alias, msg string) error

	// Delete removes a repository record.
	Delete(alias string) error

	// AppendOp appends one row to the refresh-operation log.
	AppendOp(op *RefreshOp) error

	// ListOps returns the most recent operations, newest first.
	ListOps(limit int) ([]*RefreshOp, error)

	// Close closes the underlying store.
	Close() error
}

// AliasStore maps logical alias names to physical directories. Swap must be
// atomic: a reader never observes a half-written binding.
type AliasStore interface {
	Swap(alias, target string) error
	Resolve(alias string) (string, error)
	Remove(alias string) error
}

// LocalDetector reports whether a local source directory has content newer
// than the latest published version under versionsDir.
type LocalDetector interface {
	HasChanges(source, versionsDir string) (bool, error)
}

// GitDetector reports whether a git upstream has new content, advancing the
// master clone when it does. Failures surface as *FetchError.
type GitDetector interface {
	HasChanges(ctx context.Context, masterPath string) (bool, error)
}

// Pipeline is the two-phase snapshot pipeline: index the live source, then
// produce an immutable CoW snapshot that inherits the index.
type Pipeline interface {
	IndexSource(ctx context.Context, alias, source string) error
	CreateSnapshot(ctx context.Context, alias, source string) (string, error)
}

// CleanupScheduler accepts superseded snapshot paths for deferred deletion.
type CleanupScheduler interface {
	Schedule(path string)
}
