package golden

import (
	"fmt"
	"time"
)

// SourceKind identifies where a golden repository's content comes from.
type SourceKind string

const (
	// SourceGit is a repository kept in sync with a git remote through a
	// flat master clone.
	SourceGit SourceKind = "git"
	// SourceLocal is a repository backed by a plain directory on the local
	// filesystem, detected via modification times.
	SourceLocal SourceKind = "local"
)

// ParseSourceKind validates a raw source kind string.
func ParseSourceKind(raw string) (SourceKind, error) {
	switch SourceKind(raw) {
	case SourceGit, SourceLocal:
		return SourceKind(raw), nil
	default:
		return "", fmt.Errorf("unknown source kind: %q", raw)
	}
}

// RepoRecord is the durable registry entry for one golden repository.
type RepoRecord struct {
	Alias          string
	SourceKind     SourceKind
	Upstream       string // git URL or local directory path
	DefaultBranch  string
	LastRefreshAt  time.Time // zero until the first successful publish
	LastError      string    // last failure message, empty after a success
	EnableTemporal bool
	EnableSCIP     bool
	CreatedAt      time.Time
}

// RefreshOp is one row of the refresh-operation log.
type RefreshOp struct {
	ID         string
	Alias      string
	Status     string // "success", "no_change" or "error"
	Message    string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Refresh-operation statuses.
const (
	OpSuccess  = "success"
	OpNoChange = "no_change"
	OpError    = "error"
)
