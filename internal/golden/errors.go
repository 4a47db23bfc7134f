package golden

import "fmt"

// FetchCategory classifies a failed git operation.
type FetchCategory string

const (
	// FetchTransient covers network problems and anything unrecognized.
	// Transient failures accumulate toward the reclone threshold.
	FetchTransient FetchCategory = "transient"
	// FetchCorruption covers repository-integrity damage. A corruption
	// failure triggers recovery immediately.
	FetchCorruption FetchCategory = "corruption"
)

// FetchError is a classified git failure raised by the git change detector
// and by git subprocess calls during recovery.
type FetchError struct {
	Category FetchCategory
	Stderr   string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("git fetch failed (%s): %v", e.Category, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IndexError reports a failed or timed-out indexer invocation.
type IndexError struct {
	Stage string // "index" or "fix-config"
	Err   error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("indexer %s failed: %v", e.Stage, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// SnapshotError reports a failed clone or a snapshot that did not validate.
type SnapshotError struct {
	Path string
	Err  error
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("snapshot %s failed: %v", e.Path, e.Err)
}

func (e *SnapshotError) Unwrap() error { return e.Err }

// PublishError reports a failed alias swap. The previous binding is still
// intact when this is returned; the cycle fails toward last-known-good.
type PublishError struct {
	Alias string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publishing alias %s failed: %v", e.Alias, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }
