// Package detect implements the two change-detection strategies: a git
// fetch comparison for remote-backed repositories and an mtime scan for
// local directories. Both answer the same question: does the source have
// content newer than the last published version?
package detect

import (
	"fmt"
	"os"
	"time"

	"golden-go/internal/fs"
	"golden-go/internal/snapshot"
)

// LocalDetector detects changes in a local source directory by comparing
// file modification times against the newest published version timestamp.
type LocalDetector struct {
	ignore *fs.IgnoreMatcher
}

// NewLocalDetector creates a local change detector. The ignore matcher may
// be nil; dot-prefixed entries are always excluded regardless.
func NewLocalDetector(ignore *fs.IgnoreMatcher) *LocalDetector {
	return &LocalDetector{ignore: ignore}
}

// HasChanges reports whether source has content newer than the latest
// version under versionsDir.
//
//   - No versions directory, or no well-formed v_<unix> child: true. The
//     first version is always needed.
//   - Otherwise: true iff any visible file or directory under source has a
//     modification time strictly greater than the newest version timestamp.
//   - An empty visible source returns false.
//
// Hidden entries are pruned at every depth so the indexing side effects of
// a previous run never produce a false positive. Malformed version names
// that do not parse as v_<integer> are ignored.
func (d *LocalDetector) HasChanges(source, versionsDir string) (bool, error) {
	if _, err := os.Stat(source); err != nil {
		return false, fmt.Errorf("stat source: %w", err)
	}

	latest, ok, err := latestVersionTime(versionsDir)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}

	newest, found, err := fs.LatestVisibleMtime(source, d.ignore)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	return newest.After(latest), nil
}

// latestVersionTime returns the timestamp of the newest well-formed
// v_<unix> directory under versionsDir. ok is false when the directory is
// missing or holds no parseable version.
func latestVersionTime(versionsDir string) (time.Time, bool, error) {
	entries, err := os.ReadDir(versionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("reading versions dir: %w", err)
	}

	var latest snapshot.Version
	found := false
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		v, ok := snapshot.ParseVersion(e.Name())
		if !ok {
			continue
		}
		if !found || v.Unix > latest.Unix {
			latest = v
			found = true
		}
	}
	if !found {
		return time.Time{}, false, nil
	}
	return latest.Time(), true, nil
}
