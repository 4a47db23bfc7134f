// Package fs holds filesystem helpers shared by change detection: a
// latest-mtime scan that prunes hidden entries, and an ignore matcher.
package fs

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// LatestVisibleMtime walks root and returns the maximum modification time of
// any visible file or directory beneath it. Entries whose name starts with
// '.' are pruned at every depth, so index caches and VCS metadata never
// influence the result. The ignore matcher (optional) prunes further entries
// by relative path.
//
// The boolean result is false when root contains no visible entries at all.
func LatestVisibleMtime(root string, ignore *IgnoreMatcher) (time.Time, bool, error) {
	var latest time.Time
	found := false

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}

		name := d.Name()
		if strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}
		if ignore.Match(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}

		found = true
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("walking %s: %w", root, err)
	}

	return latest, found, nil
}
