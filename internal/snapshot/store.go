// Package snapshot manages the versioned snapshot tree and the two-phase
// pipeline that produces new immutable versions:
//
//	<versioned root>/
//	  <alias>/
//	    v_<unix>/   (one immutable published state each)
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// versionPrefix prefixes every snapshot directory name.
const versionPrefix = "v_"

// Version is one snapshot directory of an alias.
type Version struct {
	Name string // directory name, e.g. "v_1724500000"
	Unix int64
}

// Time returns the version's creation timestamp.
func (v Version) Time() time.Time { return time.Unix(v.Unix, 0) }

// Store lays out version directories under a single root.
type Store struct {
	root string
}

// NewStore creates a Store rooted at the given directory.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// VersionsDir returns the snapshot tree for one alias.
func (s *Store) VersionsDir(alias string) string {
	return filepath.Join(s.root, alias)
}

// VersionPath returns the directory for a version created at the given time.
func (s *Store) VersionPath(alias string, at time.Time) string {
	return filepath.Join(s.VersionsDir(alias), fmt.Sprintf("%s%d", versionPrefix, at.Unix()))
}

// ParseVersion parses a directory name of the form v_<unix>. Malformed names
// are reported as not-a-version and ignored by every consumer.
func ParseVersion(name string) (Version, bool) {
	if !strings.HasPrefix(name, versionPrefix) {
		return Version{}, false
	}
	unix, err := strconv.ParseInt(name[len(versionPrefix):], 10, 64)
	if err != nil {
		return Version{}, false
	}
	return Version{Name: name, Unix: unix}, true
}

// ListVersions returns the alias's well-formed versions, oldest first.
// A missing versions directory yields an empty list.
func (s *Store) ListVersions(alias string) ([]Version, error) {
	entries, err := os.ReadDir(s.VersionsDir(alias))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading versions dir: %w", err)
	}

	var versions []Version
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		v, ok := ParseVersion(e.Name())
		if !ok {
			continue
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].Unix < versions[j].Unix })
	return versions, nil
}

// Latest returns the newest version of an alias, if any exists.
func (s *Store) Latest(alias string) (Version, bool, error) {
	versions, err := s.ListVersions(alias)
	if err != nil {
		return Version{}, false, err
	}
	if len(versions) == 0 {
		return Version{}, false, nil
	}
	return versions[len(versions)-1], true, nil
}

// IsVersionPath reports whether path is a version directory inside this
// store. Deletion guards use it so nothing outside the versioned tree is
// ever removed.
func (s *Store) IsVersionPath(path string) bool {
	rel, err := filepath.Rel(s.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 2 {
		return false
	}
	_, ok := ParseVersion(parts[1])
	return ok
}
