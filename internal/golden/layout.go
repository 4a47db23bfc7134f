package golden

import "path/filepath"

// Layout maps the engine's on-disk structure under a single base directory:
//
//	<base>/
//	  repos/<alias>         (flat master clones for git sources)
//	  versioned/<alias>/    (immutable v_<unix> snapshots, all sources)
//	  aliases/<alias>       (one binding file per alias)
type Layout struct {
	BaseDir string
}

// ReposDir returns the directory holding flat master clones.
func (l Layout) ReposDir() string {
	return filepath.Join(l.BaseDir, "repos")
}

// MasterClone returns the flat master-clone path for a git alias.
func (l Layout) MasterClone(alias string) string {
	return filepath.Join(l.ReposDir(), alias)
}

// VersionedDir returns the root of all versioned snapshot trees.
func (l Layout) VersionedDir() string {
	return filepath.Join(l.BaseDir, "versioned")
}

// VersionsDir returns the snapshot tree for one alias.
func (l Layout) VersionsDir(alias string) string {
	return filepath.Join(l.VersionedDir(), alias)
}

// AliasesDir returns the directory holding alias binding files.
func (l Layout) AliasesDir() string {
	return filepath.Join(l.BaseDir, "aliases")
}
