package fs

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFileAt(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

// setDirTime pins a directory's mtime after its contents are in place;
// creating entries inside a directory bumps its mtime, and visible
// directories count toward the scan.
func setDirTime(t *testing.T, dir string, mtime time.Time) {
	t.Helper()
	if err := os.Chtimes(dir, mtime, mtime); err != nil {
		t.Fatalf("chtimes dir: %v", err)
	}
}

func TestLatestVisibleMtime(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("returns newest mtime", func(t *testing.T) {
		dir := t.TempDir()
		writeFileAt(t, filepath.Join(dir, "a.txt"), base)
		writeFileAt(t, filepath.Join(dir, "sub", "b.txt"), base.Add(10*time.Second))
		setDirTime(t, filepath.Join(dir, "sub"), base)

		got, found, err := LatestVisibleMtime(dir, nil)
		if err != nil {
			t.Fatalf("LatestVisibleMtime() error = %v", err)
		}
		if !found {
			t.Fatal("expected entries to be found")
		}
		if !got.Equal(base.Add(10 * time.Second)) {
			t.Errorf("latest = %v, want %v", got, base.Add(10*time.Second))
		}
	})

	t.Run("empty directory reports not found", func(t *testing.T) {
		dir := t.TempDir()

		_, found, err := LatestVisibleMtime(dir, nil)
		if err != nil {
			t.Fatalf("LatestVisibleMtime() error = %v", err)
		}
		if found {
			t.Error("expected no visible entries")
		}
	})

	t.Run("hidden entries are pruned at every depth", func(t *testing.T) {
		dir := t.TempDir()
		writeFileAt(t, filepath.Join(dir, "a.txt"), base)
		// Newer, but all hidden one way or another.
		writeFileAt(t, filepath.Join(dir, ".cache", "huge.db"), base.Add(time.Hour))
		writeFileAt(t, filepath.Join(dir, "sub", ".hidden.txt"), base.Add(time.Hour))
		writeFileAt(t, filepath.Join(dir, ".git", "objects", "x"), base.Add(time.Hour))
		// sub is visible and its own mtime counts; only its hidden child must not.
		setDirTime(t, filepath.Join(dir, "sub"), base)

		got, found, err := LatestVisibleMtime(dir, nil)
		if err != nil {
			t.Fatalf("LatestVisibleMtime() error = %v", err)
		}
		if !found {
			t.Fatal("expected visible entry")
		}
		if !got.Equal(base) {
			t.Errorf("latest = %v, want %v (hidden entries must not count)", got, base)
		}
	})

	t.Run("only hidden entries reports not found", func(t *testing.T) {
		dir := t.TempDir()
		writeFileAt(t, filepath.Join(dir, ".cache", "x"), base)

		_, found, err := LatestVisibleMtime(dir, nil)
		if err != nil {
			t.Fatalf("LatestVisibleMtime() error = %v", err)
		}
		if found {
			t.Error("hidden-only directory must report not found")
		}
	})

	t.Run("ignore matcher prunes entries", func(t *testing.T) {
		dir := t.TempDir()
		writeFileAt(t, filepath.Join(dir, "a.txt"), base)
		writeFileAt(t, filepath.Join(dir, "build", "out.bin"), base.Add(time.Hour))

		matcher := NewIgnoreMatcher([]string{"build"})
		got, _, err := LatestVisibleMtime(dir, matcher)
		if err != nil {
			t.Fatalf("LatestVisibleMtime() error = %v", err)
		}
		if !got.Equal(base) {
			t.Errorf("latest = %v, want %v (ignored dir must not count)", got, base)
		}
	})
}

func TestIgnoreMatcher(t *testing.T) {
	t.Run("basename patterns", func(t *testing.T) {
		m := NewIgnoreMatcher([]string{"*.tmp", "node_modules"})
		if !m.Match("a/b/c.tmp") {
			t.Error("expected *.tmp to match nested file")
		}
		if !m.Match("node_modules") {
			t.Error("expected directory name to match")
		}
		if m.Match("a/b/c.txt") {
			t.Error("unexpected match for c.txt")
		}
	})

	t.Run("path patterns", func(t *testing.T) {
		m := NewIgnoreMatcher([]string{"build/*"})
		if !m.Match("build/out.bin") {
			t.Error("expected build/* to match")
		}
		if m.Match("src/out.bin") {
			t.Error("unexpected match outside build/")
		}
	})

	t.Run("comments and blanks are skipped", func(t *testing.T) {
		m := NewIgnoreMatcher([]string{"", "# comment", "real"})
		if m.Match("# comment") {
			t.Error("comment line must not become a pattern")
		}
		if !m.Match("real") {
			t.Error("expected real pattern to match")
		}
	})

	t.Run("nil matcher matches nothing", func(t *testing.T) {
		var m *IgnoreMatcher
		if m.Match("anything") {
			t.Error("nil matcher must not match")
		}
	})
}
