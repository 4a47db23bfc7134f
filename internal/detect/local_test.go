package detect

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func mkVersion(t *testing.T, versionsDir string, unix int64) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(versionsDir, fmt.Sprintf("v_%d", unix)), 0755); err != nil {
		t.Fatalf("mkdir version: %v", err)
	}
}

func mkFile(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

// mkDirAt pins a directory's mtime after its contents are in place; visible
// directories count toward the scan and creating children bumps them.
func mkDirAt(t *testing.T, dir string, mtime time.Time) {
	t.Helper()
	if err := os.Chtimes(dir, mtime, mtime); err != nil {
		t.Fatalf("chtimes dir: %v", err)
	}
}

func TestLocalDetector_HasChanges(t *testing.T) {
	d := NewLocalDetector(nil)
	versionTime := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("no versions directory means first version needed", func(t *testing.T) {
		source := t.TempDir()
		mkFile(t, filepath.Join(source, "a.txt"), versionTime)

		changed, err := d.HasChanges(source, filepath.Join(t.TempDir(), "missing"))
		if err != nil {
			t.Fatalf("HasChanges() error = %v", err)
		}
		if !changed {
			t.Error("expected changes when no version exists yet")
		}
	})

	t.Run("only malformed version names means first version needed", func(t *testing.T) {
		source := t.TempDir()
		mkFile(t, filepath.Join(source, "a.txt"), versionTime)

		versionsDir := t.TempDir()
		for _, name := range []string{"v_abc", "v_", "current", "v_12x3"} {
			if err := os.MkdirAll(filepath.Join(versionsDir, name), 0755); err != nil {
				t.Fatalf("mkdir: %v", err)
			}
		}

		changed, err := d.HasChanges(source, versionsDir)
		if err != nil {
			t.Fatalf("HasChanges() error = %v", err)
		}
		if !changed {
			t.Error("malformed version names must be ignored")
		}
	})

	t.Run("newer file triggers change", func(t *testing.T) {
		source := t.TempDir()
		versionsDir := t.TempDir()
		mkVersion(t, versionsDir, versionTime.Unix())
		mkFile(t, filepath.Join(source, "a.txt"), versionTime.Add(10*time.Second))

		changed, err := d.HasChanges(source, versionsDir)
		if err != nil {
			t.Fatalf("HasChanges() error = %v", err)
		}
		if !changed {
			t.Error("mtime after latest version must report changes")
		}
	})

	t.Run("equal or older mtime reports no change", func(t *testing.T) {
		source := t.TempDir()
		versionsDir := t.TempDir()
		mkVersion(t, versionsDir, versionTime.Unix())
		mkFile(t, filepath.Join(source, "a.txt"), versionTime)
		mkFile(t, filepath.Join(source, "b.txt"), versionTime.Add(-time.Hour))

		changed, err := d.HasChanges(source, versionsDir)
		if err != nil {
			t.Fatalf("HasChanges() error = %v", err)
		}
		if changed {
			t.Error("strictly-greater is required; equal mtime must not report changes")
		}
	})

	t.Run("uses the maximum version timestamp", func(t *testing.T) {
		source := t.TempDir()
		versionsDir := t.TempDir()
		mkVersion(t, versionsDir, versionTime.Unix())
		mkVersion(t, versionsDir, versionTime.Add(time.Hour).Unix())

		// Newer than the first version but older than the latest.
		mkFile(t, filepath.Join(source, "a.txt"), versionTime.Add(30*time.Minute))

		changed, err := d.HasChanges(source, versionsDir)
		if err != nil {
			t.Fatalf("HasChanges() error = %v", err)
		}
		if changed {
			t.Error("comparison must use the newest version timestamp")
		}
	})

	t.Run("hidden entries never trigger changes", func(t *testing.T) {
		source := t.TempDir()
		versionsDir := t.TempDir()
		mkVersion(t, versionsDir, versionTime.Unix())
		mkFile(t, filepath.Join(source, "a.txt"), versionTime.Add(-time.Hour))
		// Indexing side effects from a previous run.
		mkFile(t, filepath.Join(source, ".index", "fts.db"), versionTime.Add(time.Hour))
		mkFile(t, filepath.Join(source, "sub", ".cache"), versionTime.Add(time.Hour))
		mkDirAt(t, filepath.Join(source, "sub"), versionTime.Add(-time.Hour))

		changed, err := d.HasChanges(source, versionsDir)
		if err != nil {
			t.Fatalf("HasChanges() error = %v", err)
		}
		if changed {
			t.Error("hidden entries must be excluded from the scan")
		}
	})

	t.Run("empty source reports no change", func(t *testing.T) {
		source := t.TempDir()
		versionsDir := t.TempDir()
		mkVersion(t, versionsDir, versionTime.Unix())

		changed, err := d.HasChanges(source, versionsDir)
		if err != nil {
			t.Fatalf("HasChanges() error = %v", err)
		}
		if changed {
			t.Error("empty source must not report changes")
		}
	})

	t.Run("missing source is an error", func(t *testing.T) {
		if _, err := d.HasChanges(filepath.Join(t.TempDir(), "gone"), t.TempDir()); err == nil {
			t.Error("expected error for missing source")
		}
	})
}
