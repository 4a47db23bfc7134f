package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/golden")

	if cfg.Registry.Type != "sqlite" {
		t.Errorf("Registry.Type = %q, want sqlite", cfg.Registry.Type)
	}
	if cfg.Registry.DataDir != filepath.Join("/data/golden", "registry") {
		t.Errorf("Registry.DataDir = %q", cfg.Registry.DataDir)
	}
	if cfg.Refresh.Interval.Std() != 5*time.Minute {
		t.Errorf("Refresh.Interval = %v, want 5m", cfg.Refresh.Interval.Std())
	}
	if cfg.Refresh.FailureThreshold != 3 {
		t.Errorf("FailureThreshold = %d, want 3", cfg.Refresh.FailureThreshold)
	}
	if cfg.Refresh.RecloneCooldown.Std() != 10*time.Minute {
		t.Errorf("RecloneCooldown = %v, want 10m", cfg.Refresh.RecloneCooldown.Std())
	}
	if cfg.Indexer.Binary != "golden-indexer" {
		t.Errorf("Indexer.Binary = %q", cfg.Indexer.Binary)
	}
	if len(cfg.Indexer.Artifacts) != 1 || cfg.Indexer.Artifacts[0] != ".index" {
		t.Errorf("Indexer.Artifacts = %v, want [.index]", cfg.Indexer.Artifacts)
	}
	if cfg.Watch.Enabled {
		t.Error("watching must be opt-in")
	}
}

func TestManager_Read(t *testing.T) {
	t.Run("decodes durations from strings", func(t *testing.T) {
		input := `
base_dir = "/srv/golden"

[refresh]
interval = "90s"
workers = 8
failure_threshold = 5
reclone_cooldown = "1h"

[registry]
type = "memory"

[detect]
ignore = ["*.tmp", "build"]

[watch]
enabled = true
debounce = "500ms"
`
		m := &Manager{}
		cfg, err := m.Read(strings.NewReader(input))
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}

		if cfg.BaseDir != "/srv/golden" {
			t.Errorf("BaseDir = %q", cfg.BaseDir)
		}
		if cfg.Refresh.Interval.Std() != 90*time.Second {
			t.Errorf("Interval = %v, want 90s", cfg.Refresh.Interval.Std())
		}
		if cfg.Refresh.Workers != 8 || cfg.Refresh.FailureThreshold != 5 {
			t.Errorf("Workers/FailureThreshold = %d/%d", cfg.Refresh.Workers, cfg.Refresh.FailureThreshold)
		}
		if cfg.Refresh.RecloneCooldown.Std() != time.Hour {
			t.Errorf("RecloneCooldown = %v, want 1h", cfg.Refresh.RecloneCooldown.Std())
		}
		if cfg.Registry.Type != "memory" {
			t.Errorf("Registry.Type = %q", cfg.Registry.Type)
		}
		if len(cfg.Detect.Ignore) != 2 {
			t.Errorf("Detect.Ignore = %v", cfg.Detect.Ignore)
		}
		if !cfg.Watch.Enabled || cfg.Watch.Debounce.Std() != 500*time.Millisecond {
			t.Errorf("Watch = %+v", cfg.Watch)
		}
	})

	t.Run("bad duration is an error", func(t *testing.T) {
		m := &Manager{}
		_, err := m.Read(strings.NewReader("[refresh]\ninterval = \"soon\"\n"))
		if err == nil {
			t.Error("expected error for unparseable duration")
		}
	})
}

func TestConfig_RoundTrip(t *testing.T) {
	m := &Manager{}
	orig := NewConfig("/data/golden")

	var buf strings.Builder
	if err := m.Write(&buf, orig); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.Refresh.Interval != orig.Refresh.Interval {
		t.Errorf("Interval = %v, want %v", got.Refresh.Interval, orig.Refresh.Interval)
	}
	if got.Indexer.Binary != orig.Indexer.Binary {
		t.Errorf("Indexer.Binary = %q, want %q", got.Indexer.Binary, orig.Indexer.Binary)
	}
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "golden.toml")
	cfg := NewConfig("/data/golden")

	if err := Init(path, cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	read, err := ReadFromFile(path)
	if err != nil {
		t.Fatalf("ReadFromFile() error = %v", err)
	}
	if read.BaseDir != cfg.BaseDir {
		t.Errorf("BaseDir = %q, want %q", read.BaseDir, cfg.BaseDir)
	}

	// A second Init must refuse to clobber the existing file.
	if err := Init(path, cfg); err == nil {
		t.Error("expected error initializing over an existing config")
	}
}
