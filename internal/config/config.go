package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that decodes from TOML strings like "30s".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the main configuration for golden.
type Config struct {
	BaseDir  string         `toml:"base_dir"`
	LogDir   string         `toml:"log_dir"`
	Registry RegistryConfig `toml:"registry"`
	Refresh  RefreshConfig  `toml:"refresh"`
	Indexer  IndexerConfig  `toml:"indexer"`
	Detect   DetectConfig   `toml:"detect"`
	Watch    WatchConfig    `toml:"watch"`
}

// RegistryConfig configures the registry database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type RegistryConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// RefreshConfig configures the scheduler loop and the recovery policy.
type RefreshConfig struct {
	Interval         Duration `toml:"interval"`          // wake-up period of the scheduler loop
	Workers          int      `toml:"workers"`           // bounded worker pool size
	FailureThreshold int      `toml:"failure_threshold"` // consecutive transient failures before reclone
	RecloneCooldown  Duration `toml:"reclone_cooldown"`  // minimum spacing between reclone attempts per alias
	CleanupGrace     Duration `toml:"cleanup_grace"`     // retention after a snapshot stops being active
	FetchTimeout     Duration `toml:"fetch_timeout"`
	CloneTimeout     Duration `toml:"clone_timeout"`
	IndexTimeout     Duration `toml:"index_timeout"`
}

// IndexerConfig configures the external indexing tool.
type IndexerConfig struct {
	Binary    string   `toml:"binary"`    // indexer executable name or path
	Artifacts []string `toml:"artifacts"` // snapshot entries that must exist after indexing
}

// DetectConfig configures local change detection.
type DetectConfig struct {
	Ignore []string `toml:"ignore"` // extra ignore patterns beyond dot-prefixed entries
}

// WatchConfig configures the optional fsnotify nudge for local sources.
type WatchConfig struct {
	Enabled  bool     `toml:"enabled"`
	Debounce Duration `toml:"debounce"`
}

// NewConfig creates a Config with defaults rooted at the given base directory.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Registry: RegistryConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "registry"),
		},
		Refresh: RefreshConfig{
			Interval:         Duration(5 * time.Minute),
			Workers:          4,
			FailureThreshold: 3,
			RecloneCooldown:  Duration(10 * time.Minute),
			CleanupGrace:     Duration(5 * time.Minute),
			FetchTimeout:     Duration(2 * time.Minute),
			CloneTimeout:     Duration(15 * time.Minute),
			IndexTimeout:     Duration(30 * time.Minute),
		},
		Indexer: IndexerConfig{
			Binary:    "golden-indexer",
			Artifacts: []string{".index"},
		},
		Watch: WatchConfig{
			Enabled:  false,
			Debounce: Duration(2 * time.Second),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
