package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"golden-go/internal/config"
	"golden-go/internal/golden"
)

// NewRegistryFromConfig creates a Registry implementation based on the
// registry config type.
func NewRegistryFromConfig(cfg config.RegistryConfig) (golden.Registry, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite registry")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating registry data dir: %w", err)
		}
		return NewSQLiteRegistry(filepath.Join(cfg.DataDir, "registry.db"))
	case "memory":
		return NewSQLiteRegistry(":memory:")
	default:
		return nil, fmt.Errorf("unknown registry type: %s", cfg.Type)
	}
}
