package testutil

import (
	"testing"

	"golden-go/internal/golden"
	"golden-go/internal/registry"
)

// NewTestRegistry creates an in-memory SQLite registry with schema applied.
// The registry is automatically closed when the test completes.
func NewTestRegistry(t *testing.T) golden.Registry {
	t.Helper()

	reg, err := registry.NewSQLiteRegistry(":memory:")
	if err != nil {
		t.Fatalf("failed to open registry: %v", err)
	}

	t.Cleanup(func() {
		reg.Close()
	})

	return reg
}
