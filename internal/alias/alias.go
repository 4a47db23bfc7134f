// Package alias maps logical alias names to physical directories through
// one binding file per alias. Bindings change only via write-then-rename,
// so a reader never observes a half-written target.
package alias

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Manager stores alias bindings as files under a single directory. The file
// content is the absolute target path.
type Manager struct {
	dir string
}

// NewManager creates a Manager writing bindings under dir.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

func (m *Manager) bindingPath(alias string) string {
	return filepath.Join(m.dir, alias)
}

// Swap atomically repoints alias to target. The new binding is written to a
// sidecar file, fsynced, and renamed over the old one; the directory is
// fsynced afterward so the rename itself is durable.
func (m *Manager) Swap(alias, target string) error {
	if !filepath.IsAbs(target) {
		return fmt.Errorf("binding target must be absolute: %s", target)
	}
	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("binding target does not exist: %w", err)
	}
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("creating aliases directory: %w", err)
	}

	tmp := m.bindingPath(alias) + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating binding file: %w", err)
	}
	if _, err := f.WriteString(target + "\n"); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing binding: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing binding: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing binding: %w", err)
	}

	if err := os.Rename(tmp, m.bindingPath(alias)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publishing binding: %w", err)
	}

	return m.syncDir()
}

// Resolve returns the directory an alias is bound to. A missing binding
// surfaces as an os.IsNotExist error.
func (m *Manager) Resolve(alias string) (string, error) {
	data, err := os.ReadFile(m.bindingPath(alias))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Remove deletes an alias binding. Removing a missing binding is a no-op.
func (m *Manager) Remove(alias string) error {
	if err := os.Remove(m.bindingPath(alias)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing binding: %w", err)
	}
	return nil
}

// List returns all bound aliases.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading aliases directory: %w", err)
	}

	var aliases []string
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		aliases = append(aliases, e.Name())
	}
	return aliases, nil
}

func (m *Manager) syncDir() error {
	d, err := os.Open(m.dir)
	if err != nil {
		return fmt.Errorf("opening aliases directory: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("syncing aliases directory: %w", err)
	}
	return nil
}
