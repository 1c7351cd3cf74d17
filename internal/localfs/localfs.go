// Package localfs is the local filesystem adapter for a sync root. All
// paths are forward-slash separated and relative to the root.
package localfs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"ceased/internal/ceased"
)

// Dir provides relative-path addressed access to files under a sync root.
type Dir struct {
	root string
}

func New(root string) *Dir {
	return &Dir{root: root}
}

// Root returns the absolute root of the sync directory.
func (d *Dir) Root() string { return d.root }

func (d *Dir) abs(path string) string {
	return filepath.Join(d.root, filepath.FromSlash(path))
}

// ListAll returns the relative paths of every regular file under the root,
// in walk order.
func (d *Dir) ListAll() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", d.root, err)
	}
	return paths, nil
}

// Read returns the contents of a file. Returns an error wrapping
// ErrNotFound if the file does not exist.
func (d *Dir) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(d.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ceased.ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// Write stores data at path, creating intermediate directories as needed
// and overwriting any existing file.
func (d *Dir) Write(path string, data []byte) error {
	abs := d.abs(path)
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return fmt.Errorf("creating directories for %s: %w", path, err)
	}
	if err := os.WriteFile(abs, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Delete removes a file. Returns an error wrapping ErrNotFound if the file
// does not exist.
func (d *Dir) Delete(path string) error {
	if err := os.Remove(d.abs(path)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ceased.ErrNotFound, path)
		}
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path exists under the root.
func (d *Dir) Exists(path string) bool {
	_, err := os.Stat(d.abs(path))
	return err == nil
}

// EnsureDir creates a directory (and parents) under the root if missing.
func (d *Dir) EnsureDir(path string) error {
	if err := os.MkdirAll(d.abs(path), 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", path, err)
	}
	return nil
}
