// Package keystore provides the durable name -> key-bytes mapping every
// other component consumes. Names are flat, /-segmented strings such as
// "user/private" or "archives/<drive id>".
package keystore

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"ceased/internal/ceased"
)

// keyFileExt is appended to every stored key file.
const keyFileExt = ".asc"

// FilesystemStore keeps each key in its own file under a root directory,
// name segments mapping to subdirectories: "archives/x" -> archives/x.asc.
type FilesystemStore struct {
	root string
}

var _ ceased.KeyStore = (*FilesystemStore)(nil)

// NewFilesystemStore creates a key store rooted at dir, creating the
// directory if needed.
func NewFilesystemStore(dir string) (*FilesystemStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating key store directory: %w", err)
	}
	return &FilesystemStore{root: dir}, nil
}

func (s *FilesystemStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name)+keyFileExt)
}

func (s *FilesystemStore) Get(name string) ([]byte, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ceased.ErrKeyNotFound, name)
		}
		return nil, fmt.Errorf("reading key %s: %w", name, err)
	}
	return data, nil
}

func (s *FilesystemStore) Set(name string, key []byte) error {
	path := s.path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}
	if err := os.WriteFile(path, key, 0600); err != nil {
		return fmt.Errorf("writing key %s: %w", name, err)
	}
	return nil
}

func (s *FilesystemStore) Delete(name string) error {
	if err := os.Remove(s.path(name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ceased.ErrKeyNotFound, name)
		}
		return fmt.Errorf("deleting key %s: %w", name, err)
	}
	return nil
}

func (s *FilesystemStore) Names() ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), keyFileExt) {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		names = append(names, strings.TrimSuffix(filepath.ToSlash(rel), keyFileExt))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	return names, nil
}

func (s *FilesystemStore) Close() error { return nil }
