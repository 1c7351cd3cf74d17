// Package hierarchy builds and queries a point-in-time snapshot of the
// remote store's folder tree. A snapshot is rebuilt at the start of every
// push, pull and chat refresh; it is never patched from the remote side, so
// all lookups during one operation observe the same state. Writes performed
// through the snapshot update it in place, letting a session see its own
// effects without a rebuild.
package hierarchy

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"ceased/internal/ceased"
)

// Node is one entry in the remote tree. Children is nil for files and a
// possibly-empty map for folders, so "empty folder" and "file" are never
// conflated.
type Node struct {
	ID       string
	Children map[string]*Node
}

// IsFolder reports whether the node is a folder.
func (n *Node) IsFolder() bool { return n.Children != nil }

// Snapshot is a session-scoped mirror of the remote tree rooted at one
// folder. Its write operations are check-then-act against the snapshot; the
// known race between concurrent writers on the same remote root is accepted
// under the single-writer-per-drive assumption.
type Snapshot struct {
	store  ceased.RemoteStore
	rootID string

	mu   sync.Mutex
	root *Node
}

// Build lists the remote tree breadth-first, fanning out across all sibling
// folders of each level with at most workers concurrent listings.
func Build(ctx context.Context, store ceased.RemoteStore, rootID string, workers int) (*Snapshot, error) {
	if workers < 1 {
		workers = 1
	}

	root := &Node{ID: rootID, Children: make(map[string]*Node)}
	level := []*Node{root}

	for len(level) > 0 {
		var mu sync.Mutex
		var next []*Node

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)

		for _, folder := range level {
			g.Go(func() error {
				entries, err := store.ListChildren(gctx, folder.ID)
				if err != nil {
					return fmt.Errorf("listing folder %s: %w", folder.ID, err)
				}

				children := make(map[string]*Node, len(entries))
				var subfolders []*Node
				for _, e := range entries {
					node := &Node{ID: e.ID}
					if e.IsFolder {
						node.Children = make(map[string]*Node)
						subfolders = append(subfolders, node)
					}
					children[e.Name] = node
				}

				// Each task owns exactly one folder node, so this
				// assignment needs no lock; only the next-level slice is
				// shared.
				folder.Children = children

				mu.Lock()
				next = append(next, subfolders...)
				mu.Unlock()
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}
		level = next
	}

	return &Snapshot{store: store, rootID: rootID, root: root}, nil
}

// Lookup resolves a /-separated path and returns the node, or false if any
// segment is missing.
func (s *Snapshot) Lookup(path string) (*Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node := s.lookupLocked(path)
	return node, node != nil
}

// Exists reports whether path resolves in the snapshot.
func (s *Snapshot) Exists(path string) bool {
	_, ok := s.Lookup(path)
	return ok
}

func (s *Snapshot) lookupLocked(path string) *Node {
	node := s.root
	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			continue
		}
		if node.Children == nil {
			return nil
		}
		child, ok := node.Children[segment]
		if !ok {
			return nil
		}
		node = child
	}
	return node
}

// EnsureFolder creates any missing folders along path and returns without
// error if the full path already exists.
func (s *Snapshot) EnsureFolder(ctx context.Context, path string) error {
	parent := s.root
	walked := ""
	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			continue
		}
		if walked == "" {
			walked = segment
		} else {
			walked += "/" + segment
		}

		s.mu.Lock()
		child := parent.Children[segment]
		s.mu.Unlock()

		if child != nil {
			if !child.IsFolder() {
				return fmt.Errorf("remote path %s is a file, not a folder", walked)
			}
			parent = child
			continue
		}

		id, err := s.store.CreateFolder(ctx, segment, parent.ID)
		if err != nil {
			return fmt.Errorf("creating folder %s: %w", walked, err)
		}

		child = &Node{ID: id, Children: make(map[string]*Node)}
		s.mu.Lock()
		parent.Children[segment] = child
		s.mu.Unlock()
		parent = child
	}
	return nil
}

// CreateFile uploads data at path unless the path already exists in the
// snapshot, in which case it is a no-op. The parent folder must exist.
func (s *Snapshot) CreateFile(ctx context.Context, path string, data []byte, mimeType string) error {
	dir, name := splitPath(path)

	s.mu.Lock()
	parent := s.lookupLocked(dir)
	if parent != nil {
		if _, exists := parent.Children[name]; exists {
			s.mu.Unlock()
			return nil
		}
	}
	s.mu.Unlock()

	if parent == nil || !parent.IsFolder() {
		return fmt.Errorf("%w: remote folder %s", ceased.ErrNotFound, dir)
	}

	id, err := s.store.Upload(ctx, data, name, parent.ID, mimeType)
	if err != nil {
		return fmt.Errorf("uploading %s: %w", path, err)
	}

	s.mu.Lock()
	parent.Children[name] = &Node{ID: id}
	s.mu.Unlock()
	return nil
}

// Delete removes the object at path. Deleting an absent path is a no-op.
func (s *Snapshot) Delete(ctx context.Context, path string) error {
	dir, name := splitPath(path)

	s.mu.Lock()
	parent := s.lookupLocked(dir)
	var node *Node
	if parent != nil {
		node = parent.Children[name]
	}
	s.mu.Unlock()

	if node == nil {
		return nil
	}

	if err := s.store.Delete(ctx, node.ID); err != nil {
		return fmt.Errorf("deleting %s: %w", path, err)
	}

	s.mu.Lock()
	delete(parent.Children, name)
	s.mu.Unlock()
	return nil
}

// Download returns the contents of the object at path. Returns an error
// wrapping ErrNotFound if the path does not resolve.
func (s *Snapshot) Download(ctx context.Context, path string) ([]byte, error) {
	node, ok := s.Lookup(path)
	if !ok {
		return nil, fmt.Errorf("%w: remote path %s", ceased.ErrNotFound, path)
	}

	data, err := s.store.Download(ctx, node.ID)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", path, err)
	}
	return data, nil
}

func splitPath(path string) (dir, name string) {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[:i], path[i+1:]
	}
	return "", path
}
