// Package remote provides backends for the RemoteStore interface.
package remote

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"ceased/internal/ceased"
)

// MemoryRootID is the folder id of a MemoryStore's root.
const MemoryRootID = "root"

// MemoryStore is an in-memory remote object store. It is useful for tests
// and local experiments and is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int
	objects map[string][]byte                        // object id -> content
	folders map[string]map[string]ceased.RemoteEntry // folder id -> name -> entry
	parents map[string]string                        // id -> containing folder id
}

var _ ceased.RemoteStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		objects: make(map[string][]byte),
		folders: make(map[string]map[string]ceased.RemoteEntry),
		parents: make(map[string]string),
	}
	s.folders[MemoryRootID] = make(map[string]ceased.RemoteEntry)
	return s
}

func (s *MemoryStore) newID() string {
	s.nextID++
	return "obj-" + strconv.Itoa(s.nextID)
}

func (s *MemoryStore) ListChildren(_ context.Context, folderID string) ([]ceased.RemoteEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	children, ok := s.folders[folderID]
	if !ok {
		return nil, fmt.Errorf("%w: no such folder: %s", ceased.ErrRemoteIO, folderID)
	}

	entries := make([]ceased.RemoteEntry, 0, len(children))
	for _, e := range children {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (s *MemoryStore) CreateFolder(_ context.Context, name, parentID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.folders[parentID]
	if !ok {
		return "", fmt.Errorf("%w: no such folder: %s", ceased.ErrRemoteIO, parentID)
	}

	id := s.newID()
	parent[name] = ceased.RemoteEntry{ID: id, Name: name, IsFolder: true}
	s.folders[id] = make(map[string]ceased.RemoteEntry)
	s.parents[id] = parentID
	return id, nil
}

func (s *MemoryStore) Upload(_ context.Context, data []byte, name, parentID, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.folders[parentID]
	if !ok {
		return "", fmt.Errorf("%w: no such folder: %s", ceased.ErrRemoteIO, parentID)
	}

	id := s.newID()
	stored := make([]byte, len(data))
	copy(stored, data)
	parent[name] = ceased.RemoteEntry{ID: id, Name: name, IsFolder: false}
	s.objects[id] = stored
	s.parents[id] = parentID
	return id, nil
}

func (s *MemoryStore) Download(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[id]
	if !ok {
		return nil, fmt.Errorf("%w: no such object: %s", ceased.ErrRemoteIO, id)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parentID, ok := s.parents[id]
	if !ok {
		return fmt.Errorf("%w: no such object: %s", ceased.ErrRemoteIO, id)
	}

	s.removeLocked(id)

	if children, ok := s.folders[parentID]; ok {
		for name, e := range children {
			if e.ID == id {
				delete(children, name)
				break
			}
		}
	}
	return nil
}

// removeLocked removes id and, for folders, everything beneath it.
func (s *MemoryStore) removeLocked(id string) {
	if children, ok := s.folders[id]; ok {
		for _, e := range children {
			s.removeLocked(e.ID)
		}
		delete(s.folders, id)
	}
	delete(s.objects, id)
	delete(s.parents, id)
}

// ObjectCount reports the number of stored file objects. Tests use it to
// assert that a no-op push performs no uploads.
func (s *MemoryStore) ObjectCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
