package keystore

import (
	"fmt"
	"sort"
	"sync"

	"ceased/internal/ceased"
)

// MemoryStore is an in-memory key store. It is useful for tests and is safe
// for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[string][]byte
}

var _ ceased.KeyStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string][]byte)}
}

func (s *MemoryStore) Get(name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.keys[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ceased.ErrKeyNotFound, name)
	}
	out := make([]byte, len(key))
	copy(out, key)
	return out, nil
}

func (s *MemoryStore) Set(name string, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(key))
	copy(stored, key)
	s.keys[name] = stored
	return nil
}

func (s *MemoryStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[name]; !ok {
		return fmt.Errorf("%w: %s", ceased.ErrKeyNotFound, name)
	}
	delete(s.keys, name)
	return nil
}

func (s *MemoryStore) Names() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.keys))
	for name := range s.keys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) Close() error { return nil }
