package remote

import (
	"context"
	"testing"

	"ceased/internal/config"
)

func TestNewStoreFromConfig(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		store, err := NewStoreFromConfig(ctx, config.RemoteConfig{Type: "memory"})
		if err != nil {
			t.Fatalf("NewStoreFromConfig() error = %v", err)
		}
		if _, ok := store.(*MemoryStore); !ok {
			t.Errorf("store = %T, want *MemoryStore", store)
		}
	})

	t.Run("empty type defaults to memory", func(t *testing.T) {
		store, err := NewStoreFromConfig(ctx, config.RemoteConfig{})
		if err != nil {
			t.Fatalf("NewStoreFromConfig() error = %v", err)
		}
		if _, ok := store.(*MemoryStore); !ok {
			t.Errorf("store = %T, want *MemoryStore", store)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := NewStoreFromConfig(ctx, config.RemoteConfig{Type: "gdrive"}); err == nil {
			t.Error("NewStoreFromConfig() error = nil, want error")
		}
	})
}
