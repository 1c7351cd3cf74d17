package remote

import (
	"context"
	"fmt"

	"ceased/internal/ceased"
	"ceased/internal/config"
)

// NewStoreFromConfig creates a RemoteStore implementation based on the
// remote config type.
func NewStoreFromConfig(ctx context.Context, cfg config.RemoteConfig) (ceased.RemoteStore, error) {
	switch cfg.Type {
	case "memory", "":
		return NewMemoryStore(), nil
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown remote store type: %s", cfg.Type)
	}
}
