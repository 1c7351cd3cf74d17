package keystore

import (
	"fmt"

	"ceased/internal/ceased"
	"ceased/internal/config"
)

// NewKeyStoreFromConfig creates a KeyStore implementation based on the
// key store config type.
func NewKeyStoreFromConfig(cfg config.KeyStoreConfig) (ceased.KeyStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if cfg.DBPath == "" {
			return nil, fmt.Errorf("sqlite key store requires db_path to be set")
		}
		return NewSQLiteStore(cfg.DBPath)
	case "filesystem", "":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("filesystem key store requires dir to be set")
		}
		return NewFilesystemStore(cfg.Dir)
	default:
		return nil, fmt.Errorf("unknown key store type: %s", cfg.Type)
	}
}
