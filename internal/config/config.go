// Package config reads and writes the ceased configuration file.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for ceased.
type Config struct {
	Username string         `toml:"username"`
	BaseDir  string         `toml:"base_dir"`
	LogDir   string         `toml:"log_dir"`
	Workers  int            `toml:"workers"` // bounded concurrency for remote traversal and push
	KeyStore KeyStoreConfig `toml:"keystore"`
	Remote   RemoteConfig   `toml:"remote"`
	Drives   []DriveConfig  `toml:"drives"`
}

// KeyStoreConfig represents configuration for the local key store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type KeyStoreConfig struct {
	Type string `toml:"type"` // "filesystem" (default), "sqlite", or "memory"

	// Filesystem-specific fields (only used when Type == "filesystem")
	Dir string `toml:"dir,omitempty"`

	// SQLite-specific fields (only used when Type == "sqlite")
	DBPath string `toml:"db_path,omitempty"`
}

// RemoteConfig represents configuration for the remote object store backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type RemoteConfig struct {
	Type string `toml:"type"` // "memory" or "s3"

	// S3-specific fields (only used when Type == "s3")
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3Endpoint  string `toml:"s3_endpoint,omitempty"` // optional, for S3-compatible stores
	S3AccessKey string `toml:"s3_access_key,omitempty"`
	S3SecretKey string `toml:"s3_secret_key,omitempty"`
}

// DriveConfig names one local-root <-> remote-root sync relationship.
type DriveConfig struct {
	Name         string `toml:"name"`
	LocalRoot    string `toml:"local_root"`
	RemoteRootID string `toml:"remote_root_id"`
}

// DefaultWorkers bounds concurrent remote calls when workers is unset.
const DefaultWorkers = 8

// NewConfig creates a new Config with the provided values and default paths.
func NewConfig(username, baseDir string) *Config {
	return &Config{
		Username: username,
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		Workers:  DefaultWorkers,
		KeyStore: KeyStoreConfig{
			Type: "filesystem",
			Dir:  filepath.Join(baseDir, "keys"),
		},
		Remote: RemoteConfig{
			Type: "memory",
		},
	}
}

// Drive returns the drive config with the given name. An empty name selects
// the first configured drive.
func (c *Config) Drive(name string) (*DriveConfig, error) {
	if len(c.Drives) == 0 {
		return nil, fmt.Errorf("no drives configured")
	}
	if name == "" {
		return &c.Drives[0], nil
	}
	for i := range c.Drives {
		if c.Drives[i].Name == name {
			return &c.Drives[i], nil
		}
	}
	return nil, fmt.Errorf("unknown drive: %s", name)
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
