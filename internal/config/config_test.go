package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		Username: "alice",
		BaseDir:  "/home/alice/.local/share/ceased",
		LogDir:   "/home/alice/.local/share/ceased/log",
		Workers:  4,
		KeyStore: KeyStoreConfig{Type: "filesystem", Dir: "/home/alice/.local/share/ceased/keys"},
		Remote: RemoteConfig{
			Type:     "s3",
			S3Bucket: "ceased-archive",
			S3Region: "eu-west-1",
		},
		Drives: []DriveConfig{
			{Name: "documents", LocalRoot: "/home/alice/Documents", RemoteRootID: "drives/documents/"},
		},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.Username != original.Username {
		t.Errorf("Username = %q, want %q", got.Username, original.Username)
	}
	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.Workers != 4 {
		t.Errorf("Workers = %d, want 4", got.Workers)
	}
	if got.KeyStore.Type != "filesystem" {
		t.Errorf("KeyStore.Type = %q, want %q", got.KeyStore.Type, "filesystem")
	}
	if got.Remote.S3Bucket != "ceased-archive" {
		t.Errorf("Remote.S3Bucket = %q, want %q", got.Remote.S3Bucket, "ceased-archive")
	}
	if len(got.Drives) != 1 {
		t.Fatalf("len(Drives) = %d, want 1", len(got.Drives))
	}
	if got.Drives[0].RemoteRootID != "drives/documents/" {
		t.Errorf("Drive.RemoteRootID = %q, want %q", got.Drives[0].RemoteRootID, "drives/documents/")
	}
}

func TestManager_Read_DefaultWorkers(t *testing.T) {
	m := &Manager{}
	cfg, err := m.Read(bytes.NewBufferString(`username = "bob"`))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if cfg.Workers != DefaultWorkers {
		t.Errorf("Workers = %d, want %d", cfg.Workers, DefaultWorkers)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("alice", "/data/ceased")

	if cfg.Username != "alice" {
		t.Errorf("Username = %q, want %q", cfg.Username, "alice")
	}
	if cfg.LogDir != filepath.Join("/data/ceased", "log") {
		t.Errorf("LogDir = %q", cfg.LogDir)
	}
	if cfg.Workers != DefaultWorkers {
		t.Errorf("Workers = %d, want %d", cfg.Workers, DefaultWorkers)
	}
	if cfg.KeyStore.Type != "filesystem" {
		t.Errorf("KeyStore.Type = %q, want %q", cfg.KeyStore.Type, "filesystem")
	}
	if cfg.KeyStore.Dir != filepath.Join("/data/ceased", "keys") {
		t.Errorf("KeyStore.Dir = %q", cfg.KeyStore.Dir)
	}
}

func TestConfig_Drive(t *testing.T) {
	cfg := &Config{
		Drives: []DriveConfig{
			{Name: "documents", LocalRoot: "/d"},
			{Name: "photos", LocalRoot: "/p"},
		},
	}

	t.Run("empty name selects first", func(t *testing.T) {
		dc, err := cfg.Drive("")
		if err != nil {
			t.Fatalf("Drive(\"\") error = %v", err)
		}
		if dc.Name != "documents" {
			t.Errorf("Drive(\"\").Name = %q, want %q", dc.Name, "documents")
		}
	})

	t.Run("by name", func(t *testing.T) {
		dc, err := cfg.Drive("photos")
		if err != nil {
			t.Fatalf("Drive(photos) error = %v", err)
		}
		if dc.LocalRoot != "/p" {
			t.Errorf("Drive(photos).LocalRoot = %q, want %q", dc.LocalRoot, "/p")
		}
	})

	t.Run("unknown name", func(t *testing.T) {
		if _, err := cfg.Drive("music"); err == nil {
			t.Error("Drive(music) error = nil, want error")
		}
	})

	t.Run("no drives", func(t *testing.T) {
		empty := &Config{}
		if _, err := empty.Drive(""); err == nil {
			t.Error("Drive(\"\") on empty config: error = nil, want error")
		}
	})
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ceased.toml")
	cfg := NewConfig("alice", "/data/ceased")

	if err := Init(path, cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file missing after Init: %v", err)
	}

	if err := Init(path, cfg); err == nil {
		t.Error("Init() on existing file: error = nil, want error")
	}
}

func TestReadFromFile_Missing(t *testing.T) {
	if _, err := ReadFromFile(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("ReadFromFile() on missing file: error = nil, want error")
	}
}
