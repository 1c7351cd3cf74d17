package hierarchy

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"ceased/internal/ceased"
	"ceased/internal/remote"
)

// seededStore builds a memory store with a small tree:
//
//	docs/          (folder)
//	docs/a.txt
//	docs/deep/     (empty folder)
//	top.txt
func seededStore(t *testing.T) *remote.MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := remote.NewMemoryStore()

	docs, err := s.CreateFolder(ctx, "docs", remote.MemoryRootID)
	if err != nil {
		t.Fatalf("CreateFolder(docs) error = %v", err)
	}
	if _, err := s.Upload(ctx, []byte("aaa"), "a.txt", docs, "text/plain"); err != nil {
		t.Fatalf("Upload(a.txt) error = %v", err)
	}
	if _, err := s.CreateFolder(ctx, "deep", docs); err != nil {
		t.Fatalf("CreateFolder(deep) error = %v", err)
	}
	if _, err := s.Upload(ctx, []byte("ttt"), "top.txt", remote.MemoryRootID, "text/plain"); err != nil {
		t.Fatalf("Upload(top.txt) error = %v", err)
	}
	return s
}

func TestBuild_Lookup(t *testing.T) {
	t.Parallel()

	snap, err := Build(context.Background(), seededStore(t), remote.MemoryRootID, 4)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	tests := []struct {
		path   string
		exists bool
		folder bool
	}{
		{path: "docs", exists: true, folder: true},
		{path: "docs/a.txt", exists: true, folder: false},
		{path: "docs/deep", exists: true, folder: true},
		{path: "top.txt", exists: true, folder: false},
		{path: "", exists: true, folder: true},
		{path: "docs/missing", exists: false},
		{path: "docs/a.txt/under-a-file", exists: false},
	}

	for _, tt := range tests {
		node, ok := snap.Lookup(tt.path)
		if ok != tt.exists {
			t.Errorf("Lookup(%q) ok = %v, want %v", tt.path, ok, tt.exists)
			continue
		}
		if ok && node.IsFolder() != tt.folder {
			t.Errorf("Lookup(%q).IsFolder() = %v, want %v", tt.path, node.IsFolder(), tt.folder)
		}
	}
}

func TestSnapshot_EnsureFolder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := seededStore(t)
	snap, err := Build(ctx, store, remote.MemoryRootID, 4)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if err := snap.EnsureFolder(ctx, "docs/deep/deeper/deepest"); err != nil {
		t.Fatalf("EnsureFolder() error = %v", err)
	}
	if !snap.Exists("docs/deep/deeper/deepest") {
		t.Error("folder missing from snapshot after EnsureFolder")
	}

	// Remote agrees, not just the snapshot.
	rebuilt, err := Build(ctx, store, remote.MemoryRootID, 4)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !rebuilt.Exists("docs/deep/deeper/deepest") {
		t.Error("folder missing from rebuilt snapshot")
	}

	if err := snap.EnsureFolder(ctx, "docs/deep/deeper/deepest"); err != nil {
		t.Errorf("EnsureFolder() second call: error = %v", err)
	}

	if err := snap.EnsureFolder(ctx, "top.txt/sub"); err == nil {
		t.Error("EnsureFolder() through a file: error = nil, want error")
	}
}

func TestSnapshot_CreateFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	snap, err := Build(ctx, seededStore(t), remote.MemoryRootID, 4)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if err := snap.CreateFile(ctx, "docs/b.txt", []byte("bbb"), "text/plain"); err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}

	data, err := snap.Download(ctx, "docs/b.txt")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if !bytes.Equal(data, []byte("bbb")) {
		t.Errorf("Download() = %q, want %q", data, "bbb")
	}

	// Existing path: no-op, content unchanged.
	if err := snap.CreateFile(ctx, "docs/a.txt", []byte("replaced"), "text/plain"); err != nil {
		t.Fatalf("CreateFile() on existing path: error = %v", err)
	}
	data, err = snap.Download(ctx, "docs/a.txt")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if !bytes.Equal(data, []byte("aaa")) {
		t.Errorf("existing file content = %q, want %q", data, "aaa")
	}

	if err := snap.CreateFile(ctx, "missing/c.txt", []byte("x"), ""); !errors.Is(err, ceased.ErrNotFound) {
		t.Errorf("CreateFile() with missing parent: error = %v, want ErrNotFound", err)
	}
}

func TestSnapshot_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := seededStore(t)
	snap, err := Build(ctx, store, remote.MemoryRootID, 4)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if err := snap.Delete(ctx, "docs/a.txt"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if snap.Exists("docs/a.txt") {
		t.Error("path still in snapshot after Delete")
	}

	if err := snap.Delete(ctx, "docs/a.txt"); err != nil {
		t.Errorf("Delete() of absent path: error = %v, want nil", err)
	}
}

func TestSnapshot_Download_Missing(t *testing.T) {
	t.Parallel()

	snap, err := Build(context.Background(), seededStore(t), remote.MemoryRootID, 4)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if _, err := snap.Download(context.Background(), "docs/missing.txt"); !errors.Is(err, ceased.ErrNotFound) {
		t.Errorf("Download() error = %v, want ErrNotFound", err)
	}
}
