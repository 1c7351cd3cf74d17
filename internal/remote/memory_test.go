package remote

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"ceased/internal/ceased"
)

func TestMemoryStore_FoldersAndFiles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()

	folderID, err := s.CreateFolder(ctx, "docs", MemoryRootID)
	if err != nil {
		t.Fatalf("CreateFolder() error = %v", err)
	}

	fileID, err := s.Upload(ctx, []byte("content"), "a.txt", folderID, "text/plain")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	entries, err := s.ListChildren(ctx, folderID)
	if err != nil {
		t.Fatalf("ListChildren() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].Name != "a.txt" || entries[0].IsFolder {
		t.Errorf("entry = %+v, want file a.txt", entries[0])
	}

	data, err := s.Download(ctx, fileID)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if !bytes.Equal(data, []byte("content")) {
		t.Errorf("Download() = %q, want %q", data, "content")
	}
}

func TestMemoryStore_ListChildren_Sorted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if _, err := s.Upload(ctx, nil, name, MemoryRootID, ""); err != nil {
			t.Fatalf("Upload(%s) error = %v", name, err)
		}
	}

	entries, err := s.ListChildren(ctx, MemoryRootID)
	if err != nil {
		t.Fatalf("ListChildren() error = %v", err)
	}
	for i, want := range []string{"alpha", "mid", "zeta"} {
		if entries[i].Name != want {
			t.Errorf("entries[%d].Name = %q, want %q", i, entries[i].Name, want)
		}
	}
}

func TestMemoryStore_UnknownIDs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.ListChildren(ctx, "nope"); !errors.Is(err, ceased.ErrRemoteIO) {
		t.Errorf("ListChildren() error = %v, want ErrRemoteIO", err)
	}
	if _, err := s.Upload(ctx, nil, "a", "nope", ""); !errors.Is(err, ceased.ErrRemoteIO) {
		t.Errorf("Upload() error = %v, want ErrRemoteIO", err)
	}
	if _, err := s.Download(ctx, "nope"); !errors.Is(err, ceased.ErrRemoteIO) {
		t.Errorf("Download() error = %v, want ErrRemoteIO", err)
	}
	if err := s.Delete(ctx, "nope"); !errors.Is(err, ceased.ErrRemoteIO) {
		t.Errorf("Delete() error = %v, want ErrRemoteIO", err)
	}
}

func TestMemoryStore_Delete_Recursive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()

	folderID, err := s.CreateFolder(ctx, "docs", MemoryRootID)
	if err != nil {
		t.Fatalf("CreateFolder() error = %v", err)
	}
	subID, err := s.CreateFolder(ctx, "deep", folderID)
	if err != nil {
		t.Fatalf("CreateFolder() error = %v", err)
	}
	fileID, err := s.Upload(ctx, []byte("x"), "a.txt", subID, "")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if err := s.Delete(ctx, folderID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := s.Download(ctx, fileID); !errors.Is(err, ceased.ErrRemoteIO) {
		t.Errorf("Download() of file under deleted folder: error = %v, want ErrRemoteIO", err)
	}
	if s.ObjectCount() != 0 {
		t.Errorf("ObjectCount() = %d, want 0", s.ObjectCount())
	}

	entries, err := s.ListChildren(ctx, MemoryRootID)
	if err != nil {
		t.Fatalf("ListChildren() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("root still has %d entries after recursive delete", len(entries))
	}
}
