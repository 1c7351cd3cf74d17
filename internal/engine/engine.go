// Package engine implements the content-addressed sync between a local
// root and the remote store. Fingerprint equality is the sole basis for
// "already in sync"; no mtime or size heuristics are used.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"ceased/internal/ceased"
	"ceased/internal/crypto"
	"ceased/internal/hierarchy"
	"ceased/internal/localfs"
)

const (
	// ManifestPath is the fixed remote path of the symmetric-encrypted
	// manifest object. The manifest is the authoritative description of
	// the remote file set, independent of the obfuscated names under
	// FilesFolder.
	ManifestPath = "archiveinfo/file_hashes.json"

	// FilesFolder holds the encrypted file bodies under hashed names.
	FilesFolder = "files"

	octetStream = "application/octet-stream"
)

// Manifest maps local-relative paths to encoded content fingerprints.
type Manifest map[string]string

// Engine performs push and pull for one drive. The symmetric key and salt
// are passed per operation so a key rotated via chat takes effect on the
// next call without re-wiring.
type Engine struct {
	local   *localfs.Dir
	logger  ceased.Logger
	workers int
}

func New(local *localfs.Dir, logger ceased.Logger, workers int) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{local: local, logger: logger, workers: workers}
}

// Result lists the relative paths an operation transferred and deleted.
type Result struct {
	Transferred []string
	Deleted     []string
}

// PushError aggregates per-file failures from a concurrent push. A failed
// file never aborts its siblings; the whole batch runs and the failures are
// reported together.
type PushError struct {
	Failures map[string]error
}

func (e *PushError) Error() string {
	paths := make([]string, 0, len(e.Failures))
	for path := range e.Failures {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return fmt.Sprintf("push failed for %d file(s): %s", len(paths), strings.Join(paths, ", "))
}

// HashedName derives the obfuscated remote filename for a relative path.
// Same path and same salt always produce the same name; rotating the drive
// key changes the salt and with it every name.
func HashedName(path string, salt []byte) string {
	return crypto.EncodeDigest(crypto.Digest(append([]byte(path), salt...)))
}

// LocalManifest fingerprints every file under the sync root, excluding any
// path whose first segment starts with a dot (reserved for local metadata).
func (e *Engine) LocalManifest() (Manifest, error) {
	paths, err := e.local.ListAll()
	if err != nil {
		return nil, fmt.Errorf("listing local files: %w", err)
	}

	manifest := make(Manifest)
	for _, path := range paths {
		if strings.HasPrefix(path, ".") {
			continue
		}
		data, err := e.local.Read(path)
		if err != nil {
			return nil, fmt.Errorf("fingerprinting %s: %w", path, err)
		}
		manifest[path] = crypto.Fingerprint(data)
	}
	return manifest, nil
}

// RemoteManifest downloads and decrypts the remote manifest. A missing
// manifest is not an error: it means first sync, and an empty manifest is
// returned.
func (e *Engine) RemoteManifest(ctx context.Context, snap *hierarchy.Snapshot, key []byte) (Manifest, error) {
	if !snap.Exists(ManifestPath) {
		return make(Manifest), nil
	}

	blob, err := snap.Download(ctx, ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("fetching remote manifest: %w", err)
	}

	data, err := crypto.SymmetricDecrypt(blob, key)
	if err != nil {
		return nil, fmt.Errorf("decrypting remote manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parsing remote manifest: %w", err)
	}
	return manifest, nil
}

// Push reconciles the remote store with the local file set: changed and new
// files are encrypted and uploaded under their hashed names concurrently,
// remote files absent locally are deleted, and the manifest is replaced
// last, after all per-file updates complete. Per-file upload failures are
// collected into a PushError; other failures abort the push.
func (e *Engine) Push(ctx context.Context, snap *hierarchy.Snapshot, key, salt []byte) (*Result, error) {
	localMan, err := e.LocalManifest()
	if err != nil {
		return nil, err
	}
	remoteMan, err := e.RemoteManifest(ctx, snap, key)
	if err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		pushed   []string
		failures = make(map[string]error)
	)

	var g errgroup.Group
	g.SetLimit(e.workers)
	for path, fingerprint := range localMan {
		if remoteMan[path] == fingerprint {
			continue
		}
		g.Go(func() error {
			if err := e.pushOne(ctx, snap, key, salt, path); err != nil {
				e.logger.Error("push failed", "path", path, "error", err)
				mu.Lock()
				failures[path] = err
				mu.Unlock()
				return nil
			}
			e.logger.Info("file pushed", "path", path)
			mu.Lock()
			pushed = append(pushed, path)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	var deleted []string
	for path := range remoteMan {
		if _, ok := localMan[path]; ok {
			continue
		}
		if err := snap.Delete(ctx, FilesFolder+"/"+HashedName(path, salt)); err != nil {
			return nil, fmt.Errorf("deleting remote %s: %w", path, err)
		}
		e.logger.Info("remote file deleted", "path", path)
		deleted = append(deleted, path)
	}

	// Failed uploads keep their previous manifest entry (if any) so other
	// replicas neither download a stale object under a new fingerprint nor
	// treat the file as deleted.
	manifest := localMan
	if len(failures) > 0 {
		manifest = make(Manifest, len(localMan))
		for path, fingerprint := range localMan {
			manifest[path] = fingerprint
		}
		for path := range failures {
			if old, ok := remoteMan[path]; ok {
				manifest[path] = old
			} else {
				delete(manifest, path)
			}
		}
	}
	if err := e.replaceManifest(ctx, snap, key, manifest); err != nil {
		return nil, err
	}

	result := &Result{Transferred: sorted(pushed), Deleted: sorted(deleted)}
	if len(failures) > 0 {
		return result, &PushError{Failures: failures}
	}
	return result, nil
}

// pushOne uploads a single file: read, encrypt, drop the stale object at
// the hashed name, upload fresh.
func (e *Engine) pushOne(ctx context.Context, snap *hierarchy.Snapshot, key, salt []byte, path string) error {
	data, err := e.local.Read(path)
	if err != nil {
		return err
	}

	encrypted, err := crypto.SymmetricEncrypt(data, key)
	if err != nil {
		return fmt.Errorf("encrypting %s: %w", path, err)
	}

	remotePath := FilesFolder + "/" + HashedName(path, salt)
	if err := snap.Delete(ctx, remotePath); err != nil {
		return err
	}
	return snap.CreateFile(ctx, remotePath, encrypted, octetStream)
}

// Pull reconciles the local file set with the remote manifest: files whose
// fingerprints differ (or are missing locally) are downloaded, decrypted
// and written, then local files absent from the manifest are deleted.
// Downloads run before deletions; no manifest is written locally.
func (e *Engine) Pull(ctx context.Context, snap *hierarchy.Snapshot, key, salt []byte) (*Result, error) {
	localMan, err := e.LocalManifest()
	if err != nil {
		return nil, err
	}
	remoteMan, err := e.RemoteManifest(ctx, snap, key)
	if err != nil {
		return nil, err
	}

	var pulled []string
	for path, fingerprint := range remoteMan {
		if localMan[path] == fingerprint {
			continue
		}

		blob, err := snap.Download(ctx, FilesFolder+"/"+HashedName(path, salt))
		if err != nil {
			return nil, fmt.Errorf("pulling %s: %w", path, err)
		}
		data, err := crypto.SymmetricDecrypt(blob, key)
		if err != nil {
			return nil, fmt.Errorf("decrypting %s: %w", path, err)
		}
		if err := e.local.Write(path, data); err != nil {
			return nil, err
		}
		e.logger.Info("file pulled", "path", path)
		pulled = append(pulled, path)
	}

	var deleted []string
	for path := range localMan {
		if _, ok := remoteMan[path]; ok {
			continue
		}
		if err := e.local.Delete(path); err != nil {
			return nil, err
		}
		e.logger.Info("local file deleted", "path", path)
		deleted = append(deleted, path)
	}

	return &Result{Transferred: sorted(pulled), Deleted: sorted(deleted)}, nil
}

// replaceManifest deletes the old manifest object and uploads the new one.
// The two steps are not atomic; a crash in between leaves no manifest,
// which the next run treats as a first sync. That is a safe but costly
// failure mode.
func (e *Engine) replaceManifest(ctx context.Context, snap *hierarchy.Snapshot, key []byte, manifest Manifest) error {
	data, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	encrypted, err := crypto.SymmetricEncrypt(data, key)
	if err != nil {
		return fmt.Errorf("encrypting manifest: %w", err)
	}

	if err := snap.Delete(ctx, ManifestPath); err != nil {
		return fmt.Errorf("removing old manifest: %w", err)
	}
	if err := snap.CreateFile(ctx, ManifestPath, encrypted, "application/json"); err != nil {
		return fmt.Errorf("uploading manifest: %w", err)
	}
	return nil
}

func sorted(paths []string) []string {
	sort.Strings(paths)
	return paths
}
