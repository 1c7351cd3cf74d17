// Package drive composes the sync engine, chat protocol and key store into
// one synchronization relationship between a local root and a remote root
// folder.
package drive

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"ceased/internal/ceased"
	"ceased/internal/chat"
	"ceased/internal/crypto"
	"ceased/internal/engine"
	"ceased/internal/hierarchy"
	"ceased/internal/identity"
	"ceased/internal/localfs"
)

const (
	idFilePath   = "archiveinfo/id.txt"
	localMetaDir = ".archiveinfo"

	requestKeyText = "Requesting archive key."
)

// Options carries the dependencies for opening a drive.
type Options struct {
	Username string
	Store    ceased.RemoteStore
	RootID   string
	Keys     ceased.KeyStore
	Identity *identity.Manager
	Local    *localfs.Dir
	Workers  int
	Logger   ceased.Logger
	Clock    ceased.Clock
	IDGen    ceased.IDGenerator
}

// Drive is one local-root <-> remote-root sync relationship. Its id is
// immutable once created; its symmetric key may be rotated via the chat
// key-exchange and is re-read from the key store at the start of every
// push and pull.
type Drive struct {
	id       string
	username string

	store   ceased.RemoteStore
	rootID  string
	keys    ceased.KeyStore
	local   *localfs.Dir
	workers int
	logger  ceased.Logger

	engine *engine.Engine
	chat   *chat.Chat
}

// Open bootstraps a drive: it builds an initial remote snapshot, creates
// the remote scaffolding, establishes the drive id (generating it and a
// fresh symmetric key on first run), publishes the user's public key, and
// prepares the local metadata folder. A missing symmetric key is tolerated
// here; push and pull report it when they actually need the key.
func Open(ctx context.Context, opts Options) (*Drive, error) {
	if opts.Logger == nil {
		opts.Logger = ceased.NewNopLogger()
	}
	if opts.Clock == nil {
		opts.Clock = ceased.RealClock{}
	}
	if opts.IDGen == nil {
		opts.IDGen = ceased.UUIDGenerator{}
	}

	snap, err := hierarchy.Build(ctx, opts.Store, opts.RootID, opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("mapping remote hierarchy: %w", err)
	}

	for _, folder := range []string{"archiveinfo", chat.UsersFolder, engine.FilesFolder} {
		if err := snap.EnsureFolder(ctx, folder); err != nil {
			return nil, err
		}
	}

	var id string
	if snap.Exists(idFilePath) {
		data, err := snap.Download(ctx, idFilePath)
		if err != nil {
			return nil, err
		}
		id = string(data)
	} else {
		id = opts.IDGen.New()
		if err := snap.CreateFile(ctx, idFilePath, []byte(id), "text/plain"); err != nil {
			return nil, err
		}
		key, err := crypto.GenerateSymmetricKey()
		if err != nil {
			return nil, err
		}
		if err := opts.Keys.Set("archives/"+id, key); err != nil {
			return nil, fmt.Errorf("storing drive key: %w", err)
		}
		opts.Logger.Info("drive created", "id", id)
	}

	if err := opts.Identity.EnsureKeyPair(); err != nil {
		return nil, err
	}
	userFolder := chat.UsersFolder + "/" + opts.Username
	if err := snap.EnsureFolder(ctx, userFolder); err != nil {
		return nil, err
	}
	publicPEM, err := opts.Identity.PublicKeyPEM()
	if err != nil {
		return nil, err
	}
	if err := snap.CreateFile(ctx, userFolder+"/public.asc", publicPEM, "text/plain"); err != nil {
		return nil, err
	}

	if err := opts.Local.EnsureDir(localMetaDir); err != nil {
		return nil, err
	}

	d := &Drive{
		id:       id,
		username: opts.Username,
		store:    opts.Store,
		rootID:   opts.RootID,
		keys:     opts.Keys,
		local:    opts.Local,
		workers:  opts.Workers,
		logger:   opts.Logger,
		engine:   engine.New(opts.Local, opts.Logger, opts.Workers),
		chat: chat.New(chat.Config{
			Username: opts.Username,
			DriveID:  id,
			Keys:     opts.Keys,
			Identity: opts.Identity,
			Local:    opts.Local,
			Clock:    opts.Clock,
			IDGen:    opts.IDGen,
			Logger:   opts.Logger,
		}),
	}
	return d, nil
}

// ID returns the drive's immutable id.
func (d *Drive) ID() string { return d.id }

// Username returns the identity this drive operates as.
func (d *Drive) Username() string { return d.username }

// symmetricKey reads the drive key fresh from the key store and derives
// the filename salt from it.
func (d *Drive) symmetricKey() (key, salt []byte, err error) {
	key, err = d.keys.Get("archives/" + d.id)
	if err != nil {
		if errors.Is(err, ceased.ErrKeyNotFound) {
			return nil, nil, fmt.Errorf("drive %s has no symmetric key; request it from a collaborator: %w", d.id, err)
		}
		return nil, nil, err
	}
	salt = crypto.Digest(append([]byte(d.id), key...))
	return key, salt, nil
}

// snapshot rebuilds the remote hierarchy for one operation.
func (d *Drive) snapshot(ctx context.Context) (*hierarchy.Snapshot, error) {
	snap, err := hierarchy.Build(ctx, d.store, d.rootID, d.workers)
	if err != nil {
		return nil, fmt.Errorf("mapping remote hierarchy: %w", err)
	}
	return snap, nil
}

// Push uploads local changes to the remote store and replaces the remote
// manifest.
func (d *Drive) Push(ctx context.Context) (*engine.Result, error) {
	key, salt, err := d.symmetricKey()
	if err != nil {
		return nil, err
	}
	snap, err := d.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return d.engine.Push(ctx, snap, key, salt)
}

// Pull downloads remote changes into the local root.
func (d *Drive) Pull(ctx context.Context) (*engine.Result, error) {
	key, salt, err := d.symmetricKey()
	if err != nil {
		return nil, err
	}
	snap, err := d.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return d.engine.Pull(ctx, snap, key, salt)
}

// SendMessage delivers an encrypted message to another collaborator.
func (d *Drive) SendMessage(ctx context.Context, recipient, content string) (chat.Message, error) {
	snap, err := d.snapshot(ctx)
	if err != nil {
		return chat.Message{}, err
	}
	return d.chat.Send(ctx, snap, recipient, content)
}

// RefreshMessages merges newly received messages into the local ledger,
// installing any delivered symmetric key.
func (d *Drive) RefreshMessages(ctx context.Context, force bool) (chat.Ledger, error) {
	snap, err := d.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return d.chat.Refresh(ctx, snap, force)
}

// Messages returns the stored conversation with one counterpart, ordered
// by timestamp.
func (d *Drive) Messages(counterpart string) ([]chat.Message, error) {
	return d.chat.Messages(counterpart)
}

// Users lists collaborators with a published identity.
func (d *Drive) Users(ctx context.Context) ([]string, error) {
	snap, err := d.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return d.chat.Users(snap), nil
}

// RequestKey asks another collaborator to send the drive's symmetric key.
func (d *Drive) RequestKey(ctx context.Context, user string) error {
	_, err := d.SendMessage(ctx, user, requestKeyText)
	return err
}

// SendKey delivers the drive's current symmetric key to another
// collaborator using the reserved-marker convention.
func (d *Drive) SendKey(ctx context.Context, user string) error {
	key, err := d.keys.Get("archives/" + d.id)
	if err != nil {
		return fmt.Errorf("loading drive key: %w", err)
	}
	content := chat.KeyMarker + base64.URLEncoding.EncodeToString(key)
	_, err = d.SendMessage(ctx, user, content)
	return err
}

// Status describes a drive's current state for display.
type Status struct {
	ID     string
	Users  []string
	HasKey bool
}

// Status reports the drive id, known collaborators and whether the
// symmetric key is present locally.
func (d *Drive) Status(ctx context.Context) (*Status, error) {
	users, err := d.Users(ctx)
	if err != nil {
		return nil, err
	}
	hasKey := true
	if _, err := d.keys.Get("archives/" + d.id); err != nil {
		if !errors.Is(err, ceased.ErrKeyNotFound) {
			return nil, err
		}
		hasKey = false
	}
	return &Status{ID: d.id, Users: users, HasKey: hasKey}, nil
}
