package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"ceased/internal/ceased"
	"ceased/internal/config"
	"ceased/internal/drive"
	"ceased/internal/identity"
	"ceased/internal/keystore"
	"ceased/internal/localfs"
	"ceased/internal/remote"
)

// App is the application layer between the CLI and the drive operations.
// It constructs the key store, remote store and logger from config and
// manages their lifecycle on Close.
type App struct {
	cfg     *config.Config
	keys    ceased.KeyStore
	store   ceased.RemoteStore
	logger  ceased.Logger
	logFile *os.File
}

// NewApp creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "Push", "ChatSend").
// The caller must call Close when done.
func NewApp(ctx context.Context, cfg *config.Config, operation string) (*App, error) {
	keys, err := keystore.NewKeyStoreFromConfig(cfg.KeyStore)
	if err != nil {
		return nil, fmt.Errorf("creating key store: %w", err)
	}

	store, err := remote.NewStoreFromConfig(ctx, cfg.Remote)
	if err != nil {
		keys.Close()
		return nil, fmt.Errorf("creating remote store: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z") + "-" + operation
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		keys.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	return &App{
		cfg:     cfg,
		keys:    keys,
		store:   store,
		logger:  &slogAdapter{l: logger},
		logFile: logFile,
	}, nil
}

// IdentityProtected reports whether the stored private key is passphrase
// protected, so the CLI knows to prompt before opening a drive. A missing
// keypair (first run) counts as unprotected.
func (a *App) IdentityProtected() (bool, error) {
	protected, err := identity.NewManager(a.keys, "").IsProtected()
	if errors.Is(err, ceased.ErrKeyNotFound) {
		return false, nil
	}
	return protected, err
}

// OpenDrive opens the named drive (empty name selects the first configured
// drive) using the given identity passphrase.
func (a *App) OpenDrive(ctx context.Context, name, passphrase string) (*drive.Drive, error) {
	dc, err := a.cfg.Drive(name)
	if err != nil {
		return nil, err
	}

	return drive.Open(ctx, drive.Options{
		Username: a.cfg.Username,
		Store:    a.store,
		RootID:   dc.RemoteRootID,
		Keys:     a.keys,
		Identity: identity.NewManager(a.keys, passphrase),
		Local:    localfs.New(dc.LocalRoot),
		Workers:  a.cfg.Workers,
		Logger:   a.logger,
	})
}

// InitIdentity generates and stores a key pair if none exists yet.
func (a *App) InitIdentity(passphrase string) error {
	return identity.NewManager(a.keys, passphrase).EnsureKeyPair()
}

// Close closes all resources.
func (a *App) Close() error {
	var firstErr error

	if err := a.keys.Close(); err != nil {
		firstErr = fmt.Errorf("closing key store: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
