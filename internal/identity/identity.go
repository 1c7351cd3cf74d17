// Package identity manages the per-user keypair: created once at first
// run, public half published remotely, private half held only in the local
// key store.
package identity

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"filippo.io/age"

	"ceased/internal/ceased"
	"ceased/internal/crypto"
)

// Key store names for the identity keypair.
const (
	PrivateKeyName = "user/private"
	PublicKeyName  = "user/public"
)

// pemPrefix distinguishes a plaintext private key from an age-wrapped one.
var pemPrefix = []byte("-----BEGIN")

// Manager owns the identity keypair in the key store. With a non-empty
// passphrase the private key is stored wrapped with age's scrypt-based
// passphrase encryption; with an empty passphrase it is stored in
// plaintext.
type Manager struct {
	keys       ceased.KeyStore
	passphrase string
}

func NewManager(keys ceased.KeyStore, passphrase string) *Manager {
	return &Manager{keys: keys, passphrase: passphrase}
}

// EnsureKeyPair generates and stores a keypair if none exists yet. The
// keypair is never rotated; calling this with an existing keypair is a
// no-op.
func (m *Manager) EnsureKeyPair() error {
	_, err := m.keys.Get(PrivateKeyName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ceased.ErrKeyNotFound) {
		return fmt.Errorf("checking for private key: %w", err)
	}

	privatePEM, publicPEM, err := crypto.GenerateKeyPair()
	if err != nil {
		return err
	}

	stored := privatePEM
	if m.passphrase != "" {
		stored, err = wrap(privatePEM, m.passphrase)
		if err != nil {
			return err
		}
	}

	if err := m.keys.Set(PrivateKeyName, stored); err != nil {
		return fmt.Errorf("storing private key: %w", err)
	}
	if err := m.keys.Set(PublicKeyName, publicPEM); err != nil {
		return fmt.Errorf("storing public key: %w", err)
	}
	return nil
}

// PublicKeyPEM returns the PEM-encoded public key.
func (m *Manager) PublicKeyPEM() ([]byte, error) {
	return m.keys.Get(PublicKeyName)
}

// PrivateKeyPEM returns the PEM-encoded private key, unwrapping it with the
// manager's passphrase if it is stored protected. A wrong passphrase
// surfaces as the age decryption error.
func (m *Manager) PrivateKeyPEM() ([]byte, error) {
	stored, err := m.keys.Get(PrivateKeyName)
	if err != nil {
		return nil, err
	}
	if bytes.HasPrefix(stored, pemPrefix) {
		return stored, nil
	}
	return unwrap(stored, m.passphrase)
}

// IsProtected reports whether the stored private key requires a passphrase.
func (m *Manager) IsProtected() (bool, error) {
	stored, err := m.keys.Get(PrivateKeyName)
	if err != nil {
		return false, err
	}
	return !bytes.HasPrefix(stored, pemPrefix), nil
}

func wrap(privatePEM []byte, passphrase string) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt recipient: %w", err)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return nil, fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := w.Write(privatePEM); err != nil {
		return nil, fmt.Errorf("wrapping private key: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing wrapped private key: %w", err)
	}
	return buf.Bytes(), nil
}

func unwrap(stored []byte, passphrase string) ([]byte, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(stored), identity)
	if err != nil {
		return nil, fmt.Errorf("unwrapping private key: %w", err)
	}

	privatePEM, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading unwrapped private key: %w", err)
	}
	return privatePEM, nil
}
