// Package crypto holds the pure cryptographic primitives: RSA-OAEP for the
// message channel, an authenticated symmetric cipher for file contents, and
// the two digests used for change detection and filename obfuscation.
package crypto

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrDecryption indicates malformed asymmetric ciphertext or the wrong
	// private key.
	ErrDecryption = errors.New("asymmetric decryption failed")

	// ErrIntegrity indicates tampered symmetric ciphertext or the wrong key.
	ErrIntegrity = errors.New("symmetric ciphertext integrity check failed")
)

// rsaBits is the modulus size for generated identity keypairs.
const rsaBits = 4096

// SymmetricKeySize is the length in bytes of a drive's symmetric key.
const SymmetricKeySize = chacha20poly1305.KeySize

// GenerateKeyPair generates an RSA keypair and returns it PEM-encoded as
// (private, public). The private key uses PKCS#8, the public key PKIX, so
// the published public.asc is a standard "PUBLIC KEY" block.
func GenerateKeyPair() (privatePEM, publicPEM []byte, err error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaBits)
	if err != nil {
		return nil, nil, fmt.Errorf("generating RSA key: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding public key: %w", err)
	}

	privatePEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	publicPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privatePEM, publicPEM, nil
}

// AsymmetricEncrypt encrypts plaintext to the PEM-encoded public key using
// RSA-OAEP with SHA-256. Plaintext longer than one OAEP block is split into
// fixed-size chunks, each encrypted separately and concatenated.
func AsymmetricEncrypt(plaintext, publicPEM []byte) ([]byte, error) {
	pub, err := parsePublicKey(publicPEM)
	if err != nil {
		return nil, err
	}

	chunkSize := pub.Size() - 2*sha256.Size - 2
	var out []byte
	for len(plaintext) > 0 || out == nil {
		n := min(len(plaintext), chunkSize)
		block, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, plaintext[:n], nil)
		if err != nil {
			return nil, fmt.Errorf("encrypting block: %w", err)
		}
		out = append(out, block...)
		plaintext = plaintext[n:]
	}
	return out, nil
}

// AsymmetricDecrypt reverses AsymmetricEncrypt using the PEM-encoded private
// key. Returns an error wrapping ErrDecryption on malformed ciphertext or a
// wrong key.
func AsymmetricDecrypt(ciphertext, privatePEM []byte) ([]byte, error) {
	priv, err := parsePrivateKey(privatePEM)
	if err != nil {
		return nil, err
	}

	blockSize := priv.Size()
	if len(ciphertext) == 0 || len(ciphertext)%blockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not a multiple of %d", ErrDecryption, len(ciphertext), blockSize)
	}

	var out []byte
	for len(ciphertext) > 0 {
		plain, err := rsa.DecryptOAEP(sha256.New(), nil, priv, ciphertext[:blockSize], nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
		}
		out = append(out, plain...)
		ciphertext = ciphertext[blockSize:]
	}
	return out, nil
}

// GenerateSymmetricKey returns a fresh random symmetric key.
func GenerateSymmetricKey() ([]byte, error) {
	key := make([]byte, SymmetricKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("reading random key: %w", err)
	}
	return key, nil
}

// SymmetricEncrypt encrypts plaintext with XChaCha20-Poly1305. A random
// 24-byte nonce is prepended to the ciphertext: blob = nonce ‖ ciphertext.
func SymmetricEncrypt(plaintext, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("reading random nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// SymmetricDecrypt reverses SymmetricEncrypt. Returns an error wrapping
// ErrIntegrity if the ciphertext was tampered with or the key is wrong.
func SymmetricDecrypt(blob, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	if len(blob) < aead.NonceSize() {
		return nil, fmt.Errorf("%w: blob shorter than nonce", ErrIntegrity)
	}

	nonce, ciphertext := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIntegrity, err)
	}
	return plaintext, nil
}

// Fingerprint returns the fast content fingerprint used for change
// detection, URL-safe base64 encoded. It is not collision-resistant and is
// never used for naming or security decisions.
func Fingerprint(data []byte) string {
	sum := md5.Sum(data)
	return base64.URLEncoding.EncodeToString(sum[:])
}

// Digest returns the collision-resistant digest used for salts and remote
// filename derivation.
func Digest(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// EncodeDigest renders a digest as URL-safe text suitable for a remote
// filename.
func EncodeDigest(digest []byte) string {
	return base64.URLEncoding.EncodeToString(digest)
}

func parsePublicKey(publicPEM []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(publicPEM)
	if block == nil {
		return nil, fmt.Errorf("public key is not PEM encoded")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA")
	}
	return pub, nil
}

func parsePrivateKey(privatePEM []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(privatePEM)
	if block == nil {
		return nil, fmt.Errorf("private key is not PEM encoded")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return priv, nil
}
