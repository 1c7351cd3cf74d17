package crypto

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"

	"ceased/internal/testutil"
)

// newKeyPair generates a small throwaway keypair for wrong-key tests; the
// shared testutil pair covers everything else.
func newKeyPair(t *testing.T) (privPEM, pubPEM []byte) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("encoding private key: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("encoding public key: %v", err)
	}
	privPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privPEM, pubPEM
}

func TestSymmetricEncryptDecrypt_RoundTrip(t *testing.T) {
	t.Parallel()

	key, err := GenerateSymmetricKey()
	if err != nil {
		t.Fatalf("GenerateSymmetricKey() error = %v", err)
	}

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "simple text", input: []byte("hello world")},
		{name: "empty", input: []byte{}},
		{name: "binary data", input: []byte{0x00, 0xff, 0x01, 0xfe}},
		{name: "large data", input: bytes.Repeat([]byte("abcdef"), 10000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			blob, err := SymmetricEncrypt(tt.input, key)
			if err != nil {
				t.Fatalf("SymmetricEncrypt() error = %v", err)
			}
			if bytes.Contains(blob, tt.input) && len(tt.input) > 0 {
				t.Error("ciphertext contains plaintext")
			}

			got, err := SymmetricDecrypt(blob, key)
			if err != nil {
				t.Fatalf("SymmetricDecrypt() error = %v", err)
			}
			if !bytes.Equal(got, tt.input) {
				t.Errorf("round trip = %q, want %q", got, tt.input)
			}
		})
	}
}

func TestSymmetricEncrypt_FreshNonce(t *testing.T) {
	t.Parallel()

	key, err := GenerateSymmetricKey()
	if err != nil {
		t.Fatalf("GenerateSymmetricKey() error = %v", err)
	}

	a, err := SymmetricEncrypt([]byte("same plaintext"), key)
	if err != nil {
		t.Fatalf("SymmetricEncrypt() error = %v", err)
	}
	b, err := SymmetricEncrypt([]byte("same plaintext"), key)
	if err != nil {
		t.Fatalf("SymmetricEncrypt() error = %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same plaintext produced identical blobs")
	}
}

func TestSymmetricDecrypt_WrongKey(t *testing.T) {
	t.Parallel()

	key, _ := GenerateSymmetricKey()
	other, _ := GenerateSymmetricKey()

	blob, err := SymmetricEncrypt([]byte("secret"), key)
	if err != nil {
		t.Fatalf("SymmetricEncrypt() error = %v", err)
	}

	if _, err := SymmetricDecrypt(blob, other); !errors.Is(err, ErrIntegrity) {
		t.Errorf("SymmetricDecrypt() with wrong key: error = %v, want ErrIntegrity", err)
	}
}

func TestSymmetricDecrypt_Tampered(t *testing.T) {
	t.Parallel()

	key, _ := GenerateSymmetricKey()
	blob, err := SymmetricEncrypt([]byte("secret"), key)
	if err != nil {
		t.Fatalf("SymmetricEncrypt() error = %v", err)
	}
	blob[len(blob)-1] ^= 0x01

	if _, err := SymmetricDecrypt(blob, key); !errors.Is(err, ErrIntegrity) {
		t.Errorf("SymmetricDecrypt() with tampered blob: error = %v, want ErrIntegrity", err)
	}
}

func TestSymmetricDecrypt_TooShort(t *testing.T) {
	t.Parallel()

	key, _ := GenerateSymmetricKey()
	if _, err := SymmetricDecrypt([]byte("short"), key); !errors.Is(err, ErrIntegrity) {
		t.Errorf("SymmetricDecrypt() on truncated blob: error = %v, want ErrIntegrity", err)
	}
}

func TestAsymmetricEncryptDecrypt_RoundTrip(t *testing.T) {
	t.Parallel()

	privPEM, pubPEM := testutil.TestKeyPair(t)

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "simple text", input: []byte("hello world")},
		{name: "empty", input: []byte{}},
		{name: "one full block", input: bytes.Repeat([]byte("x"), 190)},
		{name: "multi block", input: bytes.Repeat([]byte("chunky"), 200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ciphertext, err := AsymmetricEncrypt(tt.input, pubPEM)
			if err != nil {
				t.Fatalf("AsymmetricEncrypt() error = %v", err)
			}

			got, err := AsymmetricDecrypt(ciphertext, privPEM)
			if err != nil {
				t.Fatalf("AsymmetricDecrypt() error = %v", err)
			}
			if !bytes.Equal(got, tt.input) {
				t.Errorf("round trip length = %d, want %d", len(got), len(tt.input))
			}
		})
	}
}

func TestAsymmetricDecrypt_WrongKey(t *testing.T) {
	t.Parallel()

	_, pubPEM := testutil.TestKeyPair(t)
	otherPriv, _ := newKeyPair(t)

	ciphertext, err := AsymmetricEncrypt([]byte("secret"), pubPEM)
	if err != nil {
		t.Fatalf("AsymmetricEncrypt() error = %v", err)
	}

	if _, err := AsymmetricDecrypt(ciphertext, otherPriv); !errors.Is(err, ErrDecryption) {
		t.Errorf("AsymmetricDecrypt() with wrong key: error = %v, want ErrDecryption", err)
	}
}

func TestAsymmetricDecrypt_BadLength(t *testing.T) {
	t.Parallel()

	privPEM, _ := testutil.TestKeyPair(t)

	for _, blob := range [][]byte{nil, []byte("not a block multiple")} {
		if _, err := AsymmetricDecrypt(blob, privPEM); !errors.Is(err, ErrDecryption) {
			t.Errorf("AsymmetricDecrypt(%d bytes): error = %v, want ErrDecryption", len(blob), err)
		}
	}
}

func TestGenerateKeyPair_PEMBlocks(t *testing.T) {
	t.Parallel()

	privPEM, pubPEM, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}

	privBlock, _ := pem.Decode(privPEM)
	if privBlock == nil || privBlock.Type != "PRIVATE KEY" {
		t.Errorf("private key block = %v, want PRIVATE KEY", privBlock)
	}
	pubBlock, _ := pem.Decode(pubPEM)
	if pubBlock == nil || pubBlock.Type != "PUBLIC KEY" {
		t.Errorf("public key block = %v, want PUBLIC KEY", pubBlock)
	}
}

func TestGenerateSymmetricKey(t *testing.T) {
	t.Parallel()

	a, err := GenerateSymmetricKey()
	if err != nil {
		t.Fatalf("GenerateSymmetricKey() error = %v", err)
	}
	if len(a) != SymmetricKeySize {
		t.Errorf("key length = %d, want %d", len(a), SymmetricKeySize)
	}

	b, err := GenerateSymmetricKey()
	if err != nil {
		t.Fatalf("GenerateSymmetricKey() error = %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("two generated keys are identical")
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	if got := Fingerprint([]byte("hello world")); got != "XrY7u-Ae7tCTyyK7j1rNww==" {
		t.Errorf("Fingerprint(hello world) = %q", got)
	}

	if Fingerprint([]byte("a")) == Fingerprint([]byte("b")) {
		t.Error("distinct inputs produced the same fingerprint")
	}
}

func TestDigestAndEncode(t *testing.T) {
	t.Parallel()

	d := Digest([]byte("input"))
	if len(d) != 32 {
		t.Fatalf("digest length = %d, want 32", len(d))
	}
	if !bytes.Equal(d, Digest([]byte("input"))) {
		t.Error("digest is not deterministic")
	}

	encoded := EncodeDigest(d)
	if encoded == "" {
		t.Fatal("encoded digest is empty")
	}
	for _, c := range encoded {
		if c == '/' || c == '+' {
			t.Errorf("encoded digest contains %q, want URL-safe alphabet", c)
		}
	}
}
