package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"testing"
)

var (
	keyOnce    sync.Once
	privatePEM []byte
	publicPEM  []byte
	keyErr     error
)

// TestKeyPair returns a PEM-encoded RSA keypair shared by all tests in the
// process. The modulus is 2048 bits to keep test runs fast; the chunked OAEP
// encoding adapts to the key size, so behavior matches production keys.
func TestKeyPair(t *testing.T) (privPEM, pubPEM []byte) {
	t.Helper()

	keyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			keyErr = err
			return
		}
		privDER, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			keyErr = err
			return
		}
		pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
		if err != nil {
			keyErr = err
			return
		}
		privatePEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
		publicPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	})
	if keyErr != nil {
		t.Fatalf("generating test keypair: %v", keyErr)
	}
	return privatePEM, publicPEM
}
