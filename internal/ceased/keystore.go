package ceased

// KeyStore is a durable mapping from key name to key bytes, local to one
// identity. Names are flat, /-segmented strings (e.g. "user/private",
// "archives/<drive id>").
type KeyStore interface {
	// Get returns the key bytes for name, or an error wrapping
	// ErrKeyNotFound if the name is absent.
	Get(name string) ([]byte, error)

	// Set durably stores key under name, overwriting any previous value.
	Set(name string, key []byte) error

	// Delete removes a key. Returns an error wrapping ErrKeyNotFound if
	// the name is absent.
	Delete(name string) error

	// Names returns all stored key names.
	Names() ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}
