package ceased

import "errors"

// Sentinel errors shared across components. Callers match them with
// errors.Is after any amount of fmt.Errorf("%w") wrapping.
var (
	// ErrRemoteIO indicates a network or remote-store failure. During a
	// concurrent push it aborts only the file it occurred on; siblings
	// continue and failures are reported together afterwards.
	ErrRemoteIO = errors.New("remote store I/O failure")

	// ErrNotFound indicates a missing local file or remote path. Some
	// callers treat absence as a valid state (e.g. the remote manifest on
	// first sync) and recover; everyone else propagates it.
	ErrNotFound = errors.New("not found")

	// ErrKeyNotFound indicates a missing entry in the key store.
	ErrKeyNotFound = errors.New("key not found")
)
