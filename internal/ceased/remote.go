package ceased

import "context"

// RemoteEntry describes one child of a remote folder.
type RemoteEntry struct {
	ID       string
	Name     string
	IsFolder bool
}

// RemoteStore is the remote object store the sync and chat layers run
// against. Objects and folders are addressed by opaque ids; names are only
// meaningful relative to a parent folder. Implementations must be safe for
// concurrent use, and should wrap transport failures in ErrRemoteIO.
type RemoteStore interface {
	// ListChildren returns the immediate children of a folder.
	ListChildren(ctx context.Context, folderID string) ([]RemoteEntry, error)

	// CreateFolder creates a folder under parentID and returns its id.
	CreateFolder(ctx context.Context, name, parentID string) (string, error)

	// Upload stores data as a new object named name under parentID and
	// returns the object id.
	Upload(ctx context.Context, data []byte, name, parentID, mimeType string) (string, error)

	// Download returns the full contents of an object.
	Download(ctx context.Context, id string) ([]byte, error)

	// Delete removes an object or folder by id.
	Delete(ctx context.Context, id string) error
}
