package storage

import "context"

//go:generate moq -out blobstore_mock.go . BlobStore

// BlobStore is a keyed blob store used for emergency backups.
// It knows nothing about what the blobs contain.
type BlobStore interface {
	// PutBlob stores or replaces data under key
	PutBlob(ctx context.Context, key string, data []byte) error

	// GetBlob retrieves data by key
	// Returns ErrBlobNotFound if key doesn't exist
	GetBlob(ctx context.Context, key string) ([]byte, error)

	// DeleteBlob removes key; deleting a missing key is not an error
	DeleteBlob(ctx context.Context, key string) error

	// ListBlobs returns all keys starting with prefix in ascending order
	ListBlobs(ctx context.Context, prefix string) ([]string, error)
}
