package storage

import "context"

//go:generate moq -out metadata_mock.go . MetadataStore

// MetadataStore keeps small named values next to the backups,
// such as the salt and key fingerprint of backup encryption.
type MetadataStore interface {
	// PutMeta stores or replaces value under name
	PutMeta(ctx context.Context, name string, value []byte) error

	// GetMeta retrieves value by name
	// Returns ErrMetadataNotFound if nothing was stored yet
	GetMeta(ctx context.Context, name string) ([]byte, error)
}
