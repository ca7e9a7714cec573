package storage

import "errors"

// Common client storage errors
var (
	// ErrDocumentNotFound indicates that document was never written
	ErrDocumentNotFound = errors.New("document not found")

	// ErrBlobNotFound indicates that no blob exists under the key
	ErrBlobNotFound = errors.New("blob not found")

	// ErrMetadataNotFound indicates that no metadata value exists under the name
	ErrMetadataNotFound = errors.New("metadata not found")

	// ErrInvalidKey indicates an empty document id or blob key
	ErrInvalidKey = errors.New("invalid key")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
