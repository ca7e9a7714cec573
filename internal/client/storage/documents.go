package storage

import (
	"context"

	"github.com/iudanet/draftkeeper/internal/models"
)

//go:generate moq -out documentstore_mock.go . DocumentStore

// DocumentStore is the repository that actually persists documents.
// The save coordinator is its only caller on the write path.
type DocumentStore interface {
	// WriteDocument replaces the content of a document, creating it if needed
	WriteDocument(ctx context.Context, id string, content []byte) error

	// ReadDocument retrieves a document by ID
	// Returns ErrDocumentNotFound if document doesn't exist
	ReadDocument(ctx context.Context, id string) (*models.Document, error)
}
