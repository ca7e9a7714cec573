package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/draftkeeper/internal/client/storage"
	"github.com/iudanet/draftkeeper/internal/models"
)

// WriteDocument creates or replaces a document, bumping its revision
func (s *Storage) WriteDocument(ctx context.Context, id string, content []byte) error {
	if id == "" {
		return storage.ErrInvalidKey
	}
	if content == nil {
		content = []byte{}
	}

	now := s.clock.Now().UnixMilli()

	query := `
		INSERT INTO documents (id, content, revision, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			revision = documents.revision + 1,
			updated_at = excluded.updated_at
	`

	if _, err := s.db.ExecContext(ctx, query, id, content, now, now); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}

	return nil
}

// ReadDocument retrieves a document by ID
// Returns ErrDocumentNotFound if document doesn't exist
func (s *Storage) ReadDocument(ctx context.Context, id string) (*models.Document, error) {
	query := `
		SELECT id, content, revision, created_at, updated_at
		FROM documents
		WHERE id = ?
	`

	doc := &models.Document{}
	var createdAt, updatedAt int64

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID,
		&doc.Content,
		&doc.Revision,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	doc.CreatedAt = time.UnixMilli(createdAt)
	doc.UpdatedAt = time.UnixMilli(updatedAt)

	return doc, nil
}

// DeleteDocument removes a document
// Returns ErrDocumentNotFound if document doesn't exist
func (s *Storage) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrDocumentNotFound
	}

	return nil
}

// ListDocuments returns all documents without content, most recently updated first
func (s *Storage) ListDocuments(ctx context.Context) ([]*models.Document, error) {
	query := `
		SELECT id, revision, created_at, updated_at
		FROM documents
		ORDER BY updated_at DESC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc := &models.Document{}
		var createdAt, updatedAt int64
		if err := rows.Scan(&doc.ID, &doc.Revision, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.CreatedAt = time.UnixMilli(createdAt)
		doc.UpdatedAt = time.UnixMilli(updatedAt)
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return docs, nil
}
