package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/draftkeeper/internal/client/storage"
)

// PutMeta stores or replaces value under name
func (s *Storage) PutMeta(ctx context.Context, name string, value []byte) error {
	if name == "" {
		return storage.ErrInvalidKey
	}
	return s.update(ctx, func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		if err := bucket.Put([]byte(name), value); err != nil {
			return fmt.Errorf("failed to save metadata %s: %w", name, err)
		}

		return nil
	})
}

// GetMeta retrieves value by name
// Returns ErrMetadataNotFound if nothing was stored yet
func (s *Storage) GetMeta(ctx context.Context, name string) ([]byte, error) {
	var value []byte

	err := s.view(ctx, func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		v := bucket.Get([]byte(name))
		if v == nil {
			return storage.ErrMetadataNotFound
		}

		// Значение валидно только внутри транзакции, копируем
		value = append([]byte(nil), v...)
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to get metadata %s: %w", name, err)
	}

	return value, nil
}
