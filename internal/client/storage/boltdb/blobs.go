package boltdb

import (
	"bytes"
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/draftkeeper/internal/client/storage"
)

// PutBlob stores or replaces data under key
func (s *Storage) PutBlob(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return storage.ErrInvalidKey
	}
	err := s.update(ctx, func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketBackups)
		if bucket == nil {
			return fmt.Errorf("backups bucket not found")
		}

		if err := bucket.Put([]byte(key), data); err != nil {
			return fmt.Errorf("failed to save blob: %w", err)
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("put transaction failed: %w", err)
	}

	return nil
}

// GetBlob retrieves data by key
func (s *Storage) GetBlob(ctx context.Context, key string) ([]byte, error) {
	var data []byte

	err := s.view(ctx, func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketBackups)
		if bucket == nil {
			return storage.ErrBlobNotFound
		}

		value := bucket.Get([]byte(key))
		if value == nil {
			return storage.ErrBlobNotFound
		}

		// Значение валидно только внутри транзакции, копируем
		data = make([]byte, len(value))
		copy(data, value)

		return nil
	})

	if err != nil {
		return nil, err
	}

	return data, nil
}

// DeleteBlob removes key; missing keys are ignored
func (s *Storage) DeleteBlob(ctx context.Context, key string) error {
	err := s.update(ctx, func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketBackups)
		if bucket == nil {
			return nil
		}

		if err := bucket.Delete([]byte(key)); err != nil {
			return fmt.Errorf("failed to delete blob: %w", err)
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("delete transaction failed: %w", err)
	}

	return nil
}

// ListBlobs returns all keys starting with prefix in ascending order
func (s *Storage) ListBlobs(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	err := s.view(ctx, func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketBackups)
		if bucket == nil {
			return nil
		}

		p := []byte(prefix)
		c := bucket.Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}

	return keys, nil
}
