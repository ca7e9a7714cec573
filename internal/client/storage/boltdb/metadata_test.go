package boltdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/iudanet/draftkeeper/internal/client/storage"
)

// createTestMetadataStorage создает временное BoltDB хранилище и инициализирует buckets
func createTestMetadataStorage(t *testing.T) (*Storage, func()) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "metadata_test.db")

	ctx := context.Background()
	store, err := New(ctx, dbPath)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		require.NoError(t, store.Close())
		require.NoError(t, os.RemoveAll(tmpDir))
	}

	return store, cleanup
}

func TestPutAndGetMeta(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestMetadataStorage(t)
	defer cleanup()

	// Изначально значение отсутствует
	_, err := store.GetMeta(ctx, "backup_salt")
	assert.ErrorIs(t, err, storage.ErrMetadataNotFound)

	require.NoError(t, store.PutMeta(ctx, "backup_salt", []byte{1, 2, 3}))

	got, err := store.GetMeta(ctx, "backup_salt")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	// Перезапись
	require.NoError(t, store.PutMeta(ctx, "backup_salt", []byte{4}))
	got, err = store.GetMeta(ctx, "backup_salt")
	require.NoError(t, err)
	assert.Equal(t, []byte{4}, got)
}

func TestPutMeta_EmptyName(t *testing.T) {
	store, cleanup := createTestMetadataStorage(t)
	defer cleanup()

	err := store.PutMeta(context.Background(), "", []byte("x"))
	assert.ErrorIs(t, err, storage.ErrInvalidKey)
}

func TestMeta_SeparateFromBackups(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestMetadataStorage(t)
	defer cleanup()

	require.NoError(t, store.PutMeta(ctx, "backup_doc_1", []byte("meta")))

	keys, err := store.ListBlobs(ctx, "backup_")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestGetMeta_BucketMissing(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestMetadataStorage(t)
	defer cleanup()

	// Удаляем bucket metadata напрямую
	err := store.update(ctx, func(tx *bbolt.Tx) error {
		return tx.DeleteBucket(bucketMetadata)
	})
	require.NoError(t, err)

	_, err = store.GetMeta(ctx, "backup_salt")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "metadata bucket not found")

	err = store.PutMeta(ctx, "backup_salt", []byte("x"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "metadata bucket not found")
}

func TestMeta_Closed(t *testing.T) {
	store, _ := createTestMetadataStorage(t)
	require.NoError(t, store.Close())

	_, err := store.GetMeta(context.Background(), "backup_salt")
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	assert.ErrorIs(t, store.PutMeta(context.Background(), "backup_salt", nil), storage.ErrStorageClosed)
}
