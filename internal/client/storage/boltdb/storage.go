package boltdb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"

	"github.com/iudanet/draftkeeper/internal/client/storage"
)

var (
	// BoltDB bucket names
	bucketBackups  = []byte("backups")
	bucketMetadata = []byte("metadata")
)

const (
	// openTimeout bounds one wait for the file lock held by another window
	openTimeout = 200 * time.Millisecond
	// lockRetryDelay пауза между попытками захватить файл
	lockRetryDelay = 50 * time.Millisecond
	// lockRetries число повторов после ErrTimeout
	lockRetries = 20
)

// Storage keeps emergency backups and their metadata in a BoltDB file shared by all
// editor windows. bbolt locks the file exclusively while it is open, so the file is
// opened for each operation and closed right after: every process on the machine can
// use the same path.
type Storage struct {
	path   string
	mu     sync.Mutex
	closed bool
}

// New creates the database file and its buckets if needed
func New(ctx context.Context, dbPath string) (*Storage, error) {
	s := &Storage{path: dbPath}

	err := s.update(ctx, func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketBackups, bucketMetadata} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize boltdb: %w", err)
	}

	return s, nil
}

// Close makes further operations fail with ErrStorageClosed. No file handle is held
// between operations, so there is nothing else to release.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Storage) view(ctx context.Context, fn func(tx *bbolt.Tx) error) error {
	return s.withDB(ctx, true, func(db *bbolt.DB) error { return db.View(fn) })
}

func (s *Storage) update(ctx context.Context, fn func(tx *bbolt.Tx) error) error {
	return s.withDB(ctx, false, func(db *bbolt.DB) error { return db.Update(fn) })
}

// withDB opens the file, runs fn and closes it again. Lock timeouts caused by another
// process are retried until ctx is done or the retries run out.
func (s *Storage) withDB(ctx context.Context, readOnly bool, fn func(db *bbolt.DB) error) error {
	// внутри процесса операции идут по очереди: flock конфликтует и между своими дескрипторами
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}

	var db *bbolt.DB
	open := func() error {
		var err error
		db, err = bbolt.Open(s.path, 0600, &bbolt.Options{Timeout: openTimeout, ReadOnly: readOnly})
		if err != nil && !errors.Is(err, berrors.ErrTimeout) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(lockRetryDelay), lockRetries), ctx)
	if err := backoff.Retry(open, policy); err != nil {
		return fmt.Errorf("failed to open boltdb %s: %w", s.path, err)
	}

	err := fn(db)
	if cerr := db.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("failed to close boltdb: %w", cerr)
	}
	return err
}
