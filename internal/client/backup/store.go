// Package backup keeps short-lived emergency snapshots of unsaved document content.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/iudanet/draftkeeper/internal/client/storage"
	"github.com/iudanet/draftkeeper/internal/models"
)

// DefaultTTL время жизни снимка
const DefaultTTL = 24 * time.Hour

// Sealer encrypts snapshot content before it reaches storage
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// Config задает параметры хранилища снимков
type Config struct {
	Sealer Sealer // nil - содержимое хранится открытым текстом
	TTL    time.Duration
}

// FailureFunc is called when a backup operation failed. The failure is not returned to
// editing code paths; UIs use it to show a warning.
type FailureFunc func(op, documentID string, err error)

// Store persists backup records as JSON blobs keyed backup_{documentId}_{timestampMs}.
// Every operation is best-effort: nothing here blocks or fails an edit.
type Store struct {
	blobs    storage.BlobStore
	sealer   Sealer
	clock    clockwork.Clock
	logger   *slog.Logger
	failures map[int]FailureFunc
	ttl      time.Duration
	nextSub  int
	mu       sync.Mutex
}

// New creates a backup store on top of blobs
func New(blobs storage.BlobStore, cfg Config, clock clockwork.Clock, logger *slog.Logger) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		blobs:    blobs,
		sealer:   cfg.Sealer,
		clock:    clock,
		logger:   logger,
		ttl:      cfg.TTL,
		failures: make(map[int]FailureFunc),
	}
}

// OnFailure registers fn for failed backup operations
func (s *Store) OnFailure(fn FailureFunc) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.failures[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.failures, id)
	}
}

// SaveBackup stores a snapshot of content valid for TTL from now.
// The error is returned for callers that care; it has already been logged and reported.
func (s *Store) SaveBackup(ctx context.Context, documentID string, content []byte) (*models.Backup, error) {
	now := s.clock.Now()
	rec := &models.Backup{
		ID:         models.BackupID(documentID, now),
		DocumentID: documentID,
		Content:    content,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}

	stored := *rec
	if s.sealer != nil {
		sealed, err := s.sealer.Seal(content)
		if err != nil {
			return nil, s.fail("save", documentID, fmt.Errorf("failed to seal backup: %w", err))
		}
		stored.Content = sealed
	}

	data, err := json.Marshal(&stored)
	if err != nil {
		return nil, s.fail("save", documentID, fmt.Errorf("failed to marshal backup: %w", err))
	}

	if err := s.blobs.PutBlob(ctx, rec.ID, data); err != nil {
		return nil, s.fail("save", documentID, fmt.Errorf("failed to store backup: %w", err))
	}

	s.logger.Debug("backup saved", "document_id", documentID, "backup_id", rec.ID)
	return rec, nil
}

// GetBackup returns the newest unexpired backup of documentID.
// Expired records and read failures are reported as absent.
func (s *Store) GetBackup(ctx context.Context, documentID string) (*models.Backup, bool) {
	ids, err := s.ids(ctx, documentID)
	if err != nil {
		s.fail("get", documentID, err)
		return nil, false
	}
	if len(ids) == 0 {
		return nil, false
	}

	// ids отсортированы по времени снимка, последний самый свежий
	rec, err := s.read(ctx, ids[len(ids)-1])
	if err != nil {
		if !errors.Is(err, storage.ErrBlobNotFound) {
			s.fail("get", documentID, err)
		}
		return nil, false
	}

	if rec.IsExpired(s.clock.Now()) {
		return nil, false
	}

	if s.sealer != nil {
		content, err := s.sealer.Open(rec.Content)
		if err != nil {
			s.fail("get", documentID, fmt.Errorf("failed to open backup %s: %w", rec.ID, err))
			return nil, false
		}
		rec.Content = content
	}

	return rec, true
}

// HasBackup reports whether GetBackup would return a record
func (s *Store) HasBackup(ctx context.Context, documentID string) bool {
	_, ok := s.GetBackup(ctx, documentID)
	return ok
}

// DeleteBackup removes every backup of documentID. Missing records are not an error.
func (s *Store) DeleteBackup(ctx context.Context, documentID string) error {
	ids, err := s.ids(ctx, documentID)
	if err != nil {
		return s.fail("delete", documentID, err)
	}

	var errs []error
	for _, id := range ids {
		if err := s.blobs.DeleteBlob(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete backup %s: %w", id, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return s.fail("delete", documentID, err)
	}

	if len(ids) > 0 {
		s.logger.Debug("backups deleted", "document_id", documentID, "count", len(ids))
	}
	return nil
}

// CleanupExpired removes expired and unreadable records of all documents and returns
// how many were removed.
func (s *Store) CleanupExpired(ctx context.Context) (int, error) {
	keys, err := s.blobs.ListBlobs(ctx, models.BackupKeyPrefix)
	if err != nil {
		return 0, s.fail("cleanup", "", fmt.Errorf("failed to list backups: %w", err))
	}

	now := s.clock.Now()
	removed := 0
	var errs []error

	for _, key := range keys {
		rec, err := s.read(ctx, key)
		if errors.Is(err, storage.ErrBlobNotFound) {
			continue
		}
		// Поврежденные записи тоже удаляем: восстановить из них нечего.
		// Содержимое не расшифровываем, запись под другим ключом не трогаем
		if err == nil && !rec.IsExpired(now) {
			continue
		}

		if err := s.blobs.DeleteBlob(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete backup %s: %w", key, err))
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("expired backups removed", "count", removed)
	}

	if err := errors.Join(errs...); err != nil {
		return removed, s.fail("cleanup", "", err)
	}
	return removed, nil
}

// ids returns backup ids of documentID ordered by snapshot time
func (s *Store) ids(ctx context.Context, documentID string) ([]string, error) {
	keys, err := s.blobs.ListBlobs(ctx, models.BackupIDPrefix(documentID))
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	type stamped struct {
		id string
		ts int64
	}
	matched := make([]stamped, 0, len(keys))
	for _, key := range keys {
		if ts, ok := models.ParseBackupID(documentID, key); ok {
			matched = append(matched, stamped{id: key, ts: ts})
		}
	}

	// Лексикографический порядок ключей не совпадает с числовым для разной длины
	sort.Slice(matched, func(i, j int) bool { return matched[i].ts < matched[j].ts })

	ids := make([]string, len(matched))
	for i, m := range matched {
		ids[i] = m.id
	}
	return ids, nil
}

func (s *Store) read(ctx context.Context, key string) (*models.Backup, error) {
	data, err := s.blobs.GetBlob(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup %s: %w", key, err)
	}

	var rec models.Backup
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal backup %s: %w", key, err)
	}
	return &rec, nil
}

// fail logs err, notifies failure listeners and returns err
func (s *Store) fail(op, documentID string, err error) error {
	s.logger.Warn("backup operation failed", "op", op, "document_id", documentID, "error", err)

	s.mu.Lock()
	fns := make([]FailureFunc, 0, len(s.failures))
	for _, fn := range s.failures {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(op, documentID, err)
	}
	return err
}
