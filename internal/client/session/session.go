// Package session bridges one open editor surface to the save coordinator and
// exposes its save status.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/iudanet/draftkeeper/internal/client/save"
	"github.com/iudanet/draftkeeper/internal/client/storage"
	"github.com/iudanet/draftkeeper/internal/models"
)

var (
	// ErrSessionDestroyed is returned by operations on a destroyed session
	ErrSessionDestroyed = errors.New("document session destroyed")

	// ErrNoBackup indicates that there is no live backup to restore
	ErrNoBackup = errors.New("no backup available")
)

// DefaultBackupInterval минимальный интервал между снимками в хранилище бэкапов
const DefaultBackupInterval = 250 * time.Millisecond

// ContentSource returns the current editor content
type ContentSource func() ([]byte, error)

// Coordinator is the part of the save coordinator a session uses
type Coordinator interface {
	ScheduleSave(documentID string, producer save.Producer)
	Flush(ctx context.Context, documentID string) (save.Result, error)
	CancelPendingSaves(documentID string)
	HasPending(documentID string) bool
	OnResult(fn func(save.Result)) (unsubscribe func())
}

// Backups is the part of the backup store a session uses
type Backups interface {
	SaveBackup(ctx context.Context, documentID string, content []byte) (*models.Backup, error)
	GetBackup(ctx context.Context, documentID string) (*models.Backup, bool)
	DeleteBackup(ctx context.Context, documentID string) error
}

// Leadership notifies about leadership transitions
type Leadership interface {
	OnLeadershipChange(fn func(isLeader bool)) (unsubscribe func())
}

// Deps are the collaborators of a session. Backups, Leadership and Documents are optional.
type Deps struct {
	Coordinator Coordinator
	Backups     Backups
	Leadership  Leadership
	Documents   storage.DocumentStore
	Clock       clockwork.Clock
	Logger      *slog.Logger
}

// Config задает параметры сессии
type Config struct {
	// BackupInterval минимальный интервал между аварийными снимками
	BackupInterval time.Duration
	// Strict делает ошибки использования паникой (режим разработки)
	Strict bool
}

// Snapshot is the save state of a session as shown to the user
type Snapshot struct {
	LastSavedAt time.Time
	Err         error
	DocumentID  string
	Status      save.Status
}

// Session is the per-document facade used by the editing surface
type Session struct {
	lastSavedAt  time.Time
	lastErr      error
	coordinator  Coordinator
	backups      Backups
	documents    storage.DocumentStore
	clock        clockwork.Clock
	backupTimer  clockwork.Timer
	logger       *slog.Logger
	source       ContentSource
	statusSubs   map[int]func(Snapshot)
	recoverySubs map[int]func(*models.Backup)
	unsubResults func()
	unsubLeader  func()
	documentID   string
	status       save.Status
	cfg          Config
	nextSub      int
	mu           sync.Mutex
	destroyed    bool
	// предложенный пользователю снимок ждет ответа: его нельзя удалять или вытеснять
	recoveryPending bool
}

// New opens a session for documentID. source is called whenever content has to be
// persisted, so it must return the freshest editor state.
func New(documentID string, source ContentSource, deps Deps, cfg Config) (*Session, error) {
	if documentID == "" || source == nil || deps.Coordinator == nil {
		return nil, fmt.Errorf("new session: %w", save.ErrInvalidRequest)
	}
	if cfg.BackupInterval <= 0 {
		cfg.BackupInterval = DefaultBackupInterval
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := &Session{
		documentID:   documentID,
		source:       source,
		coordinator:  deps.Coordinator,
		backups:      deps.Backups,
		documents:    deps.Documents,
		clock:        deps.Clock,
		logger:       deps.Logger.With("document_id", documentID),
		cfg:          cfg,
		status:       save.StatusSaved,
		statusSubs:   make(map[int]func(Snapshot)),
		recoverySubs: make(map[int]func(*models.Backup)),
	}

	s.unsubResults = s.coordinator.OnResult(s.onResult)
	if deps.Leadership != nil {
		s.unsubLeader = deps.Leadership.OnLeadershipChange(s.onLeadershipChange)
	}

	return s, nil
}

// DocumentID returns the id of the session's document
func (s *Session) DocumentID() string {
	return s.documentID
}

// MarkChanged records a content mutation from the editing surface: a save is scheduled
// and the status becomes Dirty while it waits to be written.
func (s *Session) MarkChanged() {
	if s.isDestroyed() {
		s.misuse("MarkChanged")
		return
	}

	s.coordinator.ScheduleSave(s.documentID, save.Producer(s.source))
	s.markDirty()
	s.armBackup()
}

// SaveImmediate persists the current content now. Used after programmatic changes such
// as AI insertions that were not observed through MarkChanged.
func (s *Session) SaveImmediate(ctx context.Context) error {
	if s.isDestroyed() {
		s.misuse("SaveImmediate")
		return ErrSessionDestroyed
	}

	s.coordinator.ScheduleSave(s.documentID, save.Producer(s.source))
	s.markDirty()
	return s.flush(ctx)
}

// Flush writes pending content now and waits for completion
func (s *Session) Flush(ctx context.Context) error {
	if s.isDestroyed() {
		s.misuse("Flush")
		return ErrSessionDestroyed
	}
	return s.flush(ctx)
}

// Status returns the current save state
func (s *Session) Status() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// OnStatusChange registers fn; it is called immediately with the current state and then
// on every transition.
func (s *Session) OnStatusChange(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.statusSubs[id] = fn
	current := s.snapshotLocked()
	s.mu.Unlock()

	fn(current)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.statusSubs, id)
	}
}

// OnRecoveryAvailable registers fn for backups that are newer than the last known save.
// Checked when this window acquires leadership and by CheckRecovery.
func (s *Session) OnRecoveryAvailable(fn func(*models.Backup)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.recoverySubs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.recoverySubs, id)
	}
}

// CheckRecovery returns a live backup newer than the last known save, if any
func (s *Session) CheckRecovery(ctx context.Context) (*models.Backup, bool) {
	if s.backups == nil {
		return nil, false
	}

	rec, ok := s.backups.GetBackup(ctx, s.documentID)
	if !ok {
		s.setRecoveryPending(false)
		return nil, false
	}

	s.mu.Lock()
	lastSaved := s.lastSavedAt
	s.mu.Unlock()

	if lastSaved.IsZero() && s.documents != nil {
		doc, err := s.documents.ReadDocument(ctx, s.documentID)
		switch {
		case err == nil:
			lastSaved = doc.UpdatedAt
		case !errors.Is(err, storage.ErrDocumentNotFound):
			s.logger.Warn("failed to read document for recovery check", "error", err)
		}
	}

	if !rec.CreatedAt.After(lastSaved) {
		s.setRecoveryPending(false)
		return nil, false
	}

	s.setRecoveryPending(true)
	return rec, true
}

// RestoreBackup hands the live backup content to apply (which replaces the editor
// content) and saves it immediately. The backup is deleted once the save succeeds.
func (s *Session) RestoreBackup(ctx context.Context, apply func(content []byte) error) error {
	if s.isDestroyed() {
		s.misuse("RestoreBackup")
		return ErrSessionDestroyed
	}
	if s.backups == nil {
		return ErrNoBackup
	}

	rec, ok := s.backups.GetBackup(ctx, s.documentID)
	if !ok {
		return ErrNoBackup
	}

	if err := apply(rec.Content); err != nil {
		return fmt.Errorf("failed to apply backup %s: %w", rec.ID, err)
	}

	s.logger.Info("restoring backup", "backup_id", rec.ID)
	s.setRecoveryPending(false)
	return s.SaveImmediate(ctx)
}

// DismissBackup deletes the document's backups without restoring them
func (s *Session) DismissBackup(ctx context.Context) error {
	if s.backups == nil {
		return nil
	}
	s.setRecoveryPending(false)
	return s.backups.DeleteBackup(ctx, s.documentID)
}

// Destroy flushes pending content and detaches the session. If the flush fails the
// content is kept in the backup store instead. Destroy is idempotent.
func (s *Session) Destroy(ctx context.Context) error {
	if s.isDestroyed() {
		return nil
	}

	flushErr := s.flush(ctx)
	if flushErr != nil {
		// Окно закрывается, а запись не удалась: остается только аварийный снимок
		s.snapshotBackup()
		s.coordinator.CancelPendingSaves(s.documentID)
	}

	s.mu.Lock()
	s.destroyed = true
	if s.backupTimer != nil {
		s.backupTimer.Stop()
		s.backupTimer = nil
	}
	unsubResults, unsubLeader := s.unsubResults, s.unsubLeader
	s.statusSubs = make(map[int]func(Snapshot))
	s.recoverySubs = make(map[int]func(*models.Backup))
	s.mu.Unlock()

	unsubResults()
	if unsubLeader != nil {
		unsubLeader()
	}

	s.logger.Debug("session destroyed")
	return flushErr
}

func (s *Session) flush(ctx context.Context) error {
	_, err := s.coordinator.Flush(ctx, s.documentID)
	if err != nil {
		return fmt.Errorf("flush %s: %w", s.documentID, err)
	}
	return nil
}

// onResult maps coordinator results of this document to session status
func (s *Session) onResult(res save.Result) {
	if res.DocumentID != s.documentID {
		return
	}

	switch res.Status {
	case save.StatusSaving:
		s.setStatus(save.StatusSaving, nil)

	case save.StatusSaved:
		s.mu.Lock()
		s.lastSavedAt = res.SavedAt
		s.mu.Unlock()

		if res.Pending {
			s.setStatus(save.StatusDirty, nil)
			return
		}

		s.mu.Lock()
		keep := s.recoveryPending
		s.mu.Unlock()
		if s.backups != nil && !keep {
			// ошибка уже залогирована хранилищем бэкапов
			_ = s.backups.DeleteBackup(context.Background(), s.documentID)
		}

		// правка, пришедшая во время записи, оставляет документ грязным
		s.transition(func(save.Status, error) (save.Status, error) {
			if s.coordinator.HasPending(s.documentID) {
				return save.StatusDirty, nil
			}
			return save.StatusSaved, nil
		})

	case save.StatusError:
		s.setStatus(save.StatusError, res.Err)

	case save.StatusSuppressed:
		s.setStatus(save.StatusSuppressed, res.Err)
		s.snapshotBackup()
	}
}

func (s *Session) onLeadershipChange(isLeader bool) {
	s.mu.Lock()
	skip := !isLeader || s.destroyed || len(s.recoverySubs) == 0
	s.mu.Unlock()
	if skip {
		return
	}

	rec, ok := s.CheckRecovery(context.Background())
	if !ok {
		return
	}

	s.logger.Info("newer backup found after leadership change", "backup_id", rec.ID)

	s.mu.Lock()
	fns := make([]func(*models.Backup), 0, len(s.recoverySubs))
	for _, fn := range s.recoverySubs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(rec)
	}
}

// armBackup schedules one snapshot per BackupInterval while content is dirty
func (s *Session) armBackup() {
	if s.backups == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backupTimer != nil || s.destroyed {
		return
	}
	s.backupTimer = s.clock.AfterFunc(s.cfg.BackupInterval, func() {
		s.mu.Lock()
		s.backupTimer = nil
		dirty := !s.destroyed && s.coordinator.HasPending(s.documentID)
		s.mu.Unlock()

		if dirty {
			s.snapshotBackup()
		}
	})
}

func (s *Session) snapshotBackup() {
	if s.backups == nil {
		return
	}

	s.mu.Lock()
	offered := s.recoveryPending
	s.mu.Unlock()
	if offered {
		s.logger.Warn("backup snapshot skipped, recovery offer is unanswered")
		return
	}

	content, err := s.source()
	if err != nil {
		s.logger.Warn("failed to read content for backup", "error", err)
		return
	}

	// Ошибка не прерывает основной путь сохранения
	_, _ = s.backups.SaveBackup(context.Background(), s.documentID, content)
}

func (s *Session) setRecoveryPending(pending bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recoveryPending = pending
}

// markDirty sets Dirty only while the coordinator still holds unwritten content.
// A save that finished in between or a Suppressed result keeps its status.
func (s *Session) markDirty() {
	s.transition(func(current save.Status, err error) (save.Status, error) {
		if current == save.StatusSuppressed || !s.coordinator.HasPending(s.documentID) {
			return current, err
		}
		return save.StatusDirty, nil
	})
}

func (s *Session) setStatus(status save.Status, err error) {
	s.transition(func(save.Status, error) (save.Status, error) { return status, err })
}

// transition computes the next status under the session lock and notifies
// subscribers when it changed
func (s *Session) transition(next func(current save.Status, err error) (save.Status, error)) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	status, err := next(s.status, s.lastErr)
	if s.status == status && errors.Is(s.lastErr, err) {
		s.mu.Unlock()
		return
	}
	s.status = status
	s.lastErr = err
	snap := s.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(s.statusSubs))
	for _, fn := range s.statusSubs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		DocumentID:  s.documentID,
		Status:      s.status,
		LastSavedAt: s.lastSavedAt,
		Err:         s.lastErr,
	}
}

func (s *Session) isDestroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

// misuse reports operations on a destroyed session
func (s *Session) misuse(op string) {
	if s.cfg.Strict {
		panic(fmt.Sprintf("session %s: %s: %v", s.documentID, op, ErrSessionDestroyed))
	}
	s.logger.Error("operation on destroyed session", "op", op)
}
