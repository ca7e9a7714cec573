package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/draftkeeper/internal/client/backup"
	"github.com/iudanet/draftkeeper/internal/client/save"
	"github.com/iudanet/draftkeeper/internal/client/storage"
	"github.com/iudanet/draftkeeper/internal/client/storage/boltdb"
	"github.com/iudanet/draftkeeper/internal/models"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fakeLeadership struct {
	fns    []func(bool)
	mu     sync.Mutex
	leader bool
}

func (f *fakeLeadership) IsLeader() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leader
}

func (f *fakeLeadership) OnLeadershipChange(fn func(bool)) func() {
	f.mu.Lock()
	f.fns = append(f.fns, fn)
	current := f.leader
	f.mu.Unlock()

	fn(current)
	return func() {}
}

func (f *fakeLeadership) set(leader bool) {
	f.mu.Lock()
	f.leader = leader
	fns := append([]func(bool){}, f.fns...)
	f.mu.Unlock()

	for _, fn := range fns {
		fn(leader)
	}
}

// editor имитирует поверхность редактирования
type editor struct {
	text string
	mu   sync.Mutex
}

func (e *editor) set(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.text = text
}

func (e *editor) content() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return []byte(e.text), nil
}

// statusLog собирает переходы статуса
type statusLog struct {
	items []save.Status
	mu    sync.Mutex
}

func (l *statusLog) add(s Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, s.Status)
}

func (l *statusLog) get() []save.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]save.Status(nil), l.items...)
}

type fixture struct {
	clock      *clockwork.FakeClock
	store      *storage.DocumentStoreMock
	backups    *backup.Store
	leadership *fakeLeadership
	editor     *editor
	session    *Session
	statuses   *statusLog
}

func newFixture(t *testing.T, leader bool) *fixture {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC))

	blobs, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "backups.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = blobs.Close() })

	f := &fixture{
		clock: clock,
		store: &storage.DocumentStoreMock{
			WriteDocumentFunc: func(ctx context.Context, id string, content []byte) error { return nil },
			ReadDocumentFunc: func(ctx context.Context, id string) (*models.Document, error) {
				return nil, storage.ErrDocumentNotFound
			},
		},
		backups:    backup.New(blobs, backup.Config{}, clock, nil),
		leadership: &fakeLeadership{leader: leader},
		editor:     &editor{text: "It was a dark and stormy night."},
		statuses:   &statusLog{},
	}

	coordinator := save.New(f.store, f.leadership, save.Config{Debounce: time.Second, RetryDelay: time.Millisecond, MaxRetries: 1}, clock, nil)

	f.session, err = New("chapter-1", f.editor.content, Deps{
		Coordinator: coordinator,
		Backups:     f.backups,
		Leadership:  f.leadership,
		Documents:   f.store,
		Clock:       clock,
	}, Config{BackupInterval: 250 * time.Millisecond})
	require.NoError(t, err)

	f.session.OnStatusChange(f.statuses.add)
	return f
}

func TestNew_InvalidArguments(t *testing.T) {
	coordinator := save.New(&storage.DocumentStoreMock{}, nil, save.Config{}, clockwork.NewFakeClock(), nil)
	source := func() ([]byte, error) { return nil, nil }

	_, err := New("", source, Deps{Coordinator: coordinator}, Config{})
	assert.ErrorIs(t, err, save.ErrInvalidRequest)

	_, err = New("doc", nil, Deps{Coordinator: coordinator}, Config{})
	assert.ErrorIs(t, err, save.ErrInvalidRequest)

	_, err = New("doc", source, Deps{}, Config{})
	assert.ErrorIs(t, err, save.ErrInvalidRequest)
}

func TestSession_StatusTransitions(t *testing.T) {
	f := newFixture(t, true)

	f.editor.set("It was a dark and stormy night; the rain fell in torrents.")
	f.session.MarkChanged()
	assert.Equal(t, save.StatusDirty, f.session.Status().Status)

	f.clock.Advance(time.Second)

	require.Eventually(t, func() bool { return f.session.Status().Status == save.StatusSaved }, waitFor, tick)
	assert.Equal(t, []save.Status{save.StatusSaved, save.StatusDirty, save.StatusSaving, save.StatusSaved}, f.statuses.get())
	assert.Equal(t, f.clock.Now(), f.session.Status().LastSavedAt)

	calls := f.store.WriteDocumentCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "chapter-1", calls[0].Id)
	assert.Equal(t, "It was a dark and stormy night; the rain fell in torrents.", string(calls[0].Content))
}

func TestSession_WriteFailureSurfacesError(t *testing.T) {
	f := newFixture(t, true)
	f.store.WriteDocumentFunc = func(ctx context.Context, id string, content []byte) error {
		return errors.New("disk full")
	}

	f.session.MarkChanged()
	err := f.session.Flush(context.Background())

	var werr *save.WriteError
	require.ErrorAs(t, err, &werr)

	snap := f.session.Status()
	assert.Equal(t, save.StatusError, snap.Status)
	assert.ErrorAs(t, snap.Err, &werr)
	assert.Equal(t, []save.Status{save.StatusSaved, save.StatusDirty, save.StatusSaving, save.StatusError}, f.statuses.get())
}

func TestSession_SaveImmediate(t *testing.T) {
	f := newFixture(t, true)

	// программное изменение без MarkChanged, например вставка от AI
	f.editor.set("generated paragraph")
	require.NoError(t, f.session.SaveImmediate(context.Background()))

	calls := f.store.WriteDocumentCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "generated paragraph", string(calls[0].Content))
	assert.Equal(t, save.StatusSaved, f.session.Status().Status)
}

func TestSession_BackupWhileDirty(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.editor.set("unsaved text")
	f.session.MarkChanged()
	f.clock.Advance(250 * time.Millisecond)

	require.Eventually(t, func() bool { return f.backups.HasBackup(ctx, "chapter-1") }, waitFor, tick)
	rec, ok := f.backups.GetBackup(ctx, "chapter-1")
	require.True(t, ok)
	assert.Equal(t, "unsaved text", string(rec.Content))

	// успешное сохранение удаляет снимки
	f.clock.Advance(time.Second)
	require.Eventually(t, func() bool { return f.session.Status().Status == save.StatusSaved }, waitFor, tick)
	assert.False(t, f.backups.HasBackup(ctx, "chapter-1"))
}

func TestSession_SuppressedWhileFollower(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	f.editor.set("typed in a second window")
	f.session.MarkChanged()

	assert.Equal(t, save.StatusSuppressed, f.session.Status().Status)
	assert.ErrorIs(t, f.session.Status().Err, save.ErrNotLeader)

	rec, ok := f.backups.GetBackup(ctx, "chapter-1")
	require.True(t, ok)
	assert.Equal(t, "typed in a second window", string(rec.Content))

	f.clock.Advance(5 * time.Second)
	assert.Empty(t, f.store.WriteDocumentCalls())
}

func TestSession_RecoveryOnLeadershipAcquisition(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	// снимок, оставшийся от упавшего лидера
	_, err := f.backups.SaveBackup(ctx, "chapter-1", []byte("lost in a crash"))
	require.NoError(t, err)

	found := make(chan *models.Backup, 1)
	f.session.OnRecoveryAvailable(func(rec *models.Backup) { found <- rec })

	f.leadership.set(true)

	select {
	case rec := <-found:
		assert.Equal(t, "lost in a crash", string(rec.Content))
	case <-time.After(waitFor):
		t.Fatal("recovery was not offered")
	}

	err = f.session.RestoreBackup(ctx, func(content []byte) error {
		f.editor.set(string(content))
		return nil
	})
	require.NoError(t, err)

	calls := f.store.WriteDocumentCalls()
	require.NotEmpty(t, calls)
	assert.Equal(t, "lost in a crash", string(calls[len(calls)-1].Content))
	assert.False(t, f.backups.HasBackup(ctx, "chapter-1"))
}

func TestSession_CheckRecovery(t *testing.T) {
	ctx := context.Background()

	t.Run("no backup", func(t *testing.T) {
		f := newFixture(t, true)
		_, ok := f.session.CheckRecovery(ctx)
		assert.False(t, ok)
	})

	t.Run("document saved after backup", func(t *testing.T) {
		f := newFixture(t, true)
		_, err := f.backups.SaveBackup(ctx, "chapter-1", []byte("old snapshot"))
		require.NoError(t, err)

		savedAt := f.clock.Now().Add(time.Minute)
		f.store.ReadDocumentFunc = func(ctx context.Context, id string) (*models.Document, error) {
			return &models.Document{ID: id, UpdatedAt: savedAt}, nil
		}

		_, ok := f.session.CheckRecovery(ctx)
		assert.False(t, ok)
	})

	t.Run("backup newer than document", func(t *testing.T) {
		f := newFixture(t, true)
		savedAt := f.clock.Now()
		f.store.ReadDocumentFunc = func(ctx context.Context, id string) (*models.Document, error) {
			return &models.Document{ID: id, UpdatedAt: savedAt}, nil
		}

		f.clock.Advance(time.Minute)
		_, err := f.backups.SaveBackup(ctx, "chapter-1", []byte("newer"))
		require.NoError(t, err)

		rec, ok := f.session.CheckRecovery(ctx)
		require.True(t, ok)
		assert.Equal(t, "newer", string(rec.Content))
	})
}

func TestSession_SaveKeepsUnansweredRecoveryOffer(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.backups.SaveBackup(ctx, "chapter-1", []byte("lost in a crash"))
	require.NoError(t, err)

	_, ok := f.session.CheckRecovery(ctx)
	require.True(t, ok)

	// пользователь печатает, не ответив на предложение восстановления
	f.editor.set("typed before answering")
	f.session.MarkChanged()
	f.clock.Advance(250 * time.Millisecond)
	require.NoError(t, f.session.Flush(ctx))
	assert.Equal(t, save.StatusSaved, f.session.Status().Status)

	rec, ok := f.backups.GetBackup(ctx, "chapter-1")
	require.True(t, ok, "routine save must not delete the offered backup")
	assert.Equal(t, "lost in a crash", string(rec.Content))

	err = f.session.RestoreBackup(ctx, func(content []byte) error {
		f.editor.set(string(content))
		return nil
	})
	require.NoError(t, err)

	calls := f.store.WriteDocumentCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "lost in a crash", string(calls[1].Content))
	assert.False(t, f.backups.HasBackup(ctx, "chapter-1"))
}

func TestSession_DismissResumesBackups(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.backups.SaveBackup(ctx, "chapter-1", []byte("lost in a crash"))
	require.NoError(t, err)
	_, ok := f.session.CheckRecovery(ctx)
	require.True(t, ok)

	require.NoError(t, f.session.DismissBackup(ctx))
	assert.False(t, f.backups.HasBackup(ctx, "chapter-1"))

	f.editor.set("fresh work")
	f.session.MarkChanged()
	f.clock.Advance(250 * time.Millisecond)

	require.Eventually(t, func() bool { return f.backups.HasBackup(ctx, "chapter-1") }, waitFor, tick)
	rec, ok := f.backups.GetBackup(ctx, "chapter-1")
	require.True(t, ok)
	assert.Equal(t, "fresh work", string(rec.Content))
}

// racingCoordinator завершает запись прошлой правки прямо внутри ScheduleSave
type racingCoordinator struct {
	fns     []func(save.Result)
	mu      sync.Mutex
	pending bool
	// flushNow записывает и новую правку до возврата из ScheduleSave
	flushNow bool
}

func (c *racingCoordinator) ScheduleSave(documentID string, _ save.Producer) {
	if !c.flushNow {
		c.emit(save.Result{DocumentID: documentID, Status: save.StatusSaved})
		c.setPending(true)
		return
	}
	c.setPending(true)
	c.setPending(false)
	c.emit(save.Result{DocumentID: documentID, Status: save.StatusSaved})
}

func (c *racingCoordinator) Flush(ctx context.Context, documentID string) (save.Result, error) {
	return save.Result{DocumentID: documentID, Status: save.StatusSaved}, nil
}

func (c *racingCoordinator) CancelPendingSaves(string) {
	c.setPending(false)
}

func (c *racingCoordinator) HasPending(string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func (c *racingCoordinator) OnResult(fn func(save.Result)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fns = append(c.fns, fn)
	return func() {}
}

func (c *racingCoordinator) setPending(pending bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = pending
}

func (c *racingCoordinator) emit(res save.Result) {
	c.mu.Lock()
	fns := append([]func(save.Result){}, c.fns...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(res)
	}
}

func TestSession_MarkChangedRacingSaveResult(t *testing.T) {
	tests := []struct {
		name       string
		flushNow   bool
		wantStatus save.Status
		wantBackup bool
	}{
		{name: "older write finishes first", flushNow: false, wantStatus: save.StatusDirty, wantBackup: true},
		{name: "new content already written", flushNow: true, wantStatus: save.StatusSaved, wantBackup: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			clock := clockwork.NewFakeClock()
			blobs, err := boltdb.New(ctx, filepath.Join(t.TempDir(), "backups.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = blobs.Close() })
			backups := backup.New(blobs, backup.Config{}, clock, nil)

			ed := &editor{text: "edited while saving"}
			s, err := New("chapter-1", ed.content, Deps{
				Coordinator: &racingCoordinator{flushNow: tt.flushNow},
				Backups:     backups,
				Clock:       clock,
			}, Config{BackupInterval: 250 * time.Millisecond})
			require.NoError(t, err)

			s.MarkChanged()
			assert.Equal(t, tt.wantStatus, s.Status().Status)

			clock.Advance(250 * time.Millisecond)
			if tt.wantBackup {
				require.Eventually(t, func() bool { return backups.HasBackup(ctx, "chapter-1") }, waitFor, tick)
				return
			}
			assert.Never(t, func() bool { return backups.HasBackup(ctx, "chapter-1") }, 50*time.Millisecond, tick)
		})
	}
}

func TestSession_RestoreWithoutBackup(t *testing.T) {
	f := newFixture(t, true)

	err := f.session.RestoreBackup(context.Background(), func([]byte) error { return nil })
	assert.ErrorIs(t, err, ErrNoBackup)
}

func TestSession_DismissBackup(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.backups.SaveBackup(ctx, "chapter-1", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, f.session.DismissBackup(ctx))
	assert.False(t, f.backups.HasBackup(ctx, "chapter-1"))
}

func TestSession_Destroy(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.editor.set("final words")
	f.session.MarkChanged()

	require.NoError(t, f.session.Destroy(ctx))
	calls := f.store.WriteDocumentCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "final words", string(calls[0].Content))

	// повторный вызов ничего не делает
	require.NoError(t, f.session.Destroy(ctx))

	assert.ErrorIs(t, f.session.Flush(ctx), ErrSessionDestroyed)
	assert.ErrorIs(t, f.session.SaveImmediate(ctx), ErrSessionDestroyed)
	assert.NotPanics(t, f.session.MarkChanged)
	assert.Len(t, f.store.WriteDocumentCalls(), 1)
}

func TestSession_DestroyAsFollowerKeepsBackup(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	f.editor.set("cannot be written here")
	f.session.MarkChanged()

	err := f.session.Destroy(ctx)
	require.ErrorIs(t, err, save.ErrNotLeader)

	rec, ok := f.backups.GetBackup(ctx, "chapter-1")
	require.True(t, ok)
	assert.Equal(t, "cannot be written here", string(rec.Content))
	assert.Empty(t, f.store.WriteDocumentCalls())
}

func TestSession_StrictMisusePanics(t *testing.T) {
	coordinator := save.New(&storage.DocumentStoreMock{}, nil, save.Config{}, clockwork.NewFakeClock(), nil)
	s, err := New("doc", func() ([]byte, error) { return nil, nil }, Deps{Coordinator: coordinator}, Config{Strict: true})
	require.NoError(t, err)

	require.NoError(t, s.Destroy(context.Background()))
	assert.Panics(t, s.MarkChanged)
	assert.Panics(t, func() { _ = s.Flush(context.Background()) })
}

func TestOnStatusChange_Unsubscribe(t *testing.T) {
	f := newFixture(t, true)

	var got []save.Status
	unsubscribe := f.session.OnStatusChange(func(s Snapshot) { got = append(got, s.Status) })
	assert.Equal(t, []save.Status{save.StatusSaved}, got)

	unsubscribe()
	f.session.MarkChanged()
	assert.Len(t, got, 1)
}
