package save

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/draftkeeper/internal/client/storage"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// fakeLeadership переключается вручную из теста
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

// resultLog собирает результаты сохранений
type resultLog struct {
	results []Result
	mu      sync.Mutex
}

func (r *resultLog) add(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *resultLog) statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, 0, len(r.results))
	for _, res := range r.results {
		out = append(out, res.Status)
	}
	return out
}

func okStore() *storage.DocumentStoreMock {
	return &storage.DocumentStoreMock{
		WriteDocumentFunc: func(ctx context.Context, id string, content []byte) error {
			return nil
		},
	}
}

func newTestCoordinator(t *testing.T, store storage.DocumentStore, leadership Leadership) (*Coordinator, *clockwork.FakeClock, *resultLog) {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	cfg := Config{Debounce: time.Second, RetryDelay: time.Millisecond, MaxRetries: 1}
	c := New(store, leadership, cfg, clock, nil)

	log := &resultLog{}
	c.OnResult(log.add)

	return c, clock, log
}

func content(s string) Producer {
	return func() ([]byte, error) { return []byte(s), nil }
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, time.Second, cfg.Debounce)
	assert.Equal(t, 200*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, 1, cfg.MaxRetries)
	assert.False(t, cfg.Strict)
}

func TestScheduleSave_CoalescesIntoOneWrite(t *testing.T) {
	store := okStore()
	c, clock, _ := newTestCoordinator(t, store, nil)

	for i := 1; i <= 5; i++ {
		c.ScheduleSave("doc-1", content(fmt.Sprintf("v%d", i)))
		clock.Advance(500 * time.Millisecond)
	}
	assert.Empty(t, store.WriteDocumentCalls(), "debounce must not fire between edits")

	clock.Advance(time.Second)

	require.Eventually(t, func() bool { return len(store.WriteDocumentCalls()) == 1 }, waitFor, tick)
	assert.Never(t, func() bool { return len(store.WriteDocumentCalls()) > 1 }, 50*time.Millisecond, tick)

	call := store.WriteDocumentCalls()[0]
	assert.Equal(t, "doc-1", call.Id)
	assert.Equal(t, "v5", string(call.Content))
	assert.False(t, c.HasPending("doc-1"))
}

func TestScheduleSave_ContentPulledAtWriteTime(t *testing.T) {
	store := okStore()
	c, clock, _ := newTestCoordinator(t, store, nil)

	var (
		mu   sync.Mutex
		text = "draft"
	)
	c.ScheduleSave("doc-1", func() ([]byte, error) {
		mu.Lock()
		defer mu.Unlock()
		return []byte(text), nil
	})

	mu.Lock()
	text = "draft, edited later"
	mu.Unlock()

	clock.Advance(time.Second)

	require.Eventually(t, func() bool { return len(store.WriteDocumentCalls()) == 1 }, waitFor, tick)
	assert.Equal(t, "draft, edited later", string(store.WriteDocumentCalls()[0].Content))
}

func TestFlush_WritesImmediately(t *testing.T) {
	store := okStore()
	c, clock, log := newTestCoordinator(t, store, nil)

	c.ScheduleSave("doc-1", content("hello"))

	res, err := c.Flush(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSaved, res.Status)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, clock.Now(), res.SavedAt)
	assert.False(t, res.Pending)

	clock.Advance(2 * time.Second)
	assert.Never(t, func() bool { return len(store.WriteDocumentCalls()) > 1 }, 50*time.Millisecond, tick)
	assert.Equal(t, []Status{StatusSaving, StatusSaved}, log.statuses())
}

func TestFlush_NothingPending(t *testing.T) {
	store := okStore()
	c, _, log := newTestCoordinator(t, store, nil)

	res, err := c.Flush(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSaved, res.Status)
	assert.True(t, res.SavedAt.IsZero())
	assert.Empty(t, store.WriteDocumentCalls())
	assert.Empty(t, log.statuses())
}

func TestFlush_SerializesWritesPerDocument(t *testing.T) {
	var (
		inFlight    atomic.Int32
		maxInFlight atomic.Int32
		mu          sync.Mutex
		written     []string
	)
	release := make(chan struct{})
	started := make(chan struct{}, 2)

	store := &storage.DocumentStoreMock{
		WriteDocumentFunc: func(ctx context.Context, id string, data []byte) error {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			if n > maxInFlight.Load() {
				maxInFlight.Store(n)
			}
			started <- struct{}{}
			<-release

			mu.Lock()
			written = append(written, string(data))
			mu.Unlock()
			return nil
		},
	}
	c, _, _ := newTestCoordinator(t, store, nil)

	var wg sync.WaitGroup
	c.ScheduleSave("doc-1", content("first"))
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := c.Flush(context.Background(), "doc-1")
		assert.NoError(t, err)
	}()
	<-started

	// вторая правка приходит, пока первая запись еще идет
	c.ScheduleSave("doc-1", content("second"))
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := c.Flush(context.Background(), "doc-1")
		assert.NoError(t, err)
	}()

	assert.Never(t, func() bool { return len(store.WriteDocumentCalls()) > 1 }, 50*time.Millisecond, tick)

	close(release)
	wg.Wait()

	assert.Equal(t, []string{"first", "second"}, written)
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestFlush_DifferentDocumentsRunConcurrently(t *testing.T) {
	var inFlight atomic.Int32
	release := make(chan struct{})

	store := &storage.DocumentStoreMock{
		WriteDocumentFunc: func(ctx context.Context, id string, data []byte) error {
			inFlight.Add(1)
			<-release
			return nil
		},
	}
	c, _, _ := newTestCoordinator(t, store, nil)

	c.ScheduleSave("doc-1", content("a"))
	c.ScheduleSave("doc-2", content("b"))

	done := make(chan error, 1)
	go func() { done <- c.FlushAll(context.Background()) }()

	require.Eventually(t, func() bool { return inFlight.Load() == 2 }, waitFor, tick)
	close(release)
	require.NoError(t, <-done)
	assert.Empty(t, c.Pending())
}

func TestFlush_RetriesOnce(t *testing.T) {
	var calls atomic.Int32
	store := &storage.DocumentStoreMock{
		WriteDocumentFunc: func(ctx context.Context, id string, data []byte) error {
			if calls.Add(1) == 1 {
				return errors.New("disk busy")
			}
			return nil
		},
	}
	c, _, _ := newTestCoordinator(t, store, nil)

	c.ScheduleSave("doc-1", content("text"))
	res, err := c.Flush(context.Background(), "doc-1")

	require.NoError(t, err)
	assert.Equal(t, StatusSaved, res.Status)
	assert.Equal(t, 2, res.Attempts)
}

func TestFlush_FailureKeepsEditPending(t *testing.T) {
	diskFull := errors.New("disk full")
	var fail atomic.Bool
	fail.Store(true)

	store := &storage.DocumentStoreMock{
		WriteDocumentFunc: func(ctx context.Context, id string, data []byte) error {
			if fail.Load() {
				return diskFull
			}
			return nil
		},
	}
	c, _, log := newTestCoordinator(t, store, nil)

	c.ScheduleSave("doc-1", content("precious"))
	res, err := c.Flush(context.Background(), "doc-1")

	var werr *WriteError
	require.ErrorAs(t, err, &werr)
	assert.ErrorIs(t, err, diskFull)
	assert.Equal(t, 2, werr.Attempts)
	assert.Equal(t, "doc-1", werr.DocumentID)
	assert.Equal(t, StatusError, res.Status)
	assert.True(t, res.Pending)
	assert.True(t, c.HasPending("doc-1"))
	assert.Equal(t, []Status{StatusSaving, StatusError}, log.statuses())

	// следующая попытка пишет то же содержимое
	fail.Store(false)
	res, err = c.Flush(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSaved, res.Status)

	calls := store.WriteDocumentCalls()
	assert.Equal(t, "precious", string(calls[len(calls)-1].Content))
	assert.False(t, c.HasPending("doc-1"))
}

func TestFlush_ProducerErrorKeepsEditPending(t *testing.T) {
	store := okStore()
	c, _, _ := newTestCoordinator(t, store, nil)

	c.ScheduleSave("doc-1", func() ([]byte, error) { return nil, errors.New("editor gone") })
	_, err := c.Flush(context.Background(), "doc-1")

	var werr *WriteError
	require.ErrorAs(t, err, &werr)
	assert.Zero(t, werr.Attempts)
	assert.Empty(t, store.WriteDocumentCalls())
	assert.True(t, c.HasPending("doc-1"))
}

func TestFlush_ContextCanceledWhileWaiting(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	store := &storage.DocumentStoreMock{
		WriteDocumentFunc: func(ctx context.Context, id string, data []byte) error {
			started <- struct{}{}
			<-release
			return nil
		},
	}
	c, _, _ := newTestCoordinator(t, store, nil)

	c.ScheduleSave("doc-1", content("a"))
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Flush(context.Background(), "doc-1")
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Flush(ctx, "doc-1")
	require.ErrorIs(t, err, context.Canceled)

	close(release)
	<-done
}

func TestScheduleSave_SuppressedWhileFollower(t *testing.T) {
	store := okStore()
	leadership := &fakeLeadership{}
	c, clock, log := newTestCoordinator(t, store, leadership)

	c.ScheduleSave("doc-1", content("from follower"))
	clock.Advance(5 * time.Second)

	assert.Never(t, func() bool { return len(store.WriteDocumentCalls()) > 0 }, 50*time.Millisecond, tick)
	assert.True(t, c.HasPending("doc-1"))
	assert.Equal(t, []Status{StatusSuppressed}, log.statuses())

	res, err := c.Flush(context.Background(), "doc-1")
	require.ErrorIs(t, err, ErrNotLeader)
	assert.Equal(t, StatusSuppressed, res.Status)
	assert.True(t, res.Pending)

	// после получения лидерства отложенное сохранение выполняется
	leadership.set(true)
	clock.Advance(time.Second)

	require.Eventually(t, func() bool { return len(store.WriteDocumentCalls()) == 1 }, waitFor, tick)
	assert.Equal(t, "from follower", string(store.WriteDocumentCalls()[0].Content))
}

func TestScheduleSave_StepDownStopsNewWrites(t *testing.T) {
	store := okStore()
	leadership := &fakeLeadership{leader: true}
	c, clock, log := newTestCoordinator(t, store, leadership)

	c.ScheduleSave("doc-1", content("a"))
	leadership.set(false)
	clock.Advance(time.Second)

	require.Eventually(t, func() bool {
		statuses := log.statuses()
		return len(statuses) == 1 && statuses[0] == StatusSuppressed
	}, waitFor, tick)
	assert.Empty(t, store.WriteDocumentCalls())
	assert.True(t, c.HasPending("doc-1"))
}

func TestCancelPendingSaves(t *testing.T) {
	store := okStore()
	c, clock, _ := newTestCoordinator(t, store, nil)

	c.ScheduleSave("doc-1", content("discard me"))
	c.CancelPendingSaves("doc-1")
	clock.Advance(2 * time.Second)

	assert.Never(t, func() bool { return len(store.WriteDocumentCalls()) > 0 }, 50*time.Millisecond, tick)
	assert.False(t, c.HasPending("doc-1"))

	// отмена неизвестного документа ничего не делает
	c.CancelPendingSaves("missing")
}

func TestScheduleSave_InvalidRequest(t *testing.T) {
	t.Run("lenient mode logs and ignores", func(t *testing.T) {
		c, _, _ := newTestCoordinator(t, okStore(), nil)

		assert.NotPanics(t, func() { c.ScheduleSave("", content("x")) })
		assert.NotPanics(t, func() { c.ScheduleSave("doc-1", nil) })
		assert.Empty(t, c.Pending())
	})

	t.Run("strict mode panics", func(t *testing.T) {
		c := New(okStore(), nil, Config{Strict: true}, clockwork.NewFakeClock(), nil)

		assert.Panics(t, func() { c.ScheduleSave("", content("x")) })
		assert.Panics(t, func() { _, _ = c.Flush(context.Background(), "") })
	})
}

func TestClose_FlushesPending(t *testing.T) {
	store := okStore()
	c, _, _ := newTestCoordinator(t, store, nil)

	c.ScheduleSave("doc-1", content("a"))
	c.ScheduleSave("doc-2", content("b"))

	require.NoError(t, c.Close(context.Background()))
	assert.Len(t, store.WriteDocumentCalls(), 2)

	// после закрытия новые сохранения не принимаются
	c.ScheduleSave("doc-3", content("c"))
	assert.False(t, c.HasPending("doc-3"))
	require.NoError(t, c.Close(context.Background()))
}

func TestOnResult_Unsubscribe(t *testing.T) {
	c, _, _ := newTestCoordinator(t, okStore(), nil)

	var count atomic.Int32
	unsubscribe := c.OnResult(func(Result) { count.Add(1) })

	c.ScheduleSave("doc-1", content("a"))
	_, err := c.Flush(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), count.Load())

	unsubscribe()
	c.ScheduleSave("doc-1", content("b"))
	_, err = c.Flush(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), count.Load())
}
