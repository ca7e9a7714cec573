// Package save serializes and debounces document writes per document id.
package save

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/jonboulle/clockwork"

	"github.com/iudanet/draftkeeper/internal/client/storage"
)

// Status is the save state of one document as shown to the user
type Status string

const (
	StatusSaved      Status = "saved"
	StatusDirty      Status = "dirty"
	StatusSaving     Status = "saving"
	StatusError      Status = "error"
	StatusSuppressed Status = "suppressed" // пишет другое окно; правки не потеряны, а ждут
)

// Producer returns the freshest content of a document. It is called at flush time,
// not at schedule time.
type Producer func() ([]byte, error)

// Leadership reports whether this instance may write
type Leadership interface {
	IsLeader() bool
	OnLeadershipChange(fn func(isLeader bool)) (unsubscribe func())
}

// Result describes one save attempt
type Result struct {
	SavedAt    time.Time
	Err        error
	DocumentID string
	Status     Status
	Attempts   int
	// Pending is true when newer content is still waiting to be written
	Pending bool
}

// Config задает параметры координатора
type Config struct {
	// Debounce задержка между последним ScheduleSave и записью
	Debounce time.Duration
	// RetryDelay пауза перед автоматическим повтором неудачной записи
	RetryDelay time.Duration
	// MaxRetries число автоматических повторов (по умолчанию один)
	MaxRetries int
	// Strict делает ошибки использования паникой (режим разработки)
	Strict bool
}

// DefaultConfig returns debounce 1s, one retry after 200ms.
func DefaultConfig() Config {
	return Config{
		Debounce:   time.Second,
		RetryDelay: 200 * time.Millisecond,
		MaxRetries: 1,
	}
}

// Coordinator guarantees at most one in-flight write per document id and never drops
// a pending edit silently. Writes for different ids run concurrently.
type Coordinator struct {
	store      storage.DocumentStore
	leadership Leadership
	clock      clockwork.Clock
	logger     *slog.Logger
	docs       map[string]*document
	listeners  map[int]func(Result)
	unsubLead  func()
	cfg        Config
	nextSub    int
	mu         sync.Mutex
	closed     bool
}

// document is the per-id scheduling state
type document struct {
	savedAt    time.Time
	producer   Producer
	timer      clockwork.Timer
	sem        chan struct{} // право на запись, емкость 1
	generation uint64
}

// New creates a coordinator. A nil leadership means this instance always writes.
func New(store storage.DocumentStore, leadership Leadership, cfg Config, clock clockwork.Clock, logger *slog.Logger) *Coordinator {
	def := DefaultConfig()
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Coordinator{
		store:      store,
		leadership: leadership,
		cfg:        cfg,
		clock:      clock,
		logger:     logger,
		docs:       make(map[string]*document),
		listeners:  make(map[int]func(Result)),
	}

	if leadership != nil {
		c.unsubLead = leadership.OnLeadershipChange(c.onLeadershipChange)
	}

	return c
}

// ScheduleSave replaces any pending save of documentID with producer and (re)arms the
// debounce timer. It never blocks. While this instance is not the leader the save is
// kept pending and reported as StatusSuppressed instead of being written.
func (c *Coordinator) ScheduleSave(documentID string, producer Producer) {
	if documentID == "" || producer == nil {
		c.misuse("ScheduleSave", ErrInvalidRequest)
		return
	}

	leader := c.isLeader()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.misuse("ScheduleSave", ErrClosed)
		return
	}

	doc := c.docLocked(documentID)
	doc.producer = producer
	doc.generation++
	if doc.timer != nil {
		doc.timer.Stop()
		doc.timer = nil
	}

	if !leader {
		c.mu.Unlock()
		c.logger.Debug("save suppressed, not leader", "document_id", documentID)
		c.emit(Result{
			DocumentID: documentID,
			Status:     StatusSuppressed,
			Pending:    true,
			Err:        ErrNotLeader,
		})
		return
	}

	c.armLocked(documentID, doc)
	c.mu.Unlock()
}

// Flush cancels the debounce timer and writes the pending content now, waiting for a
// write of the same id that is already in flight. With nothing pending it returns the
// last save time once any in-flight write has finished.
func (c *Coordinator) Flush(ctx context.Context, documentID string) (Result, error) {
	if documentID == "" {
		c.misuse("Flush", ErrInvalidRequest)
		return Result{Status: StatusError, Err: ErrInvalidRequest}, ErrInvalidRequest
	}
	return c.flush(ctx, documentID)
}

// FlushAll flushes every document with a pending save concurrently
func (c *Coordinator) FlushAll(ctx context.Context) error {
	ids := c.Pending()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := c.flush(ctx, id); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// CancelPendingSaves drops a scheduled save that has not started yet.
// A write already in flight is not affected.
func (c *Coordinator) CancelPendingSaves(documentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.docs[documentID]
	if !ok {
		return
	}
	if doc.timer != nil {
		doc.timer.Stop()
		doc.timer = nil
	}
	doc.producer = nil
	doc.generation++
}

// HasPending reports whether documentID has content waiting to be written
func (c *Coordinator) HasPending(documentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.docs[documentID]
	return ok && doc.producer != nil
}

// Pending returns the ids with content waiting to be written, sorted
func (c *Coordinator) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ids []string
	for id, doc := range c.docs {
		if doc.producer != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// OnResult registers fn for every save outcome, including debounced saves
func (c *Coordinator) OnResult(fn func(Result)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.listeners[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Close stops accepting saves and flushes everything pending
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	unsub := c.unsubLead
	c.unsubLead = nil
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}

	return c.FlushAll(ctx)
}

func (c *Coordinator) flush(ctx context.Context, documentID string) (Result, error) {
	c.mu.Lock()
	doc := c.docLocked(documentID)
	c.mu.Unlock()

	// Ждем завершения записи этого же документа, если она идет
	select {
	case doc.sem <- struct{}{}:
	case <-ctx.Done():
		return Result{DocumentID: documentID, Status: StatusError, Err: ctx.Err(), Pending: c.HasPending(documentID)}, ctx.Err()
	}
	defer func() { <-doc.sem }()

	leader := c.isLeader()

	c.mu.Lock()
	if doc.timer != nil {
		doc.timer.Stop()
		doc.timer = nil
	}
	producer := doc.producer
	if producer == nil {
		savedAt := doc.savedAt
		c.mu.Unlock()
		return Result{DocumentID: documentID, Status: StatusSaved, SavedAt: savedAt}, nil
	}
	if !leader {
		c.mu.Unlock()
		res := Result{DocumentID: documentID, Status: StatusSuppressed, Pending: true, Err: ErrNotLeader}
		c.emit(res)
		return res, ErrNotLeader
	}
	doc.producer = nil
	c.mu.Unlock()

	c.emit(Result{DocumentID: documentID, Status: StatusSaving})

	attempts := 0
	content, err := producer()
	if err == nil {
		// Начатая запись не прерывается отменой контекста вызывающего
		attempts, err = c.write(context.WithoutCancel(ctx), documentID, content)
	}

	c.mu.Lock()
	if err != nil {
		// Правка остается грязной, если за время записи не пришла более новая
		if doc.producer == nil {
			doc.producer = producer
		}
		c.mu.Unlock()

		werr := &WriteError{DocumentID: documentID, Attempts: attempts, Err: err}
		c.logger.Error("document save failed",
			"document_id", documentID,
			"attempts", attempts,
			"error", err)

		res := Result{DocumentID: documentID, Status: StatusError, Attempts: attempts, Pending: true, Err: werr}
		c.emit(res)
		return res, werr
	}

	doc.savedAt = c.clock.Now()
	res := Result{
		DocumentID: documentID,
		Status:     StatusSaved,
		SavedAt:    doc.savedAt,
		Attempts:   attempts,
		Pending:    doc.producer != nil,
	}
	c.mu.Unlock()

	c.logger.Debug("document saved", "document_id", documentID, "attempts", attempts)
	c.emit(res)
	return res, nil
}

// write performs the store write with at most MaxRetries automatic retries
func (c *Coordinator) write(ctx context.Context, documentID string, content []byte) (int, error) {
	attempts := 0
	op := func() error {
		attempts++
		return c.store.WriteDocument(ctx, documentID, content)
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.RetryDelay), uint64(c.cfg.MaxRetries))
	err := backoff.RetryNotify(op, policy, func(err error, next time.Duration) {
		c.logger.Warn("document write failed, retrying",
			"document_id", documentID,
			"retry_in", next,
			"error", err)
	})

	return attempts, err
}

// fire runs when a debounce timer expires; stale timers are ignored
func (c *Coordinator) fire(documentID string, generation uint64) {
	c.mu.Lock()
	doc, ok := c.docs[documentID]
	if !ok || doc.generation != generation {
		c.mu.Unlock()
		return
	}
	doc.timer = nil
	c.mu.Unlock()

	_, _ = c.flush(context.Background(), documentID)
}

// onLeadershipChange re-arms saves that were suppressed while following
func (c *Coordinator) onLeadershipChange(isLeader bool) {
	if !isLeader {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for id, doc := range c.docs {
		if doc.producer != nil && doc.timer == nil {
			c.logger.Info("leadership acquired, resuming suppressed save", "document_id", id)
			c.armLocked(id, doc)
		}
	}
}

func (c *Coordinator) armLocked(documentID string, doc *document) {
	generation := doc.generation
	doc.timer = c.clock.AfterFunc(c.cfg.Debounce, func() {
		c.fire(documentID, generation)
	})
}

func (c *Coordinator) docLocked(documentID string) *document {
	doc, ok := c.docs[documentID]
	if !ok {
		doc = &document{sem: make(chan struct{}, 1)}
		c.docs[documentID] = doc
	}
	return doc
}

func (c *Coordinator) isLeader() bool {
	if c.leadership == nil {
		return true
	}
	return c.leadership.IsLeader()
}

func (c *Coordinator) emit(res Result) {
	c.mu.Lock()
	fns := make([]func(Result), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(res)
	}
}

// misuse reports programmer errors: panic in strict mode, log otherwise
func (c *Coordinator) misuse(op string, err error) {
	if c.cfg.Strict {
		panic(fmt.Sprintf("save: %s: %v", op, err))
	}
	c.logger.Error("save coordinator misuse", "op", op, "error", err)
}
