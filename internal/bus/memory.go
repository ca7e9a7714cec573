package bus

import (
	"context"
	"log/slog"
	"sync"
)

const memoryBufferSize = 64

// Memory is an in-process Bus for windows running as goroutines of one process.
// Each subscriber has its own buffered queue; when the queue is full the message is
// dropped, which the election protocol tolerates.
type Memory struct {
	logger *slog.Logger
	subs   map[*memorySubscription]struct{}
	mu     sync.RWMutex
	closed bool
}

type memorySubscription struct {
	bus     *Memory
	ch      chan Message
	done    chan struct{}
	handler Handler
	once    sync.Once
}

// NewMemory creates an empty in-process bus
func NewMemory(logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		logger: logger,
		subs:   make(map[*memorySubscription]struct{}),
	}
}

// Publish enqueues msg for every subscriber without blocking
func (m *Memory) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}

	for sub := range m.subs {
		select {
		case sub.ch <- msg:
		default:
			m.logger.Debug("bus subscriber queue full, message dropped",
				"type", msg.Type,
				"instance_id", msg.InstanceID)
		}
	}

	return nil
}

// Subscribe starts delivering messages to handler on a dedicated goroutine
func (m *Memory) Subscribe(ctx context.Context, handler Handler) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	sub := &memorySubscription{
		bus:     m,
		ch:      make(chan Message, memoryBufferSize),
		done:    make(chan struct{}),
		handler: handler,
	}
	m.subs[sub] = struct{}{}

	go sub.loop()

	return sub, nil
}

// Close closes every subscription; further Publish calls fail with ErrClosed
func (m *Memory) Close() error {
	m.mu.Lock()
	subs := make([]*memorySubscription, 0, len(m.subs))
	for sub := range m.subs {
		subs = append(subs, sub)
	}
	m.closed = true
	m.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
	return nil
}

func (s *memorySubscription) loop() {
	for {
		select {
		case msg := <-s.ch:
			s.handler(msg)
		case <-s.done:
			return
		}
	}
}

// Close stops delivery; it is safe to call more than once
func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		close(s.done)
	})
	return nil
}
