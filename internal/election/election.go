// Package election decides which of the windows attached to one bus may write documents.
//
// Every instance keeps its own belief about the current leader and reconciles it from
// bus messages. When two instances believe they lead, the one with the smaller
// InstanceID wins and the other steps down. Nothing is persisted: a restart always
// re-elects.
package election

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/iudanet/draftkeeper/internal/bus"
)

var (
	// ErrAlreadyStarted is returned by a second Start call
	ErrAlreadyStarted = errors.New("election already started")

	// ErrShutdown is returned by Start after Shutdown
	ErrShutdown = errors.New("election service is shut down")
)

const publishTimeout = 2 * time.Second

// Config задает тайминги протокола
type Config struct {
	// InstanceID overrides the generated id (tests, diagnostics)
	InstanceID string
	// HeartbeatInterval период heartbeat сообщений лидера
	HeartbeatInterval time.Duration
	// LeaderTimeout после стольких мс без heartbeat follower заявляет лидерство
	LeaderTimeout time.Duration
	// DiscoveryDelay ожидание ответа на RequestLeader при старте
	DiscoveryDelay time.Duration
}

// DefaultConfig returns heartbeat 2s, timeout 5s, discovery 500ms.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 2 * time.Second,
		LeaderTimeout:     5 * time.Second,
		DiscoveryDelay:    500 * time.Millisecond,
	}
}

// Service is the leader election participant of one instance
type Service struct {
	lastHeartbeat time.Time
	bus           bus.Bus
	clock         clockwork.Clock
	sub           bus.Subscription
	watchdog      clockwork.Timer
	logger        *slog.Logger
	subscribers   map[int]func(bool)
	stop          chan struct{}
	loopDone      chan struct{}
	id            string
	leaderID      string
	cfg           Config
	nextSub       int
	mu            sync.Mutex
	isLeader      bool
	started       bool
	stopped       bool
}

// New creates a participant. Start must be called to join the election.
func New(b bus.Bus, cfg Config, clock clockwork.Clock, logger *slog.Logger) *Service {
	def := DefaultConfig()
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.LeaderTimeout <= 0 {
		cfg.LeaderTimeout = def.LeaderTimeout
	}
	if cfg.DiscoveryDelay <= 0 {
		cfg.DiscoveryDelay = def.DiscoveryDelay
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = NewInstanceID()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		bus:         b,
		cfg:         cfg,
		clock:       clock,
		id:          cfg.InstanceID,
		logger:      logger.With("instance_id", cfg.InstanceID),
		subscribers: make(map[int]func(bool)),
		stop:        make(chan struct{}),
		loopDone:    make(chan struct{}),
	}
}

// NewInstanceID returns a globally unique id that sorts by creation time (UUIDv7),
// so on a tie the longest-running window keeps leadership.
func NewInstanceID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Start subscribes to the bus, asks for an existing leader and arms the discovery timer.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrShutdown
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	sub, err := s.bus.Subscribe(ctx, s.handleMessage)
	if err != nil {
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
		return fmt.Errorf("subscribe to leader bus: %w", err)
	}

	ticker := s.clock.NewTicker(s.cfg.HeartbeatInterval)

	s.mu.Lock()
	s.sub = sub
	s.watchdog = s.clock.AfterFunc(s.cfg.DiscoveryDelay, s.checkLeader)
	s.mu.Unlock()

	go s.loop(ticker)

	s.logger.Debug("joining leader election")
	s.publish(bus.RequestLeader)

	return nil
}

// IsLeader reports whether this instance currently believes it is the leader
func (s *Service) IsLeader() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isLeader
}

// InstanceID returns this instance's id
func (s *Service) InstanceID() string {
	return s.id
}

// LeaderID returns the id of the believed leader, empty if none is known
func (s *Service) LeaderID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leaderID
}

// LastHeartbeat returns when a message from another leader was last observed
func (s *Service) LastHeartbeat() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeartbeat
}

// OnLeadershipChange registers fn. It is invoked immediately with the current state
// and again on every transition.
func (s *Service) OnLeadershipChange(fn func(isLeader bool)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	current := s.isLeader
	s.mu.Unlock()

	fn(current)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// Shutdown stops heartbeats and closes the bus subscription. A leader that shuts
// down stops heartbeating; followers take over after LeaderTimeout.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	wasLeader := s.isLeader
	s.isLeader = false
	if s.watchdog != nil {
		s.watchdog.Stop()
		s.watchdog = nil
	}
	started := s.started
	sub := s.sub
	s.mu.Unlock()

	close(s.stop)

	if started {
		select {
		case <-s.loopDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var err error
	if sub != nil {
		err = sub.Close()
	}

	if wasLeader {
		s.logger.Info("leadership released on shutdown")
		s.notify(false)
	}

	return err
}

// loop emits heartbeats while leading
func (s *Service) loop(ticker clockwork.Ticker) {
	defer close(s.loopDone)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			if s.IsLeader() {
				s.publish(bus.LeaderHeartbeat)
			}
		case <-s.stop:
			return
		}
	}
}

// checkLeader runs when the discovery delay or the follower watchdog expires
func (s *Service) checkLeader() {
	s.mu.Lock()
	if s.stopped || s.isLeader {
		s.mu.Unlock()
		return
	}

	now := s.clock.Now()
	if !s.lastHeartbeat.IsZero() {
		if wait := s.lastHeartbeat.Add(s.cfg.LeaderTimeout).Sub(now); wait > 0 {
			// Лидер жив: перепроверим, когда истечет таймаут от последнего heartbeat
			s.watchdog = s.clock.AfterFunc(wait, s.checkLeader)
			s.mu.Unlock()
			return
		}
	}

	previous := s.leaderID
	s.isLeader = true
	s.leaderID = s.id
	s.watchdog = nil
	s.mu.Unlock()

	s.logger.Info("claiming leadership", "previous_leader", previous)
	s.publish(bus.LeaderClaim)
	s.publish(bus.LeaderHeartbeat)
	s.notify(true)
}

// handleMessage applies one bus message to the local belief
func (s *Service) handleMessage(msg bus.Message) {
	if msg.InstanceID == "" || msg.InstanceID == s.id {
		return
	}

	switch msg.Type {
	case bus.RequestLeader:
		if s.IsLeader() {
			s.publish(bus.LeaderHeartbeat)
		}

	case bus.LeaderHeartbeat, bus.LeaderClaim:
		s.observeLeader(msg)

	default:
		s.logger.Debug("unknown bus message ignored", "type", msg.Type)
	}
}

// observeLeader handles a heartbeat or claim from another instance.
// Smaller InstanceID wins: a leader that sees a smaller id steps down,
// a leader that sees a larger id re-asserts its claim.
func (s *Service) observeLeader(msg bus.Message) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}

	now := s.clock.Now()

	if s.isLeader {
		if msg.InstanceID > s.id {
			s.mu.Unlock()
			s.logger.Debug("competing leader has larger id, re-asserting", "other", msg.InstanceID)
			s.publish(bus.LeaderClaim)
			return
		}

		s.isLeader = false
		s.leaderID = msg.InstanceID
		s.lastHeartbeat = now
		s.watchdog = s.clock.AfterFunc(s.cfg.LeaderTimeout, s.checkLeader)
		s.mu.Unlock()

		s.logger.Info("stepping down", "leader", msg.InstanceID)
		s.notify(false)
		return
	}

	s.leaderID = msg.InstanceID
	s.lastHeartbeat = now
	s.mu.Unlock()
}

func (s *Service) publish(t bus.MessageType) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	msg := bus.Message{
		Type:       t,
		InstanceID: s.id,
		Timestamp:  s.clock.Now().UnixMilli(),
	}
	if err := s.bus.Publish(ctx, msg); err != nil {
		// Потеря сообщения лечится таймаутом, пользователю не показываем
		s.logger.Debug("bus publish failed", "type", t, "error", err)
	}
}

func (s *Service) notify(isLeader bool) {
	s.mu.Lock()
	fns := make([]func(bool), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(isLeader)
	}
}
