// Package ratelimit bounds the rate of outbound AI requests with two sliding windows.
package ratelimit

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	minuteWindow = time.Minute
	hourWindow   = time.Hour
)

// ErrRateLimited is matched by every LimitError
var ErrRateLimited = errors.New("rate limit exceeded")

// Window identifies which sliding window denied a request
type Window string

const (
	WindowMinute Window = "minute"
	WindowHour   Window = "hour"
)

// Config задает лимиты и порог предупреждения
type Config struct {
	MaxRequestsPerMinute int
	MaxRequestsPerHour   int
	// WarningThreshold доля любого из лимитов, после которой срабатывает предупреждение
	WarningThreshold float64
	// WarningCooldown минимальный интервал между двумя предупреждениями
	WarningCooldown time.Duration
}

// DefaultConfig returns 20/minute, 200/hour, warning at 80% at most every 30s.
func DefaultConfig() Config {
	return Config{
		MaxRequestsPerMinute: 20,
		MaxRequestsPerHour:   200,
		WarningThreshold:     0.8,
		WarningCooldown:      30 * time.Second,
	}
}

// Decision is the outcome of CanMakeRequest
type Decision struct {
	Window     Window
	RetryAfter time.Duration
	Allowed    bool
}

// Usage is a snapshot of both windows
type Usage struct {
	MinuteCount int
	MinuteLimit int
	HourCount   int
	HourLimit   int
}

// LimitError is returned by Transport when a request is denied
type LimitError struct {
	Window     Window
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded (%s window), retry after %s", e.Window, e.RetryAfter)
}

// Is makes errors.Is(err, ErrRateLimited) hold
func (e *LimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// Limiter представляет sliding-window rate limiter для исходящих AI запросов.
// Никогда не блокирует: решение о том, что делать при отказе, принимает вызывающий.
type Limiter struct {
	clock       clockwork.Clock
	logger      *slog.Logger
	lastWarning time.Time
	warnings    map[int]func(Usage)
	blocked     map[int]func(Decision)
	minute      []time.Time
	hour        []time.Time
	cfg         Config
	nextSub     int
	mu          sync.Mutex
}

// New создает limiter. Нулевые поля cfg заменяются значениями по умолчанию.
func New(cfg Config, clock clockwork.Clock, logger *slog.Logger) *Limiter {
	def := DefaultConfig()
	if cfg.MaxRequestsPerMinute <= 0 {
		cfg.MaxRequestsPerMinute = def.MaxRequestsPerMinute
	}
	if cfg.MaxRequestsPerHour <= 0 {
		cfg.MaxRequestsPerHour = def.MaxRequestsPerHour
	}
	if cfg.WarningThreshold <= 0 || cfg.WarningThreshold > 1 {
		cfg.WarningThreshold = def.WarningThreshold
	}
	if cfg.WarningCooldown <= 0 {
		cfg.WarningCooldown = def.WarningCooldown
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Limiter{
		cfg:      cfg,
		clock:    clock,
		logger:   logger,
		warnings: make(map[int]func(Usage)),
		blocked:  make(map[int]func(Decision)),
	}
}

// CanMakeRequest prunes expired timestamps and checks both windows.
// On denial RetryAfter is the time until the oldest timestamp of the full window ages out;
// when both windows are full the longer wait wins.
func (l *Limiter) CanMakeRequest() Decision {
	l.mu.Lock()
	now := l.clock.Now()
	l.pruneLocked(now)

	decision := Decision{Allowed: true}
	if len(l.minute) >= l.cfg.MaxRequestsPerMinute {
		decision = Decision{
			Window:     WindowMinute,
			RetryAfter: l.minute[0].Add(minuteWindow).Sub(now),
		}
	}
	if len(l.hour) >= l.cfg.MaxRequestsPerHour {
		wait := l.hour[0].Add(hourWindow).Sub(now)
		if decision.Allowed || wait > decision.RetryAfter {
			decision = Decision{Window: WindowHour, RetryAfter: wait}
		}
	}

	usage, warn := l.warningLocked(now)
	warnFns := l.warningSubscribersLocked(warn)

	var blockFns []func(Decision)
	if !decision.Allowed {
		for _, fn := range l.blocked {
			blockFns = append(blockFns, fn)
		}
	}
	l.mu.Unlock()

	if !decision.Allowed {
		l.logger.Warn("AI request rate limited",
			"window", decision.Window,
			"retry_after_ms", decision.RetryAfter.Milliseconds())
	}

	for _, fn := range warnFns {
		fn(usage)
	}
	for _, fn := range blockFns {
		fn(decision)
	}

	return decision
}

// RecordRequest records one dispatched request in both windows.
// Call it exactly once per request actually sent, not per attempt.
func (l *Limiter) RecordRequest() {
	l.mu.Lock()
	now := l.clock.Now()
	l.pruneLocked(now)
	l.minute = append(l.minute, now)
	l.hour = append(l.hour, now)

	usage, warn := l.warningLocked(now)
	warnFns := l.warningSubscribersLocked(warn)
	l.mu.Unlock()

	for _, fn := range warnFns {
		fn(usage)
	}
}

// Usage returns the current window counts after pruning
func (l *Limiter) Usage() Usage {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(l.clock.Now())
	return l.usageLocked()
}

// Reset clears all recorded requests and the warning cooldown
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.minute = nil
	l.hour = nil
	l.lastWarning = time.Time{}
}

// OnWarning registers fn to be called when usage crosses the warning threshold
// of either window. Fires at most once per WarningCooldown.
func (l *Limiter) OnWarning(fn func(Usage)) (unsubscribe func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextSub
	l.nextSub++
	l.warnings[id] = fn

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.warnings, id)
	}
}

// OnBlocked registers fn to be called on every denied CanMakeRequest
func (l *Limiter) OnBlocked(fn func(Decision)) (unsubscribe func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextSub
	l.nextSub++
	l.blocked[id] = fn

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.blocked, id)
	}
}

// pruneLocked оставляет только timestamps строго новее now - window
func (l *Limiter) pruneLocked(now time.Time) {
	l.minute = prune(l.minute, now.Add(-minuteWindow))
	l.hour = prune(l.hour, now.Add(-hourWindow))
}

func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return stamps
	}
	// Копируем хвост, чтобы не удерживать старый массив бесконечно
	return append([]time.Time(nil), stamps[i:]...)
}

func (l *Limiter) usageLocked() Usage {
	return Usage{
		MinuteCount: len(l.minute),
		MinuteLimit: l.cfg.MaxRequestsPerMinute,
		HourCount:   len(l.hour),
		HourLimit:   l.cfg.MaxRequestsPerHour,
	}
}

// warningLocked reports whether a warning is due and arms the cooldown if so
func (l *Limiter) warningLocked(now time.Time) (Usage, bool) {
	usage := l.usageLocked()

	minuteRatio := float64(usage.MinuteCount) / float64(usage.MinuteLimit)
	hourRatio := float64(usage.HourCount) / float64(usage.HourLimit)
	if minuteRatio < l.cfg.WarningThreshold && hourRatio < l.cfg.WarningThreshold {
		return usage, false
	}

	if !l.lastWarning.IsZero() && now.Sub(l.lastWarning) < l.cfg.WarningCooldown {
		return usage, false
	}

	l.lastWarning = now
	return usage, true
}

func (l *Limiter) warningSubscribersLocked(warn bool) []func(Usage) {
	if !warn {
		return nil
	}

	fns := make([]func(Usage), 0, len(l.warnings))
	for _, fn := range l.warnings {
		fns = append(fns, fn)
	}
	return fns
}
