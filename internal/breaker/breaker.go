// Package breaker implements the circuit breaker that guards a crawl run
// against hammering a target that keeps failing.
//
// The breaker has three states. Closed lets every request through. Open
// rejects requests until RecoveryTimeout has elapsed since the last recorded
// failure, at which point the next state read moves it to HalfOpen. HalfOpen
// lets requests probe the target: SuccessThreshold consecutive successes close
// the circuit, and a single failure re-opens it.
package breaker

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the breaker position.
type State string

// Breaker states.
const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

// Settings holds the trip and recovery thresholds.
type Settings struct {
	FailureThreshold     int
	SuccessThreshold     int
	RecoveryTimeout      time.Duration
	FailureRateThreshold float64
	MinRequests          int
}

// DefaultSettings returns the thresholds used when a crawl config omits them.
func DefaultSettings() Settings {
	return Settings{
		FailureThreshold:     10,
		SuccessThreshold:     3,
		RecoveryTimeout:      60 * time.Second,
		FailureRateThreshold: 0.5,
		MinRequests:          10,
	}
}

// Stats is a point-in-time snapshot of the breaker counters. The totals
// cover the window since the breaker was created, reset, or last closed
// after a recovery.
type Stats struct {
	State               State   `json:"state"`
	TotalRequests       int     `json:"total_requests"`
	TotalFailures       int     `json:"total_failures"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	FailureRate         float64 `json:"failure_rate"`
}

// Option customizes a Breaker.
type Option func(*Breaker)

// WithClock overrides the time source used for recovery checks.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// WithLogger attaches a logger that records state transitions.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Breaker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithStateHook registers a callback invoked after every transition.
// The hook runs with the breaker lock held and must not call back into it.
func WithStateHook(fn func(from, to State)) Option {
	return func(b *Breaker) {
		b.onChange = fn
	}
}

// Breaker is safe for concurrent use. A nil *Breaker is a disabled breaker:
// it never opens and ignores recorded outcomes.
type Breaker struct {
	mu       sync.Mutex
	settings Settings
	now      func() time.Time
	logger   *zap.Logger
	onChange func(from, to State)

	state               State
	consecutiveFailures int
	halfOpenSuccesses   int
	totalRequests       int
	totalFailures       int
	lastFailure         time.Time
}

// New builds a closed breaker. Non-positive thresholds fall back to the defaults.
func New(settings Settings, opts ...Option) *Breaker {
	def := DefaultSettings()
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = def.FailureThreshold
	}
	if settings.SuccessThreshold <= 0 {
		settings.SuccessThreshold = def.SuccessThreshold
	}
	if settings.RecoveryTimeout < 0 {
		settings.RecoveryTimeout = def.RecoveryTimeout
	}
	if settings.MinRequests <= 0 {
		settings.MinRequests = def.MinRequests
	}
	b := &Breaker{
		settings: settings,
		now:      time.Now,
		logger:   zap.NewNop(),
		state:    Closed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns the current state, promoting Open to HalfOpen once the
// recovery timeout has elapsed since the last failure.
func (b *Breaker) State() State {
	if b == nil {
		return Closed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentLocked()
}

// IsOpen reports whether callers should fail fast.
func (b *Breaker) IsOpen() bool {
	return b.State() == Open
}

// RecordSuccess registers a successful request.
func (b *Breaker) RecordSuccess() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.currentLocked()
	b.totalRequests++
	b.consecutiveFailures = 0
	if state != HalfOpen {
		return
	}
	b.halfOpenSuccesses++
	if b.halfOpenSuccesses >= b.settings.SuccessThreshold {
		// Start a fresh window so the failure rate of the outage does not
		// immediately trip the recovered circuit again.
		b.totalRequests = 0
		b.totalFailures = 0
		b.halfOpenSuccesses = 0
		b.transitionLocked(Closed)
	}
}

// RecordFailure registers a failed request and opens the circuit when a
// threshold is crossed.
func (b *Breaker) RecordFailure() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.currentLocked()
	b.totalRequests++
	b.totalFailures++
	b.consecutiveFailures++
	b.lastFailure = b.now()

	switch state {
	case HalfOpen:
		b.halfOpenSuccesses = 0
		b.transitionLocked(Open)
	case Closed:
		if b.consecutiveFailures >= b.settings.FailureThreshold || b.rateTrippedLocked() {
			b.transitionLocked(Open)
		}
	case Open:
	}
}

// Reset returns the breaker to a closed state with zeroed counters.
func (b *Breaker) Reset() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures = 0
	b.halfOpenSuccesses = 0
	b.totalRequests = 0
	b.totalFailures = 0
	b.lastFailure = time.Time{}
	b.transitionLocked(Closed)
}

// Stats returns a snapshot of the counters.
func (b *Breaker) Stats() Stats {
	if b == nil {
		return Stats{State: Closed}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		State:               b.currentLocked(),
		TotalRequests:       b.totalRequests,
		TotalFailures:       b.totalFailures,
		ConsecutiveFailures: b.consecutiveFailures,
		FailureRate:         b.failureRateLocked(),
	}
}

func (b *Breaker) currentLocked() State {
	if b.state == Open && b.now().Sub(b.lastFailure) >= b.settings.RecoveryTimeout {
		b.halfOpenSuccesses = 0
		b.transitionLocked(HalfOpen)
	}
	return b.state
}

func (b *Breaker) rateTrippedLocked() bool {
	if b.totalRequests < b.settings.MinRequests {
		return false
	}
	return b.failureRateLocked() >= b.settings.FailureRateThreshold
}

func (b *Breaker) failureRateLocked() float64 {
	if b.totalRequests == 0 {
		return 0
	}
	return float64(b.totalFailures) / float64(b.totalRequests)
}

func (b *Breaker) transitionLocked(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.logger.Info("circuit breaker state change",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Int("consecutive_failures", b.consecutiveFailures),
		zap.Int("total_requests", b.totalRequests),
		zap.Int("total_failures", b.totalFailures),
	)
	if b.onChange != nil {
		b.onChange(from, to)
	}
}
