// Package breaker implements a process-wide circuit breaker that protects the
// persistent store from cascading failure. After a configurable number of
// consecutive handler failures the breaker opens and fails fast for a cool-down
// window; once the window elapses a single probe is let through and a success
// closes the breaker again.
package breaker

import (
	"sync"
	"time"
)

const (
	// DefaultFailureThreshold is the number of consecutive failures that opens the breaker.
	DefaultFailureThreshold = 3

	// DefaultResetTimeout is the cool-down window before a half-open probe is allowed.
	DefaultResetTimeout = 60 * time.Second
)

// Config holds circuit breaker configuration.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold int
	// ResetTimeout is how long the breaker stays open before letting a probe through.
	ResetTimeout time.Duration
}

// State is a snapshot of the breaker used for logging and metrics.
type State struct {
	Open                bool
	ConsecutiveFailures int
	LastFailure         time.Time
}

// CircuitBreaker tracks consecutive failures across handler invocations.
// It is safe for concurrent use; the per-message goroutines of the batch
// dispatcher share a single instance.
type CircuitBreaker struct {
	mu sync.Mutex

	open        bool
	failures    int
	lastFailure time.Time

	threshold    int
	resetTimeout time.Duration
	now          func() time.Time
}

// New creates a CircuitBreaker with the given configuration.
// Zero values fall back to the defaults.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultResetTimeout
	}
	return &CircuitBreaker{
		threshold:    cfg.FailureThreshold,
		resetTimeout: cfg.ResetTimeout,
		now:          time.Now,
	}
}

// NewWithClock creates a CircuitBreaker with an injectable clock for
// deterministic tests of the timeout transition.
func NewWithClock(cfg Config, now func() time.Time) *CircuitBreaker {
	cb := New(cfg)
	cb.now = now
	return cb
}

// Allow reports whether the next operation may proceed. When the breaker is
// open and the reset timeout has elapsed since the last failure, Allow returns
// true without changing state: the caller's outcome (OnSuccess or OnFailure)
// decides whether the breaker closes or stays open.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.open {
		return true
	}
	return cb.now().Sub(cb.lastFailure) >= cb.resetTimeout
}

// OnSuccess resets the failure count and closes the breaker.
func (cb *CircuitBreaker) OnSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.open = false
}

// OnFailure records a failure. Crossing the threshold opens the breaker.
func (cb *CircuitBreaker) OnFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailure = cb.now()
	cb.failures++
	if cb.failures >= cb.threshold {
		cb.open = true
	}
}

// State returns a snapshot of the breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return State{
		Open:                cb.open,
		ConsecutiveFailures: cb.failures,
		LastFailure:         cb.lastFailure,
	}
}
