package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_Defaults(t *testing.T) {
	cb := New(Config{})

	assert.Equal(t, DefaultFailureThreshold, cb.threshold)
	assert.Equal(t, DefaultResetTimeout, cb.resetTimeout)
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	cb := NewWithClock(Config{FailureThreshold: 3, ResetTimeout: time.Minute}, func() time.Time { return now })

	cb.OnFailure()
	assert.True(t, cb.Allow())
	cb.OnFailure()
	assert.True(t, cb.Allow())
	cb.OnFailure()

	assert.False(t, cb.Allow())
	assert.False(t, cb.Allow())

	state := cb.State()
	assert.True(t, state.Open)
	assert.Equal(t, 3, state.ConsecutiveFailures)
	assert.Equal(t, now, state.LastFailure)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := New(Config{FailureThreshold: 3, ResetTimeout: time.Minute})

	cb.OnFailure()
	cb.OnFailure()
	cb.OnSuccess()
	cb.OnFailure()
	cb.OnFailure()

	// Two failures after a success must not open a threshold-3 breaker.
	assert.True(t, cb.Allow())
	assert.Equal(t, 2, cb.State().ConsecutiveFailures)
}

func TestCircuitBreaker_HalfOpenProbeAfterTimeout(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	cb := NewWithClock(Config{FailureThreshold: 3, ResetTimeout: time.Minute}, func() time.Time { return now })

	cb.OnFailure()
	cb.OnFailure()
	cb.OnFailure()
	assert.False(t, cb.Allow())

	// Just before the timeout elapses the breaker still fails fast.
	now = now.Add(time.Minute - time.Millisecond)
	assert.False(t, cb.Allow())

	// Once elapsed, the probe is let through without changing state.
	now = now.Add(time.Millisecond)
	assert.True(t, cb.Allow())
	assert.True(t, cb.State().Open)
}

func TestCircuitBreaker_ProbeSuccessCloses(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	cb := NewWithClock(Config{FailureThreshold: 3, ResetTimeout: time.Minute}, func() time.Time { return now })

	cb.OnFailure()
	cb.OnFailure()
	cb.OnFailure()

	now = now.Add(2 * time.Minute)
	assert.True(t, cb.Allow())

	cb.OnSuccess()
	state := cb.State()
	assert.False(t, state.Open)
	assert.Equal(t, 0, state.ConsecutiveFailures)
}

func TestCircuitBreaker_ProbeFailureKeepsOpen(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	cb := NewWithClock(Config{FailureThreshold: 3, ResetTimeout: time.Minute}, func() time.Time { return now })

	cb.OnFailure()
	cb.OnFailure()
	cb.OnFailure()

	now = now.Add(2 * time.Minute)
	assert.True(t, cb.Allow())

	// Failed probe restarts the cool-down window from now.
	cb.OnFailure()
	assert.False(t, cb.Allow())

	now = now.Add(time.Minute)
	assert.True(t, cb.Allow())
}
