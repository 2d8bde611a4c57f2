package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerTransitions(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cb := NewCircuitBreaker(BreakerConfig{MaxFailures: 2, ResetTimeout: 10 * time.Second, HalfOpenSuccesses: 2}, zerolog.Nop())
	cb.now = func() time.Time { return now }

	boom := errors.New("boom")

	assert.True(t, cb.Allow())
	cb.RecordFailure(boom)
	assert.Equal(t, BreakerClosed, cb.State())
	cb.RecordFailure(boom)
	assert.Equal(t, BreakerOpen, cb.State())
	assert.False(t, cb.Allow())

	now = now.Add(10 * time.Second)
	assert.True(t, cb.Allow())
	assert.Equal(t, BreakerHalfOpen, cb.State())

	cb.RecordFailure(boom)
	assert.Equal(t, BreakerOpen, cb.State())

	now = now.Add(10 * time.Second)
	require.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, BreakerHalfOpen, cb.State())
	cb.RecordSuccess()
	assert.Equal(t, BreakerClosed, cb.State())

	failures, lastErr := cb.Failures()
	assert.Zero(t, failures)
	assert.NoError(t, lastErr)
}

func TestCircuitBreakerSuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{MaxFailures: 2}, zerolog.Nop())

	cb.RecordFailure(errors.New("boom"))
	cb.RecordSuccess()
	cb.RecordFailure(errors.New("boom"))

	assert.Equal(t, BreakerClosed, cb.State())
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{MaxFailures: 1}, zerolog.Nop())
	cb.RecordFailure(errors.New("boom"))
	require.Equal(t, BreakerOpen, cb.State())

	cb.Reset()
	assert.Equal(t, BreakerClosed, cb.State())
	assert.True(t, cb.Allow())
}

func TestBreakerStateString(t *testing.T) {
	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "half-open", BreakerHalfOpen.String())
	assert.Equal(t, "unknown", BreakerState(9).String())
}

func TestWarmupGate(t *testing.T) {
	gate := NewWarmupGate()
	assert.False(t, gate.IsOpen())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, gate.Wait(ctx), context.DeadlineExceeded)

	gate.Open()
	gate.Open()
	assert.True(t, gate.IsOpen())
	assert.NoError(t, gate.Wait(context.Background()))
}
