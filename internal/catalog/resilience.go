package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrCircuitOpen is returned when the circuit breaker rejects a snapshot load.
var ErrCircuitOpen = errors.New("catalog circuit breaker open")

// BreakerState represents the state of the circuit breaker.
type BreakerState int

const (
	// BreakerClosed allows loads to pass through.
	BreakerClosed BreakerState = iota

	// BreakerOpen rejects loads immediately.
	BreakerOpen

	// BreakerHalfOpen allows probe loads to check whether the source recovered.
	BreakerHalfOpen
)

// String returns the string representation of the breaker state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds configuration for the circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before opening.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before probing.
	ResetTimeout time.Duration

	// HalfOpenSuccesses is the number of probe successes needed to close again.
	HalfOpenSuccesses int
}

// DefaultBreakerConfig returns the default circuit breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures:       5,
		ResetTimeout:      30 * time.Second,
		HalfOpenSuccesses: 1,
	}
}

// CircuitBreaker stops hammering a failing snapshot source.
type CircuitBreaker struct {
	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
	lastErr     error

	config BreakerConfig
	logger zerolog.Logger
	now    func() time.Time
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(config BreakerConfig, logger zerolog.Logger) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = DefaultBreakerConfig().MaxFailures
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = DefaultBreakerConfig().ResetTimeout
	}
	if config.HalfOpenSuccesses <= 0 {
		config.HalfOpenSuccesses = 1
	}
	return &CircuitBreaker{
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Allow reports whether a load may proceed. An open breaker moves to
// half-open once ResetTimeout has passed since the last failure.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed, BreakerHalfOpen:
		return true
	case BreakerOpen:
		if cb.now().Sub(cb.lastFailure) >= cb.config.ResetTimeout {
			cb.state = BreakerHalfOpen
			cb.successes = 0
			cb.logger.Info().Msg("Circuit breaker half-open, probing source")
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess records a successful load.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		cb.failures = 0
	case BreakerHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.HalfOpenSuccesses {
			cb.state = BreakerClosed
			cb.failures = 0
			cb.successes = 0
			cb.lastErr = nil
			cb.logger.Info().Msg("Circuit breaker closed after recovery")
		}
	}
}

// RecordFailure records a failed load.
func (cb *CircuitBreaker) RecordFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = cb.now()
	cb.lastErr = err

	switch cb.state {
	case BreakerClosed:
		if cb.failures >= cb.config.MaxFailures {
			cb.state = BreakerOpen
			cb.logger.Warn().
				Err(err).
				Int("failures", cb.failures).
				Dur("reset_timeout", cb.config.ResetTimeout).
				Msg("Circuit breaker opened")
		}
	case BreakerHalfOpen:
		cb.state = BreakerOpen
		cb.successes = 0
		cb.logger.Warn().Err(err).Msg("Circuit breaker re-opened after failed probe")
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the consecutive failure count and the last error.
func (cb *CircuitBreaker) Failures() (int, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures, cb.lastErr
}

// Reset closes the breaker and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = BreakerClosed
	cb.failures = 0
	cb.successes = 0
	cb.lastErr = nil
	cb.logger.Info().Msg("Circuit breaker reset")
}

// WarmupGate blocks readers until the first warmup attempt has finished.
type WarmupGate struct {
	once sync.Once
	done chan struct{}
}

// NewWarmupGate creates a closed gate.
func NewWarmupGate() *WarmupGate {
	return &WarmupGate{done: make(chan struct{})}
}

// Wait blocks until the gate opens or ctx is done.
func (g *WarmupGate) Wait(ctx context.Context) error {
	select {
	case <-g.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Open releases all current and future waiters. It is safe to call repeatedly.
func (g *WarmupGate) Open() {
	g.once.Do(func() { close(g.done) })
}

// IsOpen reports whether the gate has opened without blocking.
func (g *WarmupGate) IsOpen() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}
