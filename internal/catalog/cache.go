package catalog

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/kosarica/basket-service/internal/optimizer"
)

// Loader produces a fresh catalog snapshot.
type Loader interface {
	LoadSnapshot(ctx context.Context) (*Snapshot, error)
}

// CacheConfig configures a SnapshotCache.
type CacheConfig struct {
	// Source labels load metrics, e.g. "postgres" or "file".
	Source string

	// TTL is how long a snapshot is served before a reload is attempted.
	// Zero disables expiry.
	TTL time.Duration

	// LoadTimeout bounds a single load. Loads do not inherit the caller's
	// context, so one cancelled request cannot fail a load others wait on.
	LoadTimeout time.Duration

	Breaker BreakerConfig
}

// DefaultCacheConfig returns the default cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Source:      SourcePostgres,
		TTL:         5 * time.Minute,
		LoadTimeout: 30 * time.Second,
		Breaker:     DefaultBreakerConfig(),
	}
}

// SnapshotCache serves the current catalog snapshot. Snapshots are swapped
// atomically, concurrent reloads collapse into one load, and a circuit breaker
// guards the source. When a reload fails the previous snapshot keeps being
// served.
type SnapshotCache struct {
	loader  Loader
	config  CacheConfig
	current atomic.Pointer[Snapshot]
	group   singleflight.Group
	breaker *CircuitBreaker
	gate    *WarmupGate
	metrics *optimizer.MetricsRecorder
	logger  zerolog.Logger
	now     func() time.Time
}

// NewSnapshotCache creates an empty cache. Call Warmup before serving reads.
func NewSnapshotCache(loader Loader, config CacheConfig, metrics *optimizer.MetricsRecorder) *SnapshotCache {
	if config.LoadTimeout <= 0 {
		config.LoadTimeout = DefaultCacheConfig().LoadTimeout
	}
	if config.Source == "" {
		config.Source = "unknown"
	}
	logger := log.With().Str("component", "snapshot_cache").Logger()
	return &SnapshotCache{
		loader:  loader,
		config:  config,
		breaker: NewCircuitBreaker(config.Breaker, logger),
		gate:    NewWarmupGate(),
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Warmup performs the initial load and then opens the warmup gate, whether or
// not the load succeeded. Readers blocked in Get are released either way.
func (c *SnapshotCache) Warmup(ctx context.Context) error {
	defer c.gate.Open()

	snap, err := c.Refresh(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Snapshot warmup failed")
		return err
	}
	stats := snap.Stats()
	c.logger.Info().
		Int("prices", stats.Prices).
		Int("shops", stats.Shops).
		Int("groups", stats.Groups).
		Msg("Snapshot warmup completed")
	return nil
}

// Refresh loads a new snapshot and swaps it in. Concurrent callers share one load.
func (c *SnapshotCache) Refresh(ctx context.Context) (*Snapshot, error) {
	if !c.breaker.Allow() {
		return nil, ErrCircuitOpen
	}

	ch := c.group.DoChan("snapshot", func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.Background(), c.config.LoadTimeout)
		defer cancel()

		start := c.now()
		snap, err := c.loader.LoadSnapshot(loadCtx)
		c.metrics.RecordSnapshotLoad(c.config.Source, c.now().Sub(start), err == nil)
		if err != nil {
			c.breaker.RecordFailure(err)
			return nil, fmt.Errorf("failed to load snapshot: %w", err)
		}
		c.breaker.RecordSuccess()
		c.current.Store(snap)
		c.metrics.RecordSnapshot(0, len(snap.Prices()))
		return snap, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get returns the current snapshot, reloading it when the TTL has expired.
// It blocks until warmup has finished or ctx is done.
func (c *SnapshotCache) Get(ctx context.Context) (*Snapshot, error) {
	if err := c.gate.Wait(ctx); err != nil {
		return nil, err
	}

	cur := c.current.Load()
	if cur != nil && !c.expired(cur) {
		c.metrics.RecordSnapshot(c.now().Sub(cur.LoadedAt()), len(cur.Prices()))
		return cur, nil
	}

	snap, err := c.Refresh(ctx)
	if err == nil {
		return snap, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if cur != nil {
		c.logger.Warn().
			Err(err).
			Dur("age", c.now().Sub(cur.LoadedAt())).
			Msg("Snapshot reload failed, serving stale snapshot")
		return cur, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrSnapshotUnavailable, err)
}

func (c *SnapshotCache) expired(s *Snapshot) bool {
	return c.config.TTL > 0 && c.now().Sub(s.LoadedAt()) >= c.config.TTL
}

// CacheHealth describes the cache state for health endpoints.
type CacheHealth struct {
	Ready      bool      `json:"ready"`
	Source     string    `json:"source"`
	LoadedAt   time.Time `json:"loadedAt,omitempty"`
	AgeSeconds float64   `json:"ageSeconds"`
	Stale      bool      `json:"stale"`
	Stats      Stats     `json:"stats"`
	Circuit    string    `json:"circuit"`
	Failures   int       `json:"failures"`
	LastError  string    `json:"lastError,omitempty"`
}

// Health returns the current cache state without loading anything.
func (c *SnapshotCache) Health() CacheHealth {
	failures, lastErr := c.breaker.Failures()
	h := CacheHealth{
		Source:   c.config.Source,
		Circuit:  c.breaker.State().String(),
		Failures: failures,
	}
	if lastErr != nil {
		h.LastError = lastErr.Error()
	}
	if cur := c.current.Load(); cur != nil {
		h.Ready = true
		h.LoadedAt = cur.LoadedAt()
		h.AgeSeconds = c.now().Sub(cur.LoadedAt()).Seconds()
		h.Stale = c.expired(cur)
		h.Stats = cur.Stats()
	}
	return h
}

// ResetCircuitBreaker closes the circuit breaker.
func (c *SnapshotCache) ResetCircuitBreaker() {
	c.breaker.Reset()
}
