package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosarica/basket-service/internal/optimizer"
)

type fakeLoader struct {
	calls   atomic.Int32
	fail    atomic.Bool
	release chan struct{}
}

func (l *fakeLoader) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	l.calls.Add(1)
	if l.release != nil {
		select {
		case <-l.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if l.fail.Load() {
		return nil, errors.New("database down")
	}
	prices := []optimizer.PriceRecord{{ProductID: "a", ShopID: "A", Price: 100}}
	return NewSnapshot("fake", prices, nil, nil, nil), nil
}

func newTestCache(loader Loader, ttl time.Duration) *SnapshotCache {
	config := DefaultCacheConfig()
	config.Source = "fake"
	config.TTL = ttl
	config.Breaker = BreakerConfig{MaxFailures: 2, ResetTimeout: time.Minute}
	return NewSnapshotCache(loader, config, nil)
}

func TestSnapshotCacheWarmupAndGet(t *testing.T) {
	loader := &fakeLoader{}
	cache := newTestCache(loader, time.Minute)

	require.NoError(t, cache.Warmup(context.Background()))

	s, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, s.Prices(), 1)
	assert.Equal(t, int32(1), loader.calls.Load())

	h := cache.Health()
	assert.True(t, h.Ready)
	assert.False(t, h.Stale)
	assert.Equal(t, "closed", h.Circuit)
	assert.Equal(t, 1, h.Stats.Prices)
}

// Concurrent refreshes while a load is in flight share that load.
func TestSnapshotCacheThunderingHerd(t *testing.T) {
	loader := &fakeLoader{release: make(chan struct{})}
	cache := newTestCache(loader, time.Minute)

	const requests = 50
	var wg sync.WaitGroup
	errs := make(chan error, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Refresh(context.Background())
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return loader.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(loader.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), loader.calls.Load())
}

// A cancelled caller does not fail the load other callers wait on.
func TestSnapshotCacheCallerCancellation(t *testing.T) {
	loader := &fakeLoader{release: make(chan struct{})}
	cache := newTestCache(loader, time.Minute)

	cancelled, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := cache.Refresh(cancelled)
		first <- err
	}()

	require.Eventually(t, func() bool { return loader.calls.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan error, 1)
	go func() {
		_, err := cache.Refresh(context.Background())
		second <- err
	}()

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(loader.release)
	assert.NoError(t, <-second)
	assert.True(t, cache.Health().Ready)
}

func TestSnapshotCacheServesStaleOnFailure(t *testing.T) {
	loader := &fakeLoader{}
	cache := newTestCache(loader, time.Minute)
	require.NoError(t, cache.Warmup(context.Background()))

	loaded := cache.current.Load()
	cache.now = func() time.Time { return loaded.LoadedAt().Add(2 * time.Minute) }
	loader.fail.Store(true)

	s, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, loaded, s)
	assert.Equal(t, int32(2), loader.calls.Load())

	h := cache.Health()
	assert.True(t, h.Stale)
	assert.Equal(t, 1, h.Failures)
	assert.Equal(t, "database down", h.LastError)
}

func TestSnapshotCacheUnavailable(t *testing.T) {
	loader := &fakeLoader{}
	loader.fail.Store(true)
	cache := newTestCache(loader, time.Minute)

	assert.Error(t, cache.Warmup(context.Background()))

	_, err := cache.Get(context.Background())
	assert.ErrorIs(t, err, ErrSnapshotUnavailable)

	// Warmup and the first Get failed twice, which opened the breaker.
	_, err = cache.Get(context.Background())
	assert.ErrorIs(t, err, ErrSnapshotUnavailable)
	assert.Equal(t, "open", cache.Health().Circuit)

	calls := loader.calls.Load()
	_, err = cache.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, calls, loader.calls.Load())

	cache.ResetCircuitBreaker()
	loader.fail.Store(false)
	_, err = cache.Get(context.Background())
	assert.NoError(t, err)
}

func TestSnapshotCacheGetWaitsForWarmup(t *testing.T) {
	cache := newTestCache(&fakeLoader{}, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := cache.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
