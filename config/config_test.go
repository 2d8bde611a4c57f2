package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosarica/basket-service/internal/catalog"
	"github.com/kosarica/basket-service/internal/middleware"
	"github.com/kosarica/basket-service/internal/optimizer"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, catalog.SourcePostgres, cfg.Catalog.Source)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, optimizer.DefaultReferenceCurrency, cfg.Currency.Reference)
	assert.Equal(t, *optimizer.Defaults(), cfg.Optimizer)
	assert.Same(t, cfg, Get())
	assert.Equal(t, middleware.DefaultRateLimiterConfig(), cfg.ClientRateLimiterConfig())

	settings, err := cfg.DefaultSettings()
	require.NoError(t, err)
	assert.Equal(t, optimizer.DefaultSettings(), settings)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
rate_limit:
  client_requests_per_second: 2.5
  client_burst: 4
  client_idle_timeout: 30s
catalog:
  source: file
  snapshot_path: /data/snapshot.json
optimizer:
  population_size: 20
  search_timeout: 500ms
  quantity_steps: [1, 2]
settings:
  priority: fewest_shops
  max_shops: 2
currency:
  reference: EUR
  rates:
    usd: 0.9
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "file", cfg.Catalog.Source)
	assert.Equal(t, 20, cfg.Optimizer.PopulationSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Optimizer.SearchTimeout)
	assert.Equal(t, []int{1, 2}, cfg.Optimizer.QuantitySteps)
	assert.Equal(t, optimizer.Defaults().Generations, cfg.Optimizer.Generations)

	settings, err := cfg.DefaultSettings()
	require.NoError(t, err)
	assert.Equal(t, optimizer.PriorityFewestShops, settings.Priority)
	assert.Equal(t, 2, settings.MaxShops)

	conv, err := cfg.Converter()
	require.NoError(t, err)
	assert.Equal(t, "EUR", conv.Reference())

	assert.Equal(t, middleware.RateLimiterConfig{
		RequestsPerSecond: 2.5,
		BurstSize:         4,
		IdleTimeout:       30 * time.Second,
	}, cfg.ClientRateLimiterConfig())

	cacheCfg := cfg.SnapshotCacheConfig()
	assert.Equal(t, "file", cacheCfg.Source)
	assert.Equal(t, catalog.DefaultBreakerConfig(), cacheCfg.Breaker)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/baskets")
	t.Setenv("BASKET_SERVICE_CACHE_TTL", "1m")
	t.Setenv("BASKET_SERVICE_OPTIMIZER_GENERATIONS", "7")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/baskets", cfg.Database.URL)
	assert.Equal(t, "postgres://localhost/baskets", GetDatabaseURL())
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 7, cfg.Optimizer.Generations)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"file source without path", "catalog:\n  source: file\n"},
		{"unknown source", "catalog:\n  source: redis\n"},
		{"bad optimizer", "optimizer:\n  mutation_rate: 2\n"},
		{"bad priority", "settings:\n  priority: cheapest\n"},
		{"unknown currency", "currency:\n  reference: EURO\n"},
		{"combinations over limit", "settings:\n  max_combinations: 20000000\n"},
		{"zero client rate", "rate_limit:\n  client_requests_per_second: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
