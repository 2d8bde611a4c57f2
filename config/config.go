package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/kosarica/basket-service/internal/catalog"
	"github.com/kosarica/basket-service/internal/middleware"
	"github.com/kosarica/basket-service/internal/optimizer"
	"github.com/kosarica/basket-service/internal/telemetry"
)

// EnvPrefix prefixes every environment override, e.g. BASKET_SERVICE_SERVER_PORT.
const EnvPrefix = "BASKET_SERVICE"

// Config holds the application configuration
type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Database  DatabaseConfig   `mapstructure:"database"`
	RateLimit RateLimitConfig  `mapstructure:"rate_limit"`
	Logging   LoggingConfig    `mapstructure:"logging"`
	Auth      AuthConfig       `mapstructure:"auth"`
	Catalog   CatalogConfig    `mapstructure:"catalog"`
	Cache     CacheConfig      `mapstructure:"cache"`
	Basket    BasketConfig     `mapstructure:"basket"`
	Settings  SettingsConfig   `mapstructure:"settings"`
	Currency  CurrencyConfig   `mapstructure:"currency"`
	Optimizer optimizer.Config `mapstructure:"optimizer"`
	Telemetry telemetry.Config `mapstructure:"telemetry"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RateLimitConfig holds rate limiting configuration.
// The service limit is shared by all internal callers; the client limit is
// tracked per IP on the public routes.
type RateLimitConfig struct {
	RequestsPerSecond       float64       `mapstructure:"requests_per_second"`
	Burst                   int           `mapstructure:"burst"`
	ClientRequestsPerSecond float64       `mapstructure:"client_requests_per_second"`
	ClientBurst             int           `mapstructure:"client_burst"`
	ClientIdleTimeout       time.Duration `mapstructure:"client_idle_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	NoColor bool   `mapstructure:"no_color"`
}

// AuthConfig holds the internal API key
type AuthConfig struct {
	InternalAPIKey string `mapstructure:"internal_api_key"`
}

// CatalogConfig selects where snapshots come from: "postgres" or "file".
type CatalogConfig struct {
	Source       string `mapstructure:"source"`
	SnapshotPath string `mapstructure:"snapshot_path"`
}

// CacheConfig holds snapshot cache configuration
type CacheConfig struct {
	TTL                 time.Duration `mapstructure:"ttl"`
	LoadTimeout         time.Duration `mapstructure:"load_timeout"`
	BreakerMaxFailures  int           `mapstructure:"breaker_max_failures"`
	BreakerResetTimeout time.Duration `mapstructure:"breaker_reset_timeout"`
	BreakerProbeSuccess int           `mapstructure:"breaker_probe_successes"`
	WarmupTimeout       time.Duration `mapstructure:"warmup_timeout"`
}

// BasketConfig holds basket endpoint configuration
type BasketConfig struct {
	MemoTTL        time.Duration `mapstructure:"memo_ttl"`
	MaxConcurrent  int64         `mapstructure:"max_concurrent"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`
	IncludeTrace   bool          `mapstructure:"include_trace"`
}

// SettingsConfig holds the optimization settings used for fields a request leaves out.
type SettingsConfig struct {
	Priority                string  `mapstructure:"priority"`
	MaxShops                int     `mapstructure:"max_shops"`
	SuggestQuantities       bool    `mapstructure:"suggest_quantities"`
	MinSavingsThreshold     int64   `mapstructure:"min_savings_threshold"`
	MaxQuantityMultiplier   float64 `mapstructure:"max_quantity_multiplier"`
	ConsiderFreeShipping    bool    `mapstructure:"consider_free_shipping"`
	MaxCombinations         int     `mapstructure:"max_combinations"`
	AllowSubstitutes        bool    `mapstructure:"allow_substitutes"`
	MaxPriceIncreasePercent float64 `mapstructure:"max_price_increase_percent"`
	MaxSubstitutesPerNeed   int     `mapstructure:"max_substitutes_per_need"`
	Seed                    int64   `mapstructure:"seed"`
}

// CurrencyConfig holds the reference currency and conversion rates.
// Rates give the value of one unit of the keyed currency in the reference currency.
type CurrencyConfig struct {
	Reference string             `mapstructure:"reference"`
	Rates     map[string]float64 `mapstructure:"rates"`
}

var globalConfig *Config

// Load loads the configuration from file, .env, and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// .env is optional
	if err := loadEnvFile(); err != nil {
		log.Debug().Err(err).Msg(".env file not loaded")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Validate checks the values a running service cannot recover from.
func (c *Config) Validate() error {
	if err := c.Optimizer.Validate(); err != nil {
		return fmt.Errorf("invalid optimizer config: %w", err)
	}
	switch c.Catalog.Source {
	case catalog.SourcePostgres:
	case "file":
		if c.Catalog.SnapshotPath == "" {
			return fmt.Errorf("catalog.snapshot_path is required for the file source")
		}
	default:
		return fmt.Errorf("unknown catalog source %q", c.Catalog.Source)
	}
	if c.RateLimit.ClientRequestsPerSecond <= 0 || c.RateLimit.ClientBurst < 1 {
		return fmt.Errorf("rate_limit client limits must be positive")
	}
	if _, err := c.Converter(); err != nil {
		return fmt.Errorf("invalid currency config: %w", err)
	}
	if _, err := c.DefaultSettings(); err != nil {
		return fmt.Errorf("invalid settings config: %w", err)
	}
	return nil
}

// DefaultSettings converts the settings section into optimizer settings.
func (c *Config) DefaultSettings() (optimizer.Settings, error) {
	priority, err := optimizer.ParsePriority(c.Settings.Priority)
	if err != nil {
		return optimizer.Settings{}, err
	}
	if c.Settings.MaxCombinations < 1 || c.Settings.MaxCombinations > optimizer.MaxCombinationsLimit {
		return optimizer.Settings{}, fmt.Errorf("settings.max_combinations must be between 1 and %d", optimizer.MaxCombinationsLimit)
	}
	if c.Settings.MaxQuantityMultiplier < 1 {
		return optimizer.Settings{}, fmt.Errorf("settings.max_quantity_multiplier must be at least 1")
	}
	return optimizer.Settings{
		Priority:                priority,
		MaxShops:                c.Settings.MaxShops,
		SuggestQuantities:       c.Settings.SuggestQuantities,
		MinSavingsThreshold:     c.Settings.MinSavingsThreshold,
		MaxQuantityMultiplier:   c.Settings.MaxQuantityMultiplier,
		ConsiderFreeShipping:    c.Settings.ConsiderFreeShipping,
		MaxCombinations:         c.Settings.MaxCombinations,
		AllowSubstitutes:        c.Settings.AllowSubstitutes,
		MaxPriceIncreasePercent: c.Settings.MaxPriceIncreasePercent,
		MaxSubstitutesPerNeed:   c.Settings.MaxSubstitutesPerNeed,
		Seed:                    c.Settings.Seed,
	}, nil
}

// Converter builds the currency converter from the currency section.
func (c *Config) Converter() (*optimizer.Converter, error) {
	rates := make(map[string]float64, len(c.Currency.Rates))
	for code, rate := range c.Currency.Rates {
		rates[strings.ToUpper(code)] = rate
	}
	return optimizer.NewConverter(c.Currency.Reference, rates)
}

// SnapshotCacheConfig maps the cache section onto the catalog cache.
func (c *Config) SnapshotCacheConfig() catalog.CacheConfig {
	return catalog.CacheConfig{
		Source:      c.Catalog.Source,
		TTL:         c.Cache.TTL,
		LoadTimeout: c.Cache.LoadTimeout,
		Breaker: catalog.BreakerConfig{
			MaxFailures:       c.Cache.BreakerMaxFailures,
			ResetTimeout:      c.Cache.BreakerResetTimeout,
			HalfOpenSuccesses: c.Cache.BreakerProbeSuccess,
		},
	}
}

// ClientRateLimiterConfig maps the rate limit section onto the per-client limiter.
func (c *Config) ClientRateLimiterConfig() middleware.RateLimiterConfig {
	return middleware.RateLimiterConfig{
		RequestsPerSecond: c.RateLimit.ClientRequestsPerSecond,
		BurstSize:         c.RateLimit.ClientBurst,
		IdleTimeout:       c.RateLimit.ClientIdleTimeout,
	}
}

// loadEnvFile loads the first .env file found. Variables already set in the
// environment win.
func loadEnvFile() error {
	for _, dir := range []string{".", "./config"} {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return godotenv.Load(path)
	}
	return fmt.Errorf("no .env file found")
}

// bindEnvVars binds the conventional unprefixed variables
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT")
	_ = v.BindEnv("logging.level", EnvPrefix+"_LOGGING_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("auth.internal_api_key", EnvPrefix+"_AUTH_INTERNAL_API_KEY", "INTERNAL_API_KEY")
	_ = v.BindEnv("telemetry.endpoint", EnvPrefix+"_TELEMETRY_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 2)
	v.SetDefault("database.max_conn_lifetime", 1*time.Hour)
	v.SetDefault("database.max_conn_idle_time", 30*time.Minute)

	v.SetDefault("rate_limit.requests_per_second", 50.0)
	v.SetDefault("rate_limit.burst", 100)
	v.SetDefault("rate_limit.client_requests_per_second", 10.0)
	v.SetDefault("rate_limit.client_burst", 20)
	v.SetDefault("rate_limit.client_idle_timeout", 5*time.Minute)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.no_color", false)

	v.SetDefault("auth.internal_api_key", "")

	v.SetDefault("catalog.source", catalog.SourcePostgres)
	v.SetDefault("catalog.snapshot_path", "")

	cache := catalog.DefaultCacheConfig()
	v.SetDefault("cache.ttl", cache.TTL)
	v.SetDefault("cache.load_timeout", cache.LoadTimeout)
	v.SetDefault("cache.breaker_max_failures", cache.Breaker.MaxFailures)
	v.SetDefault("cache.breaker_reset_timeout", cache.Breaker.ResetTimeout)
	v.SetDefault("cache.breaker_probe_successes", cache.Breaker.HalfOpenSuccesses)
	v.SetDefault("cache.warmup_timeout", 60*time.Second)

	v.SetDefault("basket.memo_ttl", 30*time.Second)
	v.SetDefault("basket.max_concurrent", 8)
	v.SetDefault("basket.acquire_timeout", 2*time.Second)
	v.SetDefault("basket.include_trace", false)

	settings := optimizer.DefaultSettings()
	v.SetDefault("settings.priority", settings.Priority.String())
	v.SetDefault("settings.max_shops", settings.MaxShops)
	v.SetDefault("settings.suggest_quantities", settings.SuggestQuantities)
	v.SetDefault("settings.min_savings_threshold", settings.MinSavingsThreshold)
	v.SetDefault("settings.max_quantity_multiplier", settings.MaxQuantityMultiplier)
	v.SetDefault("settings.consider_free_shipping", settings.ConsiderFreeShipping)
	v.SetDefault("settings.max_combinations", settings.MaxCombinations)
	v.SetDefault("settings.allow_substitutes", settings.AllowSubstitutes)
	v.SetDefault("settings.max_price_increase_percent", settings.MaxPriceIncreasePercent)
	v.SetDefault("settings.max_substitutes_per_need", settings.MaxSubstitutesPerNeed)
	v.SetDefault("settings.seed", settings.Seed)

	v.SetDefault("currency.reference", optimizer.DefaultReferenceCurrency)
	v.SetDefault("currency.rates", map[string]float64{})

	opt := optimizer.Defaults()
	v.SetDefault("optimizer.max_basket_lines", opt.MaxBasketLines)
	v.SetDefault("optimizer.dominance_prune_threshold", opt.DominancePruneThreshold)
	v.SetDefault("optimizer.fewest_shops_weight", opt.FewestShopsWeight)
	v.SetDefault("optimizer.extra_shop_penalty", opt.ExtraShopPenalty)
	v.SetDefault("optimizer.sampling_shop_ratio", opt.SamplingShopRatio)
	v.SetDefault("optimizer.sampling_top_shops", opt.SamplingTopShops)
	v.SetDefault("optimizer.sampling_top_k", opt.SamplingTopK)
	v.SetDefault("optimizer.subset_enumeration_limit", opt.SubsetEnumerationLimit)
	v.SetDefault("optimizer.sample_budget", opt.SampleBudget)
	v.SetDefault("optimizer.sample_attempt_cap", opt.SampleAttemptCap)
	v.SetDefault("optimizer.sampling_workers", opt.SamplingWorkers)
	v.SetDefault("optimizer.population_size", opt.PopulationSize)
	v.SetDefault("optimizer.generations", opt.Generations)
	v.SetDefault("optimizer.mutation_rate", opt.MutationRate)
	v.SetDefault("optimizer.tournament_size", opt.TournamentSize)
	v.SetDefault("optimizer.init_attempts_per_individual", opt.InitAttemptsPerIndividual)
	v.SetDefault("optimizer.local_search_iterations", opt.LocalSearchIterations)
	v.SetDefault("optimizer.local_search_patience", opt.LocalSearchPatience)
	v.SetDefault("optimizer.neighborhood_sample_size", opt.NeighborhoodSampleSize)
	v.SetDefault("optimizer.search_timeout", opt.SearchTimeout)
	v.SetDefault("optimizer.quantity_steps", opt.QuantitySteps)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.service_name", telemetry.DefaultServiceName)
	v.SetDefault("telemetry.service_version", "")
	v.SetDefault("telemetry.environment", "")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// GetDatabaseURL returns the database URL from config or environment
func GetDatabaseURL() string {
	if cfg := Get(); cfg != nil && cfg.Database.URL != "" {
		return cfg.Database.URL
	}
	return os.Getenv("DATABASE_URL")
}
