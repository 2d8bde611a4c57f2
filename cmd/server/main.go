package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/kosarica/basket-service/config"
	_ "github.com/kosarica/basket-service/docs"
	"github.com/kosarica/basket-service/internal/catalog"
	"github.com/kosarica/basket-service/internal/database"
	"github.com/kosarica/basket-service/internal/handlers"
	"github.com/kosarica/basket-service/internal/middleware"
	"github.com/kosarica/basket-service/internal/optimizer"
	"github.com/kosarica/basket-service/internal/telemetry"
)

// @title Basket Service API
// @version 1.0
// @description Multi-shop shopping basket optimization.
// @BasePath /
// @securityDefinitions.apikey InternalAPIKey
// @in header
// @name X-Internal-API-Key
func main() {
	cfg, err := config.Load(os.Getenv("BASKET_SERVICE_CONFIG"))
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Logging)

	logger.Info().Msg("Starting basket service")

	ctx := context.Background()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}

	var store *catalog.Store
	if dbURL := config.GetDatabaseURL(); dbURL != "" {
		pool, err := database.Connect(ctx, database.PoolConfig{
			URL:         dbURL,
			MaxConns:    cfg.Database.MaxConnections,
			MinConns:    cfg.Database.MinConnections,
			MaxLifetime: cfg.Database.MaxConnLifetime,
			MaxIdleTime: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer database.Close()
		logger.Info().Msg("Database connected")

		store = catalog.NewStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Failed to ensure schema")
		}
	}

	var loader catalog.Loader
	switch cfg.Catalog.Source {
	case catalog.SourcePostgres:
		if store == nil {
			logger.Fatal().Msg("DATABASE_URL not set")
		}
		loader = store
	default:
		loader = catalog.FileLoader{Path: cfg.Catalog.SnapshotPath}
	}

	converter, err := cfg.Converter()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid currency configuration")
	}
	defaults, err := cfg.DefaultSettings()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid default settings")
	}

	metrics := optimizer.NewMetricsRecorder()
	cache := catalog.NewSnapshotCache(loader, cfg.SnapshotCacheConfig(), metrics)

	// Stored baskets need the database even when snapshots come from a file.
	var baskets handlers.BasketStore
	if store != nil {
		baskets = store
	}
	handlers.InitBasket(handlers.NewBasketService(cache, baskets, converter, &cfg.Optimizer, metrics, handlers.BasketConfig{
		Defaults:       defaults,
		MemoTTL:        cfg.Basket.MemoTTL,
		MaxConcurrent:  cfg.Basket.MaxConcurrent,
		AcquireTimeout: cfg.Basket.AcquireTimeout,
		IncludeTrace:   cfg.Basket.IncludeTrace,
	}))

	// Requests wait for warmup, so the listener can start right away.
	go func() {
		warmupCtx, cancel := context.WithTimeout(ctx, cfg.Cache.WarmupTimeout)
		defer cancel()
		if err := cache.Warmup(warmupCtx); err != nil {
			logger.Error().Err(err).Msg("Catalog warmup failed")
			return
		}
		logger.Info().Interface("stats", cache.Health().Stats).Msg("Catalog warmed up")
	}()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())

	public := router.Group("/")
	public.Use(middleware.RateLimitMiddleware(cfg.ClientRateLimiterConfig()))
	{
		public.GET("/health", handlers.HealthCheck)
		public.GET("/metrics", gin.WrapH(promhttp.Handler()))
		public.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	internal := router.Group("/internal")
	internal.Use(middleware.InternalAuthMiddleware(cfg.Auth.InternalAPIKey))
	internal.Use(middleware.ServiceRateLimitMiddleware(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	{
		internal.GET("/health", handlers.HealthCheck)

		basket := internal.Group("/basket")
		{
			basket.POST("/optimize", handlers.OptimizeBasket)
			basket.GET("/cache/health", handlers.CacheHealth)
			basket.POST("/cache/refresh", handlers.CacheRefresh)
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to flush telemetry")
	}

	logger.Info().Msg("Server exited")
}

func initLogger(cfg config.LoggingConfig) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer
	if cfg.Format == "json" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg.NoColor}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("service", "basket-service").Logger()
	// Package loggers derive from the global one.
	log.Logger = logger
	zerolog.SetGlobalLevel(level)
	return &logger
}
