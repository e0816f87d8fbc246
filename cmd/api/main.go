package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"saaskit/internal/auth"
	"saaskit/internal/config"
	transporthttp "saaskit/internal/http"
	"saaskit/internal/platform/cache"
	"saaskit/internal/platform/database"
	"saaskit/internal/platform/logging"
	"saaskit/internal/platform/metrics"
	"saaskit/internal/platform/migrate"
	"saaskit/internal/profiles"
	"saaskit/internal/supabase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel, cfg.Environment)
	defer func() { _ = logger.Sync() }()
	for _, warning := range cfg.Warnings {
		logger.Warn(warning)
	}

	repo, cleanup, err := buildRepository(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize repository", zap.Error(err))
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	store, err := cache.New(ctx, cache.Config{
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		DefaultTTL:    cfg.ProfileCacheTTL,
	})
	if err != nil {
		logger.Error("failed to initialize cache", zap.Error(err))
		os.Exit(1)
	}
	if closer, ok := store.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	svc := profiles.NewService(repo,
		profiles.WithCache(store, cfg.ProfileCacheTTL),
		profiles.WithMetrics(collector),
		profiles.WithLogger(logger),
	)

	var debug transporthttp.DebugSource
	if cfg.SupabaseURL != "" {
		debug = supabase.New(cfg.SupabaseURL, cfg.SupabaseAnonKey,
			supabase.WithServiceKey(cfg.SupabaseServiceKey),
			supabase.WithHTTPClient(&http.Client{Timeout: 12 * time.Second}),
		)
	}

	limiter := transporthttp.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, collector)
	defer limiter.Stop()

	router := transporthttp.NewRouter(cfg, transporthttp.Dependencies{
		Profiles:       svc,
		Verifier:       auth.NewVerifier(ctx, cfg.SupabaseJWTSecret, cfg.SupabaseURL),
		Debug:          debug,
		Metrics:        collector,
		MetricsHandler: metrics.Handler(reg),
		Limiter:        limiter,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}

	go func() {
		logger.Info("saaskit API listening", zap.String("addr", srv.Addr), zap.String("store", cfg.DataStore))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildRepository(ctx context.Context, cfg config.Config, logger *zap.Logger) (profiles.Repository, func(), error) {
	if cfg.UseInMemoryStore() {
		logger.Info("using in-memory repository")
		return profiles.NewInMemoryRepository(seedLocalProfiles(time.Now().UTC())), nil, nil
	}

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL, database.Pool{MaxOpen: cfg.DBMaxOpenConns, MaxIdle: cfg.DBMaxIdleConns})
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		_ = db.Close()
	}

	if err := migrate.Apply(ctx, db, logger); err != nil {
		cleanup()
		return nil, nil, err
	}

	logger.Info("connected to postgres")
	return profiles.NewPostgresRepository(db), cleanup, nil
}
