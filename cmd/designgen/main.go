// cmd/designgen/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"schedule-designgen/internal/api"
	"schedule-designgen/internal/assets"
	"schedule-designgen/internal/cache"
	awsnotify "schedule-designgen/internal/common/aws"
	"schedule-designgen/internal/common/config"
	"schedule-designgen/internal/common/database"
	httpclient "schedule-designgen/internal/common/http"
	"schedule-designgen/internal/common/logger"
	"schedule-designgen/internal/common/observability"
	"schedule-designgen/internal/compiler"
	"schedule-designgen/internal/editor"
	"schedule-designgen/internal/scheduler"
	"schedule-designgen/internal/templates"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting design generator...",
		zap.String("environment", cfg.App.Environment),
		zap.String("editor", cfg.Editor.URL),
		zap.String("cacheBackend", cfg.Cache.Backend),
	)

	obs := observability.New(cfg.App.Name, cfg.App.Version)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Artifact cache ---
	var store cache.Store
	var redis *database.RedisClient
	switch cfg.Cache.Backend {
	case "redis":
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()
		store = cache.NewRedisStore(redis.Client, cfg.Cache.KeyPrefix)
		zapLog.Info("Redis artifact cache connected")
	default:
		store = cache.NewMemoryStore()
		zapLog.Info("Using in-memory artifact cache")
	}

	// --- User overrides ---
	var overrides cache.OverrideStore = cache.NoopOverrides{}
	var pg *database.PostgresClient
	if cfg.Database.Postgres.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			zapLog.Fatal("postgres migration failed", zap.Error(err))
		}
		overrides = cache.NewPostgresOverrides(pg.DB, log)
		zapLog.Info("PostgreSQL override store connected")
	}

	// --- Render pipeline ---
	registry, err := templates.NewRegistry(
		httpclient.NewClient(config.GetDuration(cfg.Templates.Timeout)),
		config.GetDuration(cfg.Templates.CacheTTL),
		log,
	)
	if err != nil {
		zapLog.Fatal("failed to create template registry", zap.Error(err))
	}

	fetcher := assets.NewFetcher(httpclient.NewClient(config.GetDuration(cfg.Assets.Timeout)), cfg.Assets.MaxCached, log)
	resolver := assets.NewResolver(fetcher, cfg.Assets.Concurrency, log)

	adapter := editor.NewAdapter(
		editor.NewWebSocketLauncher(cfg.Editor.URL, config.GetDuration(cfg.Editor.ConnectTimeout)),
		editor.Config{
			IdleTimeout:   config.GetDuration(cfg.Editor.IdleTimeout),
			ProbeInterval: config.GetDuration(cfg.Editor.ProbeInterval),
		},
		log,
	)
	defer adapter.Close()

	pipeline := scheduler.NewPipeline(registry, resolver, adapter, cfg.Editor.ExportFormats, compiler.Options{}, log)

	// --- Scheduler ---
	opts := []scheduler.Option{
		scheduler.WithObservability(obs),
		scheduler.WithOverrides(overrides),
	}
	if cfg.Notifications.SNS.Enabled {
		notifier, err := awsnotify.NewSNSNotifier(ctx, cfg.Notifications.SNS.Region, cfg.Notifications.SNS.TopicARN)
		if err != nil {
			zapLog.Fatal("failed to create SNS notifier", zap.Error(err))
		}
		opts = append(opts, scheduler.WithNotifier(notifier))
		zapLog.Info("SNS outcome notifications enabled", zap.String("topic", cfg.Notifications.SNS.TopicARN))
	}

	sched := scheduler.New(scheduler.Config{
		MaxJobsInProgress: cfg.Scheduler.MaxJobsInProgress,
		MaxDesignsInCache: cfg.Cache.MaxDesignsInCache,
		JobTimeout:        config.GetDuration(cfg.Scheduler.JobTimeout),
		SnapshotTick:      config.GetDuration(cfg.Scheduler.SnapshotTick),
		CacheOpTimeout:    config.GetDuration(cfg.Scheduler.CacheOpTimeout),
	}, store, pipeline, log, opts...)

	// --- HTTP API, Health & Metrics ---
	mux := http.NewServeMux()
	api.NewHandler(sched, store, overrides, log).Register(mux)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	deps := map[string]database.Pinger{}
	if redis != nil {
		deps["redis"] = redis
	}
	if pg != nil {
		deps["postgres"] = pg
	}
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		status, code := "ready", http.StatusOK
		if err := database.Ready(r.Context(), 2*time.Second, deps); err != nil {
			status, code = err.Error(), http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping scheduler...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	sched.Stop()

	zapLog.Info("Design generator stopped gracefully")
}
