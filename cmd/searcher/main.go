// Command searcher serves the search API over the record database: query
// search, axis metadata, parse inspection and cache control.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/searcher/loader"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/blobstore"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"database_source", cfg.Database.Source,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics, err := metrics.StartServer(cfg.Metrics.Port)
		if err != nil {
			slog.Error("failed to start metrics server", "error", err)
			os.Exit(1)
		}
		defer shutdownMetrics(context.Background())
	}

	source, err := blobstore.FromConfig(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to configure database source", "error", err)
		os.Exit(1)
	}
	databases := loader.New(source, loader.Config{
		FetchTimeout: cfg.Database.FetchTimeout,
		Retry:        resilience.RetryConfig{MaxAttempts: cfg.Database.MaxRetries},
	}, m)
	go func() {
		if _, err := databases.Get(ctx); err != nil {
			slog.Warn("database preload failed, retrying on first request", "error", err)
		}
	}()

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis, m)
			slog.Info("search cache enabled",
				"addr", cfg.Redis.Addr,
				"ttl", cfg.Redis.CacheTTL,
			)
		}
	}

	opts := handler.Options{
		Cache:        queryCache,
		Metrics:      m,
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
	}
	var events *collector.BatchCollector
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer producer.Close()
		events = collector.NewBatchCollector(producer, collector.Config{
			BatchSize:     cfg.Analytics.BatchSize,
			FlushInterval: cfg.Analytics.FlushInterval,
		}, m)
		events.Start(ctx)
		opts.Tracker = events
		slog.Info("search event publishing enabled", "topic", cfg.Kafka.Topics.SearchEvents)
	}

	checker := health.NewChecker(5 * time.Second)
	checker.Register("database", func(ctx context.Context) health.ComponentHealth {
		db, ok := databases.Loaded()
		if !ok {
			return health.ComponentHealth{Status: health.StatusDown, Message: "not loaded"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d bytes, checksum %s", db.Size(), db.Checksum()),
		}
	})
	switch {
	case !cfg.Redis.Enabled:
		checker.Register("redis", health.Disabled)
	case redisClient == nil:
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not connected"}
		})
	default:
		checker.Register("redis", health.Ping(redisClient.Ping, health.StatusDegraded))
	}
	if cfg.Kafka.Enabled {
		checker.Register("kafka", health.Ping(func(ctx context.Context) error {
			return kafka.Ping(ctx, cfg.Kafka.Brokers)
		}, health.StatusDegraded))
	} else {
		checker.Register("kafka", health.Disabled)
	}

	h := handler.New(databases, opts)
	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.RequestTimeout)(chain)
	if cfg.RateLimit.Enabled {
		limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
		chain = middleware.RateLimit(limiter, m)(chain)
	}
	if len(cfg.Server.AllowOrigins) > 0 {
		chain = middleware.CORS(cfg.Server.AllowOrigins)(chain)
	}
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	if events != nil {
		events.Close()
	}
	slog.Info("search service stopped")
}
