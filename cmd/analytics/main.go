// Command analytics consumes the search events published by the searcher,
// aggregates them in memory and serves the result at GET /api/v1/analytics.
// Aggregates are snapshotted to PostgreSQL periodically and listed at
// GET /api/v1/analytics/snapshots.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/postgres"
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
	slog.Info("starting analytics service", "port", cfg.Analytics.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	agg := analytics.NewAggregator(cfg.Analytics.TopQueries)
	checker := health.NewChecker(5 * time.Second)

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents, agg.Consume)
	defer consumer.Close()
	go consumer.Run(ctx)
	slog.Info("consuming search events",
		"topic", cfg.Kafka.Topics.SearchEvents,
		"group", cfg.Kafka.ConsumerGroup,
	)
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		if err := kafka.Ping(ctx, cfg.Kafka.Brokers); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("lag %d", consumer.Lag())}
	})

	// Snapshots are optional: without PostgreSQL only live stats are served.
	var snapshots analytics.SnapshotLister
	db, err := postgres.Open(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, snapshots disabled", "error", err)
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not connected"}
		})
	} else {
		defer db.Close()
		store := aggregator.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to create snapshot schema", "error", err)
			os.Exit(1)
		}
		snapshotter := &aggregator.Snapshotter{
			Store:     store,
			Source:    agg,
			Interval:  cfg.Analytics.SnapshotInterval,
			Retention: cfg.Analytics.Retention,
		}
		go snapshotter.Run(ctx)
		snapshots = store
		checker.Register("postgres", health.Ping(db.Ping, health.StatusDegraded))
	}

	h := analytics.NewHandler(agg, snapshots)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", h.Snapshots)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Analytics.Port),
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

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}
