// Package collector provides a batch-oriented analytics event collector
// that accumulates search events in memory and flushes them to Kafka in bulk.
package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/resilience"
)

// Publisher writes a batch of events. *kafka.Producer implements it.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Config controls batching.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	// MaxBuffered caps the events held while the publisher is failing.
	// Defaults to three batches.
	MaxBuffered int
}

// BatchCollector accumulates search events and flushes them either when the
// batch reaches BatchSize or after FlushInterval. Publishing goes through a
// circuit breaker so that an unreachable broker is not retried on every
// flush.
type BatchCollector struct {
	publisher Publisher
	breaker   *resilience.Breaker
	metrics   *metrics.Metrics
	cfg       Config

	mu       sync.Mutex
	buffer   []kafka.Event
	flushMu  sync.Mutex
	kick     chan struct{}
	done     chan struct{}
	startOne sync.Once
	logger   *slog.Logger
}

// NewBatchCollector creates a BatchCollector. m may be nil.
func NewBatchCollector(publisher Publisher, cfg Config, m *metrics.Metrics) *BatchCollector {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.MaxBuffered <= 0 {
		cfg.MaxBuffered = cfg.BatchSize * 3
	}
	breaker := resilience.NewBreaker("analytics-publisher", resilience.BreakerConfig{
		OnStateChange: func(name string, _, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return &BatchCollector{
		publisher: publisher,
		breaker:   breaker,
		metrics:   m,
		cfg:       cfg,
		buffer:    make([]kafka.Event, 0, cfg.BatchSize),
		kick:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		logger:    slog.Default().With("component", "batch-collector"),
	}
}

// Start launches the background flush loop, which runs until ctx is
// cancelled and then flushes once more.
func (bc *BatchCollector) Start(ctx context.Context) {
	bc.startOne.Do(func() {
		go bc.run(ctx)
		bc.logger.Info("batch collector started",
			"batch_size", bc.cfg.BatchSize,
			"flush_interval", bc.cfg.FlushInterval,
		)
	})
}

func (bc *BatchCollector) run(ctx context.Context) {
	defer close(bc.done)
	ticker := time.NewTicker(bc.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			bc.Flush(ctx)
		case <-bc.kick:
			bc.Flush(ctx)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			bc.Flush(flushCtx)
			cancel()
			return
		}
	}
}

// Track buffers event without blocking. Reaching BatchSize wakes the flush
// loop.
func (bc *BatchCollector) Track(event analytics.SearchEvent) {
	bc.mu.Lock()
	bc.buffer = append(bc.buffer, kafka.Event{Key: string(event.Type), Value: event})
	full := len(bc.buffer) >= bc.cfg.BatchSize
	bc.mu.Unlock()

	if full {
		select {
		case bc.kick <- struct{}{}:
		default:
		}
	}
}

// Close waits for the flush loop started by Start to finish.
func (bc *BatchCollector) Close() {
	<-bc.done
}

// BufferLen returns the current number of buffered events.
func (bc *BatchCollector) BufferLen() int {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return len(bc.buffer)
}

// Flush publishes everything buffered. Failed events are put back at the
// front of the buffer; beyond MaxBuffered the oldest are dropped.
func (bc *BatchCollector) Flush(ctx context.Context) {
	bc.flushMu.Lock()
	defer bc.flushMu.Unlock()

	bc.mu.Lock()
	if len(bc.buffer) == 0 {
		bc.mu.Unlock()
		return
	}
	batch := bc.buffer
	bc.buffer = make([]kafka.Event, 0, bc.cfg.BatchSize)
	bc.mu.Unlock()

	err := bc.breaker.Do(ctx, func(ctx context.Context) error {
		return bc.publisher.PublishBatch(ctx, batch)
	})
	if err != nil {
		bc.logger.Error("batch flush failed",
			"batch_size", len(batch),
			"error", err,
		)
		bc.count("failed", len(batch))

		bc.mu.Lock()
		bc.buffer = append(batch, bc.buffer...)
		if over := len(bc.buffer) - bc.cfg.MaxBuffered; over > 0 {
			bc.buffer = bc.buffer[over:]
			bc.logger.Warn("buffer overflow, events dropped", "dropped", over)
			bc.count("dropped", over)
		}
		bc.mu.Unlock()
		return
	}

	bc.count("published", len(batch))
	bc.logger.Debug("batch flushed", "events", len(batch))
}

func (bc *BatchCollector) count(status string, n int) {
	if bc.metrics != nil {
		bc.metrics.AnalyticsEventsTotal.WithLabelValues(status).Add(float64(n))
	}
}
