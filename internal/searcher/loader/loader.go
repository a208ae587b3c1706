// Package loader fetches and decodes the record database once per process.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/database"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/blobstore"
	apperrors "github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/resilience"
)

// Config controls how each fetch is attempted.
type Config struct {
	FetchTimeout time.Duration
	Retry        resilience.RetryConfig
}

// Loader is a deferred database value. The first Get starts the fetch;
// concurrent callers wait for the same fetch. A decoded database is kept for
// the life of the process, and so is a decode failure, since refetching the
// same bytes cannot fix it. Fetch failures are retried with backoff and are
// not kept: a later Get tries again.
type Loader struct {
	source  blobstore.Source
	cfg     Config
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger

	mu    sync.RWMutex
	db    *database.Database
	fatal error
}

// New creates a Loader reading from source. m may be nil.
func New(source blobstore.Source, cfg Config, m *metrics.Metrics) *Loader {
	return &Loader{
		source:  source,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "db-loader"),
	}
}

// Get returns the database, loading it on first use. Errors wrap
// ErrDatabaseUnavailable for fetch failures and ErrCorruptDatabase for
// decode failures.
func (l *Loader) Get(ctx context.Context) (*database.Database, error) {
	if db, err, done := l.settled(); done {
		return db, err
	}
	v, err, _ := l.group.Do("db", func() (any, error) {
		if db, err, done := l.settled(); done {
			return db, err
		}
		return l.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*database.Database), nil
}

// Loaded returns the database if it has been loaded, without fetching.
func (l *Loader) Loaded() (*database.Database, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.db, l.db != nil
}

func (l *Loader) settled() (*database.Database, error, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.db != nil {
		return l.db, nil, true
	}
	if l.fatal != nil {
		return nil, l.fatal, true
	}
	return nil, nil, false
}

func (l *Loader) load(ctx context.Context) (*database.Database, error) {
	start := time.Now()
	var (
		dataMu sync.Mutex
		data   []byte
	)
	err := resilience.Retry(ctx, "fetch database", l.cfg.Retry, func() error {
		return resilience.WithTimeout(ctx, l.cfg.FetchTimeout, "fetch database", func(ctx context.Context) error {
			b, err := l.source.Fetch(ctx)
			if err != nil {
				if errors.Is(err, blobstore.ErrNotFound) {
					return resilience.Permanent(err)
				}
				return err
			}
			dataMu.Lock()
			data = b
			dataMu.Unlock()
			return nil
		})
	})
	if err != nil {
		l.observe("unavailable", start)
		l.logger.Error("database fetch failed", "error", err)
		return nil, fmt.Errorf("%w: %w", apperrors.ErrDatabaseUnavailable, err)
	}

	dataMu.Lock()
	defer dataMu.Unlock()
	db, err := database.Decode(data)
	if err != nil {
		l.observe("corrupt", start)
		fatal := fmt.Errorf("%w: %w", apperrors.ErrCorruptDatabase, err)
		l.mu.Lock()
		l.fatal = fatal
		l.mu.Unlock()
		l.logger.Error("database rejected", "bytes", len(data), "error", err)
		return nil, fatal
	}

	l.mu.Lock()
	l.db = db
	l.mu.Unlock()
	l.observe("ok", start)
	if l.metrics != nil {
		for _, typ := range db.Types() {
			l.metrics.DatabaseRows.WithLabelValues(typ).Set(float64(db.Len(typ)))
		}
	}
	l.logger.Info("database loaded",
		"bytes", db.Size(),
		"types", len(db.Types()),
		"checksum", db.Checksum(),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return db, nil
}

func (l *Loader) observe(status string, start time.Time) {
	if l.metrics == nil {
		return
	}
	l.metrics.DatabaseLoadsTotal.WithLabelValues(status).Inc()
	l.metrics.DatabaseLoadDuration.Observe(time.Since(start).Seconds())
}
