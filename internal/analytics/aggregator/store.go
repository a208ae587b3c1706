// Package aggregator persists periodic snapshots of the analytics
// aggregator to PostgreSQL. Each snapshot keeps the full stats document and,
// in a child table, one row per ranked query so that query trends can be
// read with SQL.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS search_snapshots (
    id             BIGSERIAL PRIMARY KEY,
    captured_at    TIMESTAMPTZ NOT NULL,
    total_searches BIGINT NOT NULL,
    fallbacks      BIGINT NOT NULL,
    zero_results   BIGINT NOT NULL,
    stats          JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS search_snapshots_captured_at_idx
    ON search_snapshots (captured_at DESC);
CREATE TABLE IF NOT EXISTS search_snapshot_queries (
    snapshot_id BIGINT NOT NULL REFERENCES search_snapshots (id) ON DELETE CASCADE,
    ranking     TEXT NOT NULL,
    query       TEXT NOT NULL,
    count       BIGINT NOT NULL,
    PRIMARY KEY (snapshot_id, ranking, query)
);
`

// Rankings stored per snapshot.
const (
	RankingTop        = "top"
	RankingZeroResult = "zero_result"
	RankingFallback   = "fallback"
	RankingType       = "type"
)

type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "snapshot-store"),
	}
}

// EnsureSchema creates the snapshot tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating snapshot schema: %w", err)
	}
	return nil
}

// SaveSnapshot writes stats and its rankings in one transaction.
func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats, at time.Time) error {
	doc, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx,
			`INSERT INTO search_snapshots (captured_at, total_searches, fallbacks, zero_results, stats)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			at.UTC(), stats.TotalSearches, stats.FallbackCount, stats.ZeroResultCount, doc,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("inserting snapshot: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO search_snapshot_queries (snapshot_id, ranking, query, count) VALUES ($1, $2, $3, $4)`)
		if err != nil {
			return fmt.Errorf("preparing ranking insert: %w", err)
		}
		defer stmt.Close()
		for ranking, counts := range rankings(stats) {
			for _, qc := range counts {
				if _, err := stmt.ExecContext(ctx, id, ranking, qc.Query, qc.Count); err != nil {
					return fmt.Errorf("inserting %s ranking: %w", ranking, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("snapshot saved",
		"total_searches", stats.TotalSearches,
		"fallbacks", stats.FallbackCount,
		"zero_results", stats.ZeroResultCount,
	)
	return nil
}

func rankings(stats analytics.AggregatedStats) map[string][]analytics.QueryCount {
	return map[string][]analytics.QueryCount{
		RankingTop:        stats.TopQueries,
		RankingZeroResult: stats.ZeroResultQueries,
		RankingFallback:   stats.FallbackQueries,
		RankingType:       stats.TopTypes,
	}
}

// ListSnapshots returns up to limit snapshots, newest first. Rows whose
// document no longer decodes are skipped.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]analytics.AggregatedStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, stats FROM search_snapshots ORDER BY captured_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []analytics.AggregatedStats
	for rows.Next() {
		var (
			id  int64
			doc []byte
		)
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		var stats analytics.AggregatedStats
		if err := json.Unmarshal(doc, &stats); err != nil {
			s.logger.Warn("skipping undecodable snapshot", "id", id, "error", err)
			continue
		}
		snapshots = append(snapshots, stats)
	}
	return snapshots, rows.Err()
}

// Prune deletes snapshots captured before cutoff, with their rankings.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM search_snapshots WHERE captured_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("pruning snapshots: %w", err)
	}
	return res.RowsAffected()
}

// Snapshotter saves the aggregator's stats on every tick. A tick with no
// searches since the last save writes nothing.
type Snapshotter struct {
	Store     *Store
	Source    *analytics.Aggregator
	Interval  time.Duration
	Retention time.Duration

	lastTotal int64
	saved     bool
}

// Run saves until ctx is cancelled, then saves once more with a fresh
// context. Snapshots older than Retention are pruned after each save.
func (sn *Snapshotter) Run(ctx context.Context) {
	ticker := time.NewTicker(sn.Interval)
	defer ticker.Stop()
	logger := sn.Store.logger
	logger.Info("snapshotting started", "interval", sn.Interval, "retention", sn.Retention)
	for {
		select {
		case <-ticker.C:
			sn.tick(ctx)
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			sn.tick(final)
			cancel()
			return
		}
	}
}

func (sn *Snapshotter) tick(ctx context.Context) {
	stats := sn.Source.Stats()
	if sn.saved && stats.TotalSearches == sn.lastTotal {
		return
	}
	now := time.Now()
	if err := sn.Store.SaveSnapshot(ctx, stats, now); err != nil {
		sn.Store.logger.Error("snapshot failed", "error", err)
		return
	}
	sn.lastTotal, sn.saved = stats.TotalSearches, true

	if sn.Retention <= 0 {
		return
	}
	if n, err := sn.Store.Prune(ctx, now.Add(-sn.Retention)); err != nil {
		sn.Store.logger.Error("prune failed", "error", err)
	} else if n > 0 {
		sn.Store.logger.Info("old snapshots pruned", "deleted", n)
	}
}
