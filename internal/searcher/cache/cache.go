package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/redis"
)

const keyPrefix = "search:"

// Key identifies a cached result: the database it was computed against, the
// normalized query and the effective limit.
type Key struct {
	Checksum string
	Query    string
	Limit    int
}

// KeyFor builds the key of plan. Plans that parse to the same expression and
// directives share a key; fallback plans are keyed on their raw text.
func KeyFor(checksum string, plan *parser.QueryPlan, fallback bool, limit int) Key {
	return Key{Checksum: checksum, Query: Normalize(plan, fallback), Limit: limit}
}

// Normalize returns the canonical text of plan.
func Normalize(plan *parser.QueryPlan, fallback bool) string {
	if fallback {
		return "fallback|" + strings.TrimSpace(plan.RawQuery)
	}
	directives, _ := json.Marshal(plan.Directives)
	return plan.String() + "|" + string(directives)
}

func (k Key) String() string {
	raw := fmt.Sprintf("%s|%s|limit=%d", k.Checksum, k.Query, k.Limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

type QueryCache struct {
	client  *pkgredis.Client
	cfg     config.RedisConfig
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a QueryCache. m may be nil.
func New(client *pkgredis.Client, cfg config.RedisConfig, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		client:  client,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *QueryCache) Get(ctx context.Context, key Key) (*executor.SearchResult, bool) {
	k := key.String()
	data, found, err := c.client.Load(ctx, k)
	if err != nil || !found {
		if err != nil {
			c.logger.Error("cache get failed", "key", k, "error", err)
		}
		c.miss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", k, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "query", key.Query, "key", k)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, key Key, result *executor.SearchResult) {
	k := key.String()
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", k, "error", err)
		return
	}
	if err := c.client.Store(ctx, k, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", k, "error", err)
	}
}

// GetOrCompute returns the cached result for key, or computes and stores it.
// Concurrent misses on the same key share one computation.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key Key,
	computeFn func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, key); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(key.String(), func() (any, error) {
		if result, ok := c.Get(ctx, key); ok {
			return result, nil
		}
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.DeletePrefix(ctx, keyPrefix)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
