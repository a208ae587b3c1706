package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/database"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/grammar"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/searcher/expr"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/tracing"
)

// DatabaseProvider returns the loaded database. *loader.Loader implements it.
type DatabaseProvider interface {
	Get(ctx context.Context) (*database.Database, error)
}

// EventTracker receives one event per answered search.
// *collector.BatchCollector implements it.
type EventTracker interface {
	Track(event analytics.SearchEvent)
}

// Options carries the optional collaborators of a Handler. Nil fields
// disable the corresponding feature.
type Options struct {
	Cache        *cache.QueryCache
	Tracker      EventTracker
	Metrics      *metrics.Metrics
	DefaultLimit int
	MaxResults   int
}

type Handler struct {
	databases    DatabaseProvider
	executor     *executor.Executor
	cache        *cache.QueryCache
	tracker      EventTracker
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger

	mu       sync.Mutex
	parsers  map[string]*parser.Parser
	fallback *parser.Parser
}

func New(databases DatabaseProvider, opts Options) *Handler {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 50
	}
	if opts.MaxResults < opts.DefaultLimit {
		opts.MaxResults = opts.DefaultLimit
	}
	return &Handler{
		databases:    databases,
		executor:     executor.New(),
		cache:        opts.Cache,
		tracker:      opts.Tracker,
		metrics:      opts.Metrics,
		defaultLimit: opts.DefaultLimit,
		maxResults:   opts.MaxResults,
		logger:       slog.Default().With("component", "search-handler"),
		parsers:      make(map[string]*parser.Parser),
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/meta/{axis}", h.Meta)
	mux.HandleFunc("GET /api/v1/parse", h.Parse)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// parserFor returns the parser compiled for the types of db. Compiling the
// grammar is done once per database.
func (h *Handler) parserFor(db *database.Database) *parser.Parser {
	h.mu.Lock()
	defer h.mu.Unlock()
	if db == nil {
		if h.fallback == nil {
			h.fallback = parser.New(database.DefaultTypeSets())
		}
		return h.fallback
	}
	p, ok := h.parsers[db.Checksum()]
	if !ok {
		p = parser.New(db.TypeSets())
		h.parsers[db.Checksum()] = p
	}
	return p
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracing.Start(r.Context(), "search", middleware.GetRequestID(r.Context()))
	log := logger.FromContext(ctx)
	defer span.Finish(ctx, log)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, h.maxResults)
	}

	_, loadSpan := tracing.Start(ctx, "load_database", "")
	db, err := h.databases.Get(ctx)
	loadSpan.End()
	if err != nil {
		log.Error("database unavailable", "error", err)
		h.outcome(metrics.OutcomeError)
		h.writeAppError(w, err, "database unavailable")
		return
	}

	_, parseSpan := tracing.Start(ctx, "parse", "")
	p := h.parserFor(db)
	plan, err := p.Parse(query)
	var parseErr *grammar.Error
	fallback := false
	if err != nil {
		if !errors.As(err, &parseErr) {
			parseSpan.End()
			log.Error("parser failed", "query", query, "error", err)
			h.writeError(w, http.StatusInternalServerError, "search failed")
			return
		}
		if h.metrics != nil {
			h.metrics.ParseFailuresTotal.Inc()
		}
		log.Debug("query did not parse, falling back", "query", query, "error", parseErr)
		plan = p.Fallback(query)
		fallback = true
	}
	parseSpan.SetAttr("fallback", fallback)
	parseSpan.End()

	compute := func() (*executor.SearchResult, error) {
		_, execSpan := tracing.Start(ctx, "execute", "")
		defer execSpan.End()
		result, err := h.executor.Execute(ctx, db, plan, limit)
		if err != nil {
			return nil, err
		}
		execSpan.SetAttr("hits", result.TotalHits)
		result.Fallback = fallback
		result.ParseError = parseErr
		return result, nil
	}

	var result *executor.SearchResult
	cacheHit := false
	if h.cache != nil {
		key := cache.KeyFor(db.Checksum(), plan, fallback, limit)
		result, cacheHit, err = h.cache.GetOrCompute(ctx, key, compute)
	} else {
		result, err = compute()
	}
	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		h.outcome(metrics.OutcomeError)
		if errors.Is(err, context.DeadlineExceeded) {
			h.writeError(w, http.StatusGatewayTimeout, "search timed out")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	latency := time.Since(start)
	log.Info("search completed",
		"query", query,
		"expr", result.Expr,
		"hits", result.TotalHits,
		"returned", len(result.Results),
		"fallback", fallback,
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)

	eventType := analytics.Classify(fallback, result.Expr, result.Meta, result.TotalHits)
	h.observe(eventType, cacheHit, latency, result.TotalHits)
	if h.tracker != nil {
		var types []string
		if plan.Expr != nil {
			types = expr.Types(plan.Expr)
		}
		h.tracker.Track(analytics.SearchEvent{
			Type:      eventType,
			Query:     query,
			Expr:      result.Expr,
			Types:     types,
			TotalHits: result.TotalHits,
			Returned:  len(result.Results),
			LatencyMs: latency.Milliseconds(),
			CacheHit:  cacheHit,
			Fallback:  fallback,
			Checksum:  db.Checksum(),
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) observe(eventType analytics.EventType, cacheHit bool, latency time.Duration, hits int) {
	if h.metrics == nil {
		return
	}
	switch eventType {
	case analytics.EventFallback:
		h.outcome(metrics.OutcomeFallback)
	case analytics.EventZeroResult:
		h.outcome(metrics.OutcomeZeroResult)
	default:
		h.outcome(metrics.OutcomeHit)
	}
	status := "miss"
	if cacheHit {
		status = "hit"
	} else if h.cache == nil {
		status = "disabled"
	}
	h.metrics.SearchLatency.WithLabelValues(status).Observe(latency.Seconds())
	h.metrics.SearchResultsCount.Observe(float64(hits))
}

func (h *Handler) outcome(outcome string) {
	if h.metrics != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	}
}

// Meta lists the values of one metadata axis.
func (h *Handler) Meta(w http.ResponseWriter, r *http.Request) {
	axis := r.PathValue("axis")
	db, err := h.databases.Get(r.Context())
	if err != nil {
		h.writeAppError(w, err, "database unavailable")
		return
	}
	values, ok := db.Listing(axis)
	if !ok {
		h.writeAppError(w, apperrors.Newf(apperrors.ErrNotFound, http.StatusNotFound, "unknown axis %q", axis), "")
		return
	}
	if values == nil {
		values = []string{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"axis":   axis,
		"values": values,
	})
}

// Parse returns the expression tree and directives of a query without
// evaluating it. The types of the loaded database are used when it is
// available, the standard types otherwise.
func (h *Handler) Parse(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	db, _ := h.databases.Get(r.Context())
	plan, err := h.parserFor(db).Parse(query)
	if err != nil {
		var parseErr *grammar.Error
		if errors.As(err, &parseErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":       parseErr.Error(),
				"parse_error": parseErr,
			})
			return
		}
		h.writeError(w, http.StatusInternalServerError, "parse failed")
		return
	}
	var types []string
	if plan.Expr != nil {
		types = expr.Types(plan.Expr)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"query":      plan.RawQuery,
		"expr":       plan.Expr,
		"text":       plan.String(),
		"types":      types,
		"directives": plan.Directives,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError maps err to its HTTP status. message replaces the error text
// unless err is an *AppError, whose own message is shown.
func (h *Handler) writeAppError(w http.ResponseWriter, err error, message string) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{
		"error": message,
		"code":  apperrors.Code(err),
	})
}
