package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/database"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/grammar"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/searcher/expr"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/searcher/ranker"
)

type SearchResult struct {
	Query      string             `json:"query"`
	Expr       string             `json:"expr,omitempty"`
	TotalHits  int                `json:"total_hits"`
	Results    []ranker.ScoredRow `json:"results"`
	Literals   []string           `json:"literals,omitempty"`
	Redirect   string             `json:"redirect,omitempty"`
	Meta       string             `json:"meta,omitempty"`
	Listing    []string           `json:"listing,omitempty"`
	Fallback   bool               `json:"fallback,omitempty"`
	ParseError *grammar.Error     `json:"parse_error,omitempty"`
}

type Executor struct {
	logger *slog.Logger
}

func New() *Executor {
	return &Executor{
		logger: slog.Default().With("component", "query-executor"),
	}
}

// Execute evaluates plan against db. Only the tables of the types named by
// the expression are scanned, in the order the types first appear. The
// plan's limit directive takes precedence over limit.
func (e *Executor) Execute(ctx context.Context, db *database.Database, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	start := time.Now()
	d := plan.Directives
	result := &SearchResult{
		Query:    plan.RawQuery,
		Results:  []ranker.ScoredRow{},
		Literals: d.Literals,
		Redirect: d.Redirect,
		Meta:     d.Meta,
	}
	if d.Meta != "" {
		result.Listing, _ = db.Listing(d.Meta)
	}
	if plan.Expr == nil {
		return result, nil
	}
	result.Expr = plan.Expr.String()

	seen := roaring64.New()
	var rows []ranker.ScoredRow
	for _, typ := range expr.Types(plan.Expr) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scanning %s rows: %w", typ, err)
		}
		db.Scan(typ, func(row database.Row) bool {
			score := Score(row, plan.Expr)
			if score <= 0 || !seen.CheckedAdd(row.Key()) {
				return true
			}
			rows = append(rows, ranker.NewScoredRow(row, score))
			return true
		})
	}

	if d.Limit > 0 {
		limit = d.Limit
	}
	result.TotalHits = len(rows)
	result.Results = ranker.Rank(rows, d.Sort, limit)

	e.logger.Debug("query executed",
		"query", plan.RawQuery,
		"expr", result.Expr,
		"hits", result.TotalHits,
		"returned", len(result.Results),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}
