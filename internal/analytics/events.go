package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventFallback   EventType = "fallback"
	EventZeroResult EventType = "zero_result"
	EventMeta       EventType = "meta"
	EventError      EventType = "error"
)

// SearchEvent is published by the searcher for every answered query and
// consumed by the aggregator.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Expr      string    `json:"expr,omitempty"`
	Types     []string  `json:"types,omitempty"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Fallback  bool      `json:"fallback"`
	Checksum  string    `json:"checksum,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Classify picks the event type from the outcome of a query. A query that
// only asked for a metadata listing is a meta event.
func Classify(fallback bool, expr, meta string, totalHits int) EventType {
	switch {
	case fallback:
		return EventFallback
	case meta != "" && expr == "":
		return EventMeta
	case totalHits == 0:
		return EventZeroResult
	}
	return EventSearch
}
