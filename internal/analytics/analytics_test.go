package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		fallback  bool
		expr      string
		meta      string
		totalHits int
		want      EventType
	}{
		{"fallback", true, "", "", 3, EventFallback},
		{"meta only", false, "", "tag", 0, EventMeta},
		{"meta with expression", false, "is:Class", "tag", 2, EventSearch},
		{"zero", false, "is:Class", "", 0, EventZeroResult},
		{"hits", false, "is:Class", "", 4, EventSearch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.fallback, tt.expr, tt.meta, tt.totalHits))
		})
	}
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator(2)
	agg.Record(SearchEvent{Type: EventSearch, Query: "is:class", Types: []string{"Class"}, TotalHits: 3, LatencyMs: 2})
	agg.Record(SearchEvent{Type: EventSearch, Query: " IS:CLASS ", Types: []string{"Class"}, TotalHits: 3, LatencyMs: 4, CacheHit: true})
	agg.Record(SearchEvent{Type: EventZeroResult, Query: "nothing", Types: []string{"Class", "Enum"}, LatencyMs: 6})
	agg.Record(SearchEvent{Type: EventFallback, Query: "foo(", Fallback: true, LatencyMs: 8})
	agg.Record(SearchEvent{Type: EventMeta, Query: "$tag", LatencyMs: 10})

	stats := agg.Stats()
	assert.Equal(t, int64(5), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(4), stats.CacheMisses)
	assert.Equal(t, int64(2), stats.ZeroResultCount)
	assert.Equal(t, int64(1), stats.FallbackCount)
	assert.Equal(t, int64(1), stats.MetaCount)
	assert.InDelta(t, 6.0, stats.AvgLatencyMs, 1e-9)
	assert.Equal(t, int64(6), stats.P50LatencyMs)
	assert.Equal(t, int64(10), stats.P99LatencyMs)

	require.Len(t, stats.TopQueries, 2)
	assert.Equal(t, QueryCount{Query: "is:class", Count: 2}, stats.TopQueries[0])
	assert.Equal(t, []QueryCount{{Query: "foo(", Count: 1}, {Query: "nothing", Count: 1}}, stats.ZeroResultQueries)
	assert.Equal(t, []QueryCount{{Query: "foo(", Count: 1}}, stats.FallbackQueries)
	assert.Equal(t, []QueryCount{{Query: "Class", Count: 3}, {Query: "Enum", Count: 1}}, stats.TopTypes)
}

func TestAggregatorLatencyWindow(t *testing.T) {
	agg := NewAggregator(1)
	for i := 0; i < latencyWindow+10; i++ {
		agg.Record(SearchEvent{Type: EventSearch, Query: "q", LatencyMs: 1})
	}
	agg.mu.RLock()
	n := len(agg.latencies)
	agg.mu.RUnlock()
	assert.Equal(t, latencyWindow, n)
}

func TestConsume(t *testing.T) {
	agg := NewAggregator(5)
	require.NoError(t, agg.Consume(context.Background(), SearchEvent{Type: EventSearch, Query: "part", TotalHits: 1}))
	assert.Equal(t, int64(1), agg.Stats().TotalSearches)
}

type fakeSnapshots struct {
	snapshots []AggregatedStats
	err       error
	limit     int
}

func (f *fakeSnapshots) ListSnapshots(ctx context.Context, limit int) ([]AggregatedStats, error) {
	f.limit = limit
	return f.snapshots, f.err
}

func TestHandler(t *testing.T) {
	agg := NewAggregator(5)
	agg.Record(SearchEvent{Type: EventSearch, Query: "part", TotalHits: 1})
	store := &fakeSnapshots{snapshots: []AggregatedStats{{TotalSearches: 7}}}
	h := NewHandler(agg, store)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalSearches)

	rec = httptest.NewRecorder()
	h.Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots?limit=3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, store.limit)
	var snaps []AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snaps))
	assert.Equal(t, int64(7), snaps[0].TotalSearches)

	rec = httptest.NewRecorder()
	h.Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	store.err = errors.New("db down")
	rec = httptest.NewRecorder()
	h.Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	NewHandler(agg, nil).Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
