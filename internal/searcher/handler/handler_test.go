package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/database/dbtest"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/searcher/loader"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/blobstore"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/resilience"
)

type recordingTracker struct {
	mu     sync.Mutex
	events []analytics.SearchEvent
}

func (r *recordingTracker) Track(event analytics.SearchEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingTracker) all() []analytics.SearchEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]analytics.SearchEvent(nil), r.events...)
}

func newTestServer(t *testing.T, src blobstore.Source, tracker EventTracker) *httptest.Server {
	t.Helper()
	l := loader.New(src, loader.Config{
		FetchTimeout: time.Second,
		Retry:        resilience.RetryConfig{MaxAttempts: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}, nil)
	opts := Options{
		Metrics:      metrics.NewWithRegistry(prometheus.NewRegistry()),
		DefaultLimit: 50,
		MaxResults:   100,
	}
	if tracker != nil {
		opts.Tracker = tracker
	}
	h := New(l, opts)
	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func resultNames(body map[string]any) []string {
	var out []string
	rows, _ := body["results"].([]any)
	for _, r := range rows {
		row := r.(map[string]any)
		name, _ := row["primary"].(string)
		if sec, _ := row["secondary"].(string); sec != "" {
			name += "." + sec
		}
		out = append(out, name)
	}
	return out
}

func TestSearch(t *testing.T) {
	tracker := &recordingTracker{}
	srv := newTestServer(t, blobstore.NewMemory(dbtest.Bytes(t)), tracker)

	status, body := getJSON(t, srv.URL+"/api/v1/search?q=is:class+!tag:deprecated")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"Instance", "Part"}, resultNames(body))
	assert.EqualValues(t, 2, body["total_hits"])
	assert.Nil(t, body["fallback"])

	events := tracker.all()
	require.Len(t, events, 1)
	assert.Equal(t, analytics.EventSearch, events[0].Type)
	assert.Equal(t, "is:class !tag:deprecated", events[0].Query)
	assert.Equal(t, 2, events[0].TotalHits)
	assert.NotEmpty(t, events[0].Checksum)
}

func TestSearchLimit(t *testing.T) {
	srv := newTestServer(t, blobstore.NewMemory(dbtest.Bytes(t)), nil)

	status, body := getJSON(t, srv.URL+"/api/v1/search?q=is:class&limit=1")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"Instance"}, resultNames(body))
	assert.EqualValues(t, 3, body["total_hits"])

	for _, bad := range []string{"0", "-1", "abc"} {
		status, body = getJSON(t, srv.URL+"/api/v1/search?q=is:class&limit="+bad)
		assert.Equal(t, http.StatusBadRequest, status, bad)
		assert.Contains(t, body["error"], "limit")
	}
}

func TestSearchMissingQuery(t *testing.T) {
	srv := newTestServer(t, blobstore.NewMemory(dbtest.Bytes(t)), nil)

	status, body := getJSON(t, srv.URL+"/api/v1/search")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "'q'")
}

func TestSearchFallsBackOnParseError(t *testing.T) {
	tracker := &recordingTracker{}
	srv := newTestServer(t, blobstore.NewMemory(dbtest.Bytes(t)), tracker)

	status, body := getJSON(t, srv.URL+"/api/v1/search?q=is:bogus")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["fallback"])
	perr, ok := body["parse_error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "unknown term 'is:bogus'", perr["message"])
	assert.EqualValues(t, 9, perr["column"])

	events := tracker.all()
	require.Len(t, events, 1)
	assert.Equal(t, analytics.EventFallback, events[0].Type)
	assert.True(t, events[0].Fallback)
}

func TestSearchDatabaseUnavailable(t *testing.T) {
	srv := newTestServer(t, blobstore.NewMemory(nil), nil)

	status, body := getJSON(t, srv.URL+"/api/v1/search?q=is:class")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "database unavailable", body["error"])
	assert.Equal(t, "database_unavailable", body["code"])
}

func TestSearchCorruptDatabase(t *testing.T) {
	buf := dbtest.Bytes(t)
	srv := newTestServer(t, blobstore.NewMemory(buf[:len(buf)-1]), nil)

	status, body := getJSON(t, srv.URL+"/api/v1/search?q=is:class")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "corrupt_database", body["code"])
}

func TestMeta(t *testing.T) {
	srv := newTestServer(t, blobstore.NewMemory(dbtest.Bytes(t)), nil)

	status, body := getJSON(t, srv.URL+"/api/v1/meta/type")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "type", body["axis"])
	assert.Contains(t, body["values"], "Class")

	status, body = getJSON(t, srv.URL+"/api/v1/meta/bogus")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, `unknown axis "bogus"`, body["error"])
	assert.Equal(t, "not_found", body["code"])
}

func TestParse(t *testing.T) {
	srv := newTestServer(t, blobstore.NewMemory(dbtest.Bytes(t)), nil)

	status, body := getJSON(t, srv.URL+"/api/v1/parse?q=is:class+limit:2")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "is:class limit:2", body["query"])
	assert.NotNil(t, body["expr"])
	assert.Equal(t, []any{"Class"}, body["types"])
	directives, ok := body["directives"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, directives["limit"])

	status, body = getJSON(t, srv.URL+"/api/v1/parse?q=limit:0")
	assert.Equal(t, http.StatusBadRequest, status)
	perr, ok := body["parse_error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "invalid limit 0", perr["message"])
}

func TestParseWithoutDatabase(t *testing.T) {
	srv := newTestServer(t, blobstore.NewMemory(nil), nil)

	status, body := getJSON(t, srv.URL+"/api/v1/parse?q=is:function")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"Function"}, body["types"])
}

func TestCacheEndpointsWhenDisabled(t *testing.T) {
	srv := newTestServer(t, blobstore.NewMemory(dbtest.Bytes(t)), nil)

	status, body := getJSON(t, srv.URL+"/api/v1/cache/stats")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "disabled", body["status"])

	resp, err := http.Post(srv.URL+"/api/v1/cache/invalidate", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestParserIsReusedPerDatabase(t *testing.T) {
	l := loader.New(blobstore.NewMemory(dbtest.Bytes(t)), loader.Config{FetchTimeout: time.Second}, nil)
	h := New(l, Options{})
	db, err := l.Get(context.Background())
	require.NoError(t, err)

	assert.Same(t, h.parserFor(db), h.parserFor(db))
	assert.Same(t, h.parserFor(nil), h.parserFor(nil))
	assert.NotSame(t, h.parserFor(db), h.parserFor(nil))
}
