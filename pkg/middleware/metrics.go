// Package middleware provides the HTTP middleware shared by the services:
// request IDs, Prometheus instrumentation, CORS, rate limiting and request
// timeouts.
package middleware

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/metrics"
)

// routes are the paths reported as metric labels. Anything else is
// reported as "other" to keep label cardinality bounded.
var routes = map[string]bool{
	"/api/v1/search":              true,
	"/api/v1/parse":               true,
	"/api/v1/cache/stats":         true,
	"/api/v1/cache/invalidate":    true,
	"/api/v1/analytics":           true,
	"/api/v1/analytics/snapshots": true,
	"/health/live":                true,
	"/health/ready":               true,
	"/metrics":                    true,
}

// Metrics records request count by status, latency and in-flight requests,
// labelled by route.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		var byRoute sync.Map
		instrumented := func(route string) http.Handler {
			if h, ok := byRoute.Load(route); ok {
				return h.(http.Handler)
			}
			labels := prometheus.Labels{"path": route}
			h := promhttp.InstrumentHandlerCounter(
				m.HTTPRequestsTotal.MustCurryWith(labels),
				promhttp.InstrumentHandlerDuration(m.HTTPRequestDuration.MustCurryWith(labels), next),
			)
			actual, _ := byRoute.LoadOrStore(route, h)
			return actual.(http.Handler)
		}
		return promhttp.InstrumentHandlerInFlight(m.HTTPRequestsInFlight,
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				instrumented(normalizePath(r.URL.Path)).ServeHTTP(w, r)
			}))
	}
}

func normalizePath(path string) string {
	if routes[path] {
		return path
	}
	if axis, ok := strings.CutPrefix(path, "/api/v1/meta/"); ok && axis != "" && !strings.Contains(axis, "/") {
		return "/api/v1/meta/{axis}"
	}
	return "other"
}
