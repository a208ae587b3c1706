package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/metrics"
)

// RateLimit rejects requests with 429 once limiter runs out of tokens.
// Health probes are never limited. m may be nil.
func RateLimit(limiter *rate.Limiter, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") {
				next.ServeHTTP(w, r)
				return
			}
			if !limiter.Allow() {
				if m != nil {
					m.RateLimitedTotal.Inc()
				}
				retry := 1
				if l := float64(limiter.Limit()); l > 0 && l < 1 {
					retry = int(math.Ceil(1 / l))
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
