package middleware

import (
	"net/http"
	"strconv"
	"time"

	"fleetshare/pkg/observability"
)

// Metrics records request counts and latencies per method/path/status.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     200,
			}

			next.ServeHTTP(wrapped, r)

			status := strconv.Itoa(wrapped.statusCode)
			observability.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			observability.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
		})
	}
}
