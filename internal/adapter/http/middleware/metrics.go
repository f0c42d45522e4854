package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iho/coinledger/internal/infrastructure/metrics"
)

// Metrics records request counts and durations.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			path := routePattern(r)
			m.HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			m.HTTPDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// routePattern prefers chi's matched pattern and falls back to normalizePath.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return normalizePath(r.URL.Path)
}

// collections whose next path segment is an identifier
var idCollections = map[string]bool{
	"users":  true,
	"rounds": true,
}

// fixed segments that follow a collection without being identifiers
var staticSegments = map[string]bool{
	"close-expired": true,
}

// normalizePath replaces identifiers in URL paths to avoid high cardinality.
// /api/v1/rounds/01ABC/draw -> /api/v1/rounds/:id/draw
func normalizePath(path string) string {
	segments := strings.Split(path, "/")
	for i := 1; i < len(segments); i++ {
		if !idCollections[segments[i-1]] {
			continue
		}
		if segments[i] == "" || staticSegments[segments[i]] {
			continue
		}
		segments[i] = ":id"
	}
	return strings.Join(segments, "/")
}
