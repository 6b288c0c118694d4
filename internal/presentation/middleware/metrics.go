package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	opsRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vesting_indexer_ops_requests_total",
			Help: "Ops server requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	opsRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vesting_indexer_ops_request_duration_seconds",
			Help:    "Ops server request duration in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"method", "route"},
	)
)

// Metrics records request counts and latency per matched route
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			route := routeLabel(r)
			opsRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.status)).Inc()
			opsRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// routeLabel prefers the pattern chi matched; the route context is filled
// in by the router after this middleware has been entered
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return normalizePath(r.URL.Path)
}

// opsPaths are the only routes the ops server serves
var opsPaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/live":    true,
	"/status":  true,
	"/metrics": true,
}

// normalizePath folds unknown paths into one label to bound cardinality
func normalizePath(path string) string {
	if opsPaths[path] {
		return path
	}
	return "other"
}
