// Package metrics provides Prometheus metrics for opsboard.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "opsboard"

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)
)

// Auth metrics
var (
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Registration and login attempts by outcome",
		},
		[]string{"action", "outcome"},
	)
)

// Store metrics
var (
	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "query_duration_seconds",
			Help:      "Record store call latency in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"op"},
	)

	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Record store calls that returned an error",
		},
		[]string{"op"},
	)
)

// ObserveStore records one store call. Use it deferred with a pointer to the named error result.
func ObserveStore(op string, start time.Time, err *error) {
	StoreQueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil && *err != nil {
		StoreErrorsTotal.WithLabelValues(op).Inc()
	}
}

// RecordAuth counts an auth attempt, e.g. RecordAuth("login", "invalid_credentials").
func RecordAuth(action, outcome string) {
	AuthAttemptsTotal.WithLabelValues(action, outcome).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
