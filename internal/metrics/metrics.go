// Package metrics declares the Prometheus collectors exported by the server.
package metrics

import (
	"errors"
	"time"

	"github.com/hase-lab/accountd/internal/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountd_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "accountd_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	AccountOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountd_account_operations_total",
			Help: "Account operations by outcome.",
		},
		[]string{"operation", "result"},
	)

	SessionsCleanedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "accountd_sessions_cleaned_total",
			Help: "Expired or revoked sessions removed by the cleaner.",
		},
	)
)

// RecordHTTPRequest counts one served request and observes its latency.
func RecordHTTPRequest(method, route, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordOperation counts an account operation. The result label is "ok",
// the kind of a *common.Error, or "error" for anything else.
func RecordOperation(operation string, err error) {
	AccountOperationsTotal.WithLabelValues(operation, resultLabel(err)).Inc()
}

// RecordSessionsCleaned adds n removed sessions.
func RecordSessionsCleaned(n int64) {
	if n > 0 {
		SessionsCleanedTotal.Add(float64(n))
	}
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var ce *common.Error
	if errors.As(err, &ce) {
		return ce.Kind.String()
	}
	return "error"
}
