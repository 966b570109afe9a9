package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	withdrawTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "withdraw_requests_total",
			Help: "Total withdrawal requests by final status",
		},
		[]string{"status"},
	)

	withdrawDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "withdraw_request_duration_ms",
			Help:    "End to end withdrawal duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(50, 2, 12),
		},
		[]string{"status"},
	)

	reconcileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "withdraw_reconcile_total",
			Help: "Timed out withdrawals resolved by the reconciler, by final status",
		},
		[]string{"status"},
	)
)

// RecordWithdraw records business metrics for a withdrawal call.
// status is the terminal state (confirmed/failed/timed_out) or "error".
func RecordWithdraw(status string, started time.Time) {
	withdrawTotal.WithLabelValues(status).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	withdrawDuration.WithLabelValues(status).Observe(durMs)
}

// RecordReconcile counts a timed out withdrawal resolved by the reconciler.
func RecordReconcile(status string) {
	reconcileTotal.WithLabelValues(status).Inc()
}
