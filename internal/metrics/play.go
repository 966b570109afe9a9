package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	playTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "play_requests_total",
			Help: "Total play requests by result and outcome",
		},
		[]string{"result", "outcome"},
	)

	playDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "play_request_duration_ms",
			Help:    "Play request duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result", "outcome"},
	)
)

// RecordPlay records business metrics for a settle call.
// result is "success", "success_idempotent" or "fail"; outcome is win/loss/tie.
func RecordPlay(result, outcome string, started time.Time) {
	out := strings.ToLower(outcome)
	playTotal.WithLabelValues(result, out).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	playDuration.WithLabelValues(result, out).Observe(durMs)
}
