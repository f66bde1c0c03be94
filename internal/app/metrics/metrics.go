package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var latencyBuckets = []float64{
	0.001, // 1ms
	0.005, // 5ms
	0.01,  // 10ms
	0.025, // 25ms
	0.05,  // 50ms
	0.1,   // 100ms
	0.25,  // 250ms
	0.5,   // 500ms
	1.0,   // 1s
	2.5,   // 2.5s
	5.0,   // 5s
}

var (
	// RedeemDuration tracks the latency of coupon redemptions
	RedeemDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rewards_redeem_duration_seconds",
			Help:    "Duration of coupon redemption requests in seconds",
			Buckets: latencyBuckets,
		},
		[]string{"status"}, // success, replayed, rejected or failure
	)

	// ValidationFailures counts coupon validation failures by error code
	ValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewards_coupon_validation_failures_total",
			Help: "Coupon validation failures by error code",
		},
		[]string{"code"},
	)

	// UsageConflicts counts lost compare-and-swap attempts on coupon usage
	UsageConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rewards_coupon_usage_conflicts_total",
			Help: "Optimistic concurrency conflicts while recording coupon usage",
		},
	)

	// TicketsMinted counts raffle tickets created by source type
	TicketsMinted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewards_tickets_minted_total",
			Help: "Raffle tickets minted by source type",
		},
		[]string{"source"},
	)

	// DrawDuration tracks the latency of raffle draws
	DrawDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rewards_draw_duration_seconds",
			Help:    "Duration of raffle winner selection in seconds",
			Buckets: latencyBuckets,
		},
		[]string{"status"},
	)
)

func RecordRedeemDuration(status string, duration float64) {
	RedeemDuration.WithLabelValues(status).Observe(duration)
}

func RecordValidationFailure(code string) {
	ValidationFailures.WithLabelValues(code).Inc()
}

func RecordUsageConflict() {
	UsageConflicts.Inc()
}

func RecordTicketsMinted(source string, count int) {
	TicketsMinted.WithLabelValues(source).Add(float64(count))
}

func RecordDrawDuration(status string, duration float64) {
	DrawDuration.WithLabelValues(status).Observe(duration)
}
