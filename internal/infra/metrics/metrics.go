package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookVerifyTotal counts payment notification verifications.
	// result: ok|fail
	// reason (fail only): bad_signature|malformed|unknown
	WebhookVerifyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_verify_total",
			Help: "Count of payment notification verifications by result and reason.",
		},
		[]string{"result", "reason"},
	)

	// RedemptionTotal counts redemption attempts.
	// result: success|failure
	// reason (failure only): the recorded failure reason, e.g. NOT_REDEEMABLE
	RedemptionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_redemption_total",
			Help: "Count of redemption attempts by result and failure reason.",
		},
		[]string{"result", "reason"},
	)

	// RedemptionDuration tracks redemption handler latency.
	RedemptionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "entitlement_redemption_duration_seconds",
			Help:    "Duration of redemption requests in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"result"},
	)

	// GenerationTotal counts entitlement generation runs per order.
	// result: created|replayed|failed
	GenerationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_generation_total",
			Help: "Count of entitlement generation runs by result.",
		},
		[]string{"result"},
	)
)

// RecordWebhookVerify records one notification verification outcome.
func RecordWebhookVerify(result, reason string) {
	WebhookVerifyTotal.WithLabelValues(result, reason).Inc()
}

// RecordRedemption records one redemption attempt with its latency.
func RecordRedemption(result, reason string, seconds float64) {
	RedemptionTotal.WithLabelValues(result, reason).Inc()
	RedemptionDuration.WithLabelValues(result).Observe(seconds)
}
