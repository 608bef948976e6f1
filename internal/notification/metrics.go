package notification

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Delivery outcomes used as the "outcome" label.
const (
	OutcomeDelivered = "delivered"
	OutcomeGone      = "gone"
	OutcomeTransient = "transient"
	OutcomeEncoding  = "encoding"
)

// Metrics counts delivery outcomes. A nil *Metrics records nothing.
type Metrics struct {
	deliveries *prometheus.CounterVec
	duration   prometheus.Histogram
	pruned     prometheus.Counter
}

// NewMetrics creates the delivery collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webpush_deliveries_total",
			Help: "Push message delivery attempts by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "webpush_delivery_duration_seconds",
			Help:    "Time spent encoding and posting one push message.",
			Buckets: prometheus.DefBuckets,
		}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webpush_subscriptions_pruned_total",
			Help: "Subscriptions removed after the push service reported them gone.",
		}),
	}
	reg.MustRegister(m.deliveries, m.duration, m.pruned)

	for _, outcome := range []string{OutcomeDelivered, OutcomeGone, OutcomeTransient, OutcomeEncoding} {
		m.deliveries.WithLabelValues(outcome)
	}
	return m
}

func (m *Metrics) observe(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(outcome).Inc()
	if outcome != OutcomeEncoding {
		m.duration.Observe(seconds)
	}
}

func (m *Metrics) prunedOne() {
	if m == nil {
		return
	}
	m.pruned.Inc()
}
