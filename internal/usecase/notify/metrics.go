package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reasons a delivery never produced a provider outcome.
const (
	dropDisabled    = "disabled"
	dropCircuitOpen = "circuit_open"
	dropPanic       = "panic"
)

type deliveryMetrics struct {
	dispatched    *prometheus.CounterVec
	outcomes      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	dropped       *prometheus.CounterVec
	breakerOpened *prometheus.CounterVec
	inFlight      prometheus.Gauge
	enabled       prometheus.Gauge
}

var deliveries = newDeliveryMetrics(prometheus.DefaultRegisterer)

func newDeliveryMetrics(reg prometheus.Registerer) *deliveryMetrics {
	f := promauto.With(reg)
	return &deliveryMetrics{
		dispatched: f.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_dispatched_total",
			Help: "Notifications handed to a channel",
		}, []string{"channel"}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_sent_total",
			Help: "Channel delivery outcomes (delivered, transient, permanent)",
		}, []string{"channel", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notification_duration_seconds",
			Help:    "Time spent in a channel delivery",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"channel"}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_dropped_total",
			Help: "Deliveries that ended without a provider outcome",
		}, []string{"channel", "reason"}),
		breakerOpened: f.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_circuit_breaker_open_total",
			Help: "Times a channel's circuit breaker opened",
		}, []string{"channel"}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "notification_active_deliveries",
			Help: "Channel deliveries currently in flight",
		}),
		enabled: f.NewGauge(prometheus.GaugeOpts{
			Name: "notification_channels_enabled",
			Help: "Registered channels that are enabled",
		}),
	}
}

// start counts a dispatch and marks it in flight. The returned func records
// the outcome and its duration and must be called exactly once.
func (m *deliveryMetrics) start(channel string) func(OutcomeKind) {
	m.dispatched.WithLabelValues(channel).Inc()
	m.inFlight.Inc()
	began := time.Now()
	return func(kind OutcomeKind) {
		m.inFlight.Dec()
		m.outcomes.WithLabelValues(channel, kind.String()).Inc()
		m.duration.WithLabelValues(channel).Observe(time.Since(began).Seconds())
	}
}

func (m *deliveryMetrics) drop(channel, reason string) {
	m.dropped.WithLabelValues(channel, reason).Inc()
}
