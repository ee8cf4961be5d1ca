package notify

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryMetrics_Start(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newDeliveryMetrics(reg)

	finishEmail := m.start("email")
	finishSMS := m.start("sms")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.inFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatched.WithLabelValues("email")))

	finishEmail(Delivered)
	finishSMS(TransientFailure)

	assert.Zero(t, testutil.ToFloat64(m.inFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("email", Delivered.String())))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("sms", TransientFailure.String())))
	assert.Zero(t, testutil.ToFloat64(m.outcomes.WithLabelValues("sms", Delivered.String())))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration, "notification_duration_seconds"))
}

func TestDeliveryMetrics_Drop(t *testing.T) {
	m := newDeliveryMetrics(prometheus.NewRegistry())

	for _, reason := range []string{dropDisabled, dropCircuitOpen, dropCircuitOpen, dropPanic} {
		m.drop("push", reason)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("push", dropDisabled)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.dropped.WithLabelValues("push", dropCircuitOpen)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("push", dropPanic)))
}

func TestDeliveryMetrics_Names(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newDeliveryMetrics(reg)
	m.start("email")(PermanentFailure)
	m.drop("email", dropDisabled)
	m.breakerOpened.WithLabelValues("email").Inc()
	m.enabled.Set(3)

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.ElementsMatch(t, []string{
		"notification_dispatched_total",
		"notification_sent_total",
		"notification_duration_seconds",
		"notification_dropped_total",
		"notification_circuit_breaker_open_total",
		"notification_active_deliveries",
		"notification_channels_enabled",
	}, names)
}
