package slo

import (
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	metric := &io_prometheus_client.Metric{}
	if err := g.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.GetGauge().GetValue()
}

func TestUpdateDeliverySuccess(t *testing.T) {
	// Reset metric before test
	SLODeliverySuccess.Set(0)

	UpdateDeliverySuccess(0.998)

	if got := gaugeValue(t, SLODeliverySuccess); got != 0.998 {
		t.Errorf("SLODeliverySuccess = %v, want %v", got, 0.998)
	}
}

func TestUpdateDeadLetterRatio(t *testing.T) {
	SLODeadLetterRatio.Set(0)

	UpdateDeadLetterRatio(0.002)

	if got := gaugeValue(t, SLODeadLetterRatio); got != 0.002 {
		t.Errorf("SLODeadLetterRatio = %v, want %v", got, 0.002)
	}
}

func TestUpdateProcessingLag(t *testing.T) {
	SLOProcessingLag.Set(0)

	UpdateProcessingLag(42)

	if got := gaugeValue(t, SLOProcessingLag); got != 42 {
		t.Errorf("SLOProcessingLag = %v, want %v", got, 42.0)
	}
}

func TestUpdateFromCounts(t *testing.T) {
	tests := []struct {
		name         string
		processed    int64
		errors       int64
		deadLettered int64
		wantSuccess  float64
		wantDLQ      float64
	}{
		{"no traffic", 0, 0, 0, 1, 0},
		{"all delivered", 200, 0, 0, 1, 0},
		{"some failures", 1000, 10, 4, 0.99, 0.004},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			UpdateFromCounts(tt.processed, tt.errors, tt.deadLettered)

			if got := gaugeValue(t, SLODeliverySuccess); math.Abs(got-tt.wantSuccess) > 1e-9 {
				t.Errorf("SLODeliverySuccess = %v, want %v", got, tt.wantSuccess)
			}
			if got := gaugeValue(t, SLODeadLetterRatio); math.Abs(got-tt.wantDLQ) > 1e-9 {
				t.Errorf("SLODeadLetterRatio = %v, want %v", got, tt.wantDLQ)
			}
		})
	}
}

func TestMetricsAreRegistered(t *testing.T) {
	metrics := []prometheus.Collector{
		SLODeliverySuccess,
		SLODeadLetterRatio,
		SLOProcessingLag,
	}

	for _, metric := range metrics {
		desc := make(chan *prometheus.Desc, 1)
		metric.Describe(desc)
		select {
		case d := <-desc:
			if d == nil {
				t.Error("metric descriptor is nil")
			}
		default:
			t.Error("no descriptor received")
		}
	}
}

func TestSLOTargetsAreReasonable(t *testing.T) {
	if DeliverySuccessSLO < 0.9 || DeliverySuccessSLO > 1 {
		t.Errorf("DeliverySuccessSLO = %v, should be between 0.9 and 1", DeliverySuccessSLO)
	}

	// Success and dead-letter targets should not contradict each other
	if DeliverySuccessSLO+DeadLetterRatioSLO > 1.0001 {
		t.Errorf("DeliverySuccessSLO (%v) + DeadLetterRatioSLO (%v) exceeds 1", DeliverySuccessSLO, DeadLetterRatioSLO)
	}

	if ProcessingLagSLO <= 0 {
		t.Errorf("ProcessingLagSLO = %v, should be positive", ProcessingLagSLO)
	}
}
