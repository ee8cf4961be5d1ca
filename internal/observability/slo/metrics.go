package slo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SLO targets for notification delivery.
const (
	// DeliverySuccessSLO is the target ratio of processed messages that end
	// acknowledged rather than dead-lettered.
	DeliverySuccessSLO = 0.995

	// DeadLetterRatioSLO is the maximum acceptable share of processed
	// messages forwarded to the dead-letter queue.
	DeadLetterRatioSLO = 0.005

	// ProcessingLagSLO is the target for the time since the last processed
	// message while the queue is non-empty, in seconds.
	ProcessingLagSLO = 300.0
)

// SLO tracking gauges, refreshed by the periodic stats job from the worker's
// cumulative counters.
var (
	// SLODeliverySuccess tracks (processed - errors) / processed
	SLODeliverySuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_delivery_success_ratio",
			Help: "Current delivery success ratio (0-1), target: 0.995",
		},
	)

	// SLODeadLetterRatio tracks dead_lettered / processed
	SLODeadLetterRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_dead_letter_ratio",
			Help: "Current dead-letter ratio (0-1), target: 0.005",
		},
	)

	// SLOProcessingLag tracks seconds since the last processed message
	SLOProcessingLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_processing_lag_seconds",
			Help: "Seconds since the last message was processed, target: 300",
		},
	)
)

// UpdateDeliverySuccess updates the delivery success SLO metric.
func UpdateDeliverySuccess(ratio float64) {
	SLODeliverySuccess.Set(ratio)
}

// UpdateDeadLetterRatio updates the dead-letter ratio SLO metric.
func UpdateDeadLetterRatio(ratio float64) {
	SLODeadLetterRatio.Set(ratio)
}

// UpdateProcessingLag updates the processing lag SLO metric.
func UpdateProcessingLag(seconds float64) {
	SLOProcessingLag.Set(seconds)
}

// UpdateFromCounts derives all ratios from cumulative counters. With no
// processed messages both ratios are reported as perfect.
//
// Example:
//
//	snap := stats.Snapshot()
//	slo.UpdateFromCounts(snap.MessagesProcessed, snap.ErrorsCount, snap.DLQMessagesCount)
func UpdateFromCounts(processed, errors, deadLettered int64) {
	if processed <= 0 {
		UpdateDeliverySuccess(1)
		UpdateDeadLetterRatio(0)
		return
	}
	UpdateDeliverySuccess(float64(processed-errors) / float64(processed))
	UpdateDeadLetterRatio(float64(deadLettered) / float64(processed))
}
