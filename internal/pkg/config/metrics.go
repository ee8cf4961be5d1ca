package config

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ConfigMetrics reports how a component's configuration was loaded.
// Metric names are prefixed with the component name, so each component
// creates exactly one instance.
//
//	<component>_config_load_timestamp            gauge
//	<component>_config_validation_errors_total   counter{field}
//	<component>_config_fallbacks_total           counter{field}
//	<component>_config_fallback_active           gauge (1 when any default replaced a bad value)
type ConfigMetrics struct {
	LoadTimestamp         prometheus.Gauge
	ValidationErrorsTotal *prometheus.CounterVec
	FallbacksTotal        *prometheus.CounterVec
	FallbackActive        prometheus.Gauge

	componentName string
}

// NewConfigMetrics registers the configuration metrics for componentName.
// It panics if called twice with the same name.
func NewConfigMetrics(componentName string) *ConfigMetrics {
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{
			Namespace: componentName,
			Subsystem: "config",
			Name:      name,
			Help:      fmt.Sprintf(help, componentName),
		}
	}

	return &ConfigMetrics{
		LoadTimestamp: promauto.NewGauge(prometheus.GaugeOpts(
			opts("load_timestamp", "Unix time the %s configuration was last loaded"))),
		ValidationErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts(
			opts("validation_errors_total", "Invalid %s configuration values seen, by field")), []string{"field"}),
		FallbacksTotal: promauto.NewCounterVec(prometheus.CounterOpts(
			opts("fallbacks_total", "Defaults applied in place of invalid %s configuration values, by field")), []string{"field"}),
		FallbackActive: promauto.NewGauge(prometheus.GaugeOpts(
			opts("fallback_active", "Whether any %s configuration value currently runs on a fallback (0/1)"))),
		componentName: componentName,
	}
}

// RecordLoadTimestamp sets the load timestamp to now.
func (m *ConfigMetrics) RecordLoadTimestamp() {
	m.LoadTimestamp.SetToCurrentTime()
}

// RecordValidationError counts a rejected value for field.
func (m *ConfigMetrics) RecordValidationError(field string) {
	m.ValidationErrorsTotal.WithLabelValues(field).Inc()
}

// RecordFallback counts a default applied to field.
func (m *ConfigMetrics) RecordFallback(field string) {
	m.FallbacksTotal.WithLabelValues(field).Inc()
}

// SetFallbackActive flags whether any default replaced a bad value.
func (m *ConfigMetrics) SetFallbackActive(active bool) {
	var v float64
	if active {
		v = 1
	}
	m.FallbackActive.Set(v)
}
