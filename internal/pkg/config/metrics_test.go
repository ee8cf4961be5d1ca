package config

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewConfigMetrics_Registration(t *testing.T) {
	metrics := NewConfigMetrics("test_component_registration")

	assert.NotNil(t, metrics.LoadTimestamp)
	assert.NotNil(t, metrics.ValidationErrorsTotal)
	assert.NotNil(t, metrics.FallbacksTotal)
	assert.NotNil(t, metrics.FallbackActive)
	assert.Equal(t, "test_component_registration", metrics.componentName)
}

func TestNewConfigMetrics_DuplicateNamePanics(t *testing.T) {
	NewConfigMetrics("test_duplicate")
	assert.Panics(t, func() { NewConfigMetrics("test_duplicate") })
}

func TestRecordLoadTimestamp_UpdatesMetric(t *testing.T) {
	metrics := NewConfigMetrics("test_load_timestamp")

	metrics.RecordLoadTimestamp()

	assert.Greater(t, testutil.ToFloat64(metrics.LoadTimestamp), float64(0))
}

func TestRecordValidationError_PerField(t *testing.T) {
	metrics := NewConfigMetrics("test_validation_error")

	metrics.RecordValidationError("poll_batch_size")
	metrics.RecordValidationError("poll_batch_size")
	metrics.RecordValidationError("handler_timeout")

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.ValidationErrorsTotal.WithLabelValues("poll_batch_size")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ValidationErrorsTotal.WithLabelValues("handler_timeout")))
}

func TestRecordFallback_PerField(t *testing.T) {
	metrics := NewConfigMetrics("test_fallback")

	metrics.RecordFallback("worker_pool_size")

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("worker_pool_size")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("backoff_base")))
}

func TestSetFallbackActive_Toggle(t *testing.T) {
	metrics := NewConfigMetrics("test_fallback_active")

	metrics.SetFallbackActive(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FallbackActive))

	metrics.SetFallbackActive(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.FallbackActive))
}

func TestMetrics_ConcurrentAccess(t *testing.T) {
	metrics := NewConfigMetrics("test_concurrent")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metrics.RecordValidationError("field")
			metrics.RecordFallback("field")
		}()
	}
	wg.Wait()

	assert.Equal(t, float64(20), testutil.ToFloat64(metrics.ValidationErrorsTotal.WithLabelValues("field")))
	assert.Equal(t, float64(20), testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("field")))
}
