package worker

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notification-worker/internal/observability/metrics"
	"notification-worker/internal/observability/slo"
	"notification-worker/internal/usecase/dispatch"
)

// stepClock returns start and advances by step on every later call.
type stepClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

func (c *stepClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.next
	c.next = c.next.Add(c.step)
	return t
}

func newClockedStats(inFlight func() int) (*Stats, *stepClock) {
	clock := &stepClock{next: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), step: time.Second}
	s := &Stats{inFlight: inFlight, now: clock.now}
	s.startedAt = s.now()
	return s, clock
}

type fakeDBStats struct{ stats sql.DBStats }

func (f fakeDBStats) Stats() sql.DBStats { return f.stats }

func TestStats_Counters(t *testing.T) {
	stats, _ := newClockedStats(nil)

	stats.ObserveResult(dispatch.Result{Action: dispatch.Acknowledge})
	stats.ObserveResult(dispatch.Result{Action: dispatch.Acknowledge})
	stats.ObserveResult(dispatch.Result{Action: dispatch.Retry})
	stats.ObserveResult(dispatch.Result{Action: dispatch.DeadLetter})
	stats.ObserveFailure()

	snap := stats.Snapshot()
	assert.Equal(t, int64(4), snap.MessagesProcessed)
	assert.Equal(t, int64(2), snap.ErrorsCount)
	assert.Equal(t, int64(1), snap.DLQMessagesCount)
	assert.Equal(t, 0, snap.InFlight)
	require.NotNil(t, snap.LastProcessedAt)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 4, 0, time.UTC), *snap.LastProcessedAt)
	assert.Equal(t, 5.0, snap.UptimeSeconds)
}

func TestStats_EmptySnapshot(t *testing.T) {
	stats, _ := newClockedStats(func() int { return 3 })

	snap := stats.Snapshot()

	assert.Equal(t, "healthy", snap.Status)
	assert.Zero(t, snap.MessagesProcessed)
	assert.Nil(t, snap.LastProcessedAt)
	assert.Equal(t, 3, snap.InFlight)
}

func TestStats_ConcurrentObservers(t *testing.T) {
	stats := NewStats(nil)
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats.ObserveResult(dispatch.Result{Action: dispatch.Retry})
		}()
	}
	wg.Wait()

	snap := stats.Snapshot()
	assert.Equal(t, int64(50), snap.MessagesProcessed)
	assert.Equal(t, int64(50), snap.ErrorsCount)
}

func TestStatsReporter_Report(t *testing.T) {
	stats, _ := newClockedStats(nil)
	for range 8 {
		stats.ObserveResult(dispatch.Result{Action: dispatch.Acknowledge})
	}
	stats.ObserveResult(dispatch.Result{Action: dispatch.Retry})
	stats.ObserveResult(dispatch.Result{Action: dispatch.DeadLetter})

	var buf bytes.Buffer
	m, _ := newIsolatedWorkerMetrics()
	db := fakeDBStats{stats: sql.DBStats{InUse: 3, Idle: 2}}
	reporter := NewStatsReporter(stats, m, db, slog.New(slog.NewJSONHandler(&buf, nil)))

	snap := reporter.Report()

	assert.Equal(t, int64(10), snap.MessagesProcessed)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatsJobRunsTotal))
	assert.InDelta(t, 0.9, testutil.ToFloat64(slo.SLODeliverySuccess), 1e-9)
	assert.InDelta(t, 0.1, testutil.ToFloat64(slo.SLODeadLetterRatio), 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(slo.SLOProcessingLag))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.DBConnectionsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.DBConnectionsIdle))
	assert.Contains(t, buf.String(), `"msg":"worker stats"`)
	assert.Contains(t, buf.String(), `"messages_processed":10`)
}

func TestStatsReporter_StartAndStop(t *testing.T) {
	m, _ := newIsolatedWorkerMetrics()
	var buf bytes.Buffer
	reporter := NewStatsReporter(NewStats(nil), m, nil, slog.New(slog.NewJSONHandler(&buf, nil)))

	require.Error(t, reporter.Start("not a schedule", nil))

	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	require.NoError(t, reporter.Start("*/5 * * * *", loc))
	assert.Contains(t, buf.String(), "Europe/Berlin")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	reporter.Stop(ctx)
}

func TestStatsReporter_StopWithoutStart(t *testing.T) {
	m, _ := newIsolatedWorkerMetrics()
	reporter := NewStatsReporter(NewStats(nil), m, nil, slog.Default())

	reporter.Stop(context.Background())
}
