package worker

import (
	"context"
	"database/sql"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"notification-worker/internal/observability/metrics"
	"notification-worker/internal/observability/slo"
	"notification-worker/internal/usecase/dispatch"
)

// Stats counts processed messages for the /health/stats endpoint and the
// periodic snapshot. It is safe for concurrent use and implements the
// polling loop's observer.
type Stats struct {
	startedAt     time.Time
	processed     atomic.Int64
	errors        atomic.Int64
	deadLettered  atomic.Int64
	lastProcessed atomic.Int64 // unix nanoseconds, 0 when nothing was processed
	inFlight      func() int
	now           func() time.Time
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Status            string     `json:"status"`
	UptimeSeconds     float64    `json:"uptime_seconds"`
	MessagesProcessed int64      `json:"messages_processed"`
	ErrorsCount       int64      `json:"errors_count"`
	DLQMessagesCount  int64      `json:"dlq_messages_count"`
	InFlight          int        `json:"in_flight"`
	LastProcessedAt   *time.Time `json:"last_message_processed"`
	Timestamp         time.Time  `json:"timestamp"`
}

// NewStats starts counting now. inFlight may be nil.
func NewStats(inFlight func() int) *Stats {
	s := &Stats{inFlight: inFlight, now: time.Now}
	s.startedAt = s.now()
	return s
}

// ObserveResult counts one processed message. Retries count as errors,
// dead letters are counted separately.
func (s *Stats) ObserveResult(res dispatch.Result) {
	s.processed.Add(1)
	s.lastProcessed.Store(s.now().UnixNano())
	switch res.Action {
	case dispatch.Retry:
		s.errors.Add(1)
	case dispatch.DeadLetter:
		s.deadLettered.Add(1)
	}
}

// ObserveFailure counts a message abandoned without a result.
func (s *Stats) ObserveFailure() {
	s.errors.Add(1)
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	now := s.now()
	snap := StatsSnapshot{
		Status:            "healthy",
		UptimeSeconds:     now.Sub(s.startedAt).Seconds(),
		MessagesProcessed: s.processed.Load(),
		ErrorsCount:       s.errors.Load(),
		DLQMessagesCount:  s.deadLettered.Load(),
		Timestamp:         now.UTC(),
	}
	if s.inFlight != nil {
		snap.InFlight = s.inFlight()
	}
	if ns := s.lastProcessed.Load(); ns != 0 {
		t := time.Unix(0, ns).UTC()
		snap.LastProcessedAt = &t
	}
	return snap
}

// DBStatser reports connection pool statistics of the postgres ledger.
type DBStatser interface {
	Stats() sql.DBStats
}

// StatsReporter logs a snapshot on a cron schedule and refreshes the SLO
// and pool gauges from it.
type StatsReporter struct {
	stats   *Stats
	metrics *WorkerMetrics
	db      DBStatser
	logger  *slog.Logger
	cron    *cron.Cron
}

// NewStatsReporter creates a reporter. db may be nil when the ledger is not
// SQL backed.
func NewStatsReporter(stats *Stats, m *WorkerMetrics, db DBStatser, logger *slog.Logger) *StatsReporter {
	return &StatsReporter{stats: stats, metrics: m, db: db, logger: logger}
}

// Report takes one snapshot.
func (r *StatsReporter) Report() StatsSnapshot {
	snap := r.stats.Snapshot()
	r.metrics.RecordSnapshot(snap)
	slo.UpdateFromCounts(snap.MessagesProcessed, snap.ErrorsCount, snap.DLQMessagesCount)
	if snap.LastProcessedAt != nil {
		slo.UpdateProcessingLag(snap.Timestamp.Sub(*snap.LastProcessedAt).Seconds())
	}
	if r.db != nil {
		dbStats := r.db.Stats()
		metrics.UpdateDBConnectionStats(dbStats.InUse, dbStats.Idle)
	}

	attrs := []any{
		slog.Float64("uptime_seconds", snap.UptimeSeconds),
		slog.Int64("messages_processed", snap.MessagesProcessed),
		slog.Int64("errors_count", snap.ErrorsCount),
		slog.Int64("dlq_messages_count", snap.DLQMessagesCount),
		slog.Int("in_flight", snap.InFlight),
	}
	if snap.LastProcessedAt != nil {
		attrs = append(attrs, slog.Time("last_message_processed", *snap.LastProcessedAt))
	}
	r.logger.Info("worker stats", attrs...)
	return snap
}

// Start schedules Report on schedule (five-field cron) in loc.
func (r *StatsReporter) Start(schedule string, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(schedule, func() { r.Report() }); err != nil {
		return err
	}
	r.cron = c
	c.Start()
	r.logger.Info("stats job scheduled", slog.String("schedule", schedule), slog.String("timezone", loc.String()))
	return nil
}

// Stop stops the schedule and waits for a running report, or for ctx.
func (r *StatsReporter) Stop(ctx context.Context) {
	if r.cron == nil {
		return
	}
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}
