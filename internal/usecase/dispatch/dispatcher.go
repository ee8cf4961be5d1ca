// Package dispatch decides what happens to one queue message: it parses the
// notification, guards it against the delivery ledger, hands it to the
// matching channel and records the resulting status. The queue action that
// follows (acknowledge, retry later, dead-letter) is returned to the caller.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"notification-worker/internal/domain/entity"
	"notification-worker/internal/infra/queue"
	"notification-worker/internal/observability/logging"
	"notification-worker/internal/observability/metrics"
	"notification-worker/internal/observability/tracing"
	"notification-worker/internal/repository"
	"notification-worker/internal/resilience/retry"
	"notification-worker/internal/usecase/notify"
)

// Action is what the polling loop must do with the message.
type Action int

const (
	// Acknowledge deletes the message: it reached a terminal status.
	Acknowledge Action = iota
	// Retry leaves the message on the queue, invisible for Result.Delay.
	Retry
	// DeadLetter forwards the message to the dead-letter queue and deletes it.
	DeadLetter
)

func (a Action) String() string {
	switch a {
	case Acknowledge:
		return "ack"
	case Retry:
		return "retry"
	case DeadLetter:
		return "dead_letter"
	default:
		return "unknown"
	}
}

// Result is the outcome of Process.
type Result struct {
	Action         Action
	Delay          time.Duration // Retry only; zero leaves the visibility timeout as is
	Reason         string
	NotificationID string
	OutputType     entity.OutputType
	Err            error // ledger failure behind a Retry, if any
}

// Deliverer routes a notification to its channel.
type Deliverer interface {
	Deliver(ctx context.Context, n *entity.Notification) notify.Outcome
}

// ErrTransitionRejected is carried by a Retry when the ledger refused a status
// change on a record that is not terminal.
var ErrTransitionRejected = errors.New("status transition rejected")

// Config holds the retry policy.
type Config struct {
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffCeiling time.Duration
}

// DefaultConfig returns the policy used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		BackoffBase:    5 * time.Second,
		BackoffCeiling: 5 * time.Minute,
	}
}

// Dispatcher processes one message at a time and is safe for concurrent use.
type Dispatcher struct {
	ledger   repository.DeliveryRepository
	channels Deliverer
	cfg      Config
	now      func() time.Time
}

// New creates a Dispatcher. A MaxAttempts below 1 is raised to 1.
func New(ledger repository.DeliveryRepository, channels Deliverer, cfg Config) *Dispatcher {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Dispatcher{
		ledger:   ledger,
		channels: channels,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Process handles msg once and reports the queue action to take. It never
// returns an error: ledger failures become a Retry so the message survives.
func (d *Dispatcher) Process(ctx context.Context, msg queue.Message) (res Result) {
	start := time.Now()
	ctx, span := tracing.GetTracer().Start(ctx, "dispatch.Process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "aws_sqs"),
			attribute.String("messaging.message.id", msg.ID),
			attribute.Int("messaging.receive_count", msg.ReceiveCount),
		))
	defer func() {
		span.SetAttributes(
			attribute.String("notification.id", res.NotificationID),
			attribute.String("notification.output_type", string(res.OutputType)),
			attribute.String("dispatch.action", res.Action.String()),
		)
		if res.Action != Acknowledge {
			span.SetStatus(codes.Error, res.Reason)
		}
		if res.Err != nil {
			span.RecordError(res.Err)
		}
		span.End()
		metrics.RecordNotificationProcessed(string(res.OutputType), res.Action.String(), time.Since(start))
	}()

	logger := logging.FromContext(ctx).With(slog.String("message_id", msg.ID))

	n, err := Parse(msg)
	if err != nil {
		return d.rejectUnparseable(ctx, logger, err)
	}
	logger = logger.With(
		slog.String("notification_id", n.ID),
		slog.String("output_type", string(n.OutputType)))
	ctx = logging.WithLogger(ctx, logger)
	base := Result{NotificationID: n.ID, OutputType: n.OutputType}

	// RECEIVED only creates a record. A rejection on a live record is a
	// duplicate enqueue and falls through to PROCESSING.
	if msg.ReceiveCount <= 1 {
		r, err := d.write(ctx, n, entity.StatusReceived, 0, "", nil)
		if err != nil {
			return d.ledgerRetry(logger, base, err)
		}
		if !r.Applied && r.Record.Status.IsTerminal() {
			return d.alreadyTerminal(logger, base, r.Record)
		}
	}

	r, err := d.write(ctx, n, entity.StatusProcessing, 0, "", nil)
	if err != nil {
		return d.ledgerRetry(logger, base, err)
	}
	if !r.Applied {
		return d.rejected(logger, base, entity.StatusProcessing, r.Record)
	}

	n.AttemptCount = r.Record.AttemptCount
	attempt := n.AttemptCount + 1
	out := d.channels.Deliver(ctx, n)
	span.AddEvent("channel.outcome", trace.WithAttributes(
		attribute.String("outcome", out.Kind.String()),
		attribute.Int("attempt", attempt)))

	switch {
	case out.Kind == notify.Delivered:
		deliveredAt := d.now()
		if r, err = d.write(ctx, n, entity.StatusSuccess, attempt, "", &deliveredAt); err != nil {
			return d.ledgerRetry(logger, base, err)
		}
		if !r.Applied {
			return d.rejected(logger, base, entity.StatusSuccess, r.Record)
		}
		logger.Info("notification delivered",
			slog.Int("attempt", attempt),
			slog.String("provider_message_id", out.ProviderMessageID))
		base.Action = Acknowledge
		return base

	case out.Kind == notify.TransientFailure && out.Deferred:
		// No provider call was made: keep the stored attempt count and back
		// off on the queue receive count instead.
		if r, err = d.write(ctx, n, entity.StatusRetrying, n.AttemptCount, out.Reason, nil); err != nil {
			return d.ledgerRetry(logger, base, err)
		}
		if !r.Applied {
			return d.rejected(logger, base, entity.StatusRetrying, r.Record)
		}
		delay := retry.Delay(msg.ReceiveCount, d.cfg.BackoffBase, d.cfg.BackoffCeiling)
		metrics.RecordRetryDelay(delay)
		logger.Warn("channel unavailable, deferring delivery",
			slog.Int("attempt_count", n.AttemptCount),
			slog.Duration("delay", delay),
			slog.String("reason", out.Reason))
		base.Action = Retry
		base.Delay = delay
		base.Reason = out.Reason
		return base

	case out.Kind == notify.TransientFailure:
		if attempt >= d.cfg.MaxAttempts {
			if r, err = d.write(ctx, n, entity.StatusDeadLetter, attempt, out.Reason, nil); err != nil {
				return d.ledgerRetry(logger, base, err)
			}
			if !r.Applied {
				return d.rejected(logger, base, entity.StatusDeadLetter, r.Record)
			}
			logger.Warn("delivery attempts exhausted",
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", d.cfg.MaxAttempts),
				slog.String("reason", out.Reason))
			metrics.RecordDeadLetter("max_attempts")
			base.Action = DeadLetter
			base.Reason = fmt.Sprintf("max attempts (%d) reached: %s", d.cfg.MaxAttempts, out.Reason)
			return base
		}

		if r, err = d.write(ctx, n, entity.StatusRetrying, attempt, out.Reason, nil); err != nil {
			return d.ledgerRetry(logger, base, err)
		}
		if !r.Applied {
			return d.rejected(logger, base, entity.StatusRetrying, r.Record)
		}
		delay := retry.Delay(attempt, d.cfg.BackoffBase, d.cfg.BackoffCeiling)
		metrics.RecordRetryDelay(delay)
		logger.Warn("transient delivery failure, scheduling retry",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("reason", out.Reason))
		base.Action = Retry
		base.Delay = delay
		base.Reason = out.Reason
		return base

	default:
		if r, err = d.write(ctx, n, entity.StatusFailed, attempt, out.Reason, nil); err != nil {
			return d.ledgerRetry(logger, base, err)
		}
		if !r.Applied {
			return d.rejected(logger, base, entity.StatusFailed, r.Record)
		}
		logger.Warn("permanent delivery failure",
			slog.Int("attempt", attempt),
			slog.String("reason", out.Reason))
		metrics.RecordDeadLetter("permanent")
		base.Action = DeadLetter
		base.Reason = out.Reason
		return base
	}
}

// rejectUnparseable dead-letters a message whose body cannot be turned into
// a notification, recording FAILED when the id was recovered.
func (d *Dispatcher) rejectUnparseable(ctx context.Context, logger *slog.Logger, err error) Result {
	res := Result{Action: DeadLetter, Reason: err.Error()}

	var pe *entity.ParseError
	if errors.As(err, &pe) && pe.NotificationID != "" {
		res.NotificationID = pe.NotificationID
		logger = logger.With(slog.String("notification_id", pe.NotificationID))
		n := &entity.Notification{ID: pe.NotificationID}
		if _, werr := d.write(ctx, n, entity.StatusFailed, 0, err.Error(), nil); werr != nil {
			return d.ledgerRetry(logger, res, werr)
		}
	}

	logger.Warn("unparseable message", slog.String("reason", res.Reason))
	metrics.RecordDeadLetter("parse")
	return res
}

// rejected handles a write the ledger refused. A terminal record means another
// copy already finished the notification; any other status is a race that a
// later redelivery settles.
func (d *Dispatcher) rejected(logger *slog.Logger, res Result, status entity.DeliveryStatus, current entity.DeliveryRecord) Result {
	if current.Status.IsTerminal() {
		return d.alreadyTerminal(logger, res, current)
	}
	metrics.RecordLedgerRejected()
	err := fmt.Errorf("%w: %s -> %s", ErrTransitionRejected, current.Status, status)
	logger.Warn("ledger rejected status transition, keeping message", slog.Any("error", err))
	res.Action = Retry
	res.Delay = 0
	res.Reason = err.Error()
	res.Err = err
	return res
}

func (d *Dispatcher) alreadyTerminal(logger *slog.Logger, res Result, current entity.DeliveryRecord) Result {
	metrics.RecordLedgerRejected()
	logger.Info("notification already terminal, acknowledging duplicate",
		slog.String("status", current.Status.String()))
	res.Action = Acknowledge
	res.Reason = "already " + current.Status.String()
	return res
}

func (d *Dispatcher) ledgerRetry(logger *slog.Logger, res Result, err error) Result {
	logger.Error("delivery ledger write failed, keeping message", slog.Any("error", err))
	res.Action = Retry
	res.Delay = 0
	res.Reason = repository.ErrLedgerUnavailable.Error()
	res.Err = err
	return res
}

// write records status for n through the conditional upsert.
func (d *Dispatcher) write(ctx context.Context, n *entity.Notification, status entity.DeliveryStatus, attempts int, lastErr string, deliveredAt *time.Time) (repository.UpsertResult, error) {
	start := time.Now()
	r, err := d.ledger.UpsertIfNotTerminal(ctx, entity.DeliveryUpdate{
		NotificationID: n.ID,
		Status:         status,
		OutputType:     n.OutputType,
		ApplicationID:  n.ApplicationID,
		LastError:      lastErr,
		AttemptCount:   attempts,
		DeliveredAt:    deliveredAt,
		At:             d.now(),
	})
	metrics.RecordLedgerOperation("upsert", time.Since(start), err)
	if err != nil {
		return r, err
	}
	if r.Applied {
		metrics.RecordStatusTransition(status.String())
	}
	return r, nil
}
