// Package poll runs the receive loop: it long-polls the queue, hands each
// message to a bounded pool of goroutines, keeps the message invisible while
// it is processed and applies the dispatcher's decision back to the queue.
package poll

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"notification-worker/internal/infra/queue"
	"notification-worker/internal/observability/logging"
	"notification-worker/internal/resilience/retry"
	"notification-worker/internal/usecase/dispatch"
)

// ErrShutdownTimeout is returned by Run when in-flight messages did not
// finish within the grace period. They are left to reappear on the queue.
var ErrShutdownTimeout = errors.New("shutdown grace period exceeded")

// ackTimeout bounds the queue calls made after a message was processed.
const ackTimeout = 30 * time.Second

// Queue is the subset of the queue client used by the poller.
type Queue interface {
	Receive(ctx context.Context, maxMessages int, waitTime time.Duration) ([]queue.Message, error)
	Delete(ctx context.Context, receiptHandle string) error
	ExtendVisibility(ctx context.Context, receiptHandle string, d time.Duration) error
	SendToDeadLetter(ctx context.Context, msg queue.Message, notificationID, reason string) error
}

// Processor decides what happens to one message.
type Processor interface {
	Process(ctx context.Context, msg queue.Message) dispatch.Result
}

// Observer is notified once per message. ObserveFailure is called when the
// message was abandoned without a result (a recovered panic).
type Observer interface {
	ObserveResult(res dispatch.Result)
	ObserveFailure()
}

type noopObserver struct{}

func (noopObserver) ObserveResult(dispatch.Result) {}
func (noopObserver) ObserveFailure()               {}

// Config controls the pool and queue timings.
type Config struct {
	PoolSize                    int
	BatchSize                   int
	WaitTime                    time.Duration
	VisibilityTimeout           time.Duration
	VisibilityExtensionInterval time.Duration
	HandlerTimeout              time.Duration
	ShutdownGracePeriod         time.Duration
}

// DefaultConfig returns the timings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		PoolSize:                    10,
		BatchSize:                   5,
		WaitTime:                    10 * time.Second,
		VisibilityTimeout:           30 * time.Second,
		VisibilityExtensionInterval: 20 * time.Second,
		HandlerTimeout:              60 * time.Second,
		ShutdownGracePeriod:         30 * time.Second,
	}
}

// Option customises a Poller.
type Option func(*Poller)

// WithObserver registers o to be told about every processed message.
func WithObserver(o Observer) Option {
	return func(p *Poller) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithReceiveBackoff replaces the backoff applied after failed receives.
func WithReceiveBackoff(b *retry.Backoff) Option {
	return func(p *Poller) {
		if b != nil {
			p.backoff = b
		}
	}
}

// WithAckRetry replaces the retry policy for queue calls made after processing.
func WithAckRetry(cfg retry.Config) Option {
	return func(p *Poller) { p.ackRetry = cfg }
}

// Poller owns the receive loop and the worker pool.
type Poller struct {
	queue     Queue
	processor Processor
	cfg       Config
	logger    *slog.Logger
	observer  Observer
	backoff   *retry.Backoff
	ackRetry  retry.Config

	sem      *semaphore.Weighted
	wg       sync.WaitGroup
	inFlight atomic.Int64
}

// New creates a Poller. PoolSize and BatchSize are raised to at least 1 and
// BatchSize is capped at both PoolSize and the queue's batch limit.
func New(q Queue, proc Processor, cfg Config, logger *slog.Logger, opts ...Option) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PoolSize < 1 {
		cfg.PoolSize = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	cfg.BatchSize = min(cfg.BatchSize, cfg.PoolSize, queue.MaxBatchSize)

	p := &Poller{
		queue:     q,
		processor: proc,
		cfg:       cfg,
		logger:    logger,
		observer:  noopObserver{},
		backoff:   retry.NewReceiveBackoff(),
		ackRetry:  retry.QueueAckConfig(),
		sem:       semaphore.NewWeighted(int64(cfg.PoolSize)),
	}
	for _, opt := range opts {
		opt(p)
	}
	poolSize.Set(float64(cfg.PoolSize))
	return p
}

// InFlight returns the number of messages currently being processed.
func (p *Poller) InFlight() int {
	return int(p.inFlight.Load())
}

// Run receives and processes messages until ctx is cancelled, then waits up
// to ShutdownGracePeriod for in-flight messages. Message processing runs on a
// context detached from ctx so a shutdown never interrupts a send.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started",
		slog.Int("pool_size", p.cfg.PoolSize),
		slog.Int("batch_size", p.cfg.BatchSize),
		slog.Duration("wait_time", p.cfg.WaitTime))

	for {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			break
		}
		free := 1
		for free < p.cfg.BatchSize && p.sem.TryAcquire(1) {
			free++
		}

		msgs, err := p.queue.Receive(ctx, free, p.cfg.WaitTime)
		if err != nil {
			p.sem.Release(int64(free))
			if ctx.Err() != nil {
				break
			}
			receiveErrorsTotal.Inc()
			delay := p.backoff.Next()
			p.logger.Warn("receive failed, backing off",
				slog.Duration("delay", delay),
				slog.Any("error", err))
			if !sleep(ctx, delay) {
				break
			}
			continue
		}
		p.backoff.Reset()
		receiveBatchSize.Observe(float64(len(msgs)))

		if len(msgs) > free {
			p.logger.Warn("receive returned more messages than requested, leaving the rest",
				slog.Int("requested", free),
				slog.Int("received", len(msgs)))
			msgs = msgs[:free]
		}
		if unused := free - len(msgs); unused > 0 {
			p.sem.Release(int64(unused))
		}

		for _, msg := range msgs {
			p.wg.Add(1)
			p.inFlight.Add(1)
			go p.handle(ctx, msg)
		}
	}

	return p.drain()
}

func (p *Poller) drain() error {
	p.logger.Info("poller stopping, waiting for in-flight messages",
		slog.Int("in_flight", p.InFlight()),
		slog.Duration("grace_period", p.cfg.ShutdownGracePeriod))

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(p.cfg.ShutdownGracePeriod)
	defer timer.Stop()

	select {
	case <-done:
		p.logger.Info("poller stopped")
		return nil
	case <-timer.C:
		p.logger.Warn("shutdown grace period exceeded, abandoning in-flight messages",
			slog.Int("in_flight", p.InFlight()))
		return ErrShutdownTimeout
	}
}

// handle owns msg and its receipt handle until it returns.
func (p *Poller) handle(ctx context.Context, msg queue.Message) {
	defer p.wg.Done()
	defer p.sem.Release(1)
	defer p.inFlight.Add(-1)
	inFlightMessages.Inc()
	defer inFlightMessages.Dec()

	base, logger := logging.WithCorrelationID(context.WithoutCancel(ctx),
		p.logger.With(slog.String("message_id", msg.ID)), "")

	hctx, cancel := handlerContext(base, p.cfg.HandlerTimeout)
	defer cancel()

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		p.heartbeat(hctx, msg, stop, logger)
	}()

	res, ok := p.process(hctx, msg, logger)
	close(stop)
	<-stopped

	if !ok {
		p.observer.ObserveFailure()
		recordQueueAction("abandon", nil)
		return
	}
	p.observer.ObserveResult(res)

	actx, acancel := context.WithTimeout(base, ackTimeout)
	defer acancel()
	p.apply(actx, msg, res, logger)
}

func handlerContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (p *Poller) process(ctx context.Context, msg queue.Message, logger *slog.Logger) (res dispatch.Result, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			panicsTotal.Inc()
			logger.Error("panic while processing message, leaving it for redelivery",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			ok = false
		}
	}()
	return p.processor.Process(ctx, msg), true
}

// heartbeat keeps msg invisible until stop is closed.
func (p *Poller) heartbeat(ctx context.Context, msg queue.Message, stop <-chan struct{}, logger *slog.Logger) {
	if p.cfg.VisibilityExtensionInterval <= 0 {
		<-stop
		return
	}
	ticker := time.NewTicker(p.cfg.VisibilityExtensionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			err := p.queue.ExtendVisibility(ctx, msg.ReceiptHandle, p.cfg.VisibilityTimeout)
			if err == nil {
				continue
			}
			heartbeatFailuresTotal.Inc()
			if errors.Is(err, queue.ErrReceiptHandleExpired) {
				logger.Warn("receipt handle expired, stopping heartbeat", slog.Any("error", err))
				<-stop
				return
			}
			logger.Warn("visibility heartbeat failed", slog.Any("error", err))
		}
	}
}

// apply carries out the dispatcher's decision.
func (p *Poller) apply(ctx context.Context, msg queue.Message, res dispatch.Result, logger *slog.Logger) {
	switch res.Action {
	case dispatch.Acknowledge:
		recordQueueAction("ack", p.delete(ctx, msg, logger))

	case dispatch.DeadLetter:
		err := retry.WithBackoff(ctx, p.ackRetry, func() error {
			return p.queue.SendToDeadLetter(ctx, msg, res.NotificationID, res.Reason)
		})
		if err != nil {
			recordQueueAction("dead_letter", err)
			logger.Error("dead-letter forward failed, leaving message for redelivery",
				slog.String("notification_id", res.NotificationID),
				slog.Any("error", err))
			return
		}
		recordQueueAction("dead_letter", p.delete(ctx, msg, logger))

	case dispatch.Retry:
		if res.Delay <= 0 {
			recordQueueAction("retry", nil)
			return
		}
		err := p.queue.ExtendVisibility(ctx, msg.ReceiptHandle, res.Delay)
		recordQueueAction("retry", err)
		if err != nil {
			logger.Warn("failed to set retry delay, message reappears after the visibility timeout",
				slog.Duration("delay", res.Delay),
				slog.Any("error", err))
		}
	}
}

func (p *Poller) delete(ctx context.Context, msg queue.Message, logger *slog.Logger) error {
	err := retry.WithBackoff(ctx, p.ackRetry, func() error {
		return p.queue.Delete(ctx, msg.ReceiptHandle)
	})
	switch {
	case err == nil:
	case errors.Is(err, queue.ErrReceiptHandleExpired):
		logger.Warn("receipt handle expired before delete, message will be redelivered", slog.Any("error", err))
	default:
		logger.Error("delete failed", slog.Any("error", err))
	}
	return err
}

// sleep waits for d or until ctx is done, reporting whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
