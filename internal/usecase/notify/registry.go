package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/sony/gobreaker"

	"notification-worker/internal/domain/entity"
	"notification-worker/internal/observability/logging"
	"notification-worker/internal/resilience/circuitbreaker"
)

// ChannelHealthStatus represents the health status of a channel.
// It is exposed through the /health/channels endpoint.
type ChannelHealthStatus struct {
	Name               string `json:"name"`
	OutputType         string `json:"output_type"`
	Enabled            bool   `json:"enabled"`
	CircuitBreakerOpen bool   `json:"circuit_breaker_open"`
	State              string `json:"state"` // closed|half-open|open
}

type registered struct {
	channel Channel
	breaker *circuitbreaker.CircuitBreaker
}

// Registry is the closed table of channels keyed by output type. It is built
// once at startup and is safe for concurrent use.
type Registry struct {
	byType map[entity.OutputType]registered
}

// RegistryOption customizes NewRegistry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	breakerConfig func(channel string) circuitbreaker.Config
}

// WithBreakerConfig overrides the per-channel circuit breaker configuration.
func WithBreakerConfig(fn func(channel string) circuitbreaker.Config) RegistryOption {
	return func(o *registryOptions) { o.breakerConfig = fn }
}

// NewRegistry builds the registry. Every output type must be served by
// exactly one channel.
func NewRegistry(channels []Channel, opts ...RegistryOption) (*Registry, error) {
	o := registryOptions{breakerConfig: circuitbreaker.ChannelConfig}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry{byType: make(map[entity.OutputType]registered, len(channels))}
	enabled := 0
	for _, ch := range channels {
		if ch == nil {
			return nil, errors.New("notify: nil channel")
		}
		t := ch.OutputType()
		if _, dup := r.byType[t]; dup {
			return nil, fmt.Errorf("notify: %w: %s", ErrDuplicateChannel, t)
		}

		name := ch.Name()
		cfg := o.breakerConfig(name)
		// Permanent failures are the notification's fault, not the provider's.
		cfg.IsSuccessful = func(err error) bool { return !errors.Is(err, errTransient) }
		cfg.OnStateChange = func(_ string, _, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				deliveries.breakerOpened.WithLabelValues(name).Inc()
			}
		}

		r.byType[t] = registered{channel: ch, breaker: circuitbreaker.New(cfg)}
		if ch.IsEnabled() {
			enabled++
		}
	}
	for _, t := range entity.OutputTypes {
		if _, ok := r.byType[t]; !ok {
			return nil, fmt.Errorf("notify: %w: %s", ErrMissingChannel, t)
		}
	}

	deliveries.enabled.Set(float64(enabled))
	return r, nil
}

// Deliver routes n to its channel through the channel's circuit breaker.
// It never panics and never returns an error: every failure is an Outcome.
func (r *Registry) Deliver(ctx context.Context, n *entity.Notification) (out Outcome) {
	reg, ok := r.byType[n.OutputType]
	if !ok {
		return permanent(fmt.Sprintf("%v: %q", ErrUnknownOutputType, n.OutputType))
	}
	name := reg.channel.Name()
	logger := logging.FromContext(ctx)

	if !reg.channel.IsEnabled() {
		deliveries.drop(name, dropDisabled)
		return deferred(ErrChannelDisabled.Error() + ": " + name)
	}

	finish := deliveries.start(name)
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("panic in notification channel",
				slog.String("channel", name),
				slog.String("notification_id", n.ID),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())))
			deliveries.drop(name, dropPanic)
			out = transient(fmt.Sprintf("channel %s panicked: %v", name, rec))
		}
		finish(out.Kind)
	}()

	res, err := circuitbreaker.Run(reg.breaker, func() (Outcome, error) {
		o := reg.channel.Deliver(ctx, n)
		if o.Kind == TransientFailure {
			return o, errTransient
		}
		return o, nil
	})
	if circuitbreaker.IsRejection(err) {
		deliveries.drop(name, dropCircuitOpen)
		logger.Warn("delivery refused by circuit breaker",
			slog.String("channel", name),
			slog.String("notification_id", n.ID),
			slog.String("state", reg.breaker.State().String()))
		return deferred(ErrCircuitBreakerOpen.Error() + ": " + name)
	}

	out = res
	return out
}

// GetChannelHealth returns the health status of every channel in output type order.
func (r *Registry) GetChannelHealth() []ChannelHealthStatus {
	statuses := make([]ChannelHealthStatus, 0, len(r.byType))
	for _, t := range entity.OutputTypes {
		reg, ok := r.byType[t]
		if !ok {
			continue
		}
		statuses = append(statuses, ChannelHealthStatus{
			Name:               reg.channel.Name(),
			OutputType:         string(t),
			Enabled:            reg.channel.IsEnabled(),
			CircuitBreakerOpen: reg.breaker.IsOpen(),
			State:              reg.breaker.State().String(),
		})
	}
	return statuses
}
