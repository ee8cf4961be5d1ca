// Package notify turns a validated notification into a provider call on the
// channel selected by its output type (EMAIL, SMS or PUSH) and reports the
// result as an Outcome. Channels never touch the delivery ledger.
package notify

import (
	"context"
	"errors"
	"fmt"

	"notification-worker/internal/domain/entity"
	"notification-worker/internal/infra/notifier"
	"notification-worker/internal/repository"
)

// OutcomeKind classifies a delivery attempt.
type OutcomeKind int

const (
	// Delivered means the provider accepted the message.
	Delivered OutcomeKind = iota
	// TransientFailure means another attempt may succeed.
	TransientFailure
	// PermanentFailure means the message will never succeed as sent.
	PermanentFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case Delivered:
		return "delivered"
	case TransientFailure:
		return "transient"
	case PermanentFailure:
		return "permanent"
	default:
		return "unknown"
	}
}

// Outcome is the result of one Deliver call.
type Outcome struct {
	Kind              OutcomeKind
	Reason            string // empty when delivered
	ProviderMessageID string // set when delivered

	// Deferred marks a TransientFailure where the provider was never called
	// (channel disabled or circuit breaker open). It does not use up an attempt.
	Deferred bool
}

// Channel delivers notifications of one output type.
//
// Thread Safety:
//   - All methods must be safe for concurrent use by multiple goroutines
//
// Context Handling:
//   - Deliver must respect context cancellation and timeout; a canceled
//     provider call is reported as a TransientFailure
type Channel interface {
	// Name returns the channel identifier used in logs, metrics and health
	// endpoints (lowercase: "email", "sms", "push").
	Name() string

	// OutputType returns the output type this channel serves.
	OutputType() entity.OutputType

	// IsEnabled reports whether the channel has a configured provider.
	IsEnabled() bool

	// Deliver validates n for this channel and sends it once. It does not
	// retry; retries are scheduled through the queue.
	Deliver(ctx context.Context, n *entity.Notification) Outcome
}

// ChannelOption customizes a channel.
type ChannelOption func(*channelOptions)

type channelOptions struct {
	apps repository.ApplicationConfigRepository
}

// WithApplications makes the channel resolve per-application provider
// settings (SES identity, SNS topic) from apps before sending.
func WithApplications(apps repository.ApplicationConfigRepository) ChannelOption {
	return func(o *channelOptions) { o.apps = apps }
}

func newChannelOptions(opts []ChannelOption) channelOptions {
	var o channelOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// application returns the settings registered for n's application. Without a
// repository or an application id it returns the zero config.
func (o channelOptions) application(ctx context.Context, n *entity.Notification) (entity.ApplicationConfig, error) {
	if o.apps == nil || n.ApplicationID == "" {
		return entity.ApplicationConfig{}, nil
	}
	cfg, err := o.apps.Get(ctx, n.ApplicationID)
	if err != nil {
		return entity.ApplicationConfig{}, err
	}
	return *cfg, nil
}

// unresolved maps a failed application lookup to an Outcome. An unregistered
// application never heals by retrying; a store outage may.
func unresolved(applicationID string, err error) Outcome {
	if errors.Is(err, entity.ErrNotFound) {
		return permanent(fmt.Sprintf("%v: %s", ErrUnknownApplication, applicationID))
	}
	return transient(err.Error())
}

func delivered(r notifier.Receipt) Outcome {
	return Outcome{Kind: Delivered, ProviderMessageID: r.MessageID}
}

func transient(reason string) Outcome {
	return Outcome{Kind: TransientFailure, Reason: reason}
}

func deferred(reason string) Outcome {
	return Outcome{Kind: TransientFailure, Reason: reason, Deferred: true}
}

func permanent(reason string) Outcome {
	return Outcome{Kind: PermanentFailure, Reason: reason}
}

// outcomeOf maps a sender result to an Outcome.
func outcomeOf(provider string, r notifier.Receipt, err error) Outcome {
	if err == nil {
		return delivered(r)
	}
	pe := notifier.Classify(provider, err)
	if pe.Transient {
		return transient(pe.Error())
	}
	return permanent(pe.Error())
}

// validateFor checks that n belongs to ch and passes the rules of its
// output type.
func validateFor(ch Channel, n *entity.Notification) error {
	if n.OutputType != ch.OutputType() {
		return &entity.ValidationError{
			Field:   "output_type",
			Message: fmt.Sprintf("%s notification sent to %s channel", n.OutputType, ch.Name()),
		}
	}
	return n.Validate()
}

// invalid maps a validation failure to a permanent Outcome.
func invalid(err error) Outcome {
	var ve *entity.ValidationError
	if errors.As(err, &ve) {
		return permanent("invalid notification: " + ve.Error())
	}
	return permanent(err.Error())
}
