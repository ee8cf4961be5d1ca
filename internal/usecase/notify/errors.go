package notify

import "errors"

// Sentinel errors for notify use case operations.
var (
	// ErrChannelDisabled indicates that the channel for a notification's output
	// type has no configured provider. The delivery is deferred without using
	// up an attempt so the message survives until the worker is reconfigured.
	ErrChannelDisabled = errors.New("channel is disabled")

	// ErrCircuitBreakerOpen indicates that the circuit breaker is open for this channel
	// and notifications are being rejected without a provider call.
	// The circuit breaker will automatically half-open after the timeout period.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open for this channel")

	// ErrUnknownApplication indicates that the notification names an
	// application with no registration in the application table.
	ErrUnknownApplication = errors.New("application config not found")

	// ErrUnknownOutputType indicates that no channel serves the output type.
	ErrUnknownOutputType = errors.New("no channel for output type")

	// ErrDuplicateChannel is returned by NewRegistry when two channels claim
	// the same output type.
	ErrDuplicateChannel = errors.New("duplicate channel for output type")

	// ErrMissingChannel is returned by NewRegistry when an output type has no channel.
	ErrMissingChannel = errors.New("missing channel for output type")

	// errTransient marks a transient outcome as a failure for the circuit breaker.
	errTransient = errors.New("transient delivery failure")
)
