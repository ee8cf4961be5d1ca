// Package circuitbreaker wraps github.com/sony/gobreaker for the delivery
// channels and the ledger database. Breaker state and refused calls are
// exported as Prometheus metrics labelled by breaker name.
package circuitbreaker

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// Config holds the configuration for a circuit breaker.
type Config struct {
	// Name labels logs and metrics.
	Name string

	// MaxRequests is the number of trial calls allowed while half-open.
	MaxRequests uint32

	// Interval clears the closed-state counts; zero never clears them.
	Interval time.Duration

	// Timeout is the time spent open before probing again.
	Timeout time.Duration

	// FailureThreshold is the failure ratio (0..1) that trips the breaker
	// once MinRequests calls were counted.
	FailureThreshold float64
	MinRequests      uint32

	// IsSuccessful classifies a returned error. Errors it accepts do not count
	// toward tripping. Nil treats every non-nil error as a failure.
	IsSuccessful func(err error) bool

	// OnStateChange is called after the state change is logged and exported.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultConfig trips at 60% failures over at least 5 calls and allows
// trial calls again after a minute.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// ChannelConfig returns configuration for a delivery channel's provider.
// Providers throttle in bursts, so the breaker needs a sustained failure
// ratio before opening and retries after 30 seconds.
func ChannelConfig(channel string) Config {
	cfg := DefaultConfig("channel-" + channel)
	cfg.Interval = time.Minute
	cfg.Timeout = 30 * time.Second
	cfg.FailureThreshold = 0.7
	cfg.MinRequests = 10
	return cfg
}

// CircuitBreaker is a named gobreaker instance.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

// New creates a closed circuit breaker.
func New(cfg Config) *CircuitBreaker {
	trip := func(counts gobreaker.Counts) bool {
		if counts.Requests < cfg.MinRequests {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
	}

	settings := gobreaker.Settings{
		Name:         cfg.Name,
		MaxRequests:  cfg.MaxRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.Timeout,
		ReadyToTrip:  trip,
		IsSuccessful: cfg.IsSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			recordState(name, to)
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from, to)
			}
		},
	}

	recordState(cfg.Name, gobreaker.StateClosed)
	return &CircuitBreaker{breaker: gobreaker.NewCircuitBreaker(settings), name: cfg.Name}
}

// Run calls fn through cb. A refused call returns the zero T and an error
// for which IsRejection is true.
func Run[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	res, err := cb.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if IsRejection(err) {
		rejectionsTotal.WithLabelValues(cb.name).Inc()
		var zero T
		return zero, err
	}
	v, _ := res.(T)
	return v, err
}

// State returns the current state.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.breaker.State()
}

// Counts returns the counts of the current generation.
func (cb *CircuitBreaker) Counts() gobreaker.Counts {
	return cb.breaker.Counts()
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// IsOpen reports whether calls are currently refused outright.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.breaker.State() == gobreaker.StateOpen
}

// IsRejection reports whether err came from the breaker refusing the call
// rather than from the protected function.
func IsRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
