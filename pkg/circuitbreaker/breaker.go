// Package circuitbreaker guards calls to the campaign store and the send log
// idempotency guard with a gobreaker breaker that reports to Prometheus.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"vendzz/internal/config"
	"vendzz/pkg/metrics"
)

const (
	defaultMaxRequests  = 3
	defaultInterval     = time.Minute
	defaultTimeout      = time.Minute
	defaultMinRequests  = 3
	defaultFailureRatio = 0.5
)

// Breaker wraps a gobreaker.CircuitBreaker. A nil *Breaker is valid and
// passes every call through.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// FromSettings builds a breaker from service configuration. It returns nil
// when breakers are disabled.
func FromSettings(name string, cfg config.CircuitBreakerConfig) *Breaker {
	if !cfg.Enabled {
		return nil
	}

	minRequests, ratio := uint32(defaultMinRequests), defaultFailureRatio
	if cfg.FailureRatio > 0 && cfg.MinRequests > 0 {
		minRequests, ratio = cfg.MinRequests, cfg.FailureRatio
	}

	return New(gobreaker.Settings{
		Name:        name,
		MaxRequests: orDefault(cfg.MaxRequests, defaultMaxRequests),
		Interval:    orDefault(cfg.Interval, defaultInterval),
		Timeout:     orDefault(cfg.Timeout, defaultTimeout),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= minRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
	})
}

func orDefault[T uint32 | time.Duration](v, def T) T {
	if v > 0 {
		return v
	}
	return def
}

// New builds a breaker from raw settings. State changes are exported as
// metrics and cancellations never count as failures.
func New(settings gobreaker.Settings) *Breaker {
	onChange := settings.OnStateChange
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		setStateMetric(name, to)
		if onChange != nil {
			onChange(name, from, to)
		}
	}
	if settings.IsSuccessful == nil {
		settings.IsSuccessful = func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		}
	}

	cb := gobreaker.NewCircuitBreaker(settings)
	setStateMetric(settings.Name, cb.State())
	return &Breaker{cb: cb}
}

// Run executes fn through b unless ctx is already done. A nil b calls fn
// directly.
func Run[T any](ctx context.Context, b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if b == nil {
		return fn()
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	result, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	b.record(err)

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return zero, fmt.Errorf("circuit breaker is open for %s: %w", b.Name(), err)
	case err != nil:
		return zero, err
	}
	typed, _ := result.(T)
	return typed, nil
}

func (b *Breaker) Name() string {
	return b.cb.Name()
}

func (b *Breaker) IsOpen() bool {
	return b.cb.State() == gobreaker.StateOpen
}

// StateString reports "disabled" for a nil breaker.
func (b *Breaker) StateString() string {
	if b == nil {
		return "disabled"
	}
	return b.cb.State().String()
}

func (b *Breaker) record(err error) {
	metrics.CircuitBreakerRequests.WithLabelValues(b.cb.Name(), b.cb.State().String()).Inc()
	if err != nil {
		metrics.CircuitBreakerFailures.WithLabelValues(b.cb.Name()).Inc()
	}
}

var stateValues = map[gobreaker.State]float64{
	gobreaker.StateClosed:   0,
	gobreaker.StateHalfOpen: 1,
	gobreaker.StateOpen:     2,
}

func setStateMetric(name string, state gobreaker.State) {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValues[state])
}
