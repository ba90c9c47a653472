package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/room4-2/interactive-avatar/metrics"
	"github.com/room4-2/interactive-avatar/telemetry"
)

// Default circuit breaker settings
const (
	defaultMaxFailures uint32        = 5
	defaultOpenTimeout time.Duration = 30 * time.Second
	defaultInterval    time.Duration = 60 * time.Second
)

// BreakerConfig configures the per-provider circuit breakers
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before going half-open.
	Timeout time.Duration
	// Interval clears failure counts while closed.
	Interval time.Duration
}

// stage wraps one provider call with a circuit breaker, a span and a latency sample
type stage[T any] struct {
	name     string
	provider string
	breaker  *gobreaker.CircuitBreaker[T]
}

func newStage[T any](name, provider string, cfg BreakerConfig, logger zerolog.Logger) *stage[T] {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultOpenTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultInterval
	}

	cb := gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name + ":" + provider,
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("⚡ Circuit breaker state change")
		},
		IsSuccessful: func(err error) bool {
			// A cancelled request says nothing about provider health
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &stage[T]{name: name, provider: provider, breaker: cb}
}

func (s *stage[T]) run(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "pipeline."+s.name)
	span.SetAttributes(attribute.String("provider", s.provider))
	defer span.End()

	start := time.Now()
	result, err := s.breaker.Execute(func() (T, error) {
		return fn(ctx)
	})
	metrics.StageDuration.WithLabelValues(s.name).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return result, fmt.Errorf("%s provider %q unavailable: %w", s.name, s.provider, err)
		}
		return result, err
	}
	return result, nil
}

func (s *stage[T]) state() gobreaker.State {
	return s.breaker.State()
}
