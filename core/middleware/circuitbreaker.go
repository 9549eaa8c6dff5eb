package middleware

import (
	"time"

	"github.com/sony/gobreaker"

	"github.com/thinhttp/thin-server/core/http"
	"github.com/thinhttp/thin-server/core/observability"
)

// CircuitBreaker guards a route subtree with a gobreaker two-step
// breaker: admission is decided before the chain runs, and the outcome
// is reported once dispatch completes via the context close hook.
type CircuitBreaker struct {
	cb     *gobreaker.TwoStepCircuitBreaker
	logger observability.Logger
}

// CircuitBreakerOption configures a CircuitBreaker.
type CircuitBreakerOption func(*CircuitBreaker)

// WithCircuitBreakerLogger sets the logger.
func WithCircuitBreakerLogger(logger observability.Logger) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.logger = logger
	}
}

// NewCircuitBreaker creates a breaker that trips once at least
// minRequests requests have been observed in the interval and half of
// them failed.
func NewCircuitBreaker(name string, minRequests uint32, timeout time.Duration, opts ...CircuitBreakerOption) *CircuitBreaker {
	c := &CircuitBreaker{
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: minRequests,
		Interval:    timeout,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Info("circuit breaker state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
		},
	}

	c.cb = gobreaker.NewTwoStepCircuitBreaker(settings)
	return c
}

// Middleware returns the pipeline handler for this breaker. While the
// breaker is open, requests are aborted with a 503.
func (c *CircuitBreaker) Middleware() http.HandlerFunc {
	return func(ctx *http.Context) {
		done, err := c.cb.Allow()
		if err != nil {
			ctx.Abort()
			ctx.Error(503, "service unavailable")
			return
		}

		ctx.OnClose(func() {
			done(ctx.Response().StatusCode < 500)
		})
	}
}
