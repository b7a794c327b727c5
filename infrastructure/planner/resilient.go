package planner

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"

	"github.com/felixgeelhaar/sysagent/infrastructure/logging"
	"github.com/felixgeelhaar/sysagent/infrastructure/telemetry"
)

// ResilientConfig configures retries and the circuit breaker around a provider.
type ResilientConfig struct {
	// RetryMaxAttempts is the maximum number of attempts per completion.
	RetryMaxAttempts int

	// RetryInitialDelay is the delay before the first retry.
	RetryInitialDelay time.Duration

	// BreakerThreshold is the number of consecutive failures before opening.
	BreakerThreshold int

	// BreakerTimeout is how long the circuit stays open.
	BreakerTimeout time.Duration
}

// DefaultResilientConfig returns the default completion resilience settings.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		RetryMaxAttempts:  3,
		RetryInitialDelay: 500 * time.Millisecond,
		BreakerThreshold:  5,
		BreakerTimeout:    30 * time.Second,
	}
}

// ResilientProvider retries transient completion failures and stops calling
// a backend that keeps failing. Cancellation is never retried.
type ResilientProvider struct {
	inner   Provider
	retry   retry.Retry[CompletionResponse]
	breaker circuitbreaker.CircuitBreaker[CompletionResponse]
	metrics telemetry.Metrics
}

// ResilientOption configures a ResilientProvider.
type ResilientOption func(*ResilientProvider)

// WithProviderMetrics records completion metrics.
func WithProviderMetrics(m telemetry.Metrics) ResilientOption {
	return func(p *ResilientProvider) {
		p.metrics = m
	}
}

// NewResilientProvider wraps inner with fortify retry and circuit breaking.
func NewResilientProvider(inner Provider, cfg ResilientConfig, opts ...ResilientOption) *ResilientProvider {
	defaults := DefaultResilientConfig()
	if cfg.RetryMaxAttempts <= 0 {
		cfg.RetryMaxAttempts = defaults.RetryMaxAttempts
	}
	if cfg.RetryInitialDelay <= 0 {
		cfg.RetryInitialDelay = defaults.RetryInitialDelay
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = defaults.BreakerThreshold
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = defaults.BreakerTimeout
	}

	threshold := uint32(cfg.BreakerThreshold) // #nosec G115 -- positive, checked above
	name := inner.Name()
	p := &ResilientProvider{
		inner: inner,
		retry: retry.New[CompletionResponse](retry.Config{
			MaxAttempts:   cfg.RetryMaxAttempts,
			InitialDelay:  cfg.RetryInitialDelay,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    2.0,
			NonRetryableErrors: []error{context.Canceled, context.DeadlineExceeded},
		}),
		breaker: circuitbreaker.New[CompletionResponse](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    cfg.BreakerTimeout,
			Timeout:     cfg.BreakerTimeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				logging.Warn().
					Add(logging.Component("planner")).
					Add(logging.Str("provider", name)).
					Add(logging.Str("from", from.String())).
					Add(logging.Str("to", to.String())).
					Msg("model circuit breaker state changed")
			},
		}),
		metrics: &telemetry.NoopMetricsProvider{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the wrapped provider's name.
func (p *ResilientProvider) Name() string {
	return p.inner.Name()
}

// Complete implements Provider.
func (p *ResilientProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	start := time.Now()
	resp, err := p.breaker.Execute(ctx, func(ctx context.Context) (CompletionResponse, error) {
		return p.retry.Do(ctx, func(ctx context.Context) (CompletionResponse, error) {
			return p.inner.Complete(ctx, req)
		})
	})
	p.metrics.RecordCompletion(ctx, p.inner.Name(), err == nil, time.Since(start))
	return resp, err
}

// BreakerState reports the circuit breaker state ("closed", "open", "half-open").
func (p *ResilientProvider) BreakerState() string {
	return p.breaker.State().String()
}
