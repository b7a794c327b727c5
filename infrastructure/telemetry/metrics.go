// Package telemetry provides OpenTelemetry metrics for the agent loop,
// tool invocations and sandbox executions.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsProvider provides access to metrics instruments.
type MetricsProvider struct {
	meter metric.Meter

	// Counters
	toolInvocations   metric.Int64Counter
	parseFailures     metric.Int64Counter
	sandboxExecutions metric.Int64Counter
	sandboxTimeouts   metric.Int64Counter
	completions       metric.Int64Counter
	tasks             metric.Int64Counter

	// Histograms
	toolDuration       metric.Float64Histogram
	sandboxDuration    metric.Float64Histogram
	completionDuration metric.Float64Histogram
	taskDuration       metric.Float64Histogram
	taskIterations     metric.Int64Histogram

	// Gauges (using UpDownCounter for OpenTelemetry)
	activeTasks        metric.Int64UpDownCounter
	circuitBreakerOpen metric.Int64UpDownCounter

	initOnce sync.Once
	initErr  error
}

// MetricsConfig configures the metrics provider.
type MetricsConfig struct {
	// MeterName is the name of the meter (default: "github.com/felixgeelhaar/sysagent").
	MeterName string
	// MeterVersion is the version of the meter.
	MeterVersion string
	// Provider overrides the global meter provider when set.
	Provider metric.MeterProvider
	// Attributes are default attributes to attach to all metrics.
	Attributes []attribute.KeyValue
}

// DefaultMetricsConfig returns a default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		MeterName:    "github.com/felixgeelhaar/sysagent",
		MeterVersion: "1.0.0",
	}
}

// NewMetricsProvider creates a new metrics provider.
func NewMetricsProvider(config MetricsConfig) *MetricsProvider {
	if config.MeterName == "" {
		config.MeterName = DefaultMetricsConfig().MeterName
	}

	provider := config.Provider
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(
		config.MeterName,
		metric.WithInstrumentationVersion(config.MeterVersion),
		metric.WithInstrumentationAttributes(config.Attributes...),
	)

	mp := &MetricsProvider{
		meter: meter,
	}

	mp.initOnce.Do(func() {
		mp.initErr = mp.initInstruments()
	})

	return mp
}

// initInstruments initializes all metric instruments.
func (mp *MetricsProvider) initInstruments() error {
	var err error

	// Counters
	mp.toolInvocations, err = mp.meter.Int64Counter(
		"sysagent.tool.invocations",
		metric.WithDescription("Number of tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return err
	}

	mp.parseFailures, err = mp.meter.Int64Counter(
		"sysagent.parse.failures",
		metric.WithDescription("Number of model completions that failed to parse"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return err
	}

	mp.sandboxExecutions, err = mp.meter.Int64Counter(
		"sysagent.sandbox.executions",
		metric.WithDescription("Number of sandbox executions"),
		metric.WithUnit("{execution}"),
	)
	if err != nil {
		return err
	}

	mp.sandboxTimeouts, err = mp.meter.Int64Counter(
		"sysagent.sandbox.timeouts",
		metric.WithDescription("Number of sandbox executions stopped at the timeout"),
		metric.WithUnit("{timeout}"),
	)
	if err != nil {
		return err
	}

	mp.completions, err = mp.meter.Int64Counter(
		"sysagent.model.completions",
		metric.WithDescription("Number of model completion requests"),
		metric.WithUnit("{completion}"),
	)
	if err != nil {
		return err
	}

	mp.tasks, err = mp.meter.Int64Counter(
		"sysagent.tasks",
		metric.WithDescription("Number of finished tasks"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return err
	}

	// Histograms
	mp.toolDuration, err = mp.meter.Float64Histogram(
		"sysagent.tool.duration",
		metric.WithDescription("Duration of tool invocations"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	mp.sandboxDuration, err = mp.meter.Float64Histogram(
		"sysagent.sandbox.duration",
		metric.WithDescription("Duration of sandbox executions including cleanup"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	mp.completionDuration, err = mp.meter.Float64Histogram(
		"sysagent.model.duration",
		metric.WithDescription("Duration of model completion requests"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	mp.taskDuration, err = mp.meter.Float64Histogram(
		"sysagent.task.duration",
		metric.WithDescription("Duration of tasks"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	mp.taskIterations, err = mp.meter.Int64Histogram(
		"sysagent.task.iterations",
		metric.WithDescription("Reasoning iterations per task"),
		metric.WithUnit("{iteration}"),
	)
	if err != nil {
		return err
	}

	// Gauges (UpDownCounters)
	mp.activeTasks, err = mp.meter.Int64UpDownCounter(
		"sysagent.tasks.active",
		metric.WithDescription("Number of running tasks"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return err
	}

	mp.circuitBreakerOpen, err = mp.meter.Int64UpDownCounter(
		"sysagent.circuitbreaker.open",
		metric.WithDescription("Number of open circuit breakers"),
		metric.WithUnit("{circuit}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Error returns any initialization error.
func (mp *MetricsProvider) Error() error {
	return mp.initErr
}

// RecordToolInvocation records a tool invocation and its outcome
// (ok, resolution_failed, execution_failed or timeout).
func (mp *MetricsProvider) RecordToolInvocation(ctx context.Context, toolName, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("tool.name", toolName),
		attribute.String("outcome", outcome),
	)

	mp.toolInvocations.Add(ctx, 1, attrs)
	mp.toolDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordParseFailure records a completion that could not be parsed.
func (mp *MetricsProvider) RecordParseFailure(ctx context.Context, kind string) {
	mp.parseFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("parse.kind", kind)))
}

// RecordSandboxExecution records one sandbox run.
func (mp *MetricsProvider) RecordSandboxExecution(ctx context.Context, backend string, exitCode int, timedOut bool, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("sandbox.backend", backend),
		attribute.Int("exit_code", exitCode),
		attribute.Bool("timed_out", timedOut),
	)

	mp.sandboxExecutions.Add(ctx, 1, attrs)
	mp.sandboxDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	if timedOut {
		mp.sandboxTimeouts.Add(ctx, 1, metric.WithAttributes(attribute.String("sandbox.backend", backend)))
	}
}

// RecordCompletion records a model completion request.
func (mp *MetricsProvider) RecordCompletion(ctx context.Context, provider string, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("model.provider", provider),
		attribute.Bool("success", success),
	)

	mp.completions.Add(ctx, 1, attrs)
	mp.completionDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordTask records a finished task.
func (mp *MetricsProvider) RecordTask(ctx context.Context, status string, iterations int, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("task.status", status))

	mp.tasks.Add(ctx, 1, attrs)
	mp.taskDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	mp.taskIterations.Record(ctx, int64(iterations), attrs)
}

// IncrementActiveTasks increments the active tasks counter.
func (mp *MetricsProvider) IncrementActiveTasks(ctx context.Context) {
	mp.activeTasks.Add(ctx, 1)
}

// DecrementActiveTasks decrements the active tasks counter.
func (mp *MetricsProvider) DecrementActiveTasks(ctx context.Context) {
	mp.activeTasks.Add(ctx, -1)
}

// RecordCircuitBreakerStateChange records a circuit breaker state change.
func (mp *MetricsProvider) RecordCircuitBreakerStateChange(ctx context.Context, name string, isOpen bool) {
	attrs := metric.WithAttributes(attribute.String("circuit.name", name))

	if isOpen {
		mp.circuitBreakerOpen.Add(ctx, 1, attrs)
	} else {
		mp.circuitBreakerOpen.Add(ctx, -1, attrs)
	}
}

// NoopMetricsProvider is a no-op metrics provider for testing or when metrics are disabled.
type NoopMetricsProvider struct{}

// RecordToolInvocation is a no-op.
func (n *NoopMetricsProvider) RecordToolInvocation(context.Context, string, string, time.Duration) {}

// RecordParseFailure is a no-op.
func (n *NoopMetricsProvider) RecordParseFailure(context.Context, string) {}

// RecordSandboxExecution is a no-op.
func (n *NoopMetricsProvider) RecordSandboxExecution(context.Context, string, int, bool, time.Duration) {
}

// RecordCompletion is a no-op.
func (n *NoopMetricsProvider) RecordCompletion(context.Context, string, bool, time.Duration) {}

// RecordTask is a no-op.
func (n *NoopMetricsProvider) RecordTask(context.Context, string, int, time.Duration) {}

// IncrementActiveTasks is a no-op.
func (n *NoopMetricsProvider) IncrementActiveTasks(context.Context) {}

// DecrementActiveTasks is a no-op.
func (n *NoopMetricsProvider) DecrementActiveTasks(context.Context) {}

// RecordCircuitBreakerStateChange is a no-op.
func (n *NoopMetricsProvider) RecordCircuitBreakerStateChange(context.Context, string, bool) {}

// Metrics defines the interface for metrics recording.
type Metrics interface {
	RecordToolInvocation(ctx context.Context, toolName, outcome string, duration time.Duration)
	RecordParseFailure(ctx context.Context, kind string)
	RecordSandboxExecution(ctx context.Context, backend string, exitCode int, timedOut bool, duration time.Duration)
	RecordCompletion(ctx context.Context, provider string, success bool, duration time.Duration)
	RecordTask(ctx context.Context, status string, iterations int, duration time.Duration)
	IncrementActiveTasks(ctx context.Context)
	DecrementActiveTasks(ctx context.Context)
	RecordCircuitBreakerStateChange(ctx context.Context, name string, isOpen bool)
}

// Ensure implementations satisfy the interface.
var (
	_ Metrics = (*MetricsProvider)(nil)
	_ Metrics = (*NoopMetricsProvider)(nil)
)
