// Package observability installs OpenTelemetry trace and metric providers.
package observability

import (
	"io"
	"os"
	"time"
)

// Config configures the observability infrastructure.
type Config struct {
	// ServiceName is the name of the service for telemetry.
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// Global installs the providers as the otel globals.
	Global bool

	// Tracing configures span export.
	Tracing TracingConfig

	// Metrics configures metric export.
	Metrics MetricsConfig
}

// TracingConfig configures span export.
type TracingConfig struct {
	// Enabled enables tracing (default: false).
	Enabled bool

	// Exporter specifies the trace exporter type.
	Exporter ExporterType

	// Output receives stdout-exported spans.
	Output io.Writer

	// SampleRate is the sampling rate (0.0-1.0, default: 1.0).
	SampleRate float64

	// BatchTimeout is the batch export timeout.
	BatchTimeout time.Duration
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	// Enabled enables metrics (default: false).
	Enabled bool

	// Exporter specifies the metrics exporter type.
	Exporter ExporterType

	// Output receives stdout-exported metrics.
	Output io.Writer

	// ExportInterval is the metrics export interval.
	ExportInterval time.Duration
}

// ExporterType specifies the telemetry exporter.
type ExporterType string

const (
	// ExporterStdout writes telemetry as JSON to a writer.
	ExporterStdout ExporterType = "stdout"

	// ExporterNoop disables export.
	ExporterNoop ExporterType = "noop"
)

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "sysagent",
		ServiceVersion: "dev",
		Global:         true,
		Tracing: TracingConfig{
			Exporter:     ExporterNoop,
			Output:       os.Stderr,
			SampleRate:   1.0,
			BatchTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Exporter:       ExporterNoop,
			Output:         os.Stderr,
			ExportInterval: 30 * time.Second,
		},
	}
}

// Option configures the observability infrastructure.
type Option func(*Config)

// WithServiceName sets the service name.
func WithServiceName(name string) Option {
	return func(c *Config) {
		c.ServiceName = name
	}
}

// WithServiceVersion sets the service version.
func WithServiceVersion(version string) Option {
	return func(c *Config) {
		c.ServiceVersion = version
	}
}

// WithoutGlobal keeps the providers local to the returned Provider.
func WithoutGlobal() Option {
	return func(c *Config) {
		c.Global = false
	}
}

// WithSampleRate sets the trace sampling rate.
func WithSampleRate(rate float64) Option {
	return func(c *Config) {
		c.Tracing.SampleRate = rate
	}
}

// WithStdoutTracing exports spans to w. A nil w keeps the configured output.
func WithStdoutTracing(w io.Writer) Option {
	return func(c *Config) {
		c.Tracing.Enabled = true
		c.Tracing.Exporter = ExporterStdout
		if w != nil {
			c.Tracing.Output = w
		}
	}
}

// WithStdoutMetrics exports metrics to w every interval. A nil w keeps the
// configured output and a non-positive interval keeps the default.
func WithStdoutMetrics(w io.Writer, interval time.Duration) Option {
	return func(c *Config) {
		c.Metrics.Enabled = true
		c.Metrics.Exporter = ExporterStdout
		if w != nil {
			c.Metrics.Output = w
		}
		if interval > 0 {
			c.Metrics.ExportInterval = interval
		}
	}
}
