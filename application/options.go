package application

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/sysagent/domain/event"
	"github.com/felixgeelhaar/sysagent/domain/tool"
	"github.com/felixgeelhaar/sysagent/infrastructure/planner"
	"github.com/felixgeelhaar/sysagent/infrastructure/telemetry"
)

// Option configures the loop.
type Option func(*LoopConfig)

// WithProvider sets the model backend.
func WithProvider(p planner.Provider) Option {
	return func(c *LoopConfig) {
		c.Provider = p
	}
}

// WithPrompt sets the prompt template.
func WithPrompt(p *planner.Prompt) Option {
	return func(c *LoopConfig) {
		c.Prompt = p
	}
}

// WithRegistry sets the tool registry.
func WithRegistry(r tool.Registry) Option {
	return func(c *LoopConfig) {
		c.Registry = r
	}
}

// WithInvoker sets the tool invoker.
func WithInvoker(i tool.Invoker) Option {
	return func(c *LoopConfig) {
		c.Invoker = i
	}
}

// WithPublisher sets where task events go.
func WithPublisher(p event.Publisher) Option {
	return func(c *LoopConfig) {
		c.Publisher = p
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m telemetry.Metrics) Option {
	return func(c *LoopConfig) {
		c.Metrics = m
	}
}

// WithTracer sets the tracer for task, completion and tool spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *LoopConfig) {
		c.Tracer = t
	}
}

// WithModel sets the model name sent with each request and the family
// named in the prompt preamble.
func WithModel(name, family string) Option {
	return func(c *LoopConfig) {
		c.Model = name
		c.ModelFamily = family
	}
}

// WithMaxIterations caps model completions per task.
func WithMaxIterations(n int) Option {
	return func(c *LoopConfig) {
		c.MaxIterations = n
	}
}

// WithParseRetries sets how many consecutive unparseable replies are
// re-prompted before the task fails.
func WithParseRetries(n int) Option {
	return func(c *LoopConfig) {
		c.ParseRetries = n
	}
}

// NewLoopWithOptions creates a loop with functional options.
func NewLoopWithOptions(opts ...Option) (*Loop, error) {
	config := LoopConfig{ParseRetries: 1}
	for _, opt := range opts {
		opt(&config)
	}
	return NewLoop(config)
}
