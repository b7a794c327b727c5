package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the sysagent tracer.
const InstrumentationName = "github.com/felixgeelhaar/sysagent"

// Span attribute keys.
const (
	AttrTaskID     = attribute.Key("sysagent.task.id")
	AttrIteration  = attribute.Key("sysagent.iteration")
	AttrToolName   = attribute.Key("sysagent.tool.name")
	AttrToolFailed = attribute.Key("sysagent.tool.failed")
	AttrModel      = attribute.Key("sysagent.model")
	AttrOutcome    = attribute.Key("sysagent.outcome")
)

// Tracer returns the sysagent tracer from the global provider. It is a no-op
// until a Provider installs a global tracer provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// EndSpan marks span failed when err is set and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
