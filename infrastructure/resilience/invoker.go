package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/sysagent/domain/tool"
	"github.com/felixgeelhaar/sysagent/infrastructure/logging"
	"github.com/felixgeelhaar/sysagent/infrastructure/telemetry"
)

// Invoker turns tool executions into observations. It implements
// tool.Invoker and never returns an error.
type Invoker struct {
	executor *Executor
	metrics  telemetry.Metrics
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithMetrics records invocation metrics.
func WithMetrics(m telemetry.Metrics) InvokerOption {
	return func(i *Invoker) {
		i.metrics = m
	}
}

// NewInvoker creates an invoker backed by the executor.
func NewInvoker(executor *Executor, opts ...InvokerOption) *Invoker {
	if executor == nil {
		executor = NewDefaultExecutor()
	}
	i := &Invoker{
		executor: executor,
		metrics:  &telemetry.NoopMetricsProvider{},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Invoke runs t with input. Failures, timeouts and panics become
// observation text so the model can react to them.
func (i *Invoker) Invoke(ctx context.Context, t tool.Tool, input string) (obs tool.Observation) {
	if t == nil {
		return tool.FailedObservation("", tool.NewError(tool.ResolutionFailed, "", tool.ErrToolNotFound))
	}

	name := t.Name()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			obs = i.fail(ctx, name, tool.NewError(tool.ExecutionFailed, name, fmt.Errorf("panic: %v", r)), start)
		}
	}()

	result, err := i.executor.Execute(ctx, t, input)
	if err != nil {
		kind := tool.ExecutionFailed
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			kind = tool.Timeout
		}
		return i.fail(ctx, name, tool.NewError(kind, name, err), start)
	}

	i.metrics.RecordToolInvocation(ctx, name, "ok", result.Duration)
	logging.Debug().
		Add(logging.ToolName(name)).
		Add(logging.Duration(result.Duration)).
		Add(logging.Bytes(len(result.Output))).
		Msg("tool invoked")

	return tool.NewObservation(name, result)
}

func (i *Invoker) fail(ctx context.Context, name string, terr *tool.Error, start time.Time) tool.Observation {
	elapsed := time.Since(start)
	i.metrics.RecordToolInvocation(ctx, name, terr.Kind.String(), elapsed)
	logging.Warn().
		Add(logging.ToolName(name)).
		Add(logging.Reason(terr.Kind.String())).
		Add(logging.ErrorField(terr.Err)).
		Msg("tool invocation failed")

	obs := tool.FailedObservation(name, terr)
	obs.Duration = elapsed
	return obs
}

var _ tool.Invoker = (*Invoker)(nil)
