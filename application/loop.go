// Package application provides the application layer: the reasoning loop
// that drives one task and the session that feeds it operator input.
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/sysagent/domain/agent"
	"github.com/felixgeelhaar/sysagent/domain/event"
	"github.com/felixgeelhaar/sysagent/domain/tool"
	"github.com/felixgeelhaar/sysagent/infrastructure/logging"
	"github.com/felixgeelhaar/sysagent/infrastructure/observability"
	"github.com/felixgeelhaar/sysagent/infrastructure/parser"
	"github.com/felixgeelhaar/sysagent/infrastructure/planner"
	"github.com/felixgeelhaar/sysagent/infrastructure/resilience"
	"github.com/felixgeelhaar/sysagent/infrastructure/statemachine"
	"github.com/felixgeelhaar/sysagent/infrastructure/telemetry"
)

// Loop drives tasks through the reason-act-observe cycle. A Loop holds no
// per-task state and may run several tasks concurrently.
type Loop struct {
	provider      planner.Provider
	prompt        *planner.Prompt
	registry      tool.Registry
	invoker       tool.Invoker
	publisher     event.Publisher
	metrics       telemetry.Metrics
	tracer        trace.Tracer
	model         string
	modelFamily   string
	maxIterations int
	parseRetries  int
}

// LoopConfig contains configuration for the loop.
type LoopConfig struct {
	Provider      planner.Provider
	Prompt        *planner.Prompt
	Registry      tool.Registry
	Invoker       tool.Invoker
	Publisher     event.Publisher
	Metrics       telemetry.Metrics
	Tracer        trace.Tracer
	Model         string
	ModelFamily   string
	MaxIterations int
	ParseRetries  int
}

// NewLoop creates a loop with the given configuration.
func NewLoop(config LoopConfig) (*Loop, error) {
	if config.Provider == nil {
		return nil, errors.New("provider is required")
	}
	if config.Registry == nil {
		return nil, errors.New("registry is required")
	}

	l := &Loop{
		provider:      config.Provider,
		prompt:        config.Prompt,
		registry:      config.Registry,
		invoker:       config.Invoker,
		publisher:     config.Publisher,
		metrics:       config.Metrics,
		tracer:        config.Tracer,
		model:         config.Model,
		modelFamily:   config.ModelFamily,
		maxIterations: config.MaxIterations,
		parseRetries:  config.ParseRetries,
	}

	if l.prompt == nil {
		l.prompt = planner.DefaultPrompt()
	}
	if l.invoker == nil {
		l.invoker = resilience.NewInvoker(nil)
	}
	if l.metrics == nil {
		l.metrics = &telemetry.NoopMetricsProvider{}
	}
	if l.tracer == nil {
		l.tracer = observability.Tracer()
	}
	if l.maxIterations <= 0 {
		l.maxIterations = statemachine.DefaultMaxIterations
	}
	if l.parseRetries < 0 {
		l.parseRetries = 0
	}

	return l, nil
}

// Result describes a finished task.
type Result struct {
	TaskID     string
	Answer     string
	Thought    string
	Iterations int
	ToolCalls  int
	Duration   time.Duration
	State      agent.State

	// Transitions is the chart trace, useful for diagnostics.
	Transitions []statemachine.Transition
}

// run is the working state of one task.
type run struct {
	task       agent.Task
	interp     *statemachine.Interpreter
	scratchpad agent.Scratchpad
	tools      []planner.ToolInfo
	hint       string
	toolCalls  int
}

// Run drives task to a terminal state. It returns a *agent.LoopError when
// the task ends without an answer and the context error when ctx is done.
// Tool and parse failures are recovered inside the loop.
func (l *Loop) Run(ctx context.Context, task agent.Task) (*Result, error) {
	interp, err := statemachine.NewTaskInterpreter(task.ID, l.maxIterations, l.parseRetries)
	if err != nil {
		return nil, err
	}
	interp.Start()
	defer interp.Stop()

	r := &run{task: task, interp: interp, tools: l.toolInfo()}

	ctx, span := l.tracer.Start(ctx, "task", trace.WithAttributes(
		observability.AttrTaskID.String(task.ID),
		observability.AttrModel.String(l.model),
	))

	l.metrics.IncrementActiveTasks(ctx)
	defer l.metrics.DecrementActiveTasks(ctx)

	logging.Info().
		Add(logging.TaskID(task.ID)).
		Add(logging.Int("history_turns", len(task.History))).
		Msg("task started")

	res, err := l.drive(ctx, r)

	status := string(agent.TaskStatusCompleted)
	if err != nil {
		status = string(agent.TaskStatusFailed)
	}
	l.metrics.RecordTask(ctx, status, interp.Context().Iterations, time.Since(task.StartTime))

	span.SetAttributes(
		observability.AttrIteration.Int(interp.Context().Iterations),
		observability.AttrOutcome.String(status),
	)
	observability.EndSpan(span, err)

	return res, err
}

func (l *Loop) drive(ctx context.Context, r *run) (*Result, error) {
	mctx := r.interp.Context()

	for {
		if err := ctx.Err(); err != nil {
			return nil, l.abort(r, err)
		}

		text, err := l.complete(ctx, r)
		if err != nil {
			if ctx.Err() != nil {
				return nil, l.abort(r, ctx.Err())
			}
			r.interp.Fail("model completion failed")
			logging.Error().
				Add(logging.TaskID(r.task.ID)).
				Add(logging.Iteration(mctx.Iterations)).
				Add(logging.ErrorField(err)).
				Msg("model completion failed")
			return nil, fmt.Errorf("model completion: %w", err)
		}

		step, err := parser.New(l.registry).Parse(text)
		if err != nil {
			if lerr := l.rejectStep(ctx, r, err); lerr != nil {
				return nil, lerr
			}
			continue
		}
		r.hint = ""

		if step.IsFinal() {
			return l.finish(ctx, r, step), nil
		}

		r.interp.Act()
		l.emit(ctx, r.task.ID, event.TypeActionTaken, event.ActionTakenPayload{
			Iteration: mctx.Iterations,
			Thought:   step.Thought,
			Tool:      step.ToolCall.Tool,
			Input:     step.ToolCall.Input,
			Log:       step.Log,
		})

		obs := l.invoke(ctx, step.ToolCall)
		r.toolCalls++
		if err := ctx.Err(); err != nil {
			return nil, l.abort(r, err)
		}

		r.scratchpad.Append(step, obs)
		l.emit(ctx, r.task.ID, event.TypeObservationReceived, event.ObservationReceivedPayload{
			Iteration: mctx.Iterations,
			Tool:      obs.Source,
			Text:      obs.Text,
			Failed:    obs.Failed,
			Duration:  obs.Duration,
		})

		if !r.interp.Observe() {
			return nil, l.exhausted(r)
		}
	}
}

// complete renders the prompt for the current state and requests one completion.
func (l *Loop) complete(ctx context.Context, r *run) (string, error) {
	prompt, err := l.prompt.Render(planner.PromptData{
		ModelFamily: l.modelFamily,
		Tools:       r.tools,
		History:     planner.Turns(r.task.History),
		Input:       r.task.Input,
		Scratchpad:  r.scratchpad.Format(),
		Hint:        r.hint,
	})
	if err != nil {
		return "", err
	}

	logging.Debug().
		Add(logging.TaskID(r.task.ID)).
		Add(logging.Iteration(r.interp.Context().Iterations)).
		Add(logging.Bytes(len(prompt))).
		Msg("requesting completion")

	ctx, span := l.tracer.Start(ctx, "completion", trace.WithAttributes(
		observability.AttrIteration.Int(r.interp.Context().Iterations),
	))
	text, err := planner.Complete(ctx, l.provider, planner.CompletionRequest{
		Model:    l.model,
		Messages: []planner.Message{{Role: planner.RoleUser, Content: prompt}},
	})
	observability.EndSpan(span, err)
	return text, err
}

// rejectStep handles an unparseable completion. It returns nil when the model
// gets another attempt and a terminal error otherwise.
func (l *Loop) rejectStep(ctx context.Context, r *run, err error) error {
	mctx := r.interp.Context()

	var perr *parser.ParseError
	if !errors.As(err, &perr) {
		perr = &parser.ParseError{Kind: parser.Malformed, Reason: err.Error()}
	}
	l.metrics.RecordParseFailure(ctx, perr.Kind.String())

	logging.Warn().
		Add(logging.TaskID(r.task.ID)).
		Add(logging.Iteration(mctx.Iterations)).
		Add(logging.Reason(perr.Kind.String())).
		Add(logging.ErrorField(perr)).
		Msg("model output rejected")

	if r.interp.Retry() {
		r.hint = perr.Hint(l.registry.Names())
		return nil
	}

	if mctx.ParseFailures < mctx.ParseRetries {
		return l.exhausted(r)
	}

	r.interp.Fail(perr.Error())
	lerr := &agent.LoopError{Kind: agent.UnrecoverableParse, Iterations: mctx.Iterations, Err: perr}
	logging.Error().
		Add(logging.TaskID(r.task.ID)).
		Add(logging.Iteration(mctx.Iterations)).
		Add(logging.ErrorField(lerr)).
		Msg("task failed")
	return lerr
}

// invoke resolves and runs a tool. The parser only admits registered names,
// so resolution fails only if the registry changed mid-task.
func (l *Loop) invoke(ctx context.Context, call *agent.ToolCall) tool.Observation {
	ctx, span := l.tracer.Start(ctx, "tool", trace.WithAttributes(
		observability.AttrToolName.String(call.Tool),
	))
	defer span.End()

	t, err := l.registry.Resolve(call.Tool)
	if err != nil {
		span.SetAttributes(observability.AttrToolFailed.Bool(true))
		return tool.FailedObservation(call.Tool, tool.NewError(tool.ResolutionFailed, call.Tool, err))
	}
	obs := l.invoker.Invoke(ctx, t, call.Input)
	span.SetAttributes(observability.AttrToolFailed.Bool(obs.Failed))
	return obs
}

func (l *Loop) finish(ctx context.Context, r *run, step agent.ReasoningStep) *Result {
	r.interp.Finish()
	mctx := r.interp.Context()
	elapsed := time.Since(r.task.StartTime)

	l.emit(ctx, r.task.ID, event.TypeFinalOutput, event.FinalOutputPayload{
		Thought:    step.Thought,
		Answer:     step.Final.Text,
		Iterations: mctx.Iterations,
		Duration:   elapsed,
	})

	logging.Info().
		Add(logging.TaskID(r.task.ID)).
		Add(logging.Iteration(mctx.Iterations)).
		Add(logging.Duration(elapsed)).
		Msg("task finished")

	// The scratchpad dies with the task; only the answer survives.
	r.scratchpad.Reset()

	return &Result{
		TaskID:      r.task.ID,
		Answer:      step.Final.Text,
		Thought:     step.Thought,
		Iterations:  mctx.Iterations,
		ToolCalls:   r.toolCalls,
		Duration:    elapsed,
		State:       r.interp.State(),
		Transitions: mctx.Transitions,
	}
}

func (l *Loop) exhausted(r *run) error {
	mctx := r.interp.Context()
	r.interp.Fail("iteration limit reached")
	lerr := &agent.LoopError{Kind: agent.MaxIterationsExceeded, Iterations: mctx.Iterations}
	logging.Warn().
		Add(logging.TaskID(r.task.ID)).
		Add(logging.Iteration(mctx.Iterations)).
		Msg("task inconclusive")
	return lerr
}

func (l *Loop) abort(r *run, err error) error {
	r.interp.Fail("cancelled")
	logging.Warn().
		Add(logging.TaskID(r.task.ID)).
		Add(logging.ErrorField(err)).
		Msg("task cancelled")
	return err
}

// emit publishes one event. Delivery failures are logged and otherwise ignored.
func (l *Loop) emit(ctx context.Context, taskID string, t event.Type, payload any) {
	if l.publisher == nil {
		return
	}
	e, err := event.NewEvent(taskID, t, payload)
	if err == nil {
		err = l.publisher.Publish(context.WithoutCancel(ctx), e)
	}
	if err != nil {
		logging.Warn().
			Add(logging.TaskID(taskID)).
			Add(logging.Str("event", string(t))).
			Add(logging.ErrorField(err)).
			Msg("event delivery failed")
	}
}

func (l *Loop) toolInfo() []planner.ToolInfo {
	tools := l.registry.List()
	out := make([]planner.ToolInfo, 0, len(tools))
	for _, t := range tools {
		out = append(out, planner.ToolInfo{Name: t.Name(), Description: t.Description()})
	}
	return out
}
