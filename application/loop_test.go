package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/felixgeelhaar/sysagent/domain/agent"
	"github.com/felixgeelhaar/sysagent/domain/event"
	"github.com/felixgeelhaar/sysagent/domain/tool"
	eventpub "github.com/felixgeelhaar/sysagent/infrastructure/event"
	"github.com/felixgeelhaar/sysagent/infrastructure/parser"
	"github.com/felixgeelhaar/sysagent/infrastructure/planner"
	"github.com/felixgeelhaar/sysagent/infrastructure/storage/memory"
)

func echoTool() tool.Tool {
	return tool.NewBuilder("echo").
		WithDescription("Echoes its input").
		WithTextInput().
		WithHandler(func(_ context.Context, input string) (tool.Result, error) {
			return tool.NewResult("echo: " + input), nil
		}).
		MustBuild()
}

func failingTool() tool.Tool {
	return tool.NewBuilder("broken").
		WithDescription("Always fails").
		WithTextInput().
		WithHandler(func(context.Context, string) (tool.Result, error) {
			return tool.Result{}, errors.New("disk on fire")
		}).
		MustBuild()
}

func newTestRegistry(t *testing.T, tools ...tool.Tool) *memory.ToolRegistry {
	t.Helper()
	reg, err := memory.NewToolRegistry(tools...)
	if err != nil {
		t.Fatalf("NewToolRegistry() error = %v", err)
	}
	return reg
}

func newTestLoop(t *testing.T, provider planner.Provider, reg tool.Registry, opts ...Option) *Loop {
	t.Helper()
	opts = append([]Option{WithProvider(provider), WithRegistry(reg)}, opts...)
	l, err := NewLoopWithOptions(opts...)
	if err != nil {
		t.Fatalf("NewLoopWithOptions() error = %v", err)
	}
	return l
}

func newTask(input string) agent.Task {
	return agent.NewTask("task-1", input, nil)
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) handle(_ context.Context, e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func TestNewLoop_RequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewLoop(LoopConfig{Registry: newTestRegistry(t)}); err == nil {
		t.Error("NewLoop() without provider should fail")
	}
	if _, err := NewLoop(LoopConfig{Provider: planner.NewScriptedReplies()}); err == nil {
		t.Error("NewLoop() without registry should fail")
	}
}

func TestLoop_ToolThenFinalAnswer(t *testing.T) {
	t.Parallel()

	provider := planner.NewScriptedReplies(
		"Thought: I should echo\nAction: echo\nAction Input: hello",
		"Thought: I have it\nFinal Answer: hello back",
	)
	rec := &recorder{}
	l := newTestLoop(t, provider, newTestRegistry(t, echoTool()),
		WithPublisher(eventpub.NewPublisher(eventpub.WithHandler(rec.handle))))

	res, err := l.Run(context.Background(), newTask("say hello"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.Answer != "hello back" {
		t.Errorf("Answer = %q, want %q", res.Answer, "hello back")
	}
	if res.Iterations != 2 {
		t.Errorf("Iterations = %d, want 2", res.Iterations)
	}
	if res.ToolCalls != 1 {
		t.Errorf("ToolCalls = %d, want 1", res.ToolCalls)
	}
	if res.State != agent.StateFinished {
		t.Errorf("State = %s, want %s", res.State, agent.StateFinished)
	}

	reqs := provider.Requests()
	if len(reqs) != 2 {
		t.Fatalf("provider got %d requests, want 2", len(reqs))
	}
	second := reqs[1].Messages[0].Content
	if !strings.Contains(second, "Observation: echo: hello") {
		t.Errorf("second prompt missing observation:\n%s", second)
	}

	want := []event.Type{event.TypeActionTaken, event.TypeObservationReceived, event.TypeFinalOutput}
	got := rec.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("events[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestLoop_UnknownToolTwiceFails(t *testing.T) {
	t.Parallel()

	provider := planner.NewScriptedReplies(
		"Thought: try it\nAction: teleport\nAction Input: mars",
		"Thought: again\nAction: teleport\nAction Input: mars",
		"Thought: never reached\nFinal Answer: no",
	)
	l := newTestLoop(t, provider, newTestRegistry(t, echoTool()))

	res, err := l.Run(context.Background(), newTask("go to mars"))
	if res != nil {
		t.Errorf("Run() result = %+v, want nil", res)
	}
	if !errors.Is(err, agent.ErrUnrecoverableParse) {
		t.Fatalf("Run() error = %v, want ErrUnrecoverableParse", err)
	}
	if !errors.Is(err, parser.ErrUnknownTool) {
		t.Errorf("Run() error = %v, want wrapped ErrUnknownTool", err)
	}

	var lerr *agent.LoopError
	if !errors.As(err, &lerr) {
		t.Fatalf("Run() error type = %T, want *agent.LoopError", err)
	}
	if lerr.Iterations != 2 {
		t.Errorf("Iterations = %d, want 2", lerr.Iterations)
	}
	if got := provider.CurrentStep(); got != 2 {
		t.Errorf("completions = %d, want 2", got)
	}
}

func TestLoop_ParseRetryHintThenSuccess(t *testing.T) {
	t.Parallel()

	provider := planner.NewScriptedReplies(
		"I am not following the format",
		"Thought: fine\nFinal Answer: 42",
	)
	l := newTestLoop(t, provider, newTestRegistry(t, echoTool()))

	res, err := l.Run(context.Background(), newTask("answer"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Answer != "42" {
		t.Errorf("Answer = %q, want %q", res.Answer, "42")
	}
	if res.Iterations != 2 {
		t.Errorf("Iterations = %d, want 2", res.Iterations)
	}

	reqs := provider.Requests()
	if len(reqs) != 2 {
		t.Fatalf("provider got %d requests, want 2", len(reqs))
	}
	if strings.Contains(reqs[0].Messages[0].Content, "previous reply was rejected") {
		t.Error("first prompt should not carry a hint")
	}
	if !strings.Contains(reqs[1].Messages[0].Content, "previous reply was rejected") {
		t.Error("second prompt should carry the rejection hint")
	}
}

func TestLoop_ParseRetriesDisabled(t *testing.T) {
	t.Parallel()

	provider := planner.NewScriptedReplies("garbage", "Thought: ok\nFinal Answer: late")
	l := newTestLoop(t, provider, newTestRegistry(t, echoTool()), WithParseRetries(0))

	_, err := l.Run(context.Background(), newTask("answer"))
	if !errors.Is(err, agent.ErrUnrecoverableParse) {
		t.Errorf("Run() error = %v, want ErrUnrecoverableParse", err)
	}
	if got := provider.CurrentStep(); got != 1 {
		t.Errorf("completions = %d, want 1", got)
	}
}

func TestLoop_MaxIterations(t *testing.T) {
	t.Parallel()

	step := "Thought: again\nAction: echo\nAction Input: loop"
	provider := planner.NewScriptedReplies(step, step, step, step)
	l := newTestLoop(t, provider, newTestRegistry(t, echoTool()), WithMaxIterations(3))

	_, err := l.Run(context.Background(), newTask("spin"))
	if !errors.Is(err, agent.ErrMaxIterationsExceeded) {
		t.Fatalf("Run() error = %v, want ErrMaxIterationsExceeded", err)
	}
	var lerr *agent.LoopError
	if errors.As(err, &lerr) && lerr.Iterations != 3 {
		t.Errorf("Iterations = %d, want 3", lerr.Iterations)
	}
	if got := provider.CurrentStep(); got != 3 {
		t.Errorf("completions = %d, want 3", got)
	}
}

func TestLoop_RetryDeniedByIterationBudget(t *testing.T) {
	t.Parallel()

	provider := planner.NewScriptedReplies(
		"Thought: look\nAction: echo\nAction Input: x",
		"nonsense",
	)
	l := newTestLoop(t, provider, newTestRegistry(t, echoTool()), WithMaxIterations(2))

	_, err := l.Run(context.Background(), newTask("spin"))
	if !errors.Is(err, agent.ErrMaxIterationsExceeded) {
		t.Errorf("Run() error = %v, want ErrMaxIterationsExceeded", err)
	}
}

func TestLoop_ToolFailureBecomesObservation(t *testing.T) {
	t.Parallel()

	provider := planner.NewScriptedReplies(
		"Thought: use it\nAction: broken\nAction Input: now",
		"Thought: it failed\nFinal Answer: the tool is broken",
	)
	rec := &recorder{}
	l := newTestLoop(t, provider, newTestRegistry(t, failingTool()),
		WithPublisher(eventpub.NewPublisher(eventpub.WithHandler(rec.handle))))

	res, err := l.Run(context.Background(), newTask("try"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Answer != "the tool is broken" {
		t.Errorf("Answer = %q", res.Answer)
	}

	second := provider.Requests()[1].Messages[0].Content
	if !strings.Contains(second, "disk on fire") {
		t.Errorf("second prompt missing tool error:\n%s", second)
	}

	var found bool
	for _, e := range rec.events {
		if e.Type != event.TypeObservationReceived {
			continue
		}
		var payload event.ObservationReceivedPayload
		if err := e.UnmarshalPayload(&payload); err != nil {
			t.Fatalf("UnmarshalPayload() error = %v", err)
		}
		found = true
		if !payload.Failed {
			t.Error("observation should be marked failed")
		}
	}
	if !found {
		t.Error("no observation event published")
	}
}

func TestLoop_ModelError(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	provider := planner.NewScriptedProvider(planner.Fail(boom))
	l := newTestLoop(t, provider, newTestRegistry(t, echoTool()))

	_, err := l.Run(context.Background(), newTask("hi"))
	if !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, want %v", err, boom)
	}
}

func TestLoop_Cancelled(t *testing.T) {
	t.Parallel()

	t.Run("before start", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		provider := planner.NewScriptedReplies("Thought: x\nFinal Answer: y")
		l := newTestLoop(t, provider, newTestRegistry(t, echoTool()))

		_, err := l.Run(ctx, newTask("hi"))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
		if got := provider.CurrentStep(); got != 0 {
			t.Errorf("completions = %d, want 0", got)
		}
	})

	t.Run("during tool", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		stopper := tool.NewBuilder("stop").
			WithTextInput().
			WithHandler(func(context.Context, string) (tool.Result, error) {
				cancel()
				return tool.NewResult("stopped"), nil
			}).
			MustBuild()

		provider := planner.NewScriptedReplies(
			"Thought: stop\nAction: stop\nAction Input: now",
			"Thought: x\nFinal Answer: y",
		)
		l := newTestLoop(t, provider, newTestRegistry(t, stopper))

		_, err := l.Run(ctx, newTask("hi"))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
		if got := provider.CurrentStep(); got != 1 {
			t.Errorf("completions = %d, want 1", got)
		}
	})
}

func TestLoop_HistoryInPrompt(t *testing.T) {
	t.Parallel()

	provider := planner.NewScriptedReplies("Thought: known\nFinal Answer: yes")
	l := newTestLoop(t, provider, newTestRegistry(t, echoTool()))

	task := newTask("and now?")
	task.History = append(task.History, historyTurns("what OS?", "Linux")...)

	if _, err := l.Run(context.Background(), task); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	prompt := provider.Requests()[0].Messages[0].Content
	for _, want := range []string{"Human: what OS?", "AI: Linux", "New input: and now?"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestLoop_EventsPersisted(t *testing.T) {
	t.Parallel()

	store := memory.NewEventStore()
	provider := planner.NewScriptedReplies(
		"Thought: echo\nAction: echo\nAction Input: ping",
		"Thought: done\nFinal Answer: pong",
	)
	l := newTestLoop(t, provider, newTestRegistry(t, echoTool()),
		WithPublisher(eventpub.NewPublisher(eventpub.WithStore(store))))

	if _, err := l.Run(context.Background(), newTask("ping")); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	events, err := store.Load(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(events) != 3 {
		t.Errorf("stored %d events, want 3", len(events))
	}
}

func TestLoop_Spans(t *testing.T) {
	t.Parallel()

	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))

	provider := planner.NewScriptedReplies(
		"Thought: echo\nAction: echo\nAction Input: ping",
		"Thought: done\nFinal Answer: pong",
	)
	l := newTestLoop(t, provider, newTestRegistry(t, echoTool()), WithTracer(tp.Tracer("test")))

	if _, err := l.Run(context.Background(), newTask("ping")); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	ended := spans.Ended()
	want := []string{"completion", "tool", "completion", "task"}
	if len(ended) != len(want) {
		t.Fatalf("ended %d spans, want %d", len(ended), len(want))
	}
	for i, name := range want {
		if got := ended[i].Name(); got != name {
			t.Errorf("span[%d] = %q, want %q", i, got, name)
		}
	}

	task := ended[len(ended)-1]
	for _, c := range ended[:len(ended)-1] {
		if c.Parent().SpanID() != task.SpanContext().SpanID() {
			t.Errorf("span %q is not a child of task", c.Name())
		}
	}
}
