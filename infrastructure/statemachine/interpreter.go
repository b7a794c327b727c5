package statemachine

import (
	"fmt"
	"slices"

	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/sysagent/domain/agent"
)

// Interpreter wraps the statekit interpreter with loop-specific operations.
// It is owned by a single task and is not safe for concurrent use.
type Interpreter struct {
	interp *statekit.Interpreter[*Context]
	ctx    *Context
}

// NewInterpreter creates a new interpreter for the loop state machine.
func NewInterpreter(machine *statekit.MachineConfig[*Context], ctx *Context) *Interpreter {
	interp := statekit.NewInterpreter(machine)
	// Update the context reference in the machine
	interp.UpdateContext(func(c **Context) {
		*c = ctx
	})
	return &Interpreter{
		interp: interp,
		ctx:    ctx,
	}
}

// NewTaskInterpreter builds the chart and an interpreter for one task.
func NewTaskInterpreter(taskID string, maxIterations, parseRetries int) (*Interpreter, error) {
	machine, err := NewLoopMachine()
	if err != nil {
		return nil, fmt.Errorf("build loop machine: %w", err)
	}
	return NewInterpreter(machine, NewContext(taskID, maxIterations, parseRetries)), nil
}

// Start enters the initial reasoning state.
func (i *Interpreter) Start() {
	i.interp.Start()
}

// Stop stops the interpreter.
func (i *Interpreter) Stop() {
	i.interp.Stop()
}

// State returns the current state.
func (i *Interpreter) State() agent.State {
	return agent.State(i.interp.State().Value)
}

// Context returns the interpreter context.
func (i *Interpreter) Context() *Context {
	return i.ctx
}

// IsTerminal returns true if the interpreter is in a terminal state.
func (i *Interpreter) IsTerminal() bool {
	return i.interp.Done()
}

// Act moves from reasoning to acting after a parsed tool call.
func (i *Interpreter) Act() bool {
	return i.send(EventAct, nil) == agent.StateActing
}

// Observe returns to reasoning once the observation is recorded. It reports
// false, leaving the chart in acting, when the iteration budget is spent.
func (i *Interpreter) Observe() bool {
	return i.send(EventObserve, nil) == agent.StateReasoning
}

// Retry re-enters reasoning after a parse failure. It reports false when the
// retry or iteration budget is spent.
func (i *Interpreter) Retry() bool {
	before := i.ctx.ParseFailures
	i.send(EventRetry, nil)
	if i.ctx.ParseFailures == before {
		return false
	}
	i.record(agent.StateReasoning, agent.StateReasoning, EventRetry)
	return true
}

// Finish moves to the finished state.
func (i *Interpreter) Finish() bool {
	return i.send(EventFinish, nil) == agent.StateFinished
}

// Fail moves to the failed state, recording reason.
func (i *Interpreter) Fail(reason string) bool {
	return i.send(EventFail, reason) == agent.StateFailed
}

// accepted lists the events each non-terminal state handles.
var accepted = map[agent.State][]statekit.EventType{
	agent.StateReasoning: {EventAct, EventRetry, EventFinish, EventFail},
	agent.StateActing:    {EventObserve, EventFail},
}

// send dispatches an event and records any resulting state change. Events
// the current state does not handle are dropped without reaching statekit.
func (i *Interpreter) send(eventType statekit.EventType, payload any) agent.State {
	from := i.State()
	if !slices.Contains(accepted[from], eventType) {
		return from
	}
	i.interp.Send(statekit.Event{Type: eventType, Payload: payload})
	to := i.State()

	if to != from {
		i.record(from, to, eventType)
	}
	return to
}

func (i *Interpreter) record(from, to agent.State, eventType statekit.EventType) {
	i.ctx.Transitions = append(i.ctx.Transitions, Transition{From: from, To: to, Event: eventType})
}
