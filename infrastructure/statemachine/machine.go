// Package statemachine provides the statekit chart driving one task's
// reason-act-observe loop.
package statemachine

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/sysagent/domain/agent"
)

// Default budgets.
const (
	DefaultMaxIterations = 15
	DefaultParseRetries  = 1
)

// Context carries task counters through the state machine.
type Context struct {
	TaskID string

	// Iterations counts model completions requested so far, the current one included.
	Iterations    int
	MaxIterations int

	// ParseFailures counts consecutive unparseable completions.
	ParseFailures int
	ParseRetries  int

	// FailReason is set when the chart enters failed.
	FailReason string

	// Transitions is the ordered trace of state changes.
	Transitions []Transition
}

// Transition records one state change.
type Transition struct {
	From  agent.State
	To    agent.State
	Event statekit.EventType
}

// NewContext creates a machine context for one task. A non-positive
// maxIterations uses the default and a negative parseRetries counts as zero.
func NewContext(taskID string, maxIterations, parseRetries int) *Context {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	if parseRetries < 0 {
		parseRetries = 0
	}
	return &Context{
		TaskID:        taskID,
		Iterations:    1,
		MaxIterations: maxIterations,
		ParseRetries:  parseRetries,
	}
}

// Event types.
const (
	EventAct     statekit.EventType = "ACT"
	EventObserve statekit.EventType = "OBSERVE"
	EventRetry   statekit.EventType = "RETRY"
	EventFinish  statekit.EventType = "FINISH"
	EventFail    statekit.EventType = "FAIL"
)

// State IDs as StateID type for statekit.
const (
	stateReasoning statekit.StateID = statekit.StateID(agent.StateReasoning)
	stateActing    statekit.StateID = statekit.StateID(agent.StateActing)
	stateFinished  statekit.StateID = statekit.StateID(agent.StateFinished)
	stateFailed    statekit.StateID = statekit.StateID(agent.StateFailed)
)

// NewLoopMachine creates the task loop statechart:
// reasoning → {acting → reasoning, finished}, plus failed.
func NewLoopMachine() (*statekit.MachineConfig[*Context], error) {
	return statekit.NewMachine[*Context]("loop").
		WithInitial(stateReasoning).
		WithContext(&Context{}).
		// Register actions
		WithAction("countIteration", countIteration).
		WithAction("countParseFailure", countParseFailure).
		WithAction("resetParseFailures", resetParseFailures).
		WithAction("recordFailure", recordFailure).
		// Register guards
		WithGuard("iterationsRemain", guardIterationsRemain).
		WithGuard("retryAvailable", guardRetryAvailable).
		// Define states
		State(stateReasoning).
			On(EventAct).Target(stateActing).Do("resetParseFailures").
			On(EventRetry).Target(stateReasoning).Guard("retryAvailable").Do("countParseFailure").
			On(EventFinish).Target(stateFinished).Do("resetParseFailures").
			On(EventFail).Target(stateFailed).Do("recordFailure").
			Done().
		State(stateActing).
			On(EventObserve).Target(stateReasoning).Guard("iterationsRemain").Do("countIteration").
			On(EventFail).Target(stateFailed).Do("recordFailure").
			Done().
		State(stateFinished).
			Final().
			Done().
		State(stateFailed).
			Final().
			Done().
		Build()
}
