package agent

import (
	"errors"
	"fmt"
)

// Domain errors for the agent loop.
var (
	// ErrInvalidTransition indicates an attempted state transition is not allowed.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrMaxIterationsExceeded indicates the loop ran out of iterations.
	ErrMaxIterationsExceeded = errors.New("agent stopped due to iteration limit")

	// ErrUnrecoverableParse indicates the model kept producing unparseable output.
	ErrUnrecoverableParse = errors.New("could not parse model output")

	// ErrTaskNotFound indicates a task record does not exist.
	ErrTaskNotFound = errors.New("task not found")
)

// LoopErrorKind classifies why a task ended without an answer.
type LoopErrorKind int

const (
	// MaxIterationsExceeded means no final answer within the iteration limit.
	MaxIterationsExceeded LoopErrorKind = iota
	// UnrecoverableParse means consecutive parse failures exhausted the retry budget.
	UnrecoverableParse
)

// String returns the string representation of the kind.
func (k LoopErrorKind) String() string {
	switch k {
	case MaxIterationsExceeded:
		return "max_iterations_exceeded"
	case UnrecoverableParse:
		return "unrecoverable_parse"
	default:
		return "unknown"
	}
}

// LoopError terminates a single task. The session survives it.
type LoopError struct {
	Kind       LoopErrorKind
	Iterations int
	Err        error
}

// Error implements the error interface.
func (e *LoopError) Error() string {
	switch e.Kind {
	case MaxIterationsExceeded:
		return fmt.Sprintf("%v after %d iterations", ErrMaxIterationsExceeded, e.Iterations)
	case UnrecoverableParse:
		if e.Err != nil {
			return fmt.Sprintf("%v: %v", ErrUnrecoverableParse, e.Err)
		}
		return ErrUnrecoverableParse.Error()
	default:
		return "agent loop error"
	}
}

// Unwrap returns the underlying cause.
func (e *LoopError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error for the kind.
func (e *LoopError) Is(target error) bool {
	switch e.Kind {
	case MaxIterationsExceeded:
		return target == ErrMaxIterationsExceeded
	case UnrecoverableParse:
		return target == ErrUnrecoverableParse
	}
	return false
}
