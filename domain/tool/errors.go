package tool

import (
	"errors"
	"fmt"
)

// Domain errors for the tool system.
var (
	// ErrEmptyName indicates a tool was created with an empty name.
	ErrEmptyName = errors.New("tool name cannot be empty")

	// ErrInvalidName indicates a tool name contains whitespace.
	ErrInvalidName = errors.New("tool name cannot contain whitespace")

	// ErrNoHandler indicates a tool was created without a handler.
	ErrNoHandler = errors.New("tool has no handler")

	// ErrToolNotFound indicates the requested tool was not found.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolExists indicates a tool with the same name already exists.
	ErrToolExists = errors.New("tool already exists")

	// ErrExecutionFailed indicates the tool ran and failed.
	ErrExecutionFailed = errors.New("tool execution failed")

	// ErrExecutionTimeout indicates the tool execution timed out.
	ErrExecutionTimeout = errors.New("tool execution timed out")
)

// ErrorKind classifies a tool invocation failure.
type ErrorKind int

const (
	// ResolutionFailed means the tool could not be looked up.
	ResolutionFailed ErrorKind = iota
	// ExecutionFailed means the tool ran and returned an error.
	ExecutionFailed
	// Timeout means the tool exceeded its time budget.
	Timeout
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ResolutionFailed:
		return "resolution_failed"
	case ExecutionFailed:
		return "execution_failed"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error describes why a tool invocation did not produce a normal result.
// It never escapes the registry; it is rendered into an Observation.
type Error struct {
	Kind ErrorKind
	Tool string
	Err  error
}

// NewError creates a tool error of the given kind.
func NewError(kind ErrorKind, toolName string, err error) *Error {
	return &Error{Kind: kind, Tool: toolName, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Kind {
	case ResolutionFailed:
		return fmt.Sprintf("%s is not a valid tool, try one of the available tools", e.Tool)
	case Timeout:
		return fmt.Sprintf("tool %s timed out: %v", e.Tool, e.Err)
	default:
		return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
	}
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error for the kind.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case ResolutionFailed:
		return target == ErrToolNotFound
	case ExecutionFailed:
		return target == ErrExecutionFailed
	case Timeout:
		return target == ErrExecutionTimeout
	}
	return false
}
