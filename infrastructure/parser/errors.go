package parser

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by ParseError.Is.
var (
	// ErrMalformed indicates the text does not follow the step grammar.
	ErrMalformed = errors.New("malformed model output")

	// ErrUnknownTool indicates the action names an unregistered tool.
	ErrUnknownTool = errors.New("unknown tool")
)

// Kind classifies a parse failure.
type Kind int

const (
	// Malformed means a required marker is missing or out of order.
	Malformed Kind = iota
	// UnknownTool means the action name does not resolve.
	UnknownTool
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case UnknownTool:
		return "unknown_tool"
	default:
		return "unknown"
	}
}

// ParseError describes why a completion could not become a reasoning step.
type ParseError struct {
	Kind Kind

	// Reason is a short description of what was wrong.
	Reason string

	// Tool is the offending action name for UnknownTool.
	Tool string

	// Line is the 1-based line where parsing stopped, 0 at end of text.
	Line int
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Kind == UnknownTool {
		return fmt.Sprintf("%v: %q", ErrUnknownTool, e.Tool)
	}
	if e.Line > 0 {
		return fmt.Sprintf("%v: %s (line %d)", ErrMalformed, e.Reason, e.Line)
	}
	return fmt.Sprintf("%v: %s", ErrMalformed, e.Reason)
}

// Is matches the sentinel error for the kind.
func (e *ParseError) Is(target error) bool {
	switch e.Kind {
	case Malformed:
		return target == ErrMalformed
	case UnknownTool:
		return target == ErrUnknownTool
	}
	return false
}

// Hint returns a correction the model can act on when re-prompted.
func (e *ParseError) Hint(toolNames []string) string {
	if e.Kind == UnknownTool {
		return fmt.Sprintf("%q is not a valid tool. Use one of %v, or give a Final Answer.", e.Tool, toolNames)
	}
	return fmt.Sprintf("Invalid format: %s. Reply with \"Thought:\" followed by either "+
		"\"Action:\" and \"Action Input:\" lines, or a \"Final Answer:\" line.", e.Reason)
}

func malformed(line int, reason string) *ParseError {
	return &ParseError{Kind: Malformed, Reason: reason, Line: line}
}
