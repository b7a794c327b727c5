// Package parser turns a raw model completion into a reasoning step.
//
// The grammar is line oriented. A completion is a "Thought:" section
// followed by either an "Action:" / "Action Input:" pair or a
// "Final Answer:" section. Markers are recognised at the start of a line
// after leading whitespace. The "Thought:" prefix itself may be omitted
// because prompts end with it.
package parser

import (
	"strings"

	"github.com/felixgeelhaar/sysagent/domain/agent"
)

// Grammar markers.
const (
	MarkerThought     = "Thought:"
	MarkerAction      = "Action:"
	MarkerActionInput = "Action Input:"
	MarkerObservation = "Observation:"
	MarkerFinalAnswer = "Final Answer:"
)

// ToolSet reports whether a tool name is registered.
type ToolSet interface {
	Has(name string) bool
}

// Names is a ToolSet backed by a fixed list of names.
type Names map[string]struct{}

// NewNames creates a Names set.
func NewNames(names ...string) Names {
	n := make(Names, len(names))
	for _, name := range names {
		n[name] = struct{}{}
	}
	return n
}

// Has implements ToolSet.
func (n Names) Has(name string) bool {
	_, ok := n[name]
	return ok
}

// state is a node of the line scanner.
type state int

const (
	stateExpectThought state = iota
	stateInThought
	stateExpectActionInput
	stateInActionInput
	stateInFinalAnswer
	stateDone
	stateError
)

// marker is the classification of one line.
type marker int

const (
	markNone marker = iota
	markThought
	markAction
	markActionInput
	markObservation
	markFinalAnswer
)

// classify returns the marker a line starts with and the text after it.
// "Action Input:" is checked before "Action:" since it shares the prefix.
func classify(line string) (marker, string) {
	trimmed := strings.TrimLeft(line, " \t")
	switch {
	case strings.HasPrefix(trimmed, MarkerThought):
		return markThought, trimmed[len(MarkerThought):]
	case strings.HasPrefix(trimmed, MarkerActionInput):
		return markActionInput, trimmed[len(MarkerActionInput):]
	case strings.HasPrefix(trimmed, MarkerAction):
		return markAction, trimmed[len(MarkerAction):]
	case strings.HasPrefix(trimmed, MarkerObservation):
		return markObservation, trimmed[len(MarkerObservation):]
	case strings.HasPrefix(trimmed, MarkerFinalAnswer):
		return markFinalAnswer, trimmed[len(MarkerFinalAnswer):]
	default:
		return markNone, line
	}
}

// Parser converts completions into reasoning steps.
// It holds no per-call state and is safe for concurrent use.
type Parser struct {
	tools ToolSet
}

// New creates a parser that validates action names against tools.
func New(tools ToolSet) *Parser {
	if tools == nil {
		tools = Names{}
	}
	return &Parser{tools: tools}
}

// scan accumulates sections while walking the lines.
type scan struct {
	state   state
	thought []string
	action  string
	input   []string
	answer  []string
	final   bool
	err     *ParseError

	// consumed is the number of lines that belong to the step.
	consumed int
}

// Parse converts one completion. The error, when non-nil, is a *ParseError.
func (p *Parser) Parse(raw string) (agent.ReasoningStep, error) {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	s := &scan{state: stateExpectThought, consumed: len(lines)}
	for i, line := range lines {
		s.step(i+1, line)
		if s.state == stateDone || s.state == stateError {
			break
		}
	}
	s.finish()

	if s.state == stateError {
		return agent.ReasoningStep{}, s.err
	}

	thought := strings.TrimSpace(strings.Join(s.thought, "\n"))
	if s.final {
		answer := strings.TrimSpace(strings.Join(s.answer, "\n"))
		return agent.NewFinalAnswerStep(thought, answer, raw), nil
	}

	name := strings.TrimSpace(s.action)
	if !p.tools.Has(name) {
		return agent.ReasoningStep{}, &ParseError{Kind: UnknownTool, Tool: name}
	}
	input := strings.TrimSpace(strings.Join(s.input, "\n"))
	log := strings.TrimRight(strings.Join(lines[:s.consumed], "\n"), " \t\n")
	return agent.NewToolCallStep(thought, name, input, log), nil
}

// step applies one line to the scanner. Every (state, marker) pair has a
// defined outcome.
func (s *scan) step(n int, line string) {
	mark, rest := classify(line)

	switch s.state {
	case stateExpectThought, stateInThought:
		switch mark {
		case markThought:
			s.thought = append(s.thought, rest)
			s.state = stateInThought
		case markNone:
			if s.state == stateExpectThought && strings.TrimSpace(line) == "" {
				return
			}
			s.thought = append(s.thought, line)
			s.state = stateInThought
		case markAction:
			s.beginAction(n, rest)
		case markFinalAnswer:
			s.answer = append(s.answer, rest)
			s.final = true
			s.state = stateInFinalAnswer
		case markActionInput:
			s.fail(malformed(n, `"Action Input:" without a preceding "Action:"`))
		case markObservation:
			s.fail(malformed(n, `"Observation:" before any action`))
		}

	case stateExpectActionInput:
		switch mark {
		case markActionInput:
			s.input = append(s.input, rest)
			s.state = stateInActionInput
		case markNone:
			if strings.TrimSpace(line) != "" {
				s.fail(malformed(n, `missing "Action Input:" after "Action:"`))
			}
		case markFinalAnswer:
			s.fail(malformed(n, `"Final Answer:" while an action is unterminated`))
		default:
			s.fail(malformed(n, `missing "Action Input:" after "Action:"`))
		}

	case stateInActionInput:
		switch mark {
		case markObservation, markThought, markFinalAnswer, markAction:
			s.consumed = n - 1
			s.state = stateDone
		default:
			s.input = append(s.input, line)
		}

	case stateInFinalAnswer:
		s.answer = append(s.answer, line)
	}
}

func (s *scan) beginAction(n int, rest string) {
	if strings.TrimSpace(rest) == "" {
		s.fail(malformed(n, `empty tool name after "Action:"`))
		return
	}
	s.action = rest
	s.state = stateExpectActionInput
}

// finish resolves the state reached at end of text.
func (s *scan) finish() {
	switch s.state {
	case stateExpectThought:
		s.fail(malformed(0, "empty output"))
	case stateInThought:
		s.fail(malformed(0, `missing "Action:" or "Final Answer:" after thought`))
	case stateExpectActionInput:
		s.fail(malformed(0, `missing "Action Input:" after "Action:"`))
	case stateInActionInput, stateInFinalAnswer:
		s.state = stateDone
	}
}

func (s *scan) fail(err *ParseError) {
	s.err = err
	s.state = stateError
}
