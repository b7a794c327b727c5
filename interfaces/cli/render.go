package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/sysagent/application"
	"github.com/felixgeelhaar/sysagent/domain/event"
	"github.com/felixgeelhaar/sysagent/infrastructure/logging"
)

// maxObservationLines caps how much of a tool result is echoed to the terminal.
// The model always sees the full text.
const maxObservationLines = 40

type styles struct {
	header      lipgloss.Style
	thought     lipgloss.Style
	label       lipgloss.Style
	input       lipgloss.Style
	observation lipgloss.Style
	failed      lipgloss.Style
	answer      lipgloss.Style
	notice      lipgloss.Style
	errorText   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	subtle := lipgloss.AdaptiveColor{Light: "#888888", Dark: "#777777"}
	accent := lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	red := lipgloss.AdaptiveColor{Light: "#D7263D", Dark: "#FF5F6D"}
	green := lipgloss.AdaptiveColor{Light: "#168B4F", Dark: "#3FD68B"}

	return styles{
		header:  r.NewStyle().Bold(true).Foreground(accent),
		thought: r.NewStyle().Italic(true).Foreground(subtle),
		label:   r.NewStyle().Bold(true),
		input:   r.NewStyle().PaddingLeft(2),
		observation: r.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(subtle).
			Padding(0, 1),
		failed: r.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(red).
			Padding(0, 1),
		answer: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(green).
			Padding(0, 1),
		notice:    r.NewStyle().Foreground(accent),
		errorText: r.NewStyle().Bold(true).Foreground(red),
	}
}

// renderer prints the progress of a task as its events arrive.
type renderer struct {
	mu      sync.Mutex
	w       io.Writer
	s       styles
	verbose bool
}

func newRenderer(w io.Writer) *renderer {
	return &renderer{
		w: w,
		s: newStyles(lipgloss.NewRenderer(w)),
	}
}

// Handle renders one event. It is installed as a publisher handler.
func (r *renderer) Handle(_ context.Context, e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e.Type {
	case event.TypeActionTaken:
		var p event.ActionTakenPayload
		if !r.decode(&e, &p) {
			return
		}
		if p.Thought != "" {
			r.println(r.s.thought.Render("Thought: " + p.Thought))
		}
		r.println(r.s.label.Render("Action: ") + p.Tool)
		if p.Input != "" {
			r.println(r.s.input.Render(p.Input))
		}

	case event.TypeObservationReceived:
		var p event.ObservationReceivedPayload
		if !r.decode(&e, &p) {
			return
		}
		style := r.s.observation
		if p.Failed {
			style = r.s.failed
		}
		text := strings.TrimRight(p.Text, "\n")
		if text == "" {
			text = "(no output)"
		}
		r.println(style.Render(clip(text, maxObservationLines)))

	case event.TypeFinalOutput:
		var p event.FinalOutputPayload
		if !r.decode(&e, &p) {
			return
		}
		if p.Thought != "" {
			r.println(r.s.thought.Render("Thought: " + p.Thought))
		}
	}
}

func (r *renderer) decode(e *event.Event, v any) bool {
	if err := e.UnmarshalPayload(v); err != nil {
		logging.Warn().
			Add(logging.Component("cli")).
			Add(logging.TaskID(e.TaskID)).
			Add(logging.ErrorField(err)).
			Msg("undecodable event")
		return false
	}
	return true
}

// Round prints the banner before an operator input is handled.
func (r *renderer) Round(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.println(r.s.header.Render(fmt.Sprintf("── Round %d ──", n)))
}

// Reply prints the session's answer to one input.
func (r *renderer) Reply(reply application.Reply) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch reply.Outcome {
	case application.OutcomeAnswered:
		r.println(r.s.answer.Render(reply.Message()))
	case application.OutcomeFailed:
		r.println(r.s.errorText.Render(reply.Message()))
		if r.verbose && reply.Err != nil {
			r.println(r.s.thought.Render(reply.Err.Error()))
		}
	case application.OutcomeCleared, application.OutcomeQuit:
		r.println(r.s.notice.Render(reply.Message()))
	}
}

func (r *renderer) println(s string) {
	fmt.Fprintln(r.w, s)
}

// clip keeps the first n lines of s.
func clip(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[:n], "\n") + fmt.Sprintf("\n… %d more lines", len(lines)-n)
}
