package agent

import (
	"errors"
	"strings"
	"testing"

	"github.com/felixgeelhaar/sysagent/domain/history"
	"github.com/felixgeelhaar/sysagent/domain/tool"
)

func TestState_CanTransitionTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to State
		want     bool
	}{
		{StateReasoning, StateActing, true},
		{StateReasoning, StateFinished, true},
		{StateReasoning, StateFailed, true},
		{StateActing, StateReasoning, true},
		{StateActing, StateFinished, false},
		{StateFinished, StateReasoning, false},
		{StateFailed, StateReasoning, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			t.Parallel()
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestState_IsTerminal(t *testing.T) {
	t.Parallel()

	for _, s := range AllStates() {
		want := s == StateFinished || s == StateFailed
		if got := s.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", s, got, want)
		}
	}
}

func TestScratchpad_Format(t *testing.T) {
	t.Parallel()

	var sp Scratchpad
	if sp.Format() != "" {
		t.Errorf("empty Format() = %q", sp.Format())
	}

	step := NewToolCallStep("check os", "get_platform_info", "", "check os\nAction: get_platform_info\nAction Input: ")
	sp.Append(step, tool.Observation{Source: "get_platform_info", Text: `{"system":"Linux"}`})

	got := sp.Format()
	want := "check os\nAction: get_platform_info\nAction Input: \nObservation: {\"system\":\"Linux\"}\nThought: "
	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}

	sp.Append(step, tool.Observation{Text: "second"})
	if sp.Len() != 2 || strings.Count(sp.Format(), "Observation:") != 2 {
		t.Errorf("Format() after two entries = %q", sp.Format())
	}

	sp.Reset()
	if sp.Len() != 0 {
		t.Errorf("Len() after Reset = %d", sp.Len())
	}
}

func TestLoopError_Is(t *testing.T) {
	t.Parallel()

	maxErr := &LoopError{Kind: MaxIterationsExceeded, Iterations: 15}
	if !errors.Is(maxErr, ErrMaxIterationsExceeded) {
		t.Error("max iterations error does not match sentinel")
	}
	if errors.Is(maxErr, ErrUnrecoverableParse) {
		t.Error("max iterations error matches parse sentinel")
	}
	if !strings.Contains(maxErr.Error(), "15") {
		t.Errorf("Error() = %q, want iteration count", maxErr.Error())
	}

	cause := errors.New("missing Action Input")
	parseErr := &LoopError{Kind: UnrecoverableParse, Err: cause}
	if !errors.Is(parseErr, ErrUnrecoverableParse) || !errors.Is(parseErr, cause) {
		t.Errorf("parse error = %v, want to match sentinel and cause", parseErr)
	}
}

func TestNewTask_CopiesHistory(t *testing.T) {
	t.Parallel()

	turns := []history.Turn{history.UserTurn("a")}
	task := NewTask("t1", "b", turns)
	turns[0].Text = "changed"

	if task.History[0].Text != "a" {
		t.Error("NewTask() shares turn storage with caller")
	}
}

func TestTaskRecord(t *testing.T) {
	t.Parallel()

	rec := NewTaskRecord(NewTask("t1", "list files", nil))
	if rec.Status != TaskStatusRunning {
		t.Errorf("Status = %s, want running", rec.Status)
	}

	rec.Complete("done")
	if rec.Status != TaskStatusCompleted || rec.Answer != "done" || rec.EndTime.IsZero() {
		t.Errorf("record after Complete = %+v", rec)
	}

	rec2 := NewTaskRecord(NewTask("t2", "x", nil))
	rec2.Fail(&LoopError{Kind: MaxIterationsExceeded, Iterations: 3})
	if rec2.Status != TaskStatusFailed || rec2.Error == "" {
		t.Errorf("record after Fail = %+v", rec2)
	}
	if rec2.Duration() < 0 {
		t.Errorf("Duration() = %v", rec2.Duration())
	}
}
