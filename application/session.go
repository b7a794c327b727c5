package application

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/sysagent/domain/agent"
	"github.com/felixgeelhaar/sysagent/domain/history"
	"github.com/felixgeelhaar/sysagent/infrastructure/logging"
)

// FailureMessage is shown to the operator when a task ends without an answer.
const FailureMessage = "could not complete the task"

// Outcome classifies how the session handled one input.
type Outcome int

const (
	// OutcomeAnswered means the loop produced a final answer.
	OutcomeAnswered Outcome = iota
	// OutcomeFailed means the task ended without an answer.
	OutcomeFailed
	// OutcomeCleared means the history was cleared.
	OutcomeCleared
	// OutcomeQuit means the operator asked to leave.
	OutcomeQuit
	// OutcomeEmpty means the input was blank and ignored.
	OutcomeEmpty
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeAnswered:
		return "answered"
	case OutcomeFailed:
		return "failed"
	case OutcomeCleared:
		return "cleared"
	case OutcomeQuit:
		return "quit"
	case OutcomeEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Reply is the session's response to one operator input.
type Reply struct {
	Outcome Outcome
	Round   int
	TaskID  string
	Answer  string

	// Result is set when the loop finished the task.
	Result *Result

	// Err is the reason a task failed.
	Err error
}

// Message returns the text to show the operator.
func (r Reply) Message() string {
	switch r.Outcome {
	case OutcomeAnswered:
		return r.Answer
	case OutcomeFailed:
		return FailureMessage
	case OutcomeCleared:
		return "Chat history cleared!"
	case OutcomeQuit:
		return "Good Bye!"
	default:
		return ""
	}
}

// Runner runs one task. *Loop implements it.
type Runner interface {
	Run(ctx context.Context, task agent.Task) (*Result, error)
}

var (
	quitInputs  = []string{"exit", "quit", "q"}
	clearInputs = []string{"clear", "clean"}
)

// Session routes operator input to the loop and keeps the conversation.
// Handle serializes rounds, so a Session may be shared across goroutines.
type Session struct {
	id          string
	runner      Runner
	history     *history.History
	tasks       agent.TaskStore
	transcripts history.Store

	mu    sync.Mutex
	round int
}

// SessionOption configures a session.
type SessionOption func(*Session)

// WithSessionID keys persisted transcripts.
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		s.id = id
	}
}

// WithTaskStore records a TaskRecord for every task.
func WithTaskStore(store agent.TaskStore) SessionOption {
	return func(s *Session) {
		s.tasks = store
	}
}

// WithTranscriptStore persists the conversation after every change.
func WithTranscriptStore(store history.Store) SessionOption {
	return func(s *Session) {
		s.transcripts = store
	}
}

// WithHistory starts the session from an existing conversation.
func WithHistory(h *history.History) SessionOption {
	return func(s *Session) {
		s.history = h
	}
}

// NewSession creates a session. With a transcript store, the stored
// conversation for the session ID is restored.
func NewSession(runner Runner, opts ...SessionOption) (*Session, error) {
	if runner == nil {
		return nil, errors.New("runner is required")
	}

	s := &Session{
		id:      "default",
		runner:  runner,
		history: history.New(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.transcripts != nil {
		turns, err := s.transcripts.LoadTurns(s.id)
		if err != nil {
			return nil, err
		}
		if len(turns) > 0 {
			if err := s.history.Restore(turns); err != nil {
				return nil, err
			}
		}
	}

	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// History returns a snapshot of the conversation.
func (s *Session) History() []history.Turn {
	return s.history.Snapshot()
}

// Round returns the number of inputs handled so far.
func (s *Session) Round() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.round
}

// Handle processes one operator input. Sentinel inputs are handled here and
// never reach the loop. A failed task leaves the history untouched.
func (s *Session) Handle(ctx context.Context, input string) Reply {
	s.mu.Lock()
	defer s.mu.Unlock()

	reply := Reply{Round: s.round}
	s.round++

	text := strings.TrimSpace(input)
	switch {
	case text == "":
		reply.Outcome = OutcomeEmpty
		return reply
	case slices.Contains(quitInputs, text):
		reply.Outcome = OutcomeQuit
		return reply
	case slices.Contains(clearInputs, text):
		s.history.Clear()
		if s.transcripts != nil {
			if err := s.transcripts.ClearTurns(s.id); err != nil {
				logging.Warn().
					Add(logging.Component("session")).
					Add(logging.ErrorField(err)).
					Msg("transcript clear failed")
			}
		}
		reply.Outcome = OutcomeCleared
		return reply
	}

	task := agent.NewTask(uuid.New().String(), text, s.history.Snapshot())
	reply.TaskID = task.ID

	record := agent.NewTaskRecord(task)
	s.saveRecord(record)

	res, err := s.runner.Run(ctx, task)
	if err != nil {
		record.Fail(err)
		if res != nil {
			record.Iterations = res.Iterations
			record.ToolCalls = res.ToolCalls
		}
		var lerr *agent.LoopError
		if errors.As(err, &lerr) {
			record.Iterations = lerr.Iterations
		}
		s.saveRecord(record)

		reply.Outcome = OutcomeFailed
		reply.Err = err
		return reply
	}

	record.Complete(res.Answer)
	record.Iterations = res.Iterations
	record.ToolCalls = res.ToolCalls
	s.saveRecord(record)

	// Only answered tasks reach the conversation.
	_ = s.history.Append(history.UserTurn(text))
	_ = s.history.Append(history.AssistantTurn(res.Answer))
	s.persist()

	reply.Outcome = OutcomeAnswered
	reply.Answer = res.Answer
	reply.Result = res
	return reply
}

func (s *Session) saveRecord(record *agent.TaskRecord) {
	if s.tasks == nil {
		return
	}
	if err := s.tasks.Save(record); err != nil {
		logging.Warn().
			Add(logging.Component("session")).
			Add(logging.TaskID(record.ID)).
			Add(logging.ErrorField(err)).
			Msg("task record not saved")
	}
}

func (s *Session) persist() {
	if s.transcripts == nil {
		return
	}
	if err := s.transcripts.SaveTurns(s.id, s.history.Snapshot()); err != nil {
		logging.Warn().
			Add(logging.Component("session")).
			Add(logging.ErrorField(err)).
			Msg("transcript not saved")
	}
}
