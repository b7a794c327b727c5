// Package audit records every command the agent runs in the sandbox.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/sysagent/infrastructure/logging"
	"github.com/felixgeelhaar/sysagent/infrastructure/security/sandbox"
)

// Record describes one sandboxed command.
type Record struct {
	Timestamp  time.Time     `json:"timestamp"`
	TraceID    string        `json:"trace_id,omitempty"`
	Command    string        `json:"command"`
	UnitID     string        `json:"unit_id,omitempty"`
	ExitCode   int           `json:"exit_code"`
	TimedOut   bool          `json:"timed_out,omitempty"`
	Truncated  bool          `json:"truncated,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
	OutputHash string        `json:"output_sha256,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Success reports whether the command exited zero without a sandbox error.
func (r Record) Success() bool {
	return r.Error == "" && r.ExitCode == 0
}

// Logger stores audit records.
type Logger interface {
	// Log records one command.
	Log(ctx context.Context, record Record) error

	// Close releases resources.
	Close() error
}

// Filter selects records from a MemoryLogger.
type Filter struct {
	Since   time.Time
	TraceID string
	Failed  *bool
	Limit   int
}

// MemoryLogger keeps the most recent records in memory.
type MemoryLogger struct {
	mu      sync.RWMutex
	records []Record
	maxLen  int
}

// MemoryLoggerOption configures the memory logger.
type MemoryLoggerOption func(*MemoryLogger)

// WithMaxRecords sets the maximum number of records to retain.
func WithMaxRecords(n int) MemoryLoggerOption {
	return func(l *MemoryLogger) {
		l.maxLen = n
	}
}

// NewMemoryLogger creates a new in-memory audit logger.
func NewMemoryLogger(opts ...MemoryLoggerOption) *MemoryLogger {
	l := &MemoryLogger{maxLen: 10000}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log records a command.
func (l *MemoryLogger) Log(_ context.Context, record Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	l.records = append(l.records, record)

	if l.maxLen > 0 && len(l.records) > l.maxLen {
		l.records = l.records[len(l.records)-l.maxLen:]
	}
	return nil
}

// Query returns records matching the filter, oldest first.
func (l *MemoryLogger) Query(filter Filter) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Record
	for _, r := range l.records {
		if !filter.matches(r) {
			continue
		}
		out = append(out, r)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out
}

// Close releases resources.
func (l *MemoryLogger) Close() error {
	return nil
}

func (f Filter) matches(r Record) bool {
	if !f.Since.IsZero() && r.Timestamp.Before(f.Since) {
		return false
	}
	if f.TraceID != "" && r.TraceID != f.TraceID {
		return false
	}
	if f.Failed != nil && r.Success() == *f.Failed {
		return false
	}
	return true
}

// JSONLogger writes one JSON object per line.
type JSONLogger struct {
	mu      sync.Mutex
	writer  io.Writer
	encoder *json.Encoder
}

// NewJSONLogger creates a new JSON lines audit logger.
func NewJSONLogger(w io.Writer) *JSONLogger {
	return &JSONLogger{
		writer:  w,
		encoder: json.NewEncoder(w),
	}
}

// Log writes the record as one line.
func (l *JSONLogger) Log(_ context.Context, record Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	return l.encoder.Encode(record)
}

// Close closes the writer if it is a closer.
func (l *JSONLogger) Close() error {
	if closer, ok := l.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// CommandExecutor runs a command in the sandbox.
type CommandExecutor interface {
	Execute(ctx context.Context, command string, timeout time.Duration) sandbox.Result
}

// Executor records every command passed to the wrapped executor.
// A failing logger never fails the command.
type Executor struct {
	next   CommandExecutor
	logger Logger
}

// NewExecutor wraps next so its commands are logged.
func NewExecutor(next CommandExecutor, logger Logger) *Executor {
	return &Executor{next: next, logger: logger}
}

// Execute runs the command and logs the outcome.
func (e *Executor) Execute(ctx context.Context, command string, timeout time.Duration) sandbox.Result {
	start := time.Now()
	res := e.next.Execute(ctx, command, timeout)

	record := Record{
		Timestamp: start,
		Command:   command,
		UnitID:    res.UnitID,
		ExitCode:  res.ExitCode,
		TimedOut:  res.TimedOut,
		Truncated: res.Truncated,
		Duration:  res.Duration,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		record.TraceID = sc.TraceID().String()
	}
	if len(res.Output) > 0 {
		sum := sha256.Sum256(res.Output)
		record.OutputHash = hex.EncodeToString(sum[:])
	}
	if res.Err != nil {
		record.Error = res.Err.Error()
	}

	if err := e.logger.Log(context.WithoutCancel(ctx), record); err != nil {
		logging.Warn().
			Add(logging.Component("audit")).
			Add(logging.ErrorField(err)).
			Msg("audit record not written")
	}
	return res
}
