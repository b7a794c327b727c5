// Package sandbox runs untrusted shell commands in disposable execution
// units (containers or pods) and captures their output.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sandbox failure sentinels. A Result carries them wrapped in Err.
var (
	ErrCreateFailed   = errors.New("sandbox create failed")
	ErrStartFailed    = errors.New("sandbox start failed")
	ErrWaitFailed     = errors.New("sandbox wait failed")
	ErrLogsFailed     = errors.New("sandbox log capture failed")
	ErrRemoveFailed   = errors.New("sandbox remove failed")
	ErrTimeout        = errors.New("sandbox execution timed out")
	ErrNonZeroExit    = errors.New("command exited with non-zero status")
	ErrEmptyCommand   = errors.New("empty command")
	ErrInvalidTimeout = errors.New("sandbox timeout must be positive")
)

// Limits bounds the resources of one execution unit. Zero means unbounded.
type Limits struct {
	// MemoryBytes caps memory.
	MemoryBytes int64 `json:"memory_bytes" yaml:"memory_bytes"`

	// NanoCPUs caps CPU in units of 1e-9 CPUs.
	NanoCPUs int64 `json:"nano_cpus" yaml:"nano_cpus"`

	// PidsLimit caps the number of processes.
	PidsLimit int64 `json:"pids_limit" yaml:"pids_limit"`
}

// Spec describes the execution unit to create.
type Spec struct {
	// Name is a unique name for the unit.
	Name string

	// Image is the base image.
	Image string

	// Command is the full argv run in the unit.
	Command []string

	// Env holds KEY=VALUE pairs.
	Env []string

	// Network enables outbound networking.
	Network bool

	// Limits bounds resources.
	Limits Limits

	// Labels are attached to the unit for discovery and cleanup.
	Labels map[string]string
}

// Backend manages execution units. Implementations must not share state
// between units.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Create allocates a unit and returns its ID. It does not start it.
	Create(ctx context.Context, spec Spec) (string, error)

	// Start begins execution.
	Start(ctx context.Context, id string) error

	// Wait blocks until the unit exits or ctx is done, returning the exit status.
	Wait(ctx context.Context, id string) (int, error)

	// Logs returns combined stdout and stderr.
	Logs(ctx context.Context, id string) ([]byte, error)

	// Remove destroys the unit, stopping it first if still running.
	Remove(ctx context.Context, id string) error
}

// Killer is implemented by backends that can stop a unit without removing it.
type Killer interface {
	Kill(ctx context.Context, id string) error
}

// Result is the outcome of one Runner.Execute call.
type Result struct {
	// UnitID is the backend ID, empty if creation failed.
	UnitID string `json:"unit_id,omitempty"`

	// ExitCode is the process exit status, -1 when unknown.
	ExitCode int `json:"exit_code"`

	// Output is combined stdout and stderr, possibly truncated.
	Output []byte `json:"output"`

	// Truncated is set when output exceeded the configured cap.
	Truncated bool `json:"truncated,omitempty"`

	// TimedOut is set when the unit was stopped at the timeout.
	TimedOut bool `json:"timed_out,omitempty"`

	// Duration covers the whole lifecycle including cleanup.
	Duration time.Duration `json:"duration"`

	// Err describes any failure, nil on a clean zero exit.
	Err error `json:"-"`
}

// OK returns true if the command ran to a zero exit status without errors.
func (r Result) OK() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Text renders the result as observation text for the model.
func (r Result) Text() string {
	var b strings.Builder
	out := strings.TrimRight(string(r.Output), "\n")
	b.WriteString(out)
	if r.Truncated {
		b.WriteString("\n[output truncated]")
	}

	if r.Err != nil {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[error: %v]", r.Err)
	}

	if b.Len() == 0 {
		return "Command completed with no output."
	}
	return b.String()
}
