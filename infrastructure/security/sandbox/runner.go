package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/sysagent/infrastructure/logging"
	"github.com/felixgeelhaar/sysagent/infrastructure/telemetry"
)

// DefaultImage is the base image for execution units.
const DefaultImage = "ubuntu:22.04"

// Config configures a Runner.
type Config struct {
	// Image is the base image for every unit.
	Image string

	// Shell is the argv prefix the command is appended to.
	Shell []string

	// Timeout bounds how long a command may run when the caller passes none.
	Timeout time.Duration

	// CleanupTimeout bounds log capture and removal after the command ends.
	CleanupTimeout time.Duration

	// MaxOutputBytes caps captured output (0 = unlimited).
	MaxOutputBytes int

	// Network enables outbound networking inside units.
	Network bool

	// Env is passed to every unit.
	Env []string

	// Limits bounds unit resources.
	Limits Limits
}

// DefaultConfig returns the runner defaults.
func DefaultConfig() Config {
	return Config{
		Image:          DefaultImage,
		Shell:          []string{"/bin/sh", "-c"},
		Timeout:        60 * time.Second,
		CleanupTimeout: 15 * time.Second,
		MaxOutputBytes: 64 * 1024,
		Network:        true,
		Limits: Limits{
			MemoryBytes: 512 * 1024 * 1024,
			NanoCPUs:    1_000_000_000,
			PidsLimit:   256,
		},
	}
}

// Option configures a Runner.
type Option func(*Runner)

// WithConfig replaces the runner configuration.
func WithConfig(c Config) Option {
	return func(r *Runner) {
		r.config = c
	}
}

// WithMetrics records sandbox metrics.
func WithMetrics(m telemetry.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// Runner executes one command per fresh unit. It holds no per-execution
// state, so concurrent calls are independent.
type Runner struct {
	backend Backend
	config  Config
	metrics telemetry.Metrics
}

// NewRunner creates a runner over a backend.
func NewRunner(backend Backend, opts ...Option) (*Runner, error) {
	if backend == nil {
		return nil, errors.New("sandbox backend is required")
	}

	r := &Runner{
		backend: backend,
		config:  DefaultConfig(),
		metrics: &telemetry.NoopMetricsProvider{},
	}
	for _, opt := range opts {
		opt(r)
	}

	defaults := DefaultConfig()
	if r.config.Image == "" {
		r.config.Image = defaults.Image
	}
	if len(r.config.Shell) == 0 {
		r.config.Shell = defaults.Shell
	}
	if r.config.Timeout <= 0 {
		return nil, ErrInvalidTimeout
	}
	if r.config.CleanupTimeout <= 0 {
		r.config.CleanupTimeout = defaults.CleanupTimeout
	}
	return r, nil
}

// Config returns the effective configuration.
func (r *Runner) Config() Config {
	return r.config
}

// Backend returns the name of the backend in use.
func (r *Runner) Backend() string {
	return r.backend.Name()
}

// Execute runs command in a fresh unit and always removes the unit before
// returning. A non-positive timeout uses the configured default. Failures
// are reported in Result.Err, never as a panic or a separate error.
func (r *Runner) Execute(ctx context.Context, command string, timeout time.Duration) (res Result) {
	start := time.Now()
	res.ExitCode = -1
	if timeout <= 0 {
		timeout = r.config.Timeout
	}

	defer func() {
		res.Duration = time.Since(start)
		r.metrics.RecordSandboxExecution(ctx, r.backend.Name(), res.ExitCode, res.TimedOut, res.Duration)
		logging.Debug().
			Add(logging.Component("sandbox")).
			Add(logging.UnitID(res.UnitID)).
			Add(logging.ExitCode(res.ExitCode)).
			Add(logging.TimedOut(res.TimedOut)).
			Add(logging.Duration(res.Duration)).
			Msg("sandbox execution finished")
	}()

	if strings.TrimSpace(command) == "" {
		res.Err = ErrEmptyCommand
		return res
	}

	spec := r.spec(command)
	id, err := r.backend.Create(ctx, spec)
	if err != nil {
		res.Err = fmt.Errorf("%w: %v", ErrCreateFailed, err)
		logging.Warn().
			Add(logging.Component("sandbox")).
			Add(logging.Operation("create")).
			Add(logging.ErrorField(err)).
			Msg("sandbox create failed")
		return res
	}
	res.UnitID = id

	// Teardown runs on every path below, detached from ctx so an aborted
	// task still releases the unit.
	defer func() {
		cctx, cancel := r.cleanupContext(ctx)
		defer cancel()
		if err := r.backend.Remove(cctx, id); err != nil {
			res.Err = errors.Join(res.Err, fmt.Errorf("%w: %v", ErrRemoveFailed, err))
			logging.Warn().
				Add(logging.Component("sandbox")).
				Add(logging.Operation("remove")).
				Add(logging.UnitID(id)).
				Add(logging.ErrorField(err)).
				Msg("sandbox remove failed")
		}
	}()

	if err := r.backend.Start(ctx, id); err != nil {
		res.Err = fmt.Errorf("%w: %v", ErrStartFailed, err)
		return res
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	code, waitErr := r.backend.Wait(waitCtx, id)
	timedOut := errors.Is(waitCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	cancel()

	switch {
	case waitErr == nil:
		res.ExitCode = code
	case timedOut:
		res.TimedOut = true
		res.Err = fmt.Errorf("%w after %s", ErrTimeout, timeout)
		r.kill(ctx, id)
	case ctx.Err() != nil:
		res.Err = ctx.Err()
		r.kill(ctx, id)
	default:
		res.Err = fmt.Errorf("%w: %v", ErrWaitFailed, waitErr)
	}

	// Partial output is still useful after a timeout.
	lctx, lcancel := r.cleanupContext(ctx)
	out, err := r.backend.Logs(lctx, id)
	lcancel()
	if err != nil {
		res.Err = errors.Join(res.Err, fmt.Errorf("%w: %v", ErrLogsFailed, err))
	}
	res.Output, res.Truncated = r.truncate(out)

	if res.Err == nil && res.ExitCode != 0 {
		res.Err = fmt.Errorf("%w: %d", ErrNonZeroExit, res.ExitCode)
	}
	return res
}

func (r *Runner) spec(command string) Spec {
	argv := make([]string, 0, len(r.config.Shell)+1)
	argv = append(argv, r.config.Shell...)
	argv = append(argv, command)

	env := make([]string, len(r.config.Env))
	copy(env, r.config.Env)

	return Spec{
		Name:    "sysagent-" + uuid.New().String()[:12],
		Image:   r.config.Image,
		Command: argv,
		Env:     env,
		Network: r.config.Network,
		Limits:  r.config.Limits,
		Labels: map[string]string{
			"app.kubernetes.io/managed-by": "sysagent",
		},
	}
}

func (r *Runner) kill(ctx context.Context, id string) {
	k, ok := r.backend.(Killer)
	if !ok {
		return
	}
	cctx, cancel := r.cleanupContext(ctx)
	defer cancel()
	if err := k.Kill(cctx, id); err != nil {
		logging.Debug().
			Add(logging.Component("sandbox")).
			Add(logging.Operation("kill")).
			Add(logging.UnitID(id)).
			Add(logging.ErrorField(err)).
			Msg("sandbox kill failed")
	}
}

func (r *Runner) cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), r.config.CleanupTimeout)
}

func (r *Runner) truncate(out []byte) ([]byte, bool) {
	if r.config.MaxOutputBytes <= 0 || len(out) <= r.config.MaxOutputBytes {
		return out, false
	}
	return out[:r.config.MaxOutputBytes], true
}
