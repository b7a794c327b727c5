// Package shell provides the sandboxed shell command tool.
package shell

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/felixgeelhaar/sysagent/domain/pack"
	"github.com/felixgeelhaar/sysagent/domain/tool"
	"github.com/felixgeelhaar/sysagent/infrastructure/security/sandbox"
)

// ToolName is the name the model uses to call the tool.
const ToolName = "run_commands"

// Description is shown to the model in the tool list.
const Description = "Tool to run shell commands. Input string consists solely of bash commands or bash script with explanation in comments. Returns the output of commands."

// ErrBlocked is returned when a command matches a blocked pattern.
var ErrBlocked = errors.New("command blocked by policy")

// Executor runs a command in a fresh sandbox unit.
type Executor interface {
	Execute(ctx context.Context, command string, timeout time.Duration) sandbox.Result
}

// Config configures the shell pack.
type Config struct {
	// Timeout bounds each sandbox run. Zero uses the executor's default.
	Timeout time.Duration

	// Grace is added to Timeout for the tool-level deadline so the sandbox
	// can report its own timeout and tear the unit down first.
	Grace time.Duration

	// BlockedPatterns are regex patterns that reject a command before it
	// reaches the sandbox.
	BlockedPatterns []string

	// compiledPatterns are pre-compiled regex patterns.
	compiledPatterns []*regexp.Regexp
}

// Option configures the shell pack.
type Option func(*Config)

// WithTimeout sets the sandbox timeout per command.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithGrace sets the slack between the sandbox timeout and the tool deadline.
func WithGrace(grace time.Duration) Option {
	return func(c *Config) {
		c.Grace = grace
	}
}

// WithBlockedPatterns sets regex patterns that block command execution.
func WithBlockedPatterns(patterns ...string) Option {
	return func(c *Config) {
		c.BlockedPatterns = patterns
	}
}

// New creates the shell pack backed by exec.
func New(exec Executor, opts ...Option) (*pack.Pack, error) {
	if exec == nil {
		return nil, errors.New("shell executor is required")
	}

	cfg := Config{
		Timeout: sandbox.DefaultConfig().Timeout,
		Grace:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Timeout <= 0 {
		return nil, sandbox.ErrInvalidTimeout
	}

	for _, pattern := range cfg.BlockedPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid blocked pattern %q: %w", pattern, err)
		}
		cfg.compiledPatterns = append(cfg.compiledPatterns, re)
	}

	return pack.NewBuilder("shell").
		WithDescription("Shell command execution in a disposable sandbox").
		WithVersion("1.0.0").
		AddTools(runTool(exec, &cfg)).
		Build(), nil
}

// isCommandAllowed checks a command against the blocked patterns.
func isCommandAllowed(cfg *Config, command string) error {
	for _, pattern := range cfg.compiledPatterns {
		if pattern.MatchString(command) {
			return fmt.Errorf("%w: matches %q", ErrBlocked, pattern.String())
		}
	}
	return nil
}

func runTool(exec Executor, cfg *Config) tool.Tool {
	deadline := cfg.Timeout + cfg.Grace
	return tool.NewBuilder(ToolName).
		WithDescription(Description).
		WithTextInput().
		Sandboxed().
		WithTimeout(int((deadline + time.Second - 1) / time.Second)).
		WithHandler(func(ctx context.Context, input string) (tool.Result, error) {
			command := StripCodeFence(input)
			if command == "" {
				return tool.Result{}, sandbox.ErrEmptyCommand
			}
			if err := isCommandAllowed(cfg, command); err != nil {
				return tool.Result{}, err
			}

			// Non-zero exits and sandbox failures are reported to the model as text.
			res := exec.Execute(ctx, command, cfg.Timeout)
			return tool.NewResultWithDuration(res.Text(), res.Duration), nil
		}).
		MustBuild()
}

var fenceRE = regexp.MustCompile("(?s)^```[A-Za-z0-9_+-]*[ \t]*\r?\n(.*?)\r?\n?```$")

// StripCodeFence removes a surrounding markdown code fence or inline
// backticks that models often wrap commands in.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRE.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	if len(s) >= 2 && strings.HasPrefix(s, "`") && strings.HasSuffix(s, "`") && !strings.Contains(s[1:len(s)-1], "`") {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
