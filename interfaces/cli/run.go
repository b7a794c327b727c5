package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sysagent/application"
)

// runOptions holds options for the run command.
type runOptions struct {
	timeout    time.Duration
	verbose    bool
	jsonOutput bool
	quiet      bool
}

// runOutput is the JSON shape of a one-shot run.
type runOutput struct {
	TaskID     string `json:"task_id"`
	Status     string `json:"status"`
	Answer     string `json:"answer,omitempty"`
	Error      string `json:"error,omitempty"`
	Iterations int    `json:"iterations"`
	ToolCalls  int    `json:"tool_calls"`
	Duration   string `json:"duration,omitempty"`
}

// errTaskFailed makes the process exit non-zero without repeating the reason.
var errTaskFailed = errors.New(application.FailureMessage)

// newRunCmd creates the one-shot run command.
func (a *App) newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [request]",
		Short: "Answer a single request and exit",
		Long: `Answer one request with the agent and exit.

The request is taken from the arguments, or from stdin when none are given.
The command exits non-zero when the agent cannot complete the task.

Examples:
  # Ask a question
  sysagent run "How much free disk space is there?"

  # Read the request from stdin
  echo "List the files in the current directory" | sysagent run

  # Machine-readable output with a deadline
  sysagent run --json --timeout 5m "Which kernel is this host running?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			request := strings.Join(args, " ")
			if request == "" {
				data, err := io.ReadAll(a.stdin)
				if err != nil {
					return fmt.Errorf("read request: %w", err)
				}
				request = string(data)
			}
			if strings.TrimSpace(request) == "" {
				return errors.New("a request is required")
			}
			return a.runOnce(cmd.Context(), request, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Abort the task after this long (0 = no limit)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Print the failure reason when the task fails")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Print only the answer")

	return cmd
}

func (a *App) runOnce(ctx context.Context, request string, opts *runOptions) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	r := newRenderer(a.stdout)
	r.verbose = opts.verbose

	handler := r.Handle
	if opts.jsonOutput || opts.quiet {
		handler = nil
	}
	rt, err := a.build(cfg, handler)
	if err != nil {
		return err
	}
	defer rt.Close(context.WithoutCancel(ctx))

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	reply := rt.session.Handle(ctx, request)

	switch {
	case opts.jsonOutput:
		if err := a.writeRunJSON(reply); err != nil {
			return err
		}
	case opts.quiet:
		fmt.Fprintln(a.stdout, reply.Message())
	default:
		r.Reply(reply)
	}

	if reply.Outcome == application.OutcomeFailed {
		if reply.Err != nil {
			return fmt.Errorf("%w: %w", errTaskFailed, reply.Err)
		}
		return errTaskFailed
	}
	return nil
}

func (a *App) writeRunJSON(reply application.Reply) error {
	out := runOutput{
		TaskID: reply.TaskID,
		Status: reply.Outcome.String(),
		Answer: reply.Answer,
	}
	if reply.Err != nil {
		out.Error = reply.Err.Error()
	}
	if res := reply.Result; res != nil {
		out.Iterations = res.Iterations
		out.ToolCalls = res.ToolCalls
		out.Duration = res.Duration.String()
	}

	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
