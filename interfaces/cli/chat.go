package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sysagent/application"
)

// chatOptions holds options for the chat command.
type chatOptions struct {
	verbose bool
}

// newChatCmd creates the interactive chat command.
func (a *App) newChatCmd() *cobra.Command {
	opts := &chatOptions{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		Long: `Read requests line by line and answer each one with the agent.

Every request is a round. The reasoning steps, tool calls and their output
are printed as they happen, followed by the answer. Answered rounds are kept
as conversation context for later rounds.

Special inputs:
  exit, quit, q   leave the session
  clear, clean    forget the conversation so far

Examples:
  # Chat with the default Ollama model and a docker sandbox
  sysagent chat

  # Resume a persisted conversation
  SYSAGENT_HISTORY_PERSIST=true sysagent chat --session ops`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.chat(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Print the failure reason when a task fails")

	return cmd
}

func (a *App) chat(ctx context.Context, opts *chatOptions) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	r := newRenderer(a.stdout)
	r.verbose = opts.verbose

	rt, err := a.build(cfg, r.Handle)
	if err != nil {
		return err
	}
	defer rt.Close(context.WithoutCancel(ctx))

	scanner := bufio.NewScanner(a.stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(a.stdout, "> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if strings.TrimSpace(line) != "" {
			r.Round(rt.session.Round())
		}

		reply := rt.session.Handle(ctx, line)
		r.Reply(reply)
		if reply.Outcome == application.OutcomeQuit {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	fmt.Fprintln(a.stdout)

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}
