package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sysagent/application"
	"github.com/felixgeelhaar/sysagent/domain/agent"
	"github.com/felixgeelhaar/sysagent/domain/event"
	"github.com/felixgeelhaar/sysagent/infrastructure/storage/sqlite"
)

// tasksOptions holds options for the tasks command.
type tasksOptions struct {
	limit int
}

// newTasksCmd creates the tasks command with its subcommands.
func (a *App) newTasksCmd() *cobra.Command {
	opts := &tasksOptions{}

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect the persisted task log",
		Long: `List recent tasks or replay one step by step.

The task log is kept only when history persistence is enabled
(history.persist in the configuration or SYSAGENT_HISTORY_PERSIST=true).

Examples:
  # Ten most recent tasks
  sysagent tasks

  # Replay one task
  sysagent tasks show 3f1c2a9e-...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listTasks(opts)
		},
	}
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Number of tasks to list")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <task-id>",
		Short: "Replay the steps of one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.showTask(cmd.Context(), args[0])
		},
	})

	return cmd
}

// taskLog opens the sqlite task and event stores.
func (a *App) taskLog() (*sqlite.TaskStore, *sqlite.EventStore, func(), error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	if !cfg.History.Persist {
		return nil, nil, nil, errors.New("history persistence is disabled; set history.persist to keep a task log")
	}

	db, err := sqlite.Open(sqlite.DefaultConfig(), sqlite.WithPath(cfg.History.DBPath))
	if err != nil {
		return nil, nil, nil, err
	}
	tasks, err := sqlite.NewTaskStoreFromDB(db)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	events, err := sqlite.NewEventStoreFromDB(db)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	return tasks, events, func() { db.Close() }, nil
}

func (a *App) listTasks(opts *tasksOptions) error {
	tasks, _, closeLog, err := a.taskLog()
	if err != nil {
		return err
	}
	defer closeLog()

	records, err := tasks.Recent(opts.limit)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(a.stdout, "No tasks recorded.")
		return nil
	}

	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tSTATUS\tSTEPS\tINPUT")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.StartTime.Format(time.DateTime), r.Status, r.Iterations, oneLine(r.Input, 60))
	}
	return w.Flush()
}

func (a *App) showTask(ctx context.Context, id string) error {
	tasks, events, closeLog, err := a.taskLog()
	if err != nil {
		return err
	}
	defer closeLog()

	record, err := tasks.Get(id)
	if err != nil {
		if errors.Is(err, agent.ErrTaskNotFound) {
			return fmt.Errorf("task %s: %w", id, err)
		}
		return err
	}

	fmt.Fprintf(a.stdout, "Task:       %s\n", record.ID)
	fmt.Fprintf(a.stdout, "Input:      %s\n", record.Input)
	fmt.Fprintf(a.stdout, "Status:     %s\n", record.Status)
	fmt.Fprintf(a.stdout, "Iterations: %d (%d tool calls)\n", record.Iterations, record.ToolCalls)
	fmt.Fprintf(a.stdout, "Duration:   %s\n", record.Duration().Round(time.Millisecond))
	if record.Error != "" {
		fmt.Fprintf(a.stdout, "Error:      %s\n", record.Error)
	}

	trace, err := application.NewReplay(events).Trace(ctx, id)
	if errors.Is(err, event.ErrTaskNotFound) {
		// A task that failed before its first action has no events.
		fmt.Fprintln(a.stdout, "\nNo steps recorded.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("replay task: %w", err)
	}

	r := newRenderer(a.stdout)
	for i, step := range trace.Steps {
		fmt.Fprintf(a.stdout, "\nStep %d\n", i+1)
		if step.Thought != "" {
			r.println(r.s.thought.Render("Thought: " + step.Thought))
		}
		r.println(r.s.label.Render("Action: ") + step.Tool)
		if step.Input != "" {
			r.println(r.s.input.Render(step.Input))
		}
		style := r.s.observation
		if step.Failed {
			style = r.s.failed
		}
		r.println(style.Render(clip(strings.TrimRight(step.Observation, "\n"), maxObservationLines)))
	}
	if trace.Finished {
		fmt.Fprintln(a.stdout)
		r.println(r.s.answer.Render(trace.Answer))
	}
	return nil
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) > n {
		return string([]rune(s)[:n-1]) + "…"
	}
	return s
}
