package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// toolsOptions holds options for the tools command.
type toolsOptions struct {
	verbose bool
}

// newToolsCmd creates the tools command.
func (a *App) newToolsCmd() *cobra.Command {
	opts := &toolsOptions{}

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools offered to the model",
		Long: `List the tools the configuration enables, in the order the model sees them.

No sandbox or model backend is contacted.

Examples:
  # List tools
  sysagent tools

  # Include descriptions and annotations
  sysagent tools -c sysagent.yaml -v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listTools(opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Show descriptions and annotations")

	return cmd
}

func (a *App) listTools(opts *toolsOptions) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	packs, err := a.buildPacks(cfg, describeExecutor{})
	if err != nil {
		return err
	}

	if !opts.verbose {
		w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TOOL\tPACK\tINPUT")
		for _, p := range packs {
			for _, t := range p.Tools {
				fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name(), p.Name, t.InputKind())
			}
		}
		return w.Flush()
	}

	for _, p := range packs {
		fmt.Fprintf(a.stdout, "%s (v%s)\n", p.Name, p.Version)
		if p.Description != "" {
			fmt.Fprintf(a.stdout, "  %s\n", p.Description)
		}
		for _, t := range p.Tools {
			ann := t.Annotations()
			fmt.Fprintf(a.stdout, "\n  %s\n", t.Name())
			fmt.Fprintf(a.stdout, "    %s\n", t.Description())
			fmt.Fprintf(a.stdout, "    input: %s  risk: %s  read-only: %t  sandboxed: %t\n",
				t.InputKind(), ann.RiskLevel, ann.ReadOnly, ann.Sandboxed)
		}
		fmt.Fprintln(a.stdout)
	}
	return nil
}
