package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	infraconfig "github.com/felixgeelhaar/sysagent/infrastructure/config"
)

// validateOptions holds options for the validate command.
type validateOptions struct {
	strict bool
	print  bool
}

// newValidateCmd creates the validate command.
func (a *App) newValidateCmd() *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Long: `Load a configuration file, apply environment and flag overrides and
check the result.

This command checks:
  - File format (YAML or JSON)
  - Model provider, sandbox backend and exporter names
  - Positive timeouts and iteration limits
  - Blocked command patterns compile
  - Environment variable references (in strict mode)

Examples:
  # Validate a configuration file
  sysagent validate -c sysagent.yaml

  # Fail on undefined ${VAR} references
  sysagent validate -c sysagent.yaml --strict

  # Show the effective configuration
  sysagent validate -c sysagent.yaml --print`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.validateConfig(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Fail on undefined environment variable references")
	cmd.Flags().BoolVar(&opts.print, "print", false, "Print the effective configuration as YAML")

	return cmd
}

// validateConfig validates the configuration file.
func (a *App) validateConfig(opts *validateOptions) error {
	cfg, err := a.loadConfig(infraconfig.WithStrictEnv(opts.strict))
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	source := a.opts.configPath
	if source == "" {
		source = "built-in defaults"
	}
	fmt.Fprintf(a.stdout, "✓ Configuration is valid (%s)\n", source)

	if opts.print {
		fmt.Fprintln(a.stdout)
		enc := yaml.NewEncoder(a.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("encode configuration: %w", err)
		}
		return enc.Close()
	}

	fmt.Fprintf(a.stdout, "\nConfiguration summary:\n")
	fmt.Fprintf(a.stdout, "  Model: %s (%s)\n", cfg.Model.Name, cfg.Model.Provider)
	fmt.Fprintf(a.stdout, "  Max iterations: %d\n", cfg.Agent.MaxIterations)
	fmt.Fprintf(a.stdout, "  Sandbox: %s, image %s, timeout %s\n",
		cfg.Sandbox.Backend, cfg.Sandbox.Image, cfg.Sandbox.Timeout.Duration())
	if len(cfg.Sandbox.BlockedPatterns) > 0 {
		fmt.Fprintf(a.stdout, "  Blocked patterns: %d\n", len(cfg.Sandbox.BlockedPatterns))
	}
	if cfg.Search.Enabled {
		fmt.Fprintf(a.stdout, "  Web search: enabled (max %d results)\n", cfg.Search.MaxResults)
	} else {
		fmt.Fprintf(a.stdout, "  Web search: disabled\n")
	}
	if cfg.History.Persist {
		fmt.Fprintf(a.stdout, "  History: %s (session %s)\n", cfg.History.DBPath, cfg.History.SessionID)
	}

	return nil
}
