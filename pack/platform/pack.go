// Package platform provides the host platform information tool.
package platform

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/sysagent/domain/pack"
	"github.com/felixgeelhaar/sysagent/domain/tool"
)

// ToolName is the name the model uses to call the tool.
const ToolName = "get_platform_info"

// Description is shown to the model in the tool list.
const Description = "Returns the basic information (system, node, kernel release, OS distro version, machine, processor) of host platform."

// Info describes the host platform.
type Info struct {
	System    string `json:"system"`
	Node      string `json:"node"`
	Release   string `json:"release"`
	Version   string `json:"version"`
	Machine   string `json:"machine"`
	Processor string `json:"processor"`
}

// InfoFunc returns the platform info.
type InfoFunc func() (Info, error)

// Config configures the platform pack.
type Config struct {
	// Source reports the platform info. Defaults to Host.
	Source InfoFunc
}

// Option configures the platform pack.
type Option func(*Config)

// WithSource overrides where platform info comes from.
func WithSource(src InfoFunc) Option {
	return func(c *Config) {
		c.Source = src
	}
}

// New creates the platform pack.
func New(opts ...Option) *pack.Pack {
	cfg := Config{Source: Host}
	for _, opt := range opts {
		opt(&cfg)
	}

	return pack.NewBuilder("platform").
		WithDescription("Host platform information").
		WithVersion("1.0.0").
		AddTools(infoTool(&cfg)).
		Build()
}

func infoTool(cfg *Config) tool.Tool {
	return tool.NewBuilder(ToolName).
		WithDescription(Description).
		WithoutInput().
		ReadOnly().
		WithHandler(func(_ context.Context, _ string) (tool.Result, error) {
			info, err := cfg.Source()
			if err != nil {
				return tool.Result{}, fmt.Errorf("read platform info: %w", err)
			}
			out, err := json.Marshal(info)
			if err != nil {
				return tool.Result{}, err
			}
			return tool.NewResult(string(out)), nil
		}).
		MustBuild()
}
