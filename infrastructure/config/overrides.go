package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	domainconfig "github.com/felixgeelhaar/sysagent/domain/config"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SYSAGENT_"

type override struct {
	key   string
	apply func(cfg *domainconfig.Config, value string) error
}

var overrides = []override{
	{"MODEL_PROVIDER", setString(func(c *domainconfig.Config) *string { return &c.Model.Provider })},
	{"MODEL_BASE_URL", setString(func(c *domainconfig.Config) *string { return &c.Model.BaseURL })},
	{"MODEL_NAME", setString(func(c *domainconfig.Config) *string { return &c.Model.Name })},
	{"MODEL_API_KEY", setString(func(c *domainconfig.Config) *string { return &c.Model.APIKey })},
	{"MODEL_TEMPERATURE", setFloat(func(c *domainconfig.Config) *float64 { return &c.Model.Temperature })},
	{"AGENT_MAX_ITERATIONS", setInt(func(c *domainconfig.Config) *int { return &c.Agent.MaxIterations })},
	{"AGENT_PARSE_RETRIES", setInt(func(c *domainconfig.Config) *int { return &c.Agent.ParseRetries })},
	{"AGENT_PROMPT_FILE", setString(func(c *domainconfig.Config) *string { return &c.Agent.PromptFile })},
	{"SANDBOX_BACKEND", setString(func(c *domainconfig.Config) *string { return &c.Sandbox.Backend })},
	{"SANDBOX_IMAGE", setString(func(c *domainconfig.Config) *string { return &c.Sandbox.Image })},
	{"SANDBOX_TIMEOUT", setDuration(func(c *domainconfig.Config) *domainconfig.Duration { return &c.Sandbox.Timeout })},
	{"SANDBOX_NETWORK", setBool(func(c *domainconfig.Config) *bool { return &c.Sandbox.Network })},
	{"SANDBOX_NAMESPACE", setString(func(c *domainconfig.Config) *string { return &c.Sandbox.Namespace })},
	{"SANDBOX_KUBECONFIG", setString(func(c *domainconfig.Config) *string { return &c.Sandbox.Kubeconfig })},
	{"SANDBOX_AUDIT_LOG", setString(func(c *domainconfig.Config) *string { return &c.Sandbox.AuditLog })},
	{"SEARCH_ENABLED", setBool(func(c *domainconfig.Config) *bool { return &c.Search.Enabled })},
	{"HISTORY_PERSIST", setBool(func(c *domainconfig.Config) *bool { return &c.History.Persist })},
	{"HISTORY_DB_PATH", setString(func(c *domainconfig.Config) *string { return &c.History.DBPath })},
	{"LOG_LEVEL", setString(func(c *domainconfig.Config) *string { return &c.Logging.Level })},
	{"LOG_FORMAT", setString(func(c *domainconfig.Config) *string { return &c.Logging.Format })},
	{"METRICS", setString(func(c *domainconfig.Config) *string { return &c.Telemetry.Metrics })},
	{"TRACING", setString(func(c *domainconfig.Config) *string { return &c.Telemetry.Tracing })},
}

// ApplyEnvOverrides applies SYSAGENT_* variables from the process environment.
func ApplyEnvOverrides(cfg *domainconfig.Config) error {
	return ApplyOverrides(cfg, os.LookupEnv)
}

// ApplyOverrides applies SYSAGENT_* variables resolved through lookup.
func ApplyOverrides(cfg *domainconfig.Config, lookup func(string) (string, bool)) error {
	for _, o := range overrides {
		name := EnvPrefix + o.key
		value, ok := lookup(name)
		if !ok {
			continue
		}
		if err := o.apply(cfg, value); err != nil {
			return fmt.Errorf("%w: %s: %v", domainconfig.ErrInvalidOverride, name, err)
		}
	}
	return nil
}

func setString(field func(*domainconfig.Config) *string) func(*domainconfig.Config, string) error {
	return func(c *domainconfig.Config, v string) error {
		*field(c) = v
		return nil
	}
}

func setInt(field func(*domainconfig.Config) *int) func(*domainconfig.Config, string) error {
	return func(c *domainconfig.Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func setFloat(field func(*domainconfig.Config) *float64) func(*domainconfig.Config, string) error {
	return func(c *domainconfig.Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*field(c) = f
		return nil
	}
}

func setBool(field func(*domainconfig.Config) *bool) func(*domainconfig.Config, string) error {
	return func(c *domainconfig.Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

func setDuration(field func(*domainconfig.Config) *domainconfig.Duration) func(*domainconfig.Config, string) error {
	return func(c *domainconfig.Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = domainconfig.Duration(d)
		return nil
	}
}
