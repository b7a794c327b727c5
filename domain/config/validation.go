package config

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	// Path is the dotted path to the invalid field.
	Path string
	// Message describes the validation error.
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(e), strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates sysagent configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(cfg *Config) ValidationErrors {
	v.errors = nil

	v.validateModel(cfg)
	v.validateAgent(cfg)
	v.validateSandbox(cfg)
	v.validateSearch(cfg)
	v.validateHistory(cfg)
	v.validateLogging(cfg)
	v.validateTelemetry(cfg)
	v.validateResilience(cfg)

	return v.errors
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

func (v *Validator) validateModel(cfg *Config) {
	switch cfg.Model.Provider {
	case ProviderOllama, ProviderOpenAI:
	case "":
		v.addError("model.provider", "provider is required")
	default:
		v.addError("model.provider", fmt.Sprintf("unknown provider: %s", cfg.Model.Provider))
	}
	if cfg.Model.Name == "" {
		v.addError("model.name", "model name is required")
	}
	if cfg.Model.Temperature < 0 || cfg.Model.Temperature > 2 {
		v.addError("model.temperature", "temperature must be between 0 and 2")
	}
	if cfg.Model.TopP < 0 || cfg.Model.TopP > 1 {
		v.addError("model.top_p", "top_p must be between 0 and 1")
	}
	if cfg.Model.TopK < 0 {
		v.addError("model.top_k", "top_k must be non-negative")
	}
	if cfg.Model.Timeout < 0 {
		v.addError("model.timeout", "timeout must be non-negative")
	}
}

func (v *Validator) validateAgent(cfg *Config) {
	if cfg.Agent.MaxIterations <= 0 {
		v.addError("agent.max_iterations", "max_iterations must be positive")
	}
	if cfg.Agent.ParseRetries < 0 {
		v.addError("agent.parse_retries", "parse_retries must be non-negative")
	}
}

func (v *Validator) validateSandbox(cfg *Config) {
	s := cfg.Sandbox
	switch s.Backend {
	case BackendDocker:
	case BackendKubernetes:
		if s.Namespace == "" {
			v.addError("sandbox.namespace", "namespace is required for the kubernetes backend")
		}
	case "":
		v.addError("sandbox.backend", "backend is required")
	default:
		v.addError("sandbox.backend", fmt.Sprintf("unknown backend: %s", s.Backend))
	}
	if s.Image == "" {
		v.addError("sandbox.image", "image is required")
	}
	if s.Timeout <= 0 {
		v.addError("sandbox.timeout", "timeout must be positive")
	}
	if s.MaxOutputBytes < 0 {
		v.addError("sandbox.max_output_bytes", "max_output_bytes must be non-negative")
	}
	if s.MemoryBytes < 0 {
		v.addError("sandbox.memory_bytes", "memory_bytes must be non-negative")
	}
	if s.CPUs < 0 {
		v.addError("sandbox.cpus", "cpus must be non-negative")
	}
	if s.PidsLimit < 0 {
		v.addError("sandbox.pids_limit", "pids_limit must be non-negative")
	}
	for i, p := range s.BlockedPatterns {
		if _, err := regexp.Compile(p); err != nil {
			v.addError(fmt.Sprintf("sandbox.blocked_patterns[%d]", i), fmt.Sprintf("invalid pattern: %v", err))
		}
	}
}

func (v *Validator) validateSearch(cfg *Config) {
	if !cfg.Search.Enabled {
		return
	}
	if cfg.Search.MaxResults <= 0 {
		v.addError("search.max_results", "max_results must be positive")
	}
	if cfg.Search.Timeout < 0 {
		v.addError("search.timeout", "timeout must be non-negative")
	}
}

func (v *Validator) validateHistory(cfg *Config) {
	if cfg.History.Persist && cfg.History.DBPath == "" {
		v.addError("history.db_path", "db_path is required when persist is enabled")
	}
}

func (v *Validator) validateLogging(cfg *Config) {
	switch cfg.Logging.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		v.addError("logging.level", fmt.Sprintf("unknown level: %s", cfg.Logging.Level))
	}
	switch cfg.Logging.Format {
	case "", "console", "json":
	default:
		v.addError("logging.format", fmt.Sprintf("unknown format: %s", cfg.Logging.Format))
	}
}

func (v *Validator) validateTelemetry(cfg *Config) {
	switch cfg.Telemetry.Metrics {
	case "", MetricsNone, MetricsStdout:
	default:
		v.addError("telemetry.metrics", fmt.Sprintf("unknown exporter: %s", cfg.Telemetry.Metrics))
	}
	switch cfg.Telemetry.Tracing {
	case "", TracingNone, TracingStdout:
	default:
		v.addError("telemetry.tracing", fmt.Sprintf("unknown exporter: %s", cfg.Telemetry.Tracing))
	}
	if cfg.Telemetry.Interval < 0 {
		v.addError("telemetry.interval", "interval must be non-negative")
	}
}

func (v *Validator) validateResilience(cfg *Config) {
	r := cfg.Resilience
	if r.Retry.MaxAttempts < 0 {
		v.addError("resilience.retry.max_attempts", "max_attempts must be non-negative")
	}
	if r.Retry.InitialDelay < 0 {
		v.addError("resilience.retry.initial_delay", "initial_delay must be non-negative")
	}
	if r.CircuitBreaker.Threshold < 0 {
		v.addError("resilience.circuit_breaker.threshold", "threshold must be non-negative")
	}
	if r.CircuitBreaker.Timeout < 0 {
		v.addError("resilience.circuit_breaker.timeout", "timeout must be non-negative")
	}
	if r.Bulkhead.MaxConcurrent < 0 {
		v.addError("resilience.bulkhead.max_concurrent", "max_concurrent must be non-negative")
	}
}
