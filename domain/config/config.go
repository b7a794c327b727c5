// Package config provides domain models for sysagent configuration.
package config

import "time"

// Config represents the complete sysagent configuration.
type Config struct {
	// Model configures the language-model backend.
	Model ModelConfig `json:"model" yaml:"model"`
	// Agent configures the reasoning loop.
	Agent AgentConfig `json:"agent" yaml:"agent"`
	// Sandbox configures where model-generated commands run.
	Sandbox SandboxConfig `json:"sandbox" yaml:"sandbox"`
	// Search configures the web search tool.
	Search SearchConfig `json:"search" yaml:"search"`
	// History configures transcript and task persistence.
	History HistoryConfig `json:"history" yaml:"history"`
	// Logging configures structured logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	// Telemetry configures metrics and trace export.
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
	// Resilience configures retries and circuit breakers.
	Resilience ResilienceConfig `json:"resilience" yaml:"resilience"`
}

// Model providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// ModelConfig configures the completion backend.
type ModelConfig struct {
	// Provider is ollama or openai.
	Provider string `json:"provider" yaml:"provider"`
	// BaseURL is the backend endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// Name is the model identifier.
	Name string `json:"name" yaml:"name"`
	// Family names the model in the prompt preamble.
	Family string `json:"family,omitempty" yaml:"family,omitempty"`
	// APIKey authenticates against OpenAI-compatible backends.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	// Temperature is the sampling temperature.
	Temperature float64 `json:"temperature" yaml:"temperature"`
	// TopK limits sampling to the K most likely tokens (Ollama only).
	TopK int `json:"top_k" yaml:"top_k"`
	// TopP is the nucleus sampling threshold.
	TopP float64 `json:"top_p" yaml:"top_p"`
	// Stop sequences end a completion early.
	Stop []string `json:"stop,omitempty" yaml:"stop,omitempty"`
	// Timeout bounds one completion request.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// AgentConfig configures the reasoning loop.
type AgentConfig struct {
	// MaxIterations caps model completions per task.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`
	// ParseRetries is how many consecutive unparseable replies are re-prompted.
	ParseRetries int `json:"parse_retries" yaml:"parse_retries"`
	// PromptFile overrides the built-in prompt template.
	PromptFile string `json:"prompt_file,omitempty" yaml:"prompt_file,omitempty"`
}

// Sandbox backends.
const (
	BackendDocker     = "docker"
	BackendKubernetes = "kubernetes"
)

// SandboxConfig configures the command sandbox.
type SandboxConfig struct {
	// Backend is docker or kubernetes.
	Backend string `json:"backend" yaml:"backend"`
	// Image is the base image for every execution unit.
	Image string `json:"image" yaml:"image"`
	// Timeout bounds one command. It must be positive.
	Timeout Duration `json:"timeout" yaml:"timeout"`
	// MaxOutputBytes caps captured output (0 = unlimited).
	MaxOutputBytes int `json:"max_output_bytes" yaml:"max_output_bytes"`
	// MemoryBytes limits unit memory (0 = unlimited).
	MemoryBytes int64 `json:"memory_bytes" yaml:"memory_bytes"`
	// CPUs limits unit CPU (0 = unlimited).
	CPUs float64 `json:"cpus" yaml:"cpus"`
	// PidsLimit limits unit processes (0 = unlimited).
	PidsLimit int64 `json:"pids_limit" yaml:"pids_limit"`
	// Network enables outbound networking.
	Network bool `json:"network" yaml:"network"`
	// PullIfMissing pulls the image when absent (docker only).
	PullIfMissing bool `json:"pull_if_missing" yaml:"pull_if_missing"`
	// DockerHost overrides DOCKER_HOST.
	DockerHost string `json:"docker_host,omitempty" yaml:"docker_host,omitempty"`
	// Namespace hosts execution pods (kubernetes only).
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	// Kubeconfig is the kubeconfig path; empty means in-cluster.
	Kubeconfig string `json:"kubeconfig,omitempty" yaml:"kubeconfig,omitempty"`
	// BlockedPatterns are regular expressions the shell tool refuses to run.
	BlockedPatterns []string `json:"blocked_patterns,omitempty" yaml:"blocked_patterns,omitempty"`
	// AuditLog appends one JSON line per sandboxed command to this file.
	AuditLog string `json:"audit_log,omitempty" yaml:"audit_log,omitempty"`
}

// SearchConfig configures the web search tool.
type SearchConfig struct {
	// Enabled registers the search tool.
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Endpoint overrides the DuckDuckGo HTML endpoint.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	// Region is the DuckDuckGo region code (e.g. "us-en").
	Region string `json:"region,omitempty" yaml:"region,omitempty"`
	// MaxResults caps hits per query.
	MaxResults int `json:"max_results" yaml:"max_results"`
	// Timeout bounds one search.
	Timeout Duration `json:"timeout" yaml:"timeout"`
}

// HistoryConfig configures persistence of transcripts and task records.
type HistoryConfig struct {
	// Persist stores the transcript and task log in DBPath.
	Persist bool `json:"persist" yaml:"persist"`
	// DBPath is the sqlite database file.
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	// SessionID keys the stored transcript.
	SessionID string `json:"session_id,omitempty" yaml:"session_id,omitempty"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is trace, debug, info, warn or error.
	Level string `json:"level" yaml:"level"`
	// Format is console or json.
	Format string `json:"format" yaml:"format"`
}

// Metrics and trace exporters.
const (
	MetricsNone   = "none"
	MetricsStdout = "stdout"
	TracingNone   = "none"
	TracingStdout = "stdout"
)

// TelemetryConfig configures metrics and trace export.
type TelemetryConfig struct {
	// Metrics is none or stdout.
	Metrics string `json:"metrics" yaml:"metrics"`
	// Tracing is none or stdout.
	Tracing string `json:"tracing" yaml:"tracing"`
	// Interval is the export period.
	Interval Duration `json:"interval,omitempty" yaml:"interval,omitempty"`
}

// ResilienceConfig contains resilience settings.
type ResilienceConfig struct {
	// Retry configures model completion retries.
	Retry RetryConfig `json:"retry,omitempty" yaml:"retry,omitempty"`
	// CircuitBreaker configures breakers around completions and tools.
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker,omitempty" yaml:"circuit_breaker,omitempty"`
	// Bulkhead configures concurrent tool executions.
	Bulkhead BulkheadConfig `json:"bulkhead,omitempty" yaml:"bulkhead,omitempty"`
}

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum retry attempts.
	MaxAttempts int `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`
	// InitialDelay is the first retry delay.
	InitialDelay Duration `json:"initial_delay,omitempty" yaml:"initial_delay,omitempty"`
}

// CircuitBreakerConfig configures circuit breaker behavior.
type CircuitBreakerConfig struct {
	// Threshold is failures before opening.
	Threshold int `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	// Timeout is how long the circuit stays open.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// BulkheadConfig configures bulkhead behavior.
type BulkheadConfig struct {
	// MaxConcurrent is the maximum concurrent executions.
	MaxConcurrent int `json:"max_concurrent,omitempty" yaml:"max_concurrent,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Model: ModelConfig{
			Provider:    ProviderOllama,
			BaseURL:     "http://localhost:11434",
			Name:        "qwen:14b",
			Family:      "Qwen",
			Temperature: 0.5,
			TopK:        10,
			TopP:        0.5,
			Stop:        []string{"\nObservation"},
			Timeout:     Duration(120 * time.Second),
		},
		Agent: AgentConfig{
			MaxIterations: 15,
			ParseRetries:  1,
		},
		Sandbox: SandboxConfig{
			Backend:        BackendDocker,
			Image:          "ubuntu:22.04",
			Timeout:        Duration(60 * time.Second),
			MaxOutputBytes: 64 * 1024,
			MemoryBytes:    512 * 1024 * 1024,
			CPUs:           1,
			PidsLimit:      256,
			Network:        true,
			PullIfMissing:  true,
			Namespace:      "default",
		},
		Search: SearchConfig{
			Enabled:    true,
			MaxResults: 4,
			Timeout:    Duration(20 * time.Second),
		},
		History: HistoryConfig{
			DBPath:    "sysagent.db",
			SessionID: "default",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			Metrics:  MetricsNone,
			Tracing:  TracingNone,
			Interval: Duration(30 * time.Second),
		},
		Resilience: ResilienceConfig{
			Retry: RetryConfig{
				MaxAttempts:  3,
				InitialDelay: Duration(500 * time.Millisecond),
			},
			CircuitBreaker: CircuitBreakerConfig{
				Threshold: 5,
				Timeout:   Duration(30 * time.Second),
			},
			Bulkhead: BulkheadConfig{
				MaxConcurrent: 4,
			},
		},
	}
}

// Duration is a time.Duration that supports JSON/YAML string representation.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}

	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
