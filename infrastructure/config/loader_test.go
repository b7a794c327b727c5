package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	domainconfig "github.com/felixgeelhaar/sysagent/domain/config"
)

func TestLoader_LoadYAML(t *testing.T) {
	t.Parallel()

	l := NewLoaderWithOptions(WithLookup(mapLookup(map[string]string{
		"OLLAMA_HOST": "http://gpu-box:11434",
	})))

	cfg, err := l.LoadString(`
model:
  base_url: ${OLLAMA_HOST}
  name: llama3:8b-instruct-fp16
agent:
  max_iterations: 8
sandbox:
  timeout: 45s
  network: false
  blocked_patterns:
    - 'rm\s+-rf\s+/$'
`, FormatYAML)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}

	if cfg.Model.BaseURL != "http://gpu-box:11434" {
		t.Errorf("Model.BaseURL = %q, want expanded host", cfg.Model.BaseURL)
	}
	if cfg.Model.Name != "llama3:8b-instruct-fp16" {
		t.Errorf("Model.Name = %q", cfg.Model.Name)
	}
	if cfg.Agent.MaxIterations != 8 {
		t.Errorf("Agent.MaxIterations = %d, want 8", cfg.Agent.MaxIterations)
	}
	if cfg.Sandbox.Timeout.Duration() != 45*time.Second {
		t.Errorf("Sandbox.Timeout = %v, want 45s", cfg.Sandbox.Timeout.Duration())
	}
	if cfg.Sandbox.Network {
		t.Error("Sandbox.Network = true, want false")
	}
	if len(cfg.Sandbox.BlockedPatterns) != 1 || cfg.Sandbox.BlockedPatterns[0] != `rm\s+-rf\s+/$` {
		t.Errorf("Sandbox.BlockedPatterns = %q", cfg.Sandbox.BlockedPatterns)
	}

	// Untouched sections keep their defaults.
	if cfg.Model.Provider != domainconfig.ProviderOllama {
		t.Errorf("Model.Provider = %q, want default", cfg.Model.Provider)
	}
	if cfg.Agent.ParseRetries != 1 {
		t.Errorf("Agent.ParseRetries = %d, want default 1", cfg.Agent.ParseRetries)
	}
	if cfg.Sandbox.Image != "ubuntu:22.04" {
		t.Errorf("Sandbox.Image = %q, want default", cfg.Sandbox.Image)
	}
}

func TestLoader_LoadJSON(t *testing.T) {
	t.Parallel()

	l := NewLoaderWithOptions(WithLookup(mapLookup(nil)))
	cfg, err := l.LoadString(`{"model": {"provider": "openai", "name": "gpt-4o-mini"}, "search": {"enabled": false}}`, FormatJSON)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	if cfg.Model.Provider != domainconfig.ProviderOpenAI {
		t.Errorf("Model.Provider = %q, want openai", cfg.Model.Provider)
	}
	if cfg.Search.Enabled {
		t.Error("Search.Enabled = true, want false")
	}
}

func TestLoader_Errors(t *testing.T) {
	t.Parallel()

	l := NewLoaderWithOptions(WithLookup(mapLookup(nil)))

	if _, err := l.LoadString("agent: [", FormatYAML); !errors.Is(err, domainconfig.ErrInvalidFormat) {
		t.Errorf("bad yaml error = %v, want ErrInvalidFormat", err)
	}

	if _, err := l.LoadString("sandbox:\n  timeout: 0s\n", FormatYAML); !errors.Is(err, domainconfig.ErrValidationFailed) {
		t.Errorf("zero timeout error = %v, want ErrValidationFailed", err)
	}

	if _, err := l.LoadString("{}", Format("toml")); !errors.Is(err, domainconfig.ErrUnsupportedFormat) {
		t.Errorf("toml error = %v, want ErrUnsupportedFormat", err)
	}

	if _, err := l.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, domainconfig.ErrConfigNotFound) {
		t.Errorf("missing file error = %v, want ErrConfigNotFound", err)
	}

	if _, err := l.LoadFile(t.TempDir()); !errors.Is(err, domainconfig.ErrInvalidFormat) {
		t.Errorf("directory error = %v, want ErrInvalidFormat", err)
	}
}

func TestLoader_LoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sysagent.yml")
	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	l := NewLoaderWithOptions(WithLookup(mapLookup(nil)))
	cfg, err := l.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}

	txt := filepath.Join(t.TempDir(), "sysagent.txt")
	_ = os.WriteFile(txt, []byte(""), 0o600)
	if _, err := l.LoadFile(txt); !errors.Is(err, domainconfig.ErrUnsupportedFormat) {
		t.Errorf("txt error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestLoader_Overrides(t *testing.T) {
	t.Parallel()

	l := NewLoaderWithOptions(WithLookup(mapLookup(map[string]string{
		"SYSAGENT_MODEL_NAME":           "qwen2:7b",
		"SYSAGENT_AGENT_MAX_ITERATIONS": "3",
		"SYSAGENT_SANDBOX_TIMEOUT":      "5s",
		"SYSAGENT_HISTORY_PERSIST":      "true",
		"SYSAGENT_METRICS":              "stdout",
	})))

	cfg, err := l.LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile(\"\") error = %v", err)
	}
	if cfg.Model.Name != "qwen2:7b" {
		t.Errorf("Model.Name = %q, want qwen2:7b", cfg.Model.Name)
	}
	if cfg.Agent.MaxIterations != 3 {
		t.Errorf("Agent.MaxIterations = %d, want 3", cfg.Agent.MaxIterations)
	}
	if cfg.Sandbox.Timeout.Duration() != 5*time.Second {
		t.Errorf("Sandbox.Timeout = %v, want 5s", cfg.Sandbox.Timeout.Duration())
	}
	if !cfg.History.Persist {
		t.Error("History.Persist = false, want true")
	}
	if cfg.Telemetry.Metrics != domainconfig.MetricsStdout {
		t.Errorf("Telemetry.Metrics = %q, want stdout", cfg.Telemetry.Metrics)
	}

	bad := NewLoaderWithOptions(WithLookup(mapLookup(map[string]string{
		"SYSAGENT_AGENT_MAX_ITERATIONS": "many",
	})))
	if _, err := bad.LoadFile(""); !errors.Is(err, domainconfig.ErrInvalidOverride) {
		t.Errorf("bad override error = %v, want ErrInvalidOverride", err)
	}

	off := NewLoaderWithOptions(WithOverrides(false), WithLookup(mapLookup(map[string]string{
		"SYSAGENT_MODEL_NAME": "ignored",
	})))
	cfg, err = off.LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Model.Name != "qwen:14b" {
		t.Errorf("Model.Name = %q, want default with overrides off", cfg.Model.Name)
	}
}
