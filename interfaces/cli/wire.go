package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/felixgeelhaar/sysagent/application"
	"github.com/felixgeelhaar/sysagent/domain/agent"
	domainconfig "github.com/felixgeelhaar/sysagent/domain/config"
	"github.com/felixgeelhaar/sysagent/domain/event"
	"github.com/felixgeelhaar/sysagent/domain/pack"
	infraconfig "github.com/felixgeelhaar/sysagent/infrastructure/config"
	eventpub "github.com/felixgeelhaar/sysagent/infrastructure/event"
	"github.com/felixgeelhaar/sysagent/infrastructure/logging"
	"github.com/felixgeelhaar/sysagent/infrastructure/observability"
	"github.com/felixgeelhaar/sysagent/infrastructure/planner"
	"github.com/felixgeelhaar/sysagent/infrastructure/resilience"
	"github.com/felixgeelhaar/sysagent/infrastructure/security/audit"
	"github.com/felixgeelhaar/sysagent/infrastructure/security/sandbox"
	"github.com/felixgeelhaar/sysagent/infrastructure/storage/memory"
	"github.com/felixgeelhaar/sysagent/infrastructure/storage/sqlite"
	"github.com/felixgeelhaar/sysagent/infrastructure/telemetry"
	"github.com/felixgeelhaar/sysagent/pack/platform"
	"github.com/felixgeelhaar/sysagent/pack/search"
	"github.com/felixgeelhaar/sysagent/pack/shell"
)

// dependencies builds the external adapters. Tests replace them with fakes.
type dependencies struct {
	provider func(cfg *domainconfig.Config) (planner.Provider, error)
	executor func(cfg *domainconfig.Config, metrics telemetry.Metrics) (shell.Executor, error)
	search   func(cfg *domainconfig.Config) search.Provider
	platform platform.InfoFunc
}

func defaultDependencies() dependencies {
	return dependencies{
		provider: newModelProvider,
		executor: newSandboxRunner,
		search:   newSearchProvider,
		platform: platform.Host,
	}
}

// flagOverrides maps persistent flags onto SYSAGENT_* override keys so they
// take precedence over the environment and pass the same validation.
func (a *App) flagOverrides() map[string]string {
	m := make(map[string]string)
	set := func(key, value string) {
		if value != "" {
			m[infraconfig.EnvPrefix+key] = value
		}
	}
	set("LOG_LEVEL", a.opts.logLevel)
	set("LOG_FORMAT", a.opts.logFormat)
	set("METRICS", a.opts.metrics)
	set("TRACING", a.opts.tracing)
	return m
}

// loadConfig reads the configuration file, applies environment and flag
// overrides and validates the result.
func (a *App) loadConfig(opts ...infraconfig.LoaderOption) (*domainconfig.Config, error) {
	flags := a.flagOverrides()
	opts = append([]infraconfig.LoaderOption{
		infraconfig.WithLookup(func(key string) (string, bool) {
			if v, ok := flags[key]; ok {
				return v, true
			}
			return os.LookupEnv(key)
		}),
	}, opts...)
	loader := infraconfig.NewLoaderWithOptions(opts...)

	cfg, err := loader.LoadFile(a.opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if a.opts.session != "" {
		cfg.History.SessionID = a.opts.session
	}
	return cfg, nil
}

// runtime is a fully wired agent.
type runtime struct {
	config  *domainconfig.Config
	loop    *application.Loop
	session *application.Session
	tasks   agent.TaskStore
	events  event.Store
	closers []func(context.Context) error
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

// build wires configuration into a runnable session. Events are delivered
// to handler as they happen.
func (a *App) build(cfg *domainconfig.Config, handler eventpub.Handler) (_ *runtime, err error) {
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: a.stderr,
	})

	rt := &runtime{config: cfg}
	defer func() {
		if err != nil {
			_ = rt.Close(context.Background())
		}
	}()

	obs, err := a.newObservability(cfg)
	if err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	rt.closers = append(rt.closers, obs.Shutdown)

	var metrics telemetry.Metrics = &telemetry.NoopMetricsProvider{}
	if cfg.Telemetry.Metrics == domainconfig.MetricsStdout {
		mp := telemetry.NewMetricsProvider(telemetry.MetricsConfig{
			MeterName:    observability.InstrumentationName,
			MeterVersion: Version,
			Provider:     obs.MeterProvider(),
		})
		if err := mp.Error(); err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		metrics = mp
	}

	model, err := a.deps.provider(cfg)
	if err != nil {
		return nil, fmt.Errorf("model provider: %w", err)
	}
	model = planner.NewResilientProvider(model, planner.ResilientConfig{
		RetryMaxAttempts:  cfg.Resilience.Retry.MaxAttempts,
		RetryInitialDelay: cfg.Resilience.Retry.InitialDelay.Duration(),
		BreakerThreshold:  cfg.Resilience.CircuitBreaker.Threshold,
		BreakerTimeout:    cfg.Resilience.CircuitBreaker.Timeout.Duration(),
	}, planner.WithProviderMetrics(metrics))

	exec, err := a.deps.executor(cfg, metrics)
	if err != nil {
		return nil, fmt.Errorf("sandbox: %w", err)
	}
	if cfg.Sandbox.AuditLog != "" {
		f, err := os.OpenFile(cfg.Sandbox.AuditLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		logger := audit.NewJSONLogger(f)
		rt.closers = append(rt.closers, func(context.Context) error { return logger.Close() })
		exec = audit.NewExecutor(exec, logger)
	}

	registry, err := a.buildRegistry(cfg, exec)
	if err != nil {
		return nil, err
	}

	executor := resilience.NewExecutorWithOptions(
		resilience.WithMaxConcurrent(cfg.Resilience.Bulkhead.MaxConcurrent),
		resilience.WithCircuitBreakerThreshold(cfg.Resilience.CircuitBreaker.Threshold),
		resilience.WithCircuitBreakerTimeout(cfg.Resilience.CircuitBreaker.Timeout.Duration()),
		resilience.WithBreakerObserver(func(name string, open bool) {
			metrics.RecordCircuitBreakerStateChange(context.Background(), name, open)
		}),
	)

	pubOpts := []eventpub.PublisherOption{}
	if handler != nil {
		pubOpts = append(pubOpts, eventpub.WithHandler(handler))
	}

	sessionOpts := []application.SessionOption{application.WithSessionID(cfg.History.SessionID)}
	if cfg.History.Persist {
		db, err := sqlite.Open(sqlite.DefaultConfig(), sqlite.WithPath(cfg.History.DBPath))
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func(context.Context) error { return db.Close() })

		events, err := sqlite.NewEventStoreFromDB(db)
		if err != nil {
			return nil, err
		}
		tasks, err := sqlite.NewTaskStoreFromDB(db)
		if err != nil {
			return nil, err
		}
		transcripts, err := sqlite.NewHistoryStoreFromDB(db)
		if err != nil {
			return nil, err
		}
		rt.events, rt.tasks = events, tasks
		pubOpts = append(pubOpts, eventpub.WithStore(events))
		sessionOpts = append(sessionOpts,
			application.WithTaskStore(tasks),
			application.WithTranscriptStore(transcripts),
		)
	} else {
		rt.events, rt.tasks = memory.NewEventStore(), memory.NewTaskStore()
		pubOpts = append(pubOpts, eventpub.WithStore(rt.events))
		sessionOpts = append(sessionOpts, application.WithTaskStore(rt.tasks))
	}

	publisher := eventpub.NewPublisher(pubOpts...)
	rt.closers = append(rt.closers, func(context.Context) error { return publisher.Close() })

	prompt, err := loadPrompt(cfg.Agent.PromptFile)
	if err != nil {
		return nil, err
	}

	rt.loop, err = application.NewLoopWithOptions(
		application.WithProvider(model),
		application.WithPrompt(prompt),
		application.WithRegistry(registry),
		application.WithInvoker(resilience.NewInvoker(executor, resilience.WithMetrics(metrics))),
		application.WithPublisher(publisher),
		application.WithMetrics(metrics),
		application.WithTracer(obs.Tracer()),
		application.WithModel(cfg.Model.Name, cfg.Model.Family),
		application.WithMaxIterations(cfg.Agent.MaxIterations),
		application.WithParseRetries(cfg.Agent.ParseRetries),
	)
	if err != nil {
		return nil, err
	}

	rt.session, err = application.NewSession(rt.loop, sessionOpts...)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	logging.Debug().
		Add(logging.Component("cli")).
		Add(logging.Model(cfg.Model.Name)).
		Add(logging.Int("tools", registry.Count())).
		Add(logging.Str("backend", cfg.Sandbox.Backend)).
		Msg("agent ready")

	return rt, nil
}

// buildRegistry installs the enabled packs in presentation order.
func (a *App) buildRegistry(cfg *domainconfig.Config, exec shell.Executor) (*memory.ToolRegistry, error) {
	packs, err := a.buildPacks(cfg, exec)
	if err != nil {
		return nil, err
	}
	registry, err := memory.NewToolRegistry()
	if err != nil {
		return nil, err
	}
	if err := pack.Install(registry, packs...); err != nil {
		return nil, fmt.Errorf("install packs: %w", err)
	}
	return registry, nil
}

func (a *App) buildPacks(cfg *domainconfig.Config, exec shell.Executor) ([]*pack.Pack, error) {
	var packs []*pack.Pack

	if cfg.Search.Enabled {
		p, err := search.New(a.deps.search(cfg),
			search.WithMaxResults(cfg.Search.MaxResults),
			search.WithTimeout(cfg.Search.Timeout.Duration()),
		)
		if err != nil {
			return nil, fmt.Errorf("search pack: %w", err)
		}
		packs = append(packs, p)
	}

	packs = append(packs, platform.New(platform.WithSource(a.deps.platform)))

	shellPack, err := shell.New(exec,
		shell.WithTimeout(cfg.Sandbox.Timeout.Duration()),
		shell.WithBlockedPatterns(cfg.Sandbox.BlockedPatterns...),
	)
	if err != nil {
		return nil, fmt.Errorf("shell pack: %w", err)
	}
	return append(packs, shellPack), nil
}

func (a *App) newObservability(cfg *domainconfig.Config) (*observability.Provider, error) {
	opts := []observability.Option{
		observability.WithServiceName("sysagent"),
		observability.WithServiceVersion(Version),
	}
	if cfg.Telemetry.Metrics == domainconfig.MetricsStdout {
		opts = append(opts, observability.WithStdoutMetrics(a.stderr, cfg.Telemetry.Interval.Duration()))
	}
	if cfg.Telemetry.Tracing == domainconfig.TracingStdout {
		opts = append(opts, observability.WithStdoutTracing(a.stderr))
	}
	return observability.New(opts...)
}

func loadPrompt(path string) (*planner.Prompt, error) {
	if path == "" {
		return planner.DefaultPrompt(), nil
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt: %w", err)
	}
	prompt, err := planner.NewPrompt(string(text))
	if err != nil {
		return nil, fmt.Errorf("parse prompt %s: %w", path, err)
	}
	return prompt, nil
}

func newModelProvider(cfg *domainconfig.Config) (planner.Provider, error) {
	m := cfg.Model
	timeout := int(m.Timeout.Duration() / time.Second)

	switch m.Provider {
	case domainconfig.ProviderOllama:
		return planner.NewOllamaProvider(planner.OllamaConfig{
			BaseURL:     m.BaseURL,
			Model:       m.Name,
			Timeout:     timeout,
			Temperature: m.Temperature,
			TopK:        m.TopK,
			TopP:        m.TopP,
			Stop:        m.Stop,
		}), nil
	case domainconfig.ProviderOpenAI:
		return planner.NewOpenAIProvider(planner.OpenAIConfig{
			APIKey:  m.APIKey,
			BaseURL: m.BaseURL,
			Model:   m.Name,
			Timeout: timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", m.Provider)
	}
}

func newSandboxRunner(cfg *domainconfig.Config, metrics telemetry.Metrics) (shell.Executor, error) {
	s := cfg.Sandbox

	var (
		backend sandbox.Backend
		err     error
	)
	switch s.Backend {
	case domainconfig.BackendDocker:
		backend, err = sandbox.NewDockerBackendFromEnv(s.DockerHost, sandbox.WithPullIfMissing(s.PullIfMissing))
	case domainconfig.BackendKubernetes:
		backend, err = sandbox.NewKubernetesBackendFromKubeconfig(s.Kubeconfig, sandbox.WithNamespace(s.Namespace))
	default:
		err = fmt.Errorf("unknown sandbox backend %q", s.Backend)
	}
	if err != nil {
		return nil, err
	}

	rc := sandbox.DefaultConfig()
	rc.Image = s.Image
	rc.Timeout = s.Timeout.Duration()
	rc.MaxOutputBytes = s.MaxOutputBytes
	rc.Network = s.Network
	rc.Limits = sandbox.Limits{
		MemoryBytes: s.MemoryBytes,
		NanoCPUs:    int64(s.CPUs * 1e9),
		PidsLimit:   s.PidsLimit,
	}

	return sandbox.NewRunner(backend, sandbox.WithConfig(rc), sandbox.WithMetrics(metrics))
}

func newSearchProvider(cfg *domainconfig.Config) search.Provider {
	opts := []search.DuckDuckGoOption{}
	if cfg.Search.Endpoint != "" {
		opts = append(opts, search.WithEndpoint(cfg.Search.Endpoint))
	}
	if cfg.Search.Region != "" {
		opts = append(opts, search.WithRegion(cfg.Search.Region))
	}
	return search.NewDuckDuckGo(opts...)
}

// describeExecutor stands in for the sandbox when packs are only listed.
type describeExecutor struct{}

func (describeExecutor) Execute(context.Context, string, time.Duration) sandbox.Result {
	return sandbox.Result{ExitCode: -1, Err: errors.New("sandbox not connected")}
}
