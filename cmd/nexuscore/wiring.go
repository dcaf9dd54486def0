// Package main is the CLI entry point for the nexuscore AI collaborator
// service. wiring.go assembles the full dependency graph described by
// SPEC_FULL.md's ten components from a loaded Config; main.go and
// commands.go expose it over a cobra CLI, grounded on the teacher's
// cmd/nexus main.go/commands.go split.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/nexuscore/agentd/internal/adapters"
	"github.com/nexuscore/agentd/internal/backoff"
	"github.com/nexuscore/agentd/internal/config"
	"github.com/nexuscore/agentd/internal/governance"
	"github.com/nexuscore/agentd/internal/httpapi"
	"github.com/nexuscore/agentd/internal/mcp"
	"github.com/nexuscore/agentd/internal/mode"
	"github.com/nexuscore/agentd/internal/models"
	"github.com/nexuscore/agentd/internal/observability"
	"github.com/nexuscore/agentd/internal/orchestrator"
	"github.com/nexuscore/agentd/internal/router"
	"github.com/nexuscore/agentd/internal/scheduler"
	"github.com/nexuscore/agentd/internal/sensor"
	"github.com/nexuscore/agentd/internal/sessions"
	"github.com/nexuscore/agentd/internal/telemetry"
	"github.com/nexuscore/agentd/internal/tools"
	"github.com/nexuscore/agentd/internal/tools/builtin"
)

// App holds the fully wired dependency graph for one process lifetime.
type App struct {
	Config     *config.Config
	Log        *slog.Logger
	Bus        *telemetry.Bus
	Daemon     *sensor.Daemon
	ModeMgr    *mode.Manager
	Governance *governance.Store
	Registry   *tools.Registry
	ToolExec   *tools.Executor
	Router     *router.Router
	LLM        orchestrator.LLMAdapter
	Sessions   sessions.Store
	Executor   *orchestrator.Executor
	Scheduler  *scheduler.Scheduler
	HTTP       *httpapi.Server

	ObsLogger   *observability.Logger
	Metrics     *observability.Metrics
	Tracer      *observability.Tracer
	tracerClose func(context.Context) error
}

// Close releases ambient-stack resources (the OTLP tracer exporter).
func (a *App) Close(ctx context.Context) error {
	if a.tracerClose != nil {
		return a.tracerClose(ctx)
	}
	return nil
}

// Build assembles an App from a loaded config. Any component that fails to
// construct (bad credentials, bad DSN) is a fatal startup error.
func Build(cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	obsLogger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	metrics := observability.NewMetrics()
	tracer, tracerClose := observability.NewTracer(observability.TraceConfig{
		ServiceName:    "nexuscore",
		ServiceVersion: version,
		Endpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	})

	localSink, err := telemetry.NewJSONLSink(cfg.Scheduler.TelemetryRoot+"/events.jsonl", 64<<20, 5, log)
	if err != nil {
		return nil, fmt.Errorf("wiring: telemetry sink: %w", err)
	}
	bus := telemetry.NewBus(localSink, nil, log)

	daemon := sensor.New(sensor.Config{
		PollInterval: cfg.Sensor.PollInterval,
		DiskPath:     cfg.Sensor.DiskPath,
		BufferSize:   cfg.Sensor.BufferSize,
		EmitEvery:    cfg.Sensor.EmitEvery,
	})

	modeMgr := mode.NewManager(buildModeDefs(cfg.Mode), func(name string, fields map[string]any) {
		bus.Info(telemetry.NewTrace(), name, fields)
	})

	policies, err := governance.LoadPolicies(cfg.Tools.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("wiring: load tool policies: %w", err)
	}
	govStore := governance.NewStore(policies)

	registry := tools.NewRegistry()
	builtin.Register(registry, builtin.Config{Workspace: ".", Catalog: models.DefaultCatalog})
	if cfg.MCP.Enabled {
		mcpMgr := mcp.NewManager(&cfg.MCP, log)
		if err := mcpMgr.Start(context.Background()); err != nil {
			return nil, fmt.Errorf("wiring: mcp manager: %w", err)
		}
		_ = mcp.RegisterToolsWithRegistrar(registry, mcpMgr, govStore)
	}

	toolExec := tools.NewExecutor(registry, govStore, tools.ExecutorConfig{
		MaxConcurrency: cfg.Tools.Execution.MaxConcurrency,
		DefaultTimeout: cfg.Tools.Execution.DefaultTimeout,
		DefaultRetries: cfg.Tools.Execution.DefaultRetries,
		BackoffPolicy:  backoff.DefaultPolicy(),
	})

	rt := router.New(router.Config{
		ConfidenceThreshold: cfg.LLM.Routing.ConfidenceThreshold,
		ReasoningEnabled:    cfg.LLM.Routing.ReasoningEnabled,
		RouterEnabled:       cfg.LLM.Routing.RouterEnabled,
		ConfirmTimeout:      cfg.LLM.Routing.ConfirmTimeout,
	})

	llm, err := buildLLM(cfg.LLM, log)
	if err != nil {
		return nil, fmt.Errorf("wiring: llm adapters: %w", err)
	}

	store, err := buildSessionStore(cfg.Session)
	if err != nil {
		return nil, fmt.Errorf("wiring: session store: %w", err)
	}

	executor := orchestrator.New(store, rt, toolExec, registry, govStore, modeMgr, daemon, bus, llm, orchestrator.Config{
		ContextWindowKeepFirst:  cfg.Session.ContextWindow.KeepFirst,
		ContextWindowKeepRecent: cfg.Session.ContextWindow.KeepRecent,
		MaxContextTokens:        cfg.Session.ContextWindow.MaxTokens,
	})
	executor.SetCompactor(orchestrator.NewCompactor(llm, nil))

	sched := scheduler.New(scheduler.Config{Bus: bus, Logger: log, Metrics: metrics})
	registerJobs(sched, cfg.Scheduler)

	httpSrv := httpapi.New(httpapi.Config{
		Addr:            fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, executor, store, modeMgr, log).WithMetrics(metrics)

	return &App{
		Config:      cfg,
		Log:         log,
		Bus:         bus,
		Daemon:      daemon,
		ModeMgr:     modeMgr,
		Governance:  govStore,
		Registry:    registry,
		ToolExec:    toolExec,
		Router:      rt,
		LLM:         llm,
		Sessions:    store,
		Executor:    executor,
		Scheduler:   sched,
		HTTP:        httpSrv,
		ObsLogger:   obsLogger,
		Metrics:     metrics,
		Tracer:      tracer,
		tracerClose: tracerClose,
	}, nil
}

// buildModeDefs starts from mode.DefaultDefinitions() (for its
// AllowedTransitions ladder) and overrides thresholds/sustain seconds for
// any mode named in config, per config_mode.go's documented fallback.
func buildModeDefs(cfg config.ModeConfig) map[mode.Mode]mode.Definition {
	defs := mode.DefaultDefinitions()
	for name, t := range cfg.Thresholds {
		m := mode.Mode(name)
		def, ok := defs[m]
		if !ok {
			def = mode.Definition{Mode: m}
		}
		def.Thresholds = mode.Thresholds{
			CPUPercent:    t.CPUPercent,
			MemoryPercent: t.MemoryPercent,
			DiskPercent:   t.DiskPercent,
		}
		def.SustainedSeconds = t.SustainedSeconds
		defs[m] = def
	}
	return defs
}

func buildLLM(cfg config.LLMConfig, log *slog.Logger) (orchestrator.LLMAdapter, error) {
	adapterByProvider := make(map[string]orchestrator.LLMAdapter, len(cfg.Providers))
	for name, providerCfg := range cfg.Providers {
		roleModels := map[router.ModelRole]string{
			router.RoleRouter:    providerCfg.DefaultModel,
			router.RoleStandard:  providerCfg.DefaultModel,
			router.RoleReasoning: providerCfg.DefaultModel,
			router.RoleCoding:    providerCfg.DefaultModel,
		}
		for role, model := range providerCfg.Models {
			roleModels[router.ModelRole(role)] = model
		}
		resolveRoleModels(models.Provider(name), roleModels, log)

		adapter, err := adapters.NewOpenAIAdapter(providerCfg, roleModels)
		if err != nil {
			log.Warn("skipping unconfigured llm provider", "provider", name, "error", err)
			continue
		}
		adapterByProvider[name] = adapter
	}
	return adapters.NewFallbackAdapter(cfg, adapterByProvider, log)
}

// roleCapability is the catalog capability that best characterizes each
// router role, used to pick a sensible model when the config leaves a role
// unassigned for a provider.
var roleCapability = map[router.ModelRole]models.Capability{
	router.RoleRouter:    models.CapStreaming,
	router.RoleStandard:  models.CapStreaming,
	router.RoleReasoning: models.CapReasoning,
	router.RoleCoding:    models.CapCode,
}

// resolveRoleModels fills in any role left with an empty model ID by
// querying the built-in catalog (C6's source of model metadata) for the
// provider's best-fitting model, and warns about model IDs that name
// something the catalog has never heard of, catching config typos before
// they surface as opaque upstream 404s.
func resolveRoleModels(provider models.Provider, roleModels map[router.ModelRole]string, log *slog.Logger) {
	candidates := models.DefaultCatalog.List(&models.Filter{Providers: []models.Provider{provider}})

	for role, modelID := range roleModels {
		if modelID == "" {
			if pick := pickModelForRole(candidates, role); pick != nil {
				roleModels[role] = pick.ID
				log.Info("resolved model from catalog", "provider", provider, "role", role, "model", pick.ID)
			}
			continue
		}
		if _, ok := models.DefaultCatalog.Get(modelID); !ok {
			log.Warn("configured model is not in the built-in catalog", "provider", provider, "role", role, "model", modelID)
		}
	}
}

// pickModelForRole returns the highest-tier candidate with the role's
// characteristic capability, falling back to the highest-tier candidate
// overall when none advertise it.
func pickModelForRole(candidates []*models.Model, role router.ModelRole) *models.Model {
	if len(candidates) == 0 {
		return nil
	}
	cap := roleCapability[role]
	for _, m := range candidates {
		if m.HasCapability(cap) {
			return m
		}
	}
	return candidates[0]
}

func buildSessionStore(cfg config.SessionConfig) (sessions.Store, error) {
	if dsn := os.Getenv("NEXUSCORE_SESSION_DSN"); dsn != "" {
		return sessions.NewPostgresStoreFromDSN(dsn, nil)
	}
	return sessions.NewMemoryStore(), nil
}

func registerJobs(sched *scheduler.Scheduler, cfg config.SchedulerConfig) {
	_ = sched.Register(scheduler.NewDiskUsageJob(scheduler.DiskUsageConfig{
		TelemetryRoot: cfg.TelemetryRoot,
		AlertPercent:  cfg.DiskAlertPct,
	}))
	_ = sched.Register(scheduler.NewArchiveJob(scheduler.ArchiveConfig{
		SourceRoot:  cfg.TelemetryRoot,
		ArchiveRoot: cfg.ArchiveRoot,
		HotExpiry:   cfg.HotExpiry,
	}))
	_ = sched.Register(scheduler.NewPurgeJob(scheduler.PurgeConfig{
		ArchiveRoot: cfg.ArchiveRoot,
		ColdExpiry:  cfg.ColdExpiry,
	}))
}
