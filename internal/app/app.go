package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/auto-dns/docker-image-watch/internal/agent"
	"github.com/auto-dns/docker-image-watch/internal/agent/api"
	"github.com/auto-dns/docker-image-watch/internal/audit"
	"github.com/auto-dns/docker-image-watch/internal/component"
	"github.com/auto-dns/docker-image-watch/internal/config"
	"github.com/auto-dns/docker-image-watch/internal/event"
	"github.com/auto-dns/docker-image-watch/internal/metrics"
	"github.com/auto-dns/docker-image-watch/internal/registry"
	"github.com/auto-dns/docker-image-watch/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

type Mode string

const (
	ModeController Mode = "controller"
	ModeAgent      Mode = "agent"
)

const auditLimit = 1000

type App struct {
	cfg     *config.Config
	mode    Mode
	version string

	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
	bus        *event.Bus
	containers *store.Containers
	registry   *registry.Registry
	audit      *audit.MemoryRecorder
	stopAudit  func()
	agents     *agent.Manager
	handler    http.Handler
	logger     zerolog.Logger
}

// New creates a new App by wiring up all dependencies.
func New(cfg *config.Config, mode Mode, version string, logger zerolog.Logger) (*App, error) {
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promRegistry)

	bus := event.NewBus(event.WithMetrics(m))

	backend, err := newBackend(cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	containers := store.NewContainers(backend, bus, logger)

	resolver, err := component.NewResolver(cfg.Providers.Root)
	if err != nil {
		_ = containers.Close()
		return nil, err
	}
	catalog := newCatalog(resolver, bus, containers, logger)

	recorder := audit.NewMemoryRecorder(auditLimit)

	a := &App{
		cfg:        cfg,
		mode:       mode,
		version:    version,
		metrics:    m,
		gatherer:   promRegistry,
		bus:        bus,
		containers: containers,
		registry:   registry.New(catalog, logger),
		audit:      recorder,
		stopAudit:  audit.RegisterDefaultListeners(bus, recorder, m, logger),
		logger:     logger.With().Str("component", "app").Str("mode", string(mode)).Logger(),
	}

	switch mode {
	case ModeAgent:
		if cfg.Server.Secret == "" {
			a.logger.Warn().Msg("server.secret is empty; every agent API call will be rejected")
		}
		a.handler = api.New(api.Options{
			Version:         version,
			Secret:          cfg.Server.Secret,
			ContainerDelete: cfg.Server.Feature.ContainerDelete,
			Gatherer:        promRegistry,
		}, api.Deps{
			Containers: containers,
			Registry:   a.registry,
			Bus:        bus,
			Metrics:    m,
		}, logger)
	case ModeController:
		a.agents = agent.NewManager()
		a.handler = api.NewStatusServer(version, promRegistry, logger)
	default:
		a.stopAudit()
		_ = containers.Close()
		return nil, fmt.Errorf("unknown mode %q", mode)
	}

	return a, nil
}

// start registers the configured components and, on a controller, connects the agents.
func (a *App) start(ctx context.Context) {
	regs := a.cfg.Registrations()
	registered := a.registry.RegisterFromConfig(ctx, regs)
	a.logger.Info().Int("configured", len(regs)).Int("registered", registered).Msg("Components registered")

	if a.mode == ModeController {
		clients := agent.InitAgents(ctx, a.cfg.Agents(), a.agents, agent.Deps{
			Containers: a.containers,
			Registry:   a.registry,
			Bus:        a.bus,
			Metrics:    a.metrics,
		}, a.logger)
		a.logger.Info().Int("agents", len(clients)).Msg("Agent clients started")
	}
}

// Run starts the application and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info().Str("version", a.version).Msg("Application starting")
	a.start(ctx)

	addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	var err error
	switch h := a.handler.(type) {
	case *api.Server:
		certFile, keyFile := "", ""
		if a.cfg.Server.TLS.Enabled {
			certFile, keyFile = a.cfg.Server.TLS.Cert, a.cfg.Server.TLS.Key
		}
		err = h.ListenAndServe(ctx, addr, certFile, keyFile)
	case *api.StatusServer:
		err = h.ListenAndServe(ctx, addr)
	}

	a.logger.Info().Msg("Application stopping")
	return errors.Join(err, a.shutdown(context.Background()))
}

func (a *App) shutdown(ctx context.Context) error {
	deregErr := a.registry.DeregisterAll(ctx)
	a.stopAudit()
	return errors.Join(deregErr, a.Close())
}

func (a *App) Close() error {
	if err := a.containers.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}
