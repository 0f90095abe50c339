package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/auto-dns/docker-image-watch/internal/agent"
	"github.com/auto-dns/docker-image-watch/internal/component"
	"github.com/auto-dns/docker-image-watch/internal/domain"
	"github.com/auto-dns/docker-image-watch/internal/event"
	"github.com/auto-dns/docker-image-watch/internal/metrics"
	"github.com/auto-dns/docker-image-watch/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type containerStore interface {
	Get(ctx context.Context, id string) (domain.Container, error)
	List(ctx context.Context, filter store.Filter) ([]domain.Container, error)
	Delete(ctx context.Context, id string) error
}

type componentRegistry interface {
	Watcher(id string) (component.Watcher, bool)
	Trigger(id string) (component.Trigger, bool)
	Watchers() []component.Watcher
	Triggers() []component.Trigger
}

// Options configure the agent API.
type Options struct {
	Version         string
	Secret          string
	ContainerDelete bool
	// Gatherer backs /metrics; nil leaves the route out.
	Gatherer prometheus.Gatherer
}

type Deps struct {
	Containers containerStore
	Registry   componentRegistry
	Bus        *event.Bus
	Metrics    *metrics.Metrics
}

// Server exposes the agent's containers and components to a controller.
type Server struct {
	opts       Options
	containers containerStore
	registry   componentRegistry
	metrics    *metrics.Metrics
	broker     *broker
	mux        *http.ServeMux
	logger     zerolog.Logger

	mu         sync.Mutex
	unregister []func()
}

func New(opts Options, deps Deps, logger zerolog.Logger) *Server {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop()
	}
	s := &Server{
		opts:       opts,
		containers: deps.Containers,
		registry:   deps.Registry,
		metrics:    deps.Metrics,
		broker:     newBroker(),
		mux:        http.NewServeMux(),
		logger:     logger.With().Str("component", "agent-api").Logger(),
	}
	s.routes()
	if deps.Bus != nil {
		s.subscribe(deps.Bus)
	}
	return s
}

func (s *Server) routes() {
	s.handle("GET /api/containers", s.listContainers)
	s.handle("DELETE /api/containers/{id}", s.deleteContainer)
	s.handle("GET /api/events", s.events)
	s.handle("GET /api/watchers", s.listWatchers)
	s.handle("POST /api/watchers/{type}/{name}", s.watch)
	s.handle("POST /api/watchers/{type}/{name}/container/{id}", s.watchContainer)
	s.handle("GET /api/triggers", s.listTriggers)
	s.handle("POST /api/triggers/{type}/{name}", s.runTrigger)
	s.handle("POST /api/triggers/{type}/{name}/batch", s.runTriggerBatch)

	s.mux.HandleFunc("GET /health", HealthHandler(s.opts.Version))
	if s.opts.Gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}
}

func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, s.instrument(pattern, s.authorize(h)))
}

// subscribe pushes local container changes to every stream subscriber.
func (s *Server) subscribe(bus *event.Bus) {
	push := func(name string) event.Handler[domain.Container] {
		return func(_ context.Context, c domain.Container) error {
			if dropped := s.broker.publish(name, c); dropped > 0 {
				s.logger.Warn().Str("event", name).Int("dropped", dropped).Msg("Slow event subscribers missed an event")
			}
			return nil
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unregister = append(s.unregister,
		bus.ContainerAdded.Register(push(agent.EventContainerAdded), event.WithID("agent-api")),
		bus.ContainerUpdated.Register(push(agent.EventContainerUpdated), event.WithID("agent-api")),
		bus.ContainerRemoved.Register(push(agent.EventContainerRemoved), event.WithID("agent-api")),
	)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Subscribers reports how many event streams are open.
func (s *Server) Subscribers() int {
	return s.broker.len()
}

// Close detaches from the bus and ends every open event stream.
func (s *Server) Close() {
	s.mu.Lock()
	for _, fn := range s.unregister {
		fn()
	}
	s.unregister = nil
	s.mu.Unlock()
	s.broker.close()
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr, certFile, keyFile string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return serve(ctx, srv, certFile, keyFile, s.Close, s.logger)
}

func serve(ctx context.Context, srv *http.Server, certFile, keyFile string, onShutdown func(), logger zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Bool("tls", certFile != "").Msg("HTTP server listening")
		var err error
		if certFile != "" {
			err = srv.ListenAndServeTLS(certFile, keyFile)
		} else {
			err = srv.ListenAndServe()
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	if onShutdown != nil {
		onShutdown()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
