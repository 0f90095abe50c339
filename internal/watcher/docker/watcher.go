package docker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/auto-dns/docker-image-watch/internal/component"
	"github.com/auto-dns/docker-image-watch/internal/domain"
	"github.com/auto-dns/docker-image-watch/internal/event"
	"github.com/auto-dns/docker-image-watch/internal/store"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

const eventsRetryInterval = 5 * time.Second

type Config struct {
	Socket         string        `mapstructure:"socket"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	Interval       time.Duration `mapstructure:"interval" validate:"gt=0"`
	WatchByDefault bool          `mapstructure:"watchbydefault"`
	WatchEvents    bool          `mapstructure:"watchevents"`
	WatchAtStart   bool          `mapstructure:"watchatstart"`
}

func (c *Config) SetDefaults() {
	c.Socket = "/var/run/docker.sock"
	c.Port = 2375
	c.Interval = time.Hour
	c.WatchByDefault = true
	c.WatchEvents = true
	c.WatchAtStart = true
}

// DaemonHost is the docker endpoint the configuration points at.
func (c Config) DaemonHost() string {
	if c.Host != "" {
		return fmt.Sprintf("tcp://%s:%d", c.Host, c.Port)
	}
	return "unix://" + c.Socket
}

// ClientFactory opens a docker client for a watcher configuration.
type ClientFactory func(cfg Config) (dockerClient, error)

func defaultClientFactory(cfg Config) (dockerClient, error) {
	return client.NewClientWithOpts(client.WithHost(cfg.DaemonHost()), client.WithAPIVersionNegotiation())
}

// Watcher discovers containers on a docker daemon and compares their image digests
// with the registry.
type Watcher struct {
	component.Base

	bus        *event.Bus
	containers containerStore
	newClient  ClientFactory

	cfg    Config
	cli    dockerClient
	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(bus *event.Bus, containers containerStore) *Watcher {
	return NewWithClientFactory(bus, containers, defaultClientFactory)
}

func NewWithClientFactory(bus *event.Bus, containers containerStore, factory ClientFactory) *Watcher {
	return &Watcher{
		bus:        bus,
		containers: containers,
		newClient:  factory,
	}
}

func (w *Watcher) Schema() component.Schema {
	return component.NewSchema[Config]()
}

func (w *Watcher) Init(context.Context) error {
	cfg, err := component.Decode[Config](w)
	if err != nil {
		return err
	}
	cli, err := w.newClient(cfg)
	if err != nil {
		return fmt.Errorf("create docker client: %w", err)
	}
	w.cfg = cfg
	w.cli = cli

	runCtx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.wg.Add(1)
	go w.runSchedule(runCtx)
	if cfg.WatchEvents {
		w.wg.Add(1)
		go w.runEvents(runCtx)
	}
	return nil
}

func (w *Watcher) Deinit(context.Context) error {
	if w.cancel != nil {
		w.cancel()
		w.wg.Wait()
		w.cancel = nil
	}
	if w.cli != nil {
		err := w.cli.Close()
		w.cli = nil
		return err
	}
	return nil
}

func (w *Watcher) runSchedule(ctx context.Context) {
	defer w.wg.Done()
	logger := w.Logger()

	if w.cfg.WatchAtStart {
		if _, err := w.Watch(ctx); err != nil {
			logger.Error().Err(err).Msg("Initial watch failed")
		}
	}

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Watch(ctx); err != nil {
				logger.Error().Err(err).Msg("Scheduled watch failed")
			}
		}
	}
}

// Watch checks every watched running container, stores the results and removes
// containers of this watcher that no longer run.
func (w *Watcher) Watch(ctx context.Context) ([]domain.ContainerReport, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.bus.WatcherStart.Emit(ctx, w.ID()); err != nil {
		return nil, err
	}

	reports, err := w.watchAll(ctx)

	if stopErr := w.bus.WatcherStop.Emit(ctx, w.ID()); stopErr != nil && err == nil {
		err = stopErr
	}
	return reports, err
}

func (w *Watcher) watchAll(ctx context.Context) ([]domain.ContainerReport, error) {
	containers, err := w.listWatched(ctx, container.ListOptions{})
	if err != nil {
		return nil, err
	}

	running := make(map[string]struct{}, len(containers))
	reports := make([]domain.ContainerReport, 0, len(containers))
	for _, c := range containers {
		running[c.ID] = struct{}{}
		report, err := w.WatchContainer(ctx, c)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}

	if err := w.prune(ctx, running); err != nil {
		return reports, err
	}
	return reports, nil
}

func (w *Watcher) listWatched(ctx context.Context, opts container.ListOptions) ([]domain.Container, error) {
	summaries, err := w.cli.ContainerList(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	var out []domain.Container
	for _, s := range summaries {
		if !isWatched(s.Labels, w.cfg.WatchByDefault) {
			continue
		}
		out = append(out, fromContainerSummary(s, w.ID()))
	}
	return out, nil
}

func (w *Watcher) prune(ctx context.Context, running map[string]struct{}) error {
	stored, err := w.containers.List(ctx, store.Filter{Watcher: w.ID()})
	if err != nil {
		return fmt.Errorf("list stored containers: %w", err)
	}
	for _, c := range stored {
		if _, ok := running[c.ID]; ok {
			continue
		}
		if err := w.containers.Delete(ctx, c.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	return nil
}

// WatchContainer compares the local image digest of c with the registry, stores the
// result and emits a container-report. Lookup failures are recorded on the container.
func (w *Watcher) WatchContainer(ctx context.Context, c domain.Container) (domain.ContainerReport, error) {
	logger := w.Logger()
	c.Watcher = w.ID()
	c.Error = ""
	c.UpdateAvailable = false
	c.UpdateKind = domain.UpdateKind{Kind: domain.KindUnknown}

	if err := w.findUpdate(ctx, &c); err != nil {
		logger.Warn().Err(err).Str("container", c.LabelOrName()).Msg("Unable to check for updates")
		c.Error = err.Error()
	}

	previous, err := w.containers.Get(ctx, c.ID)
	changed := errors.Is(err, domain.ErrNotFound) || (err == nil && resultChanged(previous, c))

	if _, err := w.containers.Upsert(ctx, c); err != nil {
		return domain.ContainerReport{}, fmt.Errorf("store container %s: %w", c.ID, err)
	}

	report := domain.ContainerReport{Container: c, Changed: changed}
	if err := w.bus.ContainerReport.Emit(ctx, report); err != nil {
		return report, err
	}
	return report, nil
}

func (w *Watcher) findUpdate(ctx context.Context, c *domain.Container) error {
	ref := c.Image.ID
	if ref == "" {
		ref = c.Image.Reference()
	}
	inspect, err := w.cli.ImageInspect(ctx, ref)
	if err != nil {
		return fmt.Errorf("inspect image: %w", err)
	}
	local := localDigest(c.Image, inspect.RepoDigests)
	c.Image.Digest = local

	dist, err := w.cli.DistributionInspect(ctx, c.Image.Reference(), "")
	if err != nil {
		return fmt.Errorf("inspect registry: %w", err)
	}
	remote := dist.Descriptor.Digest.String()
	c.Result = &domain.Result{Tag: c.Image.Tag, Digest: remote}

	if local != "" && remote != "" && local != remote {
		c.UpdateAvailable = true
		c.UpdateKind = domain.UpdateKind{
			Kind:        domain.KindDigest,
			LocalValue:  local,
			RemoteValue: remote,
		}
	}
	return nil
}

func resultChanged(previous, current domain.Container) bool {
	if previous.UpdateAvailable != current.UpdateAvailable {
		return true
	}
	if (previous.Result == nil) != (current.Result == nil) {
		return true
	}
	return previous.Result != nil && *previous.Result != *current.Result
}

func (w *Watcher) runEvents(ctx context.Context) {
	defer w.wg.Done()
	logger := w.Logger()

	for {
		w.consumeEvents(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(eventsRetryInterval):
			logger.Info().Msg("Resubscribing to docker events")
		}
	}
}

func (w *Watcher) consumeEvents(ctx context.Context) {
	logger := w.Logger()

	filterArgs := filters.NewArgs()
	filterArgs.Add("type", string(events.ContainerEventType))
	filterArgs.Add("event", string(events.ActionStart))
	filterArgs.Add("event", string(events.ActionDie))
	filterArgs.Add("event", string(events.ActionDestroy))

	eventCh, errCh := w.cli.Events(ctx, events.ListOptions{
		Filters: filterArgs,
		Since:   time.Now().Format(time.RFC3339Nano),
	})

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("Error from Docker events stream")
			}
			return
		case msg, ok := <-eventCh:
			if !ok {
				logger.Info().Msg("Docker events channel closed")
				return
			}
			if err := w.handleEvent(ctx, msg); err != nil {
				logger.Warn().Err(err).Str("action", string(msg.Action)).Str("container", msg.Actor.ID).Msg("Unable to process docker event")
			}
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, msg events.Message) error {
	logger := w.Logger()
	logger.Debug().Str("action", string(msg.Action)).Str("container", msg.Actor.ID).Msg("Received Docker event")

	switch msg.Action {
	case events.ActionStart:
		containers, err := w.listWatched(ctx, container.ListOptions{
			Filters: filters.NewArgs(filters.Arg("id", msg.Actor.ID)),
		})
		if err != nil {
			return err
		}
		for _, c := range containers {
			if _, err := w.WatchContainer(ctx, c); err != nil {
				return err
			}
		}
		return nil
	case events.ActionDie, events.ActionDestroy:
		err := w.containers.Delete(ctx, msg.Actor.ID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}
