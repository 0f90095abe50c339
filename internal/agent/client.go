package agent

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/auto-dns/docker-image-watch/internal/component"
	"github.com/auto-dns/docker-image-watch/internal/config"
	"github.com/auto-dns/docker-image-watch/internal/domain"
	"github.com/auto-dns/docker-image-watch/internal/event"
	"github.com/auto-dns/docker-image-watch/internal/metrics"
	"github.com/auto-dns/docker-image-watch/internal/store"
	"github.com/rs/zerolog"
)

const (
	requestTimeout = 30 * time.Second
	retryInterval  = 10 * time.Second
)

type containerStore interface {
	List(ctx context.Context, filter store.Filter) ([]domain.Container, error)
	Upsert(ctx context.Context, c domain.Container) (bool, error)
	Delete(ctx context.Context, id string) error
}

type componentRegistry interface {
	RegisterProvider(ctx context.Context, p component.Provider, reg component.Registration) error
	DeregisterAgent(ctx context.Context, agent string) error
}

// Deps are the controller services an agent client feeds.
type Deps struct {
	Containers containerStore
	Registry   componentRegistry
	Bus        *event.Bus
	Agents     Lookup
	Metrics    *metrics.Metrics
}

// HTTPClient talks to one agent over its HTTP API and mirrors the agent's state into
// the controller.
type HTTPClient struct {
	name          string
	secret        string
	baseURL       string
	http          *http.Client
	stream        *http.Client
	deps          Deps
	connected     atomic.Bool
	retryInterval time.Duration
	logger        zerolog.Logger
}

func NewHTTPClient(cfg config.AgentConfig, deps Deps, logger zerolog.Logger) (*HTTPClient, error) {
	tlsConfig, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", cfg.Name, err)
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig

	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop()
	}

	c := &HTTPClient{
		name:          cfg.Name,
		secret:        cfg.Secret,
		baseURL:       baseURL(cfg, tlsConfig != nil),
		http:          &http.Client{Transport: transport, Timeout: requestTimeout},
		stream:        &http.Client{Transport: transport},
		deps:          deps,
		retryInterval: retryInterval,
		logger:        logger.With().Str("component", "agent").Str("agent", cfg.Name).Logger(),
	}
	if c.deps.Agents == nil {
		c.deps.Agents = selfLookup{c}
	}
	return c, nil
}

// selfLookup lets the proxies of a client built outside a Manager reach that client.
type selfLookup struct {
	client *HTTPClient
}

func (l selfLookup) GetAgent(name string) Client {
	if name != l.client.name {
		return nil
	}
	return l.client
}

// baseURL accepts a bare host or a full URL.
func baseURL(cfg config.AgentConfig, secure bool) string {
	if strings.Contains(cfg.Host, "://") {
		return strings.TrimRight(cfg.Host, "/")
	}
	scheme := "http"
	if secure {
		scheme = "https"
	}
	port := cfg.Port
	if port == 0 {
		port = 3000
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, port)
}

func buildTLSConfig(cfg config.AgentConfig) (*tls.Config, error) {
	if cfg.CAFile == "" && cfg.CertFile == "" && cfg.KeyFile == "" {
		return nil, nil
	}
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("no certificates found in ca file")
		}
		tlsConfig.RootCAs = pool
	}
	if cfg.CertFile != "" || cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

func (c *HTTPClient) Name() string      { return c.name }
func (c *HTTPClient) IsConnected() bool { return c.connected.Load() }
func (c *HTTPClient) BaseURL() string   { return c.baseURL }

func (c *HTTPClient) setConnected(v bool) {
	c.connected.Store(v)
	g := c.deps.Metrics.AgentConnected.WithLabelValues(c.name)
	if v {
		g.Set(1)
	} else {
		g.Set(0)
	}
}

// Start follows the agent event stream in the background until ctx is cancelled.
func (c *HTTPClient) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *HTTPClient) run(ctx context.Context) {
	for {
		err := c.follow(ctx)
		c.setConnected(false)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn().Err(err).Dur("retry_in", c.retryInterval).Msg("Agent event stream lost")

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.retryInterval):
		}
	}
}

func (c *HTTPClient) follow(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.remoteError(resp)
	}

	return readEvents(resp.Body, func(ev sseEvent) error {
		return c.handleEvent(ctx, ev)
	})
}

func (c *HTTPClient) handleEvent(ctx context.Context, ev sseEvent) error {
	switch ev.name {
	case EventAck:
		var ack Ack
		if err := json.Unmarshal([]byte(ev.data), &ack); err != nil {
			return fmt.Errorf("decode ack: %w", err)
		}
		c.setConnected(true)
		c.logger.Info().Str("version", ack.Version).Msg("Connected to agent")
		c.Handshake(ctx)
	case EventContainerAdded, EventContainerUpdated:
		var container domain.Container
		if err := json.Unmarshal([]byte(ev.data), &container); err != nil {
			c.logger.Warn().Err(err).Str("event", ev.name).Msg("Skipping undecodable container event")
			return nil
		}
		container.Agent = c.name
		if _, err := c.deps.Containers.Upsert(ctx, container); err != nil {
			c.logger.Warn().Err(err).Str("container", container.ID).Msg("Unable to store agent container")
		}
	case EventContainerRemoved:
		var container domain.Container
		if err := json.Unmarshal([]byte(ev.data), &container); err != nil {
			c.logger.Warn().Err(err).Str("event", ev.name).Msg("Skipping undecodable container event")
			return nil
		}
		if err := c.deps.Containers.Delete(ctx, container.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			c.logger.Warn().Err(err).Str("container", container.ID).Msg("Unable to remove agent container")
		}
	default:
		c.logger.Debug().Str("event", ev.name).Msg("Ignoring agent event")
	}
	return nil
}

// Handshake mirrors the agent's containers and components into the controller.
// Failures are logged; the stream stays up.
func (c *HTTPClient) Handshake(ctx context.Context) {
	if err := c.syncContainers(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Unable to sync agent containers")
	}
	if err := c.deps.Registry.DeregisterAgent(ctx, c.name); err != nil {
		c.logger.Warn().Err(err).Msg("Unable to remove previous agent components")
	}
	if err := c.registerComponents(ctx, component.KindWatcher, "/api/watchers"); err != nil {
		c.logger.Warn().Err(err).Msg("Unable to register agent watchers")
	}
	if err := c.registerComponents(ctx, component.KindTrigger, "/api/triggers"); err != nil {
		c.logger.Warn().Err(err).Msg("Unable to register agent triggers")
	}
}

func (c *HTTPClient) syncContainers(ctx context.Context) error {
	var remote []domain.Container
	if err := c.do(ctx, http.MethodGet, "/api/containers", nil, &remote); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(remote))
	for _, container := range remote {
		container.Agent = c.name
		seen[container.ID] = struct{}{}
		if _, err := c.deps.Containers.Upsert(ctx, container); err != nil {
			return err
		}
	}

	stored, err := c.deps.Containers.List(ctx, store.Filter{Agent: c.name})
	if err != nil {
		return err
	}
	for _, container := range stored {
		if _, ok := seen[container.ID]; ok {
			continue
		}
		if err := c.deps.Containers.Delete(ctx, container.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	c.logger.Info().Int("containers", len(remote)).Msg("Agent containers synced")
	return nil
}

func (c *HTTPClient) registerComponents(ctx context.Context, kind component.Kind, path string) error {
	var descriptors []ComponentDescriptor
	if err := c.do(ctx, http.MethodGet, path, nil, &descriptors); err != nil {
		return err
	}
	for _, d := range descriptors {
		var p component.Provider
		switch kind {
		case component.KindWatcher:
			p = NewWatcher(c.deps.Agents)
		case component.KindTrigger:
			p = NewTrigger(c.deps.Agents)
		}
		err := c.deps.Registry.RegisterProvider(ctx, p, component.Registration{
			Kind:          kind,
			Type:          d.Type,
			Name:          d.Name,
			Configuration: d.Configuration,
			Agent:         c.name,
		})
		if err != nil {
			c.logger.Warn().Err(err).Str("type", d.Type).Str("name", d.Name).Msgf("Unable to register agent %s", kind)
		}
	}
	return nil
}

func (c *HTTPClient) Watch(ctx context.Context, watcherType, watcherName string) ([]domain.ContainerReport, error) {
	var reports []domain.ContainerReport
	path := fmt.Sprintf("/api/watchers/%s/%s", url.PathEscape(watcherType), url.PathEscape(watcherName))
	if err := c.do(ctx, http.MethodPost, path, nil, &reports); err != nil {
		return nil, err
	}
	for i := range reports {
		if err := c.storeReport(ctx, &reports[i]); err != nil {
			return reports, err
		}
	}
	return reports, nil
}

func (c *HTTPClient) WatchContainer(ctx context.Context, watcherType, watcherName string, container domain.Container) (domain.ContainerReport, error) {
	var report domain.ContainerReport
	path := fmt.Sprintf("/api/watchers/%s/%s/container/%s", url.PathEscape(watcherType), url.PathEscape(watcherName), url.PathEscape(container.ID))
	if err := c.do(ctx, http.MethodPost, path, nil, &report); err != nil {
		return report, err
	}
	return report, c.storeReport(ctx, &report)
}

func (c *HTTPClient) storeReport(ctx context.Context, report *domain.ContainerReport) error {
	report.Container.Agent = c.name
	if _, err := c.deps.Containers.Upsert(ctx, report.Container); err != nil {
		return err
	}
	return c.deps.Bus.ContainerReport.Emit(ctx, *report)
}

func (c *HTTPClient) RunRemoteTrigger(ctx context.Context, container domain.Container, triggerType, triggerName string) error {
	path := fmt.Sprintf("/api/triggers/%s/%s", url.PathEscape(triggerType), url.PathEscape(triggerName))
	return c.do(ctx, http.MethodPost, path, container, nil)
}

func (c *HTTPClient) RunRemoteTriggerBatch(ctx context.Context, containers []domain.Container, triggerType, triggerName string) error {
	path := fmt.Sprintf("/api/triggers/%s/%s/batch", url.PathEscape(triggerType), url.PathEscape(triggerName))
	if containers == nil {
		containers = []domain.Container{}
	}
	return c.do(ctx, http.MethodPost, path, containers, nil)
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set(SecretHeader, c.secret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("agent %s: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.remoteError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode agent %s response: %w", c.name, err)
	}
	return nil
}

func (c *HTTPClient) remoteError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var body ErrorResponse
	if err := json.Unmarshal(b, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(b))
	}
	return NewRemoteExecutionError(c.name, resp.StatusCode, body.Error)
}
