package agent

import (
	"context"

	"github.com/auto-dns/docker-image-watch/internal/component"
	"github.com/auto-dns/docker-image-watch/internal/domain"
)

// Lookup resolves agent clients by name.
type Lookup interface {
	GetAgent(name string) Client
}

type proxy struct {
	component.Base
	agents Lookup
}

// client checks the agent assignment before any remote call is attempted.
func (p *proxy) client() (Client, error) {
	if p.Agent() == "" {
		return nil, NewMissingAgentAssignmentError(p.ID())
	}
	if p.agents == nil {
		return nil, NewAgentNotFoundError(p.Agent())
	}
	c := p.agents.GetAgent(p.Agent())
	if c == nil {
		return nil, NewAgentNotFoundError(p.Agent())
	}
	return c, nil
}

// Watcher stands in for a watcher that runs on an agent. Its configuration was
// validated remotely, so any object is accepted.
type Watcher struct {
	proxy
}

func NewWatcher(agents Lookup) *Watcher {
	return &Watcher{proxy{agents: agents}}
}

func (w *Watcher) Watch(ctx context.Context) ([]domain.ContainerReport, error) {
	c, err := w.client()
	if err != nil {
		return nil, err
	}
	return c.Watch(ctx, w.Type(), w.Name())
}

func (w *Watcher) WatchContainer(ctx context.Context, container domain.Container) (domain.ContainerReport, error) {
	c, err := w.client()
	if err != nil {
		return domain.ContainerReport{}, err
	}
	return c.WatchContainer(ctx, w.Type(), w.Name(), container)
}

// Trigger stands in for a trigger that runs on an agent.
type Trigger struct {
	proxy
}

func NewTrigger(agents Lookup) *Trigger {
	return &Trigger{proxy{agents: agents}}
}

func (t *Trigger) Trigger(ctx context.Context, container domain.Container) error {
	c, err := t.client()
	if err != nil {
		return err
	}
	return c.RunRemoteTrigger(ctx, container, t.Type(), t.Name())
}

func (t *Trigger) TriggerBatch(ctx context.Context, containers []domain.Container) error {
	c, err := t.client()
	if err != nil {
		return err
	}
	return c.RunRemoteTriggerBatch(ctx, containers, t.Type(), t.Name())
}
