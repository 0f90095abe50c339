package agent

import (
	"context"
	"slices"
	"sync"

	"github.com/auto-dns/docker-image-watch/internal/domain"
)

// Client executes watcher and trigger operations on a remote agent.
type Client interface {
	Name() string
	IsConnected() bool
	Watch(ctx context.Context, watcherType, watcherName string) ([]domain.ContainerReport, error)
	WatchContainer(ctx context.Context, watcherType, watcherName string, container domain.Container) (domain.ContainerReport, error)
	RunRemoteTrigger(ctx context.Context, container domain.Container, triggerType, triggerName string) error
	RunRemoteTriggerBatch(ctx context.Context, containers []domain.Container, triggerType, triggerName string) error
}

// Manager tracks the agent clients of the controller. Clients are never removed.
type Manager struct {
	mu      sync.RWMutex
	clients []Client
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) AddAgent(c Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients = append(m.clients, c)
}

// GetAgent returns the first client with the given name, or nil.
func (m *Manager) GetAgent(name string) Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.clients {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

func (m *Manager) GetAgents() []Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.clients)
}
