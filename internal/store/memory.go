package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/auto-dns/docker-image-watch/internal/domain"
)

// MemoryBackend stores containers in a map.
type MemoryBackend struct {
	mu         sync.RWMutex
	containers map[string]domain.Container
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		containers: make(map[string]domain.Container),
	}
}

func (m *MemoryBackend) Get(_ context.Context, id string) (domain.Container, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.containers[id]
	if !ok {
		return domain.Container{}, fmt.Errorf("container %s: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

func (m *MemoryBackend) List(_ context.Context) ([]domain.Container, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Container, 0, len(m.containers))
	for _, c := range m.containers {
		out = append(out, c)
	}
	return out, nil
}

func (m *MemoryBackend) Put(_ context.Context, c domain.Container) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.containers[c.ID] = c
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.containers[id]; !ok {
		return fmt.Errorf("container %s: %w", id, domain.ErrNotFound)
	}
	delete(m.containers, id)
	return nil
}

func (m *MemoryBackend) Close() error {
	return nil
}
