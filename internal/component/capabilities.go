package component

import (
	"context"

	"github.com/auto-dns/docker-image-watch/internal/domain"
)

// Watcher discovers containers and reports available updates.
type Watcher interface {
	Provider
	Watch(ctx context.Context) ([]domain.ContainerReport, error)
	WatchContainer(ctx context.Context, container domain.Container) (domain.ContainerReport, error)
}

// Trigger notifies about (or acts on) available updates.
type Trigger interface {
	Provider
	Trigger(ctx context.Context, container domain.Container) error
	TriggerBatch(ctx context.Context, containers []domain.Container) error
}
