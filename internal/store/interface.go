package store

import (
	"context"

	"github.com/auto-dns/docker-image-watch/internal/domain"
)

// Backend persists containers keyed by id. Get and Delete wrap domain.ErrNotFound.
type Backend interface {
	Get(ctx context.Context, id string) (domain.Container, error)
	List(ctx context.Context) ([]domain.Container, error)
	Put(ctx context.Context, c domain.Container) error
	Delete(ctx context.Context, id string) error
	Close() error
}
