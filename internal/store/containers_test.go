package store

import (
	"context"
	"errors"
	"testing"

	"github.com/auto-dns/docker-image-watch/internal/domain"
	"github.com/auto-dns/docker-image-watch/internal/event"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedEvents struct {
	added, updated, removed []string
}

func newTestContainers(t *testing.T) (*Containers, *recordedEvents) {
	t.Helper()
	bus := event.NewBus()
	rec := &recordedEvents{}
	bus.ContainerAdded.Register(func(ctx context.Context, c domain.Container) error {
		rec.added = append(rec.added, c.ID)
		return nil
	})
	bus.ContainerUpdated.Register(func(ctx context.Context, c domain.Container) error {
		rec.updated = append(rec.updated, c.ID)
		return nil
	})
	bus.ContainerRemoved.Register(func(ctx context.Context, c domain.Container) error {
		rec.removed = append(rec.removed, c.ID)
		return nil
	})
	return NewContainers(NewMemoryBackend(), bus, zerolog.Nop()), rec
}

func TestContainersUpsertEmitsAddedThenUpdated(t *testing.T) {
	s, rec := newTestContainers(t)
	ctx := context.Background()

	created, err := s.Upsert(ctx, domain.Container{ID: "c1", Name: "web"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Upsert(ctx, domain.Container{ID: "c1", Name: "web", UpdateAvailable: true})
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, []string{"c1"}, rec.added)
	assert.Equal(t, []string{"c1"}, rec.updated)

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, got.UpdateAvailable)
}

func TestContainersDelete(t *testing.T) {
	s, rec := newTestContainers(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Delete(ctx, "nope"), domain.ErrNotFound)
	assert.Empty(t, rec.removed)

	require.NoError(t, s.Insert(ctx, domain.Container{ID: "c1"}))
	require.NoError(t, s.Delete(ctx, "c1"))
	assert.Equal(t, []string{"c1"}, rec.removed)

	_, err := s.Get(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestContainersListFilterAndOrder(t *testing.T) {
	s, _ := newTestContainers(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, domain.Container{ID: "3", Name: "zeta", Watcher: "local"}))
	require.NoError(t, s.Insert(ctx, domain.Container{ID: "2", Name: "alpha", Watcher: "local", Agent: "edge"}))
	require.NoError(t, s.Insert(ctx, domain.Container{ID: "1", Name: "alpha", Watcher: "local"}))

	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, c := range all {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"1", "2", "3"}, ids)

	edge, err := s.List(ctx, Filter{Agent: "edge"})
	require.NoError(t, err)
	require.Len(t, edge, 1)
	assert.Equal(t, "2", edge[0].ID)
}

func TestContainersInsertRequiresID(t *testing.T) {
	s, rec := newTestContainers(t)
	assert.Error(t, s.Insert(context.Background(), domain.Container{Name: "anon"}))
	assert.Empty(t, rec.added)
}

func TestContainersListenerErrorIsReturned(t *testing.T) {
	bus := event.NewBus()
	bus.ContainerAdded.Register(func(ctx context.Context, c domain.Container) error {
		return errors.New("boom")
	})
	s := NewContainers(NewMemoryBackend(), bus, zerolog.Nop())

	err := s.Insert(context.Background(), domain.Container{ID: "c1"})
	assert.EqualError(t, err, "boom")

	// The write happened before the emission.
	_, err = s.Get(context.Background(), "c1")
	assert.NoError(t, err)
}
