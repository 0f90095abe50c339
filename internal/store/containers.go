package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/auto-dns/docker-image-watch/internal/domain"
	"github.com/auto-dns/docker-image-watch/internal/event"
	"github.com/rs/zerolog"
)

// Filter narrows List results. Empty fields match everything.
type Filter struct {
	Watcher string
	Agent   string
}

func (f Filter) matches(c domain.Container) bool {
	if f.Watcher != "" && c.Watcher != f.Watcher {
		return false
	}
	if f.Agent != "" && c.Agent != f.Agent {
		return false
	}
	return true
}

// Containers is the container store used by watchers, agents and the API.
// Mutations emit the matching container-* event after the backend write.
type Containers struct {
	backend Backend
	bus     *event.Bus
	logger  zerolog.Logger
}

func NewContainers(backend Backend, bus *event.Bus, logger zerolog.Logger) *Containers {
	return &Containers{
		backend: backend,
		bus:     bus,
		logger:  logger.With().Str("component", "store").Logger(),
	}
}

func (s *Containers) Get(ctx context.Context, id string) (domain.Container, error) {
	return s.backend.Get(ctx, id)
}

// List returns matching containers sorted by name then id.
func (s *Containers) List(ctx context.Context, filter Filter) ([]domain.Container, error) {
	all, err := s.backend.List(ctx)
	if err != nil {
		return nil, err
	}
	out := slices.DeleteFunc(all, func(c domain.Container) bool { return !filter.matches(c) })
	slices.SortFunc(out, func(a, b domain.Container) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Containers) Insert(ctx context.Context, c domain.Container) error {
	if c.ID == "" {
		return errors.New("container id is required")
	}
	if err := s.backend.Put(ctx, c); err != nil {
		return fmt.Errorf("insert container %s: %w", c.ID, err)
	}
	s.logger.Debug().Str("container", c.ID).Msg("Container inserted")
	return s.bus.ContainerAdded.Emit(ctx, c)
}

func (s *Containers) Update(ctx context.Context, c domain.Container) error {
	if c.ID == "" {
		return errors.New("container id is required")
	}
	if err := s.backend.Put(ctx, c); err != nil {
		return fmt.Errorf("update container %s: %w", c.ID, err)
	}
	s.logger.Debug().Str("container", c.ID).Msg("Container updated")
	return s.bus.ContainerUpdated.Emit(ctx, c)
}

// Upsert inserts or updates c and reports whether it was new.
func (s *Containers) Upsert(ctx context.Context, c domain.Container) (bool, error) {
	_, err := s.backend.Get(ctx, c.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return true, s.Insert(ctx, c)
	case err != nil:
		return false, err
	default:
		return false, s.Update(ctx, c)
	}
}

func (s *Containers) Delete(ctx context.Context, id string) error {
	c, err := s.backend.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete container %s: %w", id, err)
	}
	s.logger.Debug().Str("container", id).Msg("Container deleted")
	return s.bus.ContainerRemoved.Emit(ctx, c)
}

func (s *Containers) Close() error {
	return s.backend.Close()
}
