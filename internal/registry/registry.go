package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/auto-dns/docker-image-watch/internal/component"
	"github.com/auto-dns/docker-image-watch/internal/domain"
	"github.com/rs/zerolog"
)

// Registry owns every registered component of the process. IDs are unique per kind.
type Registry struct {
	mu         sync.RWMutex
	catalog    *component.Catalog
	components map[component.Kind]map[string]component.Provider
	pending    map[pendingKey]struct{}
	order      []component.Provider
	logger     zerolog.Logger
}

type pendingKey struct {
	kind component.Kind
	id   string
}

func New(catalog *component.Catalog, logger zerolog.Logger) *Registry {
	return &Registry{
		catalog:    catalog,
		components: make(map[component.Kind]map[string]component.Provider),
		pending:    make(map[pendingKey]struct{}),
		logger:     logger,
	}
}

// Register builds the provider for (kind, type) from the catalog and registers it.
func (r *Registry) Register(ctx context.Context, reg component.Registration) (component.Provider, error) {
	p, err := r.catalog.New(reg.Kind, reg.Type)
	if err != nil {
		return nil, err
	}
	if err := r.RegisterProvider(ctx, p, reg); err != nil {
		return nil, err
	}
	return p, nil
}

// RegisterProvider registers a pre-built provider, such as an agent proxy.
// The ID is reserved while the provider initialises; the provider is only tracked once
// its registration fully succeeded.
func (r *Registry) RegisterProvider(ctx context.Context, p component.Provider, reg component.Registration) error {
	if !reg.Kind.IsValid() {
		return fmt.Errorf("invalid component kind %q", reg.Kind)
	}
	key := pendingKey{kind: reg.Kind, id: reg.ID()}

	r.mu.Lock()
	_, registered := r.components[reg.Kind][key.id]
	_, reserved := r.pending[key]
	if registered || reserved {
		r.mu.Unlock()
		return fmt.Errorf("%s %s is already registered", reg.Kind, key.id)
	}
	r.pending[key] = struct{}{}
	r.mu.Unlock()

	err := component.Register(ctx, p, reg, r.logger)

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, key)
	if err != nil {
		return err
	}
	if r.components[reg.Kind] == nil {
		r.components[reg.Kind] = make(map[string]component.Provider)
	}
	r.components[reg.Kind][p.ID()] = p
	r.order = append(r.order, p)
	return nil
}

// RegisterFromConfig registers configured components in kind order. Failures are logged
// and skipped. It returns the number of components registered.
func (r *Registry) RegisterFromConfig(ctx context.Context, regs []component.Registration) int {
	sorted := slices.Clone(regs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return slices.Index(component.Kinds, sorted[i].Kind) < slices.Index(component.Kinds, sorted[j].Kind)
	})

	registered := 0
	for _, reg := range sorted {
		if reg.Kind == component.KindAgent {
			continue
		}
		if _, err := r.Register(ctx, reg); err != nil {
			r.logger.Warn().Err(err).
				Str("kind", string(reg.Kind)).
				Str("id", reg.ID()).
				Msg("Unable to register component")
			continue
		}
		registered++
	}
	return registered
}

func (r *Registry) Get(kind component.Kind, id string) (component.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.components[kind][id]
	return p, ok
}

func (r *Registry) Has(kind component.Kind, id string) bool {
	_, ok := r.Get(kind, id)
	return ok
}

func (r *Registry) Watcher(id string) (component.Watcher, bool) {
	p, ok := r.Get(component.KindWatcher, id)
	if !ok {
		return nil, false
	}
	w, ok := p.(component.Watcher)
	return w, ok
}

func (r *Registry) Trigger(id string) (component.Trigger, bool) {
	p, ok := r.Get(component.KindTrigger, id)
	if !ok {
		return nil, false
	}
	t, ok := p.(component.Trigger)
	return t, ok
}

// Watchers returns registered watchers sorted by id.
func (r *Registry) Watchers() []component.Watcher {
	var out []component.Watcher
	for _, p := range r.list(component.KindWatcher) {
		if w, ok := p.(component.Watcher); ok {
			out = append(out, w)
		}
	}
	return out
}

// Triggers returns registered triggers sorted by id.
func (r *Registry) Triggers() []component.Trigger {
	var out []component.Trigger
	for _, p := range r.list(component.KindTrigger) {
		if t, ok := p.(component.Trigger); ok {
			out = append(out, t)
		}
	}
	return out
}

func (r *Registry) list(kind component.Kind) []component.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]component.Provider, 0, len(r.components[kind]))
	for _, p := range r.components[kind] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Deregister removes the component and runs its teardown hook.
func (r *Registry) Deregister(ctx context.Context, kind component.Kind, id string) error {
	r.mu.Lock()
	p, ok := r.components[kind][id]
	if ok {
		delete(r.components[kind], id)
		r.order = slices.DeleteFunc(r.order, func(x component.Provider) bool { return x == p })
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
	}
	return component.Deregister(ctx, p)
}

// DeregisterAgent removes every component owned by the named agent.
func (r *Registry) DeregisterAgent(ctx context.Context, agent string) error {
	var errs []error
	for _, p := range r.snapshot() {
		if p.Agent() != agent {
			continue
		}
		if err := r.Deregister(ctx, p.Kind(), p.ID()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DeregisterAll tears components down in reverse registration order.
func (r *Registry) DeregisterAll(ctx context.Context) error {
	all := r.snapshot()
	var errs []error
	for i := len(all) - 1; i >= 0; i-- {
		p := all[i]
		if err := r.Deregister(ctx, p.Kind(), p.ID()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) snapshot() []component.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}
