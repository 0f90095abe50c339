package component

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory builds an unregistered provider instance.
type Factory func() Provider

// Catalog maps (kind, type) to a provider factory. Entries are added at startup.
type Catalog struct {
	mu        sync.RWMutex
	factories map[Kind]map[string]Factory
	resolver  *Resolver
	onError   func(error)
}

func NewCatalog(resolver *Resolver, onError func(error)) *Catalog {
	if resolver == nil {
		resolver = &Resolver{}
	}
	return &Catalog{
		factories: make(map[Kind]map[string]Factory),
		resolver:  resolver,
		onError:   onError,
	}
}

func (c *Catalog) Add(kind Kind, typ string, f Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.factories[kind] == nil {
		c.factories[kind] = make(map[string]Factory)
	}
	c.factories[kind][strings.ToLower(typ)] = f
}

// New instantiates the provider for (kind, type).
func (c *Catalog) New(kind Kind, typ string) (Provider, error) {
	c.mu.RLock()
	f, ok := c.factories[kind][strings.ToLower(typ)]
	c.mu.RUnlock()
	if !ok {
		raw := fmt.Errorf("%w: %s/%s", ErrProviderNotFound, kind.Dir(), typ)
		return nil, BuildHelpfulError(kind, typ, raw, c.Available(kind))
	}
	return f(), nil
}

// Types lists the statically registered types of a kind.
func (c *Catalog) Types(kind Kind) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	types := make([]string, 0, len(c.factories[kind]))
	for t := range c.factories[kind] {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Available merges static types with provider directories found on disk.
func (c *Catalog) Available(kind Kind) []string {
	seen := map[string]struct{}{}
	for _, t := range c.Types(kind) {
		seen[t] = struct{}{}
	}
	for _, t := range c.resolver.ListAvailableProviders(kind.Dir(), c.onError) {
		seen[t] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
