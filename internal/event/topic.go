package event

import (
	"cmp"
	"context"
	"math"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultOrder is used when a listener does not set one, or sets a non-finite one.
const DefaultOrder = 100

// Handler reacts to one emitted payload.
type Handler[T any] func(ctx context.Context, payload T) error

type listenerOptions struct {
	order float64
	id    string
}

type ListenerOption func(*listenerOptions)

// WithOrder sets the dispatch order; lower runs first.
func WithOrder(order float64) ListenerOption {
	return func(o *listenerOptions) {
		o.order = order
	}
}

// WithID sets the tie-break key among listeners of equal order.
func WithID(id string) ListenerOption {
	return func(o *listenerOptions) {
		o.id = id
	}
}

func normalizeOrder(order float64) float64 {
	if math.IsNaN(order) || math.IsInf(order, 0) {
		return DefaultOrder
	}
	return order
}

type listener[T any] struct {
	handler  Handler[T]
	order    float64
	id       string
	sequence uint64
}

func compareListeners[T any](a, b *listener[T]) int {
	if c := cmp.Compare(a.order, b.order); c != 0 {
		return c
	}
	if c := strings.Compare(a.id, b.id); c != 0 {
		return c
	}
	return cmp.Compare(a.sequence, b.sequence)
}

// Topic is one independently ordered event category.
type Topic[T any] struct {
	category  Category
	mu        sync.Mutex
	listeners []*listener[T]
	sequence  *atomic.Uint64
	emitted   prometheus.Counter
}

func newTopic[T any](category Category, sequence *atomic.Uint64) *Topic[T] {
	return &Topic[T]{
		category: category,
		sequence: sequence,
	}
}

func (t *Topic[T]) Category() Category {
	return t.category
}

// Register adds a listener and returns the function that removes exactly that listener.
func (t *Topic[T]) Register(handler Handler[T], opts ...ListenerOption) func() {
	o := listenerOptions{order: DefaultOrder}
	for _, opt := range opts {
		opt(&o)
	}
	l := &listener[T]{
		handler:  handler,
		order:    normalizeOrder(o.order),
		id:       o.id,
		sequence: t.sequence.Add(1),
	}

	t.mu.Lock()
	t.listeners = append(t.listeners, l)
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { t.remove(l) })
	}
}

func (t *Topic[T]) remove(l *listener[T]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, x := range t.listeners {
		if x == l {
			t.listeners = slices.Delete(t.listeners, i, i+1)
			return
		}
	}
}

// Emit runs every listener registered at call time, one at a time, in
// (order, id, sequence) order. The first handler error stops the emission and is returned.
func (t *Topic[T]) Emit(ctx context.Context, payload T) error {
	t.mu.Lock()
	snapshot := slices.Clone(t.listeners)
	t.mu.Unlock()

	slices.SortFunc(snapshot, compareListeners[T])

	if t.emitted != nil {
		t.emitted.Inc()
	}

	for _, l := range snapshot {
		if err := l.handler(ctx, payload); err != nil {
			return err
		}
	}
	return nil
}

// Len reports the number of registered listeners.
func (t *Topic[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.listeners)
}

func (t *Topic[T]) clear() {
	t.mu.Lock()
	t.listeners = nil
	t.mu.Unlock()
}
