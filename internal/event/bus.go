package event

import (
	"sync/atomic"

	"github.com/auto-dns/docker-image-watch/internal/domain"
	"github.com/auto-dns/docker-image-watch/internal/metrics"
)

type Category string

const (
	CategoryContainerReport        Category = "container-report"
	CategoryContainerAdded         Category = "container-added"
	CategoryContainerUpdated       Category = "container-updated"
	CategoryContainerRemoved       Category = "container-removed"
	CategoryContainerUpdateApplied Category = "container-update-applied"
	CategoryWatcherStart           Category = "watcher-start"
	CategoryWatcherStop            Category = "watcher-stop"
	CategorySelfUpdateStarting     Category = "self-update-starting"
)

// Bus groups the event categories of one process. Watcher topics carry the watcher id,
// update-applied carries the container id.
type Bus struct {
	ContainerReport        *Topic[domain.ContainerReport]
	ContainerAdded         *Topic[domain.Container]
	ContainerUpdated       *Topic[domain.Container]
	ContainerRemoved       *Topic[domain.Container]
	ContainerUpdateApplied *Topic[string]
	WatcherStart           *Topic[string]
	WatcherStop            *Topic[string]
	SelfUpdateStarting     *Topic[domain.SelfUpdate]

	sequence atomic.Uint64
}

type BusOption func(*Bus)

// WithMetrics counts emissions per category.
func WithMetrics(m *metrics.Metrics) BusOption {
	return func(b *Bus) {
		b.ContainerReport.emitted = m.EventsEmitted.WithLabelValues(string(CategoryContainerReport))
		b.ContainerAdded.emitted = m.EventsEmitted.WithLabelValues(string(CategoryContainerAdded))
		b.ContainerUpdated.emitted = m.EventsEmitted.WithLabelValues(string(CategoryContainerUpdated))
		b.ContainerRemoved.emitted = m.EventsEmitted.WithLabelValues(string(CategoryContainerRemoved))
		b.ContainerUpdateApplied.emitted = m.EventsEmitted.WithLabelValues(string(CategoryContainerUpdateApplied))
		b.WatcherStart.emitted = m.EventsEmitted.WithLabelValues(string(CategoryWatcherStart))
		b.WatcherStop.emitted = m.EventsEmitted.WithLabelValues(string(CategoryWatcherStop))
		b.SelfUpdateStarting.emitted = m.EventsEmitted.WithLabelValues(string(CategorySelfUpdateStarting))
	}
}

func NewBus(opts ...BusOption) *Bus {
	b := &Bus{}
	b.ContainerReport = newTopic[domain.ContainerReport](CategoryContainerReport, &b.sequence)
	b.ContainerAdded = newTopic[domain.Container](CategoryContainerAdded, &b.sequence)
	b.ContainerUpdated = newTopic[domain.Container](CategoryContainerUpdated, &b.sequence)
	b.ContainerRemoved = newTopic[domain.Container](CategoryContainerRemoved, &b.sequence)
	b.ContainerUpdateApplied = newTopic[string](CategoryContainerUpdateApplied, &b.sequence)
	b.WatcherStart = newTopic[string](CategoryWatcherStart, &b.sequence)
	b.WatcherStop = newTopic[string](CategoryWatcherStop, &b.sequence)
	b.SelfUpdateStarting = newTopic[domain.SelfUpdate](CategorySelfUpdateStarting, &b.sequence)

	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ClearAllListeners drops every registration. Test helper only.
func (b *Bus) ClearAllListeners() {
	b.ContainerReport.clear()
	b.ContainerAdded.clear()
	b.ContainerUpdated.clear()
	b.ContainerRemoved.clear()
	b.ContainerUpdateApplied.clear()
	b.WatcherStart.clear()
	b.WatcherStop.clear()
	b.SelfUpdateStarting.clear()
}
