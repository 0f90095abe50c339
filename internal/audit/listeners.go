package audit

import (
	"context"

	"github.com/auto-dns/docker-image-watch/internal/domain"
	"github.com/auto-dns/docker-image-watch/internal/event"
	"github.com/auto-dns/docker-image-watch/internal/metrics"
	"github.com/rs/zerolog"
)

// ListenerOrder places audit recording ahead of notification triggers.
const ListenerOrder = 0

const listenerID = "audit"

type listeners struct {
	recorder Recorder
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// RegisterDefaultListeners wires the built-in audit listeners and returns a function
// removing all of them.
func RegisterDefaultListeners(bus *event.Bus, recorder Recorder, m *metrics.Metrics, logger zerolog.Logger) func() {
	l := &listeners{
		recorder: recorder,
		metrics:  m,
		logger:   logger.With().Str("component", "audit").Logger(),
	}
	opts := []event.ListenerOption{event.WithOrder(ListenerOrder), event.WithID(listenerID)}

	deregs := []func(){
		bus.ContainerReport.Register(l.onContainerReport, opts...),
		bus.ContainerAdded.Register(l.onContainerAdded, opts...),
		bus.ContainerRemoved.Register(l.onContainerRemoved, opts...),
	}
	return func() {
		for _, d := range deregs {
			d()
		}
	}
}

func (l *listeners) onContainerReport(ctx context.Context, report domain.ContainerReport) error {
	c := report.Container
	if !c.UpdateAvailable {
		return nil
	}
	return l.record(ctx, domain.AuditEntry{
		Action:         domain.AuditUpdateAvailable,
		ContainerName:  c.LabelOrName(),
		ContainerImage: c.Image.Reference(),
		FromVersion:    c.UpdateKind.LocalValue,
		ToVersion:      c.UpdateKind.RemoteValue,
		Status:         "info",
	})
}

func (l *listeners) onContainerAdded(ctx context.Context, c domain.Container) error {
	return l.record(ctx, domain.AuditEntry{
		Action:         domain.AuditContainerAdded,
		ContainerName:  c.LabelOrName(),
		ContainerImage: c.Image.Reference(),
		Status:         "info",
	})
}

func (l *listeners) onContainerRemoved(ctx context.Context, c domain.Container) error {
	return l.record(ctx, domain.AuditEntry{
		Action:         domain.AuditContainerRemoved,
		ContainerName:  c.LabelOrName(),
		ContainerImage: c.Image.Reference(),
		Status:         "info",
	})
}

func (l *listeners) record(ctx context.Context, entry domain.AuditEntry) error {
	if err := l.recorder.Record(ctx, entry); err != nil {
		// Audit is best effort: a failing store must not abort the emission.
		l.logger.Warn().Err(err).Str("action", string(entry.Action)).Msg("Unable to record audit entry")
		return nil
	}
	l.metrics.AuditEntries.WithLabelValues(string(entry.Action)).Inc()
	return nil
}
