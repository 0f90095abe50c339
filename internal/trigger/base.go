package trigger

import (
	"context"

	"github.com/auto-dns/docker-image-watch/internal/component"
	"github.com/auto-dns/docker-image-watch/internal/domain"
	"github.com/auto-dns/docker-image-watch/internal/event"
)

// Config is shared by every local trigger. Concrete configs embed it with ",squash".
type Config struct {
	Threshold string  `mapstructure:"threshold" validate:"oneof=all major minor patch digest all-no-digest major-no-digest minor-no-digest patch-no-digest"`
	Once      bool    `mapstructure:"once"`
	Order     float64 `mapstructure:"order"`
}

func (c *Config) SetDefaults() {
	c.Threshold = "all"
	c.Once = true
	c.Order = event.DefaultOrder
}

// Notifier is the concrete behavior a trigger wraps.
type Notifier interface {
	Trigger(ctx context.Context, container domain.Container) error
}

// Base subscribes a trigger to container reports for the lifetime of its registration.
type Base struct {
	component.Base

	bus        *event.Bus
	notifier   Notifier
	deregister func()
}

// Bind sets the bus to listen on and the notifier to call. Call it from the constructor.
func (b *Base) Bind(bus *event.Bus, notifier Notifier) {
	b.bus = bus
	b.notifier = notifier
}

func (b *Base) Init(ctx context.Context) error {
	cfg, err := component.Decode[Config](b)
	if err != nil {
		return err
	}

	b.deregister = b.bus.ContainerReport.Register(func(ctx context.Context, report domain.ContainerReport) error {
		if !shouldFire(cfg, report) {
			return nil
		}
		logger := b.Logger()
		if err := b.notifier.Trigger(ctx, report.Container); err != nil {
			logger.Warn().Err(err).Str("container", report.Container.LabelOrName()).Msg("Trigger failed")
			return nil
		}
		logger.Debug().Str("container", report.Container.LabelOrName()).Msg("Trigger executed")
		return nil
	}, event.WithOrder(cfg.Order), event.WithID(b.ID()))
	return nil
}

func (b *Base) Deinit(context.Context) error {
	if b.deregister != nil {
		b.deregister()
		b.deregister = nil
	}
	return nil
}

func shouldFire(cfg Config, report domain.ContainerReport) bool {
	if !report.Container.UpdateAvailable {
		return false
	}
	if !IsThresholdReached(cfg.Threshold, report.Container.UpdateKind) {
		return false
	}
	return !cfg.Once || report.Changed
}
