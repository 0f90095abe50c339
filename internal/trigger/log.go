package trigger

import (
	"context"

	"github.com/auto-dns/docker-image-watch/internal/component"
	"github.com/auto-dns/docker-image-watch/internal/domain"
	"github.com/auto-dns/docker-image-watch/internal/event"
	"github.com/rs/zerolog"
)

type LogConfig struct {
	Config `mapstructure:",squash"`
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

func (c *LogConfig) SetDefaults() {
	c.Config.SetDefaults()
	c.Level = "info"
}

// Log writes update notifications to the process log.
type Log struct {
	Base
}

func NewLog(bus *event.Bus) *Log {
	l := &Log{}
	l.Bind(bus, l)
	return l
}

func (l *Log) Schema() component.Schema {
	return component.NewSchema[LogConfig]()
}

func (l *Log) Trigger(_ context.Context, c domain.Container) error {
	level, err := l.level()
	if err != nil {
		return err
	}
	logger := l.Logger()
	logger.WithLevel(level).
		Str("container", c.LabelOrName()).
		Str("image", c.Image.Reference()).
		Str("kind", string(c.UpdateKind.Kind)).
		Str("from", c.UpdateKind.LocalValue).
		Str("to", c.UpdateKind.RemoteValue).
		Msg("Update available")
	return nil
}

func (l *Log) TriggerBatch(ctx context.Context, containers []domain.Container) error {
	for _, c := range containers {
		if err := l.Trigger(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (l *Log) level() (zerolog.Level, error) {
	cfg, err := component.Decode[LogConfig](l)
	if err != nil {
		return zerolog.NoLevel, err
	}
	return zerolog.ParseLevel(cfg.Level)
}
