package component

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Provider is implemented by every pluggable unit. Concrete providers embed Base,
// which supplies identity, configuration storage and no-op lifecycle hooks.
type Provider interface {
	base() *Base

	Kind() Kind
	Type() string
	Name() string
	Agent() string
	ID() string
	Configuration() map[string]any
	MaskConfiguration(cfg map[string]any) map[string]any

	// Schema validates raw configuration before anything else happens.
	Schema() Schema
	Init(ctx context.Context) error
	Deinit(ctx context.Context) error
}

// Registration carries the identity and raw configuration of a component instance.
type Registration struct {
	Kind          Kind
	Type          string
	Name          string
	Configuration map[string]any
	Agent         string
}

// ID renders [agent.]type.name.
func (r Registration) ID() string {
	return FormatID(r.Agent, r.Type, r.Name)
}

func FormatID(agent, typ, name string) string {
	if agent != "" {
		return fmt.Sprintf("%s.%s.%s", agent, typ, name)
	}
	return fmt.Sprintf("%s.%s", typ, name)
}

// Base holds the state shared by all components.
type Base struct {
	kind          Kind
	typ           string
	name          string
	agent         string
	configuration map[string]any
	logger        zerolog.Logger
}

func (b *Base) base() *Base { return b }

func (b *Base) Kind() Kind    { return b.kind }
func (b *Base) Type() string  { return b.typ }
func (b *Base) Name() string  { return b.name }
func (b *Base) Agent() string { return b.agent }

func (b *Base) ID() string {
	return FormatID(b.agent, b.typ, b.name)
}

// Configuration returns the validated configuration.
func (b *Base) Configuration() map[string]any {
	return b.configuration
}

// Logger is scoped to the component id once registered.
func (b *Base) Logger() zerolog.Logger {
	return b.logger
}

// Schema accepts any object unless the provider declares its own.
func (b *Base) Schema() Schema { return AnySchema() }

func (b *Base) Init(context.Context) error   { return nil }
func (b *Base) Deinit(context.Context) error { return nil }

// MaskConfiguration redacts secret-shaped values. A nil argument masks the component's
// own configuration; neither input is modified.
func (b *Base) MaskConfiguration(cfg map[string]any) map[string]any {
	if cfg == nil {
		cfg = b.configuration
	}
	return maskMap(cfg)
}

// Register validates the configuration, stores it, logs a masked copy and runs Init.
// A validation failure leaves the provider untouched and Init is never called.
func Register(ctx context.Context, p Provider, reg Registration, logger zerolog.Logger) error {
	validated, err := p.Schema().Validate(reg.Configuration)
	if err != nil {
		return NewConfigurationError(reg.Kind, reg.ID(), err)
	}

	b := p.base()
	b.kind = reg.Kind
	b.typ = reg.Type
	b.name = reg.Name
	b.agent = reg.Agent
	b.configuration = validated
	b.logger = logger.With().Str("component", string(reg.Kind)).Str("id", reg.ID()).Logger()

	b.logger.Info().Interface("configuration", b.MaskConfiguration(nil)).Msgf("Register %s with configuration", reg.Kind)

	if err := p.Init(ctx); err != nil {
		return fmt.Errorf("init %s %s: %w", reg.Kind, reg.ID(), err)
	}
	return nil
}

// Deregister runs the provider's teardown hook.
func Deregister(ctx context.Context, p Provider) error {
	p.base().logger.Info().Msgf("Deregister %s", p.Kind())
	return p.Deinit(ctx)
}
