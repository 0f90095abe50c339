package component

import (
	"fmt"
	"maps"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

// Schema validates a raw configuration map and returns the normalized copy to store.
type Schema interface {
	Validate(raw map[string]any) (map[string]any, error)
}

// Defaulter is implemented by configuration structs that need non-zero defaults.
type Defaulter interface {
	SetDefaults()
}

var validate = validator.New(validator.WithRequiredStructEnabled())

type structSchema[T any] struct {
	allowUnknown bool
}

// NewSchema validates configuration against T. Keys are matched with mapstructure tags,
// rules come from validate tags and unknown keys are rejected.
func NewSchema[T any]() Schema {
	return structSchema[T]{}
}

// NewLenientSchema is NewSchema but keeps unknown keys.
func NewLenientSchema[T any]() Schema {
	return structSchema[T]{allowUnknown: true}
}

func (s structSchema[T]) Validate(raw map[string]any) (map[string]any, error) {
	var out T
	if d, ok := any(&out).(Defaulter); ok {
		d.SetDefaults()
	}
	if err := decode(raw, &out, !s.allowUnknown); err != nil {
		return nil, err
	}
	if err := validate.Struct(out); err != nil {
		return nil, err
	}

	validated := map[string]any{}
	if s.allowUnknown {
		maps.Copy(validated, raw)
	}
	if err := mapstructure.Decode(out, &validated); err != nil {
		return nil, fmt.Errorf("encode validated configuration: %w", err)
	}
	return validated, nil
}

type anySchema struct{}

// AnySchema accepts any object.
func AnySchema() Schema { return anySchema{} }

func (anySchema) Validate(raw map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	maps.Copy(out, raw)
	return out, nil
}

// Decode gives a typed view of a registered provider's configuration.
func Decode[T any](p Provider) (T, error) {
	var out T
	if d, ok := any(&out).(Defaulter); ok {
		d.SetDefaults()
	}
	err := decode(p.Configuration(), &out, false)
	return out, err
}

func decode(raw map[string]any, out any, errorUnused bool) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      errorUnused,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}
