package component

import (
	"fmt"
	"strings"
)

// Kind is the family a pluggable component belongs to.
type Kind string

const (
	KindWatcher        Kind = "watcher"
	KindTrigger        Kind = "trigger"
	KindRegistry       Kind = "registry"
	KindAuthentication Kind = "authentication"
	KindAgent          Kind = "agent"
)

// Kinds lists every kind in registration order: a kind may depend on the ones before it.
var Kinds = []Kind{KindAuthentication, KindRegistry, KindAgent, KindWatcher, KindTrigger}

func (k Kind) IsValid() bool {
	switch k {
	case KindWatcher, KindTrigger, KindRegistry, KindAuthentication, KindAgent:
		return true
	}
	return false
}

// Dir is the provider directory name for the kind.
func (k Kind) Dir() string {
	if k == KindRegistry {
		return "registries"
	}
	return string(k) + "s"
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("unsupported component kind %q", s)
	}
	return k, nil
}
