package component

import (
	"fmt"
	"strings"
)

var secretKeyFragments = []string{"password", "token", "secret", "key", "hash", "auth", "credential"}

func isSecretKey(key string) bool {
	k := strings.ToLower(key)
	for _, f := range secretKeyFragments {
		if strings.Contains(k, f) {
			return true
		}
	}
	return false
}

// Mask keeps the first and last character and replaces the rest with '*'.
// Values of two characters or fewer are fully masked.
func Mask(value string) string {
	r := []rune(value)
	n := len(r)
	if n <= 2 {
		return strings.Repeat("*", n)
	}
	return string(r[0]) + strings.Repeat("*", n-2) + string(r[n-1])
}

func maskMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = maskValue(isSecretKey(k), v)
	}
	return out
}

// maskValue masks v when secret is set. List items inherit the secret flag of the
// key holding the list.
func maskValue(secret bool, v any) any {
	switch val := v.(type) {
	case map[string]any:
		return maskMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = maskValue(secret, item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		for i, item := range val {
			out[i] = maskValue(secret, item).(string)
		}
		return out
	case nil:
		return nil
	case string:
		if secret {
			return Mask(val)
		}
		return val
	default:
		if secret {
			return Mask(fmt.Sprint(val))
		}
		return val
	}
}
