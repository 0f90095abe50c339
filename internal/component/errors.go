package component

import (
	"errors"
	"fmt"
	"strings"
)

// ErrProviderNotFound marks a (kind, type) pair with no implementation.
var ErrProviderNotFound = errors.New("cannot find provider module")

type ConfigurationError struct {
	Kind  Kind
	ID    string
	Cause error
}

func NewConfigurationError(kind Kind, id string, cause error) *ConfigurationError {
	return &ConfigurationError{Kind: kind, ID: id, Cause: cause}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration for %s %s: %v", e.Kind, e.ID, e.Cause)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

type UnknownProviderError struct {
	Kind      Kind
	Provider  string
	Available []string
	DocsURL   string
	Cause     error
}

func (e *UnknownProviderError) Error() string {
	available := "none"
	if len(e.Available) > 0 {
		available = strings.Join(e.Available, ", ")
	}
	return fmt.Sprintf("Unknown %s provider '%s'; available: %s; see %s", e.Kind, e.Provider, available, e.DocsURL)
}

func (e *UnknownProviderError) Unwrap() error {
	return e.Cause
}

type PathTraversalError struct {
	Kind Kind
	Path string
	Root string
}

func (e *PathTraversalError) Error() string {
	return fmt.Sprintf("%s provider path %q escapes runtime root %q", e.Kind, e.Path, e.Root)
}
