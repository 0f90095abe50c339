package domain

import "errors"

// ErrNotFound is wrapped by lookups of unknown containers, watchers and triggers.
var ErrNotFound = errors.New("not found")
