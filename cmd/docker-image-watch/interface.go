package main

import (
	"context"

	"github.com/auto-dns/docker-image-watch/internal/app"
	"github.com/auto-dns/docker-image-watch/internal/config"
	"github.com/rs/zerolog"
)

type application interface {
	Run(ctx context.Context) error
}

// newApplication is swapped out in tests.
var newApplication = func(cfg *config.Config, mode app.Mode, version string, logger zerolog.Logger) (application, error) {
	a, err := app.New(cfg, mode, version, logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}
