package agent

import (
	"context"

	"github.com/auto-dns/docker-image-watch/internal/config"
	"github.com/rs/zerolog"
)

// InitAgents creates a client for every usable agent, adds it to the manager and starts
// it without waiting for the connection.
func InitAgents(ctx context.Context, agents []config.AgentConfig, manager *Manager, deps Deps, logger zerolog.Logger) []*HTTPClient {
	deps.Agents = manager

	var clients []*HTTPClient
	for _, cfg := range agents {
		if cfg.Host == "" || cfg.Secret == "" {
			logger.Warn().Str("agent", cfg.Name).Msg("Agent is missing host or secret; skipping")
			continue
		}
		client, err := NewHTTPClient(cfg, deps, logger)
		if err != nil {
			logger.Error().Err(err).Str("agent", cfg.Name).Msg("Unable to create agent client")
			continue
		}
		manager.AddAgent(client)
		client.Start(ctx)
		clients = append(clients, client)
	}
	return clients
}
