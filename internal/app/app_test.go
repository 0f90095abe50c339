package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/auto-dns/docker-image-watch/internal/component"
	"github.com/auto-dns/docker-image-watch/internal/config"
	"github.com/auto-dns/docker-image-watch/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 0, Secret: "s3cret"},
		Store:  config.StoreConfig{Backend: "memory"},
		Trigger: config.ComponentTree{
			"log": {"stdout": {"level": "warn"}},
		},
	}
}

func TestAgentModeRunsUntilCancelled(t *testing.T) {
	a, err := New(testConfig(), ModeAgent, "1.0.0", zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		return a.registry.Has(component.KindTrigger, "log.stdout")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, a.registry.Has(component.KindTrigger, "log.stdout"))
}

func TestAgentModeServesAPI(t *testing.T) {
	a, err := New(testConfig(), ModeAgent, "1.0.0", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	srv := httptest.NewServer(a.handler)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/api/containers")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestControllerModeWiresAudit(t *testing.T) {
	a, err := New(testConfig(), ModeController, "1.0.0", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	a.start(context.Background())
	require.NotNil(t, a.agents)
	assert.Empty(t, a.agents.GetAgents())

	_, err = a.containers.Upsert(context.Background(), domain.Container{ID: "c1", Name: "web"})
	require.NoError(t, err)

	entries := a.audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.AuditContainerAdded, entries[0].Action)

	srv := httptest.NewServer(a.handler)
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewRejectsBadConfiguration(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Backend = "mongo"
	_, err := New(cfg, ModeController, "1.0.0", zerolog.Nop())
	assert.ErrorContains(t, err, "unknown store backend")

	_, err = New(testConfig(), Mode("satellite"), "1.0.0", zerolog.Nop())
	assert.ErrorContains(t, err, "unknown mode")
}

func TestBoltBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Backend = "bolt"
	cfg.Store.Bolt.Path = filepath.Join(t.TempDir(), "data", "diw.db")

	a, err := New(cfg, ModeController, "1.0.0", zerolog.Nop())
	require.NoError(t, err)
	_, err = a.containers.Upsert(context.Background(), domain.Container{ID: "c1"})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b, err := New(cfg, ModeController, "1.0.0", zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()
	_, err = b.containers.Get(context.Background(), "c1")
	assert.NoError(t, err)
}
