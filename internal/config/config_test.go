package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/auto-dns/docker-image-watch/internal/component"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, configFile string) *Config {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	require.NoError(t, InitConfig(configFile))
	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := load(t, "")

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.True(t, cfg.Server.Feature.ContainerDelete)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, []string{"localhost:2379"}, cfg.Store.Etcd.Endpoints)
	assert.Equal(t, 2*time.Second, cfg.Store.Etcd.DialTimeout)
	assert.Empty(t, cfg.Agents())
	assert.Empty(t, cfg.Registrations())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DIW_SERVER_PORT", "4000")
	t.Setenv("DIW_SERVER_FEATURE_CONTAINER_DELETE", "false")
	t.Setenv("DIW_LOG_LEVEL", "debug")

	cfg := load(t, "")

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.False(t, cfg.Server.Feature.ContainerDelete)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestAgentNewPrefixWinsOverLegacy(t *testing.T) {
	t.Setenv("DIW_AGENT_EDGE_SECRET", "new-secret")
	t.Setenv("WUD_AGENT_EDGE_SECRET", "old-secret")
	t.Setenv("WUD_AGENT_EDGE_HOST", "10.0.0.2")

	cfg := load(t, "")

	agents := cfg.Agents()
	require.Len(t, agents, 1)
	assert.Equal(t, "edge", agents[0].Name)
	assert.Equal(t, "new-secret", agents[0].Secret)
	assert.Equal(t, "10.0.0.2", agents[0].Host)
	assert.Equal(t, 3000, agents[0].Port)
}

func TestAgentLegacyPrefixAlone(t *testing.T) {
	t.Setenv("WUD_AGENT_NAS_HOST", "nas.lan")
	t.Setenv("WUD_AGENT_NAS_SECRET", "legacy")
	t.Setenv("WUD_AGENT_NAS_PORT", "3001")

	cfg := load(t, "")

	agents := cfg.Agents()
	require.Len(t, agents, 1)
	assert.Equal(t, "nas", agents[0].Name)
	assert.Equal(t, "legacy", agents[0].Secret)
	assert.Equal(t, 3001, agents[0].Port)
}

func TestComponentsFromEnv(t *testing.T) {
	t.Setenv("DIW_WATCHER_DOCKER_LOCAL_SOCKET", "/tmp/docker.sock")
	t.Setenv("WUD_TRIGGER_LOG_STDOUT_LEVEL", "warn")
	t.Setenv("DIW_TRIGGER_LOG_STDOUT_THRESHOLD", "minor")

	cfg := load(t, "")

	regs := cfg.Registrations()
	require.Len(t, regs, 2)
	assert.Equal(t, component.KindWatcher, regs[0].Kind)
	assert.Equal(t, "docker.local", regs[0].ID())
	assert.Equal(t, "/tmp/docker.sock", regs[0].Configuration["socket"])
	assert.Equal(t, component.KindTrigger, regs[1].Kind)
	assert.Equal(t, "log.stdout", regs[1].ID())
	assert.Equal(t, "warn", regs[1].Configuration["level"])
	assert.Equal(t, "minor", regs[1].Configuration["threshold"])
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diw.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  backend: bolt
  bolt:
    path: /data/diw.db
agent:
  edge:
    host: edge.lan
    secret: s3cret
trigger:
  log:
    stdout:
      level: warn
registry:
  hub:
    public:
      url: https://registry-1.docker.io
`), 0o644))

	cfg := load(t, path)

	assert.Equal(t, "bolt", cfg.Store.Backend)
	assert.Equal(t, "/data/diw.db", cfg.Store.Bolt.Path)
	require.Len(t, cfg.Agents(), 1)
	assert.Equal(t, "edge.lan", cfg.Agents()[0].Host)

	regs := cfg.Registrations()
	require.Len(t, regs, 2)
	assert.Equal(t, component.KindRegistry, regs[0].Kind)
	assert.Equal(t, component.KindTrigger, regs[1].Kind)
}

func TestDiscoverAgentKeys(t *testing.T) {
	keys := discoverAgentKeys([]string{
		"DIW_AGENT_EDGE_HOST=a",
		"WUD_AGENT_EDGE_SECRET=b",
		"DIW_AGENT_BAD_NAME_HOST=c",
		"DIW_AGENT_EDGE_UNKNOWN=d",
		"PATH=/usr/bin",
	})
	assert.Equal(t, []string{"agent.edge.host", "agent.edge.secret"}, keys)
}
