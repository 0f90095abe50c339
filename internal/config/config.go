package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/auto-dns/docker-image-watch/internal/component"
	"github.com/spf13/viper"
)

const (
	EnvPrefix       = "DIW"
	LegacyEnvPrefix = "WUD"
)

// LoggingConfig holds the logging-related configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type FeatureConfig struct {
	ContainerDelete bool `mapstructure:"container_delete"`
}

type TLSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Cert    string `mapstructure:"cert"`
	Key     string `mapstructure:"key"`
}

// ServerConfig configures the HTTP listener: the agent API in agent mode, metrics and
// health otherwise.
type ServerConfig struct {
	Port    int           `mapstructure:"port"`
	Secret  string        `mapstructure:"secret"`
	Feature FeatureConfig `mapstructure:"feature"`
	TLS     TLSConfig     `mapstructure:"tls"`
}

type BoltConfig struct {
	Path string `mapstructure:"path"`
}

type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	Prefix      string        `mapstructure:"prefix"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type StoreConfig struct {
	Backend string     `mapstructure:"backend"`
	Bolt    BoltConfig `mapstructure:"bolt"`
	Etcd    EtcdConfig `mapstructure:"etcd"`
}

type ProvidersConfig struct {
	Root string `mapstructure:"root"`
}

// AgentConfig is how the controller reaches one agent.
type AgentConfig struct {
	Name     string `mapstructure:"-"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Secret   string `mapstructure:"secret"`
	CAFile   string `mapstructure:"cafile"`
	CertFile string `mapstructure:"certfile"`
	KeyFile  string `mapstructure:"keyfile"`
}

// ComponentTree maps type -> name -> raw configuration.
type ComponentTree map[string]map[string]map[string]any

// Config is the top-level configuration struct.
type Config struct {
	Logging        LoggingConfig          `mapstructure:"log"`
	Server         ServerConfig           `mapstructure:"server"`
	Store          StoreConfig            `mapstructure:"store"`
	Providers      ProvidersConfig        `mapstructure:"providers"`
	Agent          map[string]AgentConfig `mapstructure:"agent"`
	Watcher        ComponentTree          `mapstructure:"watcher"`
	Trigger        ComponentTree          `mapstructure:"trigger"`
	Registry       ComponentTree          `mapstructure:"registry"`
	Authentication ComponentTree          `mapstructure:"authentication"`
}

var agentFields = []string{"host", "port", "secret", "cafile", "certfile", "keyfile"}

// InitConfig performs the initial configuration: setting defaults, specifying the config file, and reading it.
func InitConfig(configFile string) error {
	viper.SetDefault("log.level", "INFO")
	viper.SetDefault("log.json", false)
	viper.SetDefault("server.port", 3000)
	viper.SetDefault("server.secret", "")
	viper.SetDefault("server.feature.container_delete", true)
	viper.SetDefault("server.tls.enabled", false)
	viper.SetDefault("server.tls.cert", "")
	viper.SetDefault("server.tls.key", "")
	viper.SetDefault("store.backend", "memory")
	viper.SetDefault("store.bolt.path", "/store/diw.db")
	viper.SetDefault("store.etcd.endpoints", []string{"localhost:2379"})
	viper.SetDefault("store.etcd.prefix", "/docker-image-watch")
	viper.SetDefault("store.etcd.dial_timeout", 2*time.Second)
	viper.SetDefault("providers.root", "")

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config") // Looks for config.yaml
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/docker-image-watch")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// If the file is not found, just continue with defaults and env vars.
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return nil
}

// Load unmarshals the configuration into the Config struct.
func Load() (*Config, error) {
	bindDynamicEnv(os.Environ())

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	for name, a := range config.Agent {
		a.Name = name
		if a.Port == 0 {
			a.Port = 3000
		}
		config.Agent[name] = a
	}
	return &config, nil
}

// bindDynamicEnv binds per-agent and per-component variables that AutomaticEnv cannot
// discover. Each key is bound to its DIW_ variable first and its WUD_ variable second,
// so the new prefix wins when both are set.
func bindDynamicEnv(environ []string) {
	for _, key := range discoverAgentKeys(environ) {
		bindWithLegacy(key)
	}
	for _, key := range discoverComponentKeys(environ) {
		bindWithLegacy(key)
	}
}

func bindWithLegacy(key string) {
	suffix := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	_ = viper.BindEnv(key, EnvPrefix+"_"+suffix, LegacyEnvPrefix+"_"+suffix)
}

// discoverAgentKeys returns agent.<name>.<field> keys found under either prefix.
func discoverAgentKeys(environ []string) []string {
	seen := map[string]struct{}{}
	for _, kv := range environ {
		name, _, _ := strings.Cut(kv, "=")
		for _, prefix := range []string{EnvPrefix, LegacyEnvPrefix} {
			rest, ok := strings.CutPrefix(name, prefix+"_AGENT_")
			if !ok {
				continue
			}
			for _, field := range agentFields {
				agentName, ok := strings.CutSuffix(rest, "_"+strings.ToUpper(field))
				if !ok || agentName == "" || strings.Contains(agentName, "_") {
					continue
				}
				seen["agent."+strings.ToLower(agentName)+"."+field] = struct{}{}
			}
		}
	}
	return sortedKeys(seen)
}

var componentSections = []component.Kind{
	component.KindWatcher,
	component.KindTrigger,
	component.KindRegistry,
	component.KindAuthentication,
}

// discoverComponentKeys returns <kind>.<type>.<name>.<path> keys found under either prefix.
// Underscores after the name separate nested configuration keys.
func discoverComponentKeys(environ []string) []string {
	seen := map[string]struct{}{}
	for _, kv := range environ {
		name, _, _ := strings.Cut(kv, "=")
		for _, prefix := range []string{EnvPrefix, LegacyEnvPrefix} {
			for _, kind := range componentSections {
				rest, ok := strings.CutPrefix(name, prefix+"_"+strings.ToUpper(string(kind))+"_")
				if !ok {
					continue
				}
				parts := strings.Split(strings.ToLower(rest), "_")
				if len(parts) < 3 || parts[0] == "" || parts[1] == "" {
					continue
				}
				seen[string(kind)+"."+strings.Join(parts, ".")] = struct{}{}
			}
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Agents returns the configured agents sorted by name.
func (c *Config) Agents() []AgentConfig {
	names := make([]string, 0, len(c.Agent))
	for name := range c.Agent {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]AgentConfig, 0, len(names))
	for _, name := range names {
		out = append(out, c.Agent[name])
	}
	return out
}

// Registrations flattens the component trees into registrations sorted by kind, type and name.
func (c *Config) Registrations() []component.Registration {
	var out []component.Registration
	trees := map[component.Kind]ComponentTree{
		component.KindAuthentication: c.Authentication,
		component.KindRegistry:       c.Registry,
		component.KindWatcher:        c.Watcher,
		component.KindTrigger:        c.Trigger,
	}
	for _, kind := range component.Kinds {
		tree := trees[kind]
		types := make([]string, 0, len(tree))
		for typ := range tree {
			types = append(types, typ)
		}
		sort.Strings(types)
		for _, typ := range types {
			names := make([]string, 0, len(tree[typ]))
			for name := range tree[typ] {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				out = append(out, component.Registration{
					Kind:          kind,
					Type:          typ,
					Name:          name,
					Configuration: tree[typ][name],
				})
			}
		}
	}
	return out
}
