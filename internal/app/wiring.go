package app

import (
	"fmt"

	"github.com/auto-dns/docker-image-watch/internal/component"
	"github.com/auto-dns/docker-image-watch/internal/config"
	"github.com/auto-dns/docker-image-watch/internal/event"
	"github.com/auto-dns/docker-image-watch/internal/store"
	"github.com/auto-dns/docker-image-watch/internal/trigger"
	"github.com/auto-dns/docker-image-watch/internal/watcher/docker"
	"github.com/rs/zerolog"
	clientv3 "go.etcd.io/etcd/client/v3"
)

func newBackend(cfg config.StoreConfig, logger zerolog.Logger) (store.Backend, error) {
	switch cfg.Backend {
	case "", "memory":
		return store.NewMemoryBackend(), nil
	case "bolt":
		return store.NewBoltBackend(cfg.Bolt.Path)
	case "etcd":
		etcdClient, err := clientv3.New(clientv3.Config{
			Endpoints:   cfg.Etcd.Endpoints,
			DialTimeout: cfg.Etcd.DialTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to etcd: %w", err)
		}
		return store.NewEtcdBackend(etcdClient, cfg.Etcd.Prefix, logger), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func newCatalog(resolver *component.Resolver, bus *event.Bus, containers *store.Containers, logger zerolog.Logger) *component.Catalog {
	catalog := component.NewCatalog(resolver, func(err error) {
		logger.Warn().Err(err).Msg("Unable to list provider directory")
	})
	catalog.Add(component.KindWatcher, "docker", func() component.Provider {
		return docker.New(bus, containers)
	})
	catalog.Add(component.KindTrigger, "log", func() component.Provider {
		return trigger.NewLog(bus)
	})
	return catalog
}
