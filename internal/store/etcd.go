package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/auto-dns/docker-image-watch/internal/domain"
	"github.com/rs/zerolog"
	clientv3 "go.etcd.io/etcd/client/v3"
)

type etcdClient interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
	Delete(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.DeleteResponse, error)
	Close() error
}

// EtcdBackend stores containers under <prefix>/containers/<id>.
type EtcdBackend struct {
	client etcdClient
	prefix string
	logger zerolog.Logger
}

func NewEtcdBackend(client etcdClient, prefix string, logger zerolog.Logger) *EtcdBackend {
	return &EtcdBackend{
		client: client,
		prefix: strings.TrimRight(prefix, "/"),
		logger: logger.With().Str("component", "etcd_store").Logger(),
	}
}

func (e *EtcdBackend) containersPrefix() string {
	return e.prefix + "/containers/"
}

func (e *EtcdBackend) key(id string) string {
	return e.containersPrefix() + id
}

func (e *EtcdBackend) Get(ctx context.Context, id string) (domain.Container, error) {
	resp, err := e.client.Get(ctx, e.key(id))
	if err != nil {
		return domain.Container{}, fmt.Errorf("etcd get %s: %w", id, err)
	}
	if len(resp.Kvs) == 0 {
		return domain.Container{}, fmt.Errorf("container %s: %w", id, domain.ErrNotFound)
	}
	var c domain.Container
	if err := json.Unmarshal(resp.Kvs[0].Value, &c); err != nil {
		return domain.Container{}, fmt.Errorf("decode etcd value: %w", err)
	}
	return c, nil
}

func (e *EtcdBackend) List(ctx context.Context) ([]domain.Container, error) {
	resp, err := e.client.Get(ctx, e.containersPrefix(), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("etcd list: %w", err)
	}
	out := make([]domain.Container, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var c domain.Container
		if err := json.Unmarshal(kv.Value, &c); err != nil {
			e.logger.Warn().Err(err).Str("key", string(kv.Key)).Msg("Skipping undecodable container")
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (e *EtcdBackend) Put(ctx context.Context, c domain.Container) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if _, err := e.client.Put(ctx, e.key(c.ID), string(b)); err != nil {
		return fmt.Errorf("etcd put %s: %w", c.ID, err)
	}
	return nil
}

func (e *EtcdBackend) Delete(ctx context.Context, id string) error {
	resp, err := e.client.Delete(ctx, e.key(id))
	if err != nil {
		return fmt.Errorf("etcd delete %s: %w", id, err)
	}
	if resp.Deleted == 0 {
		return fmt.Errorf("container %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (e *EtcdBackend) Close() error {
	return e.client.Close()
}
