package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/auto-dns/docker-image-watch/internal/domain"
	bolt "go.etcd.io/bbolt"
)

var bucketContainers = []byte("containers")

// BoltBackend stores containers as JSON documents in a bbolt file.
type BoltBackend struct {
	db *bolt.DB
}

func NewBoltBackend(path string) (*BoltBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketContainers); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketContainers, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltBackend{db: db}, nil
}

func (s *BoltBackend) Get(_ context.Context, id string) (domain.Container, error) {
	var c domain.Container
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketContainers).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("container %s: %w", id, domain.ErrNotFound)
		}
		return json.Unmarshal(data, &c)
	})
	return c, err
}

func (s *BoltBackend) List(_ context.Context) ([]domain.Container, error) {
	var out []domain.Container
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketContainers).ForEach(func(k, v []byte) error {
			var c domain.Container
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("decode container %s: %w", k, err)
			}
			out = append(out, c)
			return nil
		})
	})
	return out, err
}

func (s *BoltBackend) Put(_ context.Context, c domain.Container) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketContainers).Put([]byte(c.ID), data)
	})
}

func (s *BoltBackend) Delete(_ context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketContainers)
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("container %s: %w", id, domain.ErrNotFound)
		}
		return b.Delete([]byte(id))
	})
}

func (s *BoltBackend) Close() error {
	return s.db.Close()
}
