package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/auto-dns/docker-image-watch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	bolt, err := NewBoltBackend(filepath.Join(t.TempDir(), "data", "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })

	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"bolt":   bolt,
	}
}

func TestBackendCRUD(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := b.Get(ctx, "missing")
			assert.ErrorIs(t, err, domain.ErrNotFound)
			assert.ErrorIs(t, b.Delete(ctx, "missing"), domain.ErrNotFound)

			c := domain.Container{
				ID:    "c1",
				Name:  "web",
				Image: domain.Image{Name: "library/nginx", Tag: "1.25"},
				UpdateKind: domain.UpdateKind{
					Kind: domain.KindTag,
				},
			}
			require.NoError(t, b.Put(ctx, c))

			got, err := b.Get(ctx, "c1")
			require.NoError(t, err)
			assert.Equal(t, c, got)

			c.Name = "web2"
			require.NoError(t, b.Put(ctx, c))
			all, err := b.List(ctx)
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, "web2", all[0].Name)

			require.NoError(t, b.Delete(ctx, "c1"))
			all, err = b.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestBoltBackendPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	ctx := context.Background()

	b, err := NewBoltBackend(path)
	require.NoError(t, err)
	require.NoError(t, b.Put(ctx, domain.Container{ID: "c1", Name: "web"}))
	require.NoError(t, b.Close())

	b, err = NewBoltBackend(path)
	require.NoError(t, err)
	defer b.Close()

	got, err := b.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "web", got.Name)
}
