package component

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T) (*Resolver, string) {
	t.Helper()
	root := t.TempDir()
	r, err := NewResolver(root)
	require.NoError(t, err)
	return r, root
}

func TestResolveRoot(t *testing.T) {
	r, root := newTestResolver(t)

	got, err := r.ResolveRoot(KindTrigger, "smtp")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "triggers", "smtp"), got)

	got, err = r.ResolveRoot(KindRegistry, "ghcr")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "registries", "ghcr"), got)

	got, err = r.ResolveRoot(KindTrigger, "../watchers")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "watchers"), got)

	got, err = r.ResolveRoot("", "triggers")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "triggers"), got)
}

func TestResolveRootRejectsTraversal(t *testing.T) {
	r, _ := newTestResolver(t)

	for _, p := range []string{"../..", "../../etc", "smtp/../../../x", "/etc/passwd"} {
		t.Run(p, func(t *testing.T) {
			_, err := r.ResolveRoot(KindTrigger, p)
			var traversal *PathTraversalError
			assert.ErrorAs(t, err, &traversal)
		})
	}

	_, err := r.ResolveRoot("", "..")
	var traversal *PathTraversalError
	assert.ErrorAs(t, err, &traversal)
}

func TestResolveRootWithoutRoot(t *testing.T) {
	r, err := NewResolver("")
	require.NoError(t, err)
	_, err = r.ResolveRoot(KindTrigger, "triggers")
	assert.Error(t, err)
}

func TestListAvailableProviders(t *testing.T) {
	r, root := newTestResolver(t)
	dir := filepath.Join(root, "triggers")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "smtp"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".hidden"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "apprise.yaml"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "discord.yml"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), nil, 0o644))

	var errs []error
	got := r.ListAvailableProviders("triggers", func(err error) { errs = append(errs, err) })

	assert.Equal(t, []string{"apprise", "discord", "smtp"}, got)
	assert.Empty(t, errs)
}

func TestListAvailableProvidersReportsErrors(t *testing.T) {
	r, _ := newTestResolver(t)

	var errs []error
	got := r.ListAvailableProviders("missing", func(err error) { errs = append(errs, err) })
	assert.NotNil(t, got)
	assert.Empty(t, got)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], os.ErrNotExist)

	errs = nil
	got = r.ListAvailableProviders("../outside", func(err error) { errs = append(errs, err) })
	assert.Empty(t, got)
	assert.Len(t, errs, 1)
}

func TestBuildHelpfulError(t *testing.T) {
	tests := []struct {
		name    string
		raw     error
		helpful bool
	}{
		{name: "sentinel", raw: fmt.Errorf("wrap: %w", ErrProviderNotFound), helpful: true},
		{name: "fs not exist", raw: fmt.Errorf("open: %w", os.ErrNotExist), helpful: true},
		{name: "module message", raw: errors.New("Cannot find module './smtp'"), helpful: true},
		{name: "enoent message", raw: errors.New("open x: no such file or directory"), helpful: true},
		{name: "other", raw: errors.New("syntax error"), helpful: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := BuildHelpfulError(KindTrigger, "smtp", tt.raw, []string{"apprise", "discord"})
			var unknown *UnknownProviderError
			if !tt.helpful {
				assert.Same(t, tt.raw, err)
				assert.False(t, errors.As(err, &unknown))
				return
			}
			require.ErrorAs(t, err, &unknown)
			assert.Equal(t, "Unknown trigger provider 'smtp'; available: apprise, discord; see "+DocsBaseURL+"/triggers", err.Error())
		})
	}

	assert.NoError(t, BuildHelpfulError(KindTrigger, "smtp", nil, nil))
}

func TestUnknownProviderErrorWithoutAvailable(t *testing.T) {
	err := BuildHelpfulError(KindWatcher, "k8s", ErrProviderNotFound, nil)
	assert.Contains(t, err.Error(), "available: none")
}
