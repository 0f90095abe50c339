package component

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const DocsBaseURL = "https://github.com/auto-dns/docker-image-watch/tree/main/docs/configuration"

// Resolver scopes provider directories to a fixed runtime root.
type Resolver struct {
	root string
}

func NewResolver(root string) (*Resolver, error) {
	if root == "" {
		return &Resolver{}, nil
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve providers root: %w", err)
	}
	return &Resolver{root: abs}, nil
}

func (r *Resolver) Root() string {
	return r.root
}

// ResolveRoot returns the absolute provider directory for relativePath under
// root/<kind>s, or under root itself when kind is empty. It fails when the result
// would leave the runtime root.
func (r *Resolver) ResolveRoot(kind Kind, relativePath string) (string, error) {
	if r.root == "" {
		return "", errors.New("providers root is not configured")
	}
	if filepath.IsAbs(relativePath) {
		return "", &PathTraversalError{Kind: kind, Path: relativePath, Root: r.root}
	}
	base := r.root
	if kind != "" {
		base = filepath.Join(r.root, kind.Dir())
	}
	target := filepath.Join(base, relativePath)
	rel, err := filepath.Rel(r.root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &PathTraversalError{Kind: kind, Path: relativePath, Root: r.root}
	}
	return target, nil
}

// ListAvailableProviders lists provider names found under relativePath, sorted.
// Errors are handed to onError and yield an empty list.
func (r *Resolver) ListAvailableProviders(relativePath string, onError func(error)) []string {
	report := func(err error) []string {
		if onError != nil {
			onError(err)
		}
		return []string{}
	}
	if r.root == "" {
		return []string{}
	}
	dir, err := r.ResolveRoot("", relativePath)
	if err != nil {
		return report(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return report(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if e.IsDir() {
			names = append(names, name)
			continue
		}
		switch ext := filepath.Ext(name); ext {
		case ".yaml", ".yml":
			names = append(names, strings.TrimSuffix(name, ext))
		}
	}
	sort.Strings(names)
	return names
}

// BuildHelpfulError rewrites a provider-not-found error into an operator-facing message.
// Other errors are returned unchanged.
func BuildHelpfulError(kind Kind, providerName string, rawErr error, availableProviders []string) error {
	if rawErr == nil || !isProviderNotFound(rawErr) {
		return rawErr
	}
	return &UnknownProviderError{
		Kind:      kind,
		Provider:  providerName,
		Available: availableProviders,
		DocsURL:   DocsBaseURL + "/" + kind.Dir(),
		Cause:     rawErr,
	}
}

func isProviderNotFound(err error) bool {
	if errors.Is(err, ErrProviderNotFound) || errors.Is(err, fs.ErrNotExist) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "cannot find module") || strings.Contains(msg, "no such file or directory")
}
