package docker

import (
	"strings"

	"github.com/auto-dns/docker-image-watch/internal/domain"
	"github.com/distribution/reference"
	"github.com/docker/docker/api/types/container"
)

const (
	labelWatch       = "diw.watch"
	labelDisplayName = "diw.display.name"
)

func fromContainerSummary(c container.Summary, watcherID string) domain.Container {
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}
	displayName := c.Labels[labelDisplayName]
	if displayName == "" {
		displayName = name
	}
	status := domain.ContainerStatus(c.State)
	if status == "" {
		status = domain.ContainerStatusUnknown
	}
	img := parseImage(c.Image)
	img.ID = c.ImageID
	return domain.Container{
		ID:          c.ID,
		Name:        name,
		DisplayName: displayName,
		Watcher:     watcherID,
		Status:      status,
		Image:       img,
		Labels:      c.Labels,
	}
}

// parseImage splits an image reference into registry, repository path and tag.
// Untagged references resolve to latest.
func parseImage(ref string) domain.Image {
	named, err := reference.ParseNormalizedNamed(ref)
	if err != nil {
		return domain.Image{Name: ref}
	}
	img := domain.Image{
		Registry: reference.Domain(named),
		Name:     reference.Path(named),
	}
	if canonical, ok := named.(reference.Canonical); ok {
		img.Digest = canonical.Digest().String()
	}
	if tagged, ok := reference.TagNameOnly(named).(reference.Tagged); ok {
		img.Tag = tagged.Tag()
	}
	return img
}

// localDigest picks the repo digest matching img, falling back to the first one.
func localDigest(img domain.Image, repoDigests []string) string {
	fallback := ""
	for _, rd := range repoDigests {
		named, err := reference.ParseNormalizedNamed(rd)
		if err != nil {
			continue
		}
		canonical, ok := named.(reference.Canonical)
		if !ok {
			continue
		}
		if fallback == "" {
			fallback = canonical.Digest().String()
		}
		if reference.Domain(named) == img.Registry && reference.Path(named) == img.Name {
			return canonical.Digest().String()
		}
	}
	return fallback
}

func isWatched(labels map[string]string, watchByDefault bool) bool {
	v, ok := labels[labelWatch]
	if !ok {
		return watchByDefault
	}
	return strings.EqualFold(strings.TrimSpace(v), "true")
}
