package domain

import "strings"

type ContainerStatus string

const (
	ContainerStatusRunning ContainerStatus = "running"
	ContainerStatusExited  ContainerStatus = "exited"
	ContainerStatusUnknown ContainerStatus = "unknown"
)

// Image describes the image a container was started from.
type Image struct {
	ID       string `json:"id"`
	Registry string `json:"registry"`
	Name     string `json:"name"`
	Tag      string `json:"tag"`
	Digest   string `json:"digest,omitempty"`
}

// Reference renders the image as registry/name:tag.
func (i Image) Reference() string {
	var b strings.Builder
	if i.Registry != "" {
		b.WriteString(i.Registry)
		b.WriteString("/")
	}
	b.WriteString(i.Name)
	if i.Tag != "" {
		b.WriteString(":")
		b.WriteString(i.Tag)
	}
	return b.String()
}

// Result is what the registry currently offers for the watched image.
type Result struct {
	Tag    string `json:"tag,omitempty"`
	Digest string `json:"digest,omitempty"`
}

// Container is a monitored workload, local or owned by a remote agent.
type Container struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	DisplayName     string            `json:"displayName,omitempty"`
	Watcher         string            `json:"watcher"`
	Agent           string            `json:"agent,omitempty"`
	Status          ContainerStatus   `json:"status"`
	Image           Image             `json:"image"`
	Labels          map[string]string `json:"labels,omitempty"`
	Result          *Result           `json:"result,omitempty"`
	UpdateAvailable bool              `json:"updateAvailable"`
	UpdateKind      UpdateKind        `json:"updateKind"`
	Error           string            `json:"error,omitempty"`
}

// LabelOrName returns the container name, then the id, then the empty string.
func (c Container) LabelOrName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// ContainerReport is the outcome of watching one container.
type ContainerReport struct {
	Container Container `json:"container"`
	Changed   bool      `json:"changed"`
}

// SelfUpdate is emitted right before the process replaces its own container.
type SelfUpdate struct {
	ContainerID string `json:"containerId"`
	Image       string `json:"image"`
}
