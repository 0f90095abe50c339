package domain

import "time"

type AuditAction string

const (
	AuditUpdateAvailable  AuditAction = "update-available"
	AuditContainerAdded   AuditAction = "container-added"
	AuditContainerRemoved AuditAction = "container-removed"
)

type AuditEntry struct {
	ID             string      `json:"id"`
	Timestamp      time.Time   `json:"timestamp"`
	Action         AuditAction `json:"action"`
	ContainerName  string      `json:"containerName"`
	ContainerImage string      `json:"containerImage,omitempty"`
	FromVersion    string      `json:"fromVersion,omitempty"`
	ToVersion      string      `json:"toVersion,omitempty"`
	Status         string      `json:"status"`
	Details        string      `json:"details,omitempty"`
}
