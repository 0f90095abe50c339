package audit

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/auto-dns/docker-image-watch/internal/domain"
	"github.com/google/uuid"
)

// Recorder persists audit entries. The document store behind it lives elsewhere.
type Recorder interface {
	Record(ctx context.Context, entry domain.AuditEntry) error
}

// MemoryRecorder keeps the most recent entries in memory.
type MemoryRecorder struct {
	mu      sync.RWMutex
	entries []domain.AuditEntry
	limit   int
}

func NewMemoryRecorder(limit int) *MemoryRecorder {
	if limit <= 0 {
		limit = 1000
	}
	return &MemoryRecorder{limit: limit}
}

func (r *MemoryRecorder) Record(_ context.Context, entry domain.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	if over := len(r.entries) - r.limit; over > 0 {
		r.entries = slices.Delete(r.entries, 0, over)
	}
	return nil
}

// Entries returns a copy, oldest first.
func (r *MemoryRecorder) Entries() []domain.AuditEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.entries)
}
