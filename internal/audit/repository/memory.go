package repository

import (
	"context"
	"sort"
	"sync"

	"filevault/backend/internal/audit/domain"
)

// MemoryRepository keeps audit logs in process. Used by tests and when no database is configured.
type MemoryRepository struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *MemoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.AuditLog
	for _, e := range r.entries {
		if e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// All returns every entry in insertion order.
func (r *MemoryRepository) All() []*domain.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.AuditLog, len(r.entries))
	for i, e := range r.entries {
		cp := *e
		out[i] = &cp
	}
	return out
}
