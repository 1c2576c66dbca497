package repository

import (
	"context"
	"sync"
	"time"

	"filevault/backend/internal/session/domain"
)

// MemoryRepository is an in-process Repository with the same row semantics as the
// Postgres one. Used by tests and local tooling.
type MemoryRepository struct {
	mu   sync.Mutex
	byID map[string]*domain.Session
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*domain.Session)}
}

func (r *MemoryRepository) Create(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.Version == 0 {
		s.Version = 1
	}
	cp := *s
	r.byID[s.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetLiveByAccessJTI(ctx context.Context, jti string) (*domain.Session, error) {
	return r.findLive(func(s *domain.Session) bool { return s.AccessJTI == jti }), nil
}

func (r *MemoryRepository) GetLiveByRefreshJTI(ctx context.Context, jti string) (*domain.Session, error) {
	return r.findLive(func(s *domain.Session) bool { return s.RefreshJTI == jti }), nil
}

func (r *MemoryRepository) Rotate(ctx context.Context, id string, version int64, rot domain.Rotation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok || s.RevokedAt != nil || s.Version != version {
		return ErrVersionConflict
	}
	s.AccessJTI = rot.AccessJTI
	s.RefreshJTI = rot.RefreshJTI
	s.RefreshTokenHash = rot.RefreshTokenHash
	s.RefreshExpiresAt = rot.RefreshExpiresAt
	s.Version++
	return nil
}

func (r *MemoryRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byID[id]; ok && s.RevokedAt == nil {
		t := at
		s.RevokedAt = &t
	}
	return nil
}

// Get returns a copy of session id regardless of revocation, or nil.
func (r *MemoryRepository) Get(id string) *domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

// Len returns the number of stored sessions, live or revoked.
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

func (r *MemoryRepository) findLive(match func(*domain.Session) bool) *domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byID {
		if s.RevokedAt == nil && match(s) {
			cp := *s
			return &cp
		}
	}
	return nil
}
