package repository

import (
	"context"
	"errors"
	"time"

	"filevault/backend/internal/session/domain"
)

// ErrVersionConflict is returned by Rotate when the row changed (rotated or revoked) since it was read.
var ErrVersionConflict = errors.New("session changed since read")

// Repository defines persistence for sessions. Lookups by jti only return live
// (non-revoked) sessions; nil, nil means no live session matched.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	GetLiveByAccessJTI(ctx context.Context, jti string) (*domain.Session, error)
	GetLiveByRefreshJTI(ctx context.Context, jti string) (*domain.Session, error)
	// Rotate overwrites the token columns of session id if it is still live at version,
	// and increments the version. Returns ErrVersionConflict otherwise.
	Rotate(ctx context.Context, id string, version int64, r domain.Rotation) error
	// Revoke sets revoked_at on session id if it is live. Revoking twice is a no-op.
	Revoke(ctx context.Context, id string, at time.Time) error
}
