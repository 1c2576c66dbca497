package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"filevault/backend/internal/session/domain"
)

// Querier is the subset of pgxpool.Pool and pgx.Tx the repository needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresRepository struct {
	q Querier
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository returns a session repository backed by q (usually a *pgxpool.Pool).
func NewPostgresRepository(q Querier) *PostgresRepository {
	return &PostgresRepository{q: q}
}

const sessionColumns = `id, user_id, device_id, access_jti, refresh_jti, refresh_token_hash,
	refresh_expires_at, revoked_at, version, created_at`

// Create persists the session. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	version := s.Version
	if version == 0 {
		version = 1
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO user_sessions (id, user_id, device_id, access_jti, refresh_jti, refresh_token_hash,
			refresh_expires_at, revoked_at, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.UserID, s.DeviceID, s.AccessJTI, s.RefreshJTI, s.RefreshTokenHash,
		s.RefreshExpiresAt, s.RevokedAt, version, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	s.Version = version
	return nil
}

// GetLiveByAccessJTI returns the live session whose current access jti is jti, or nil if none.
func (r *PostgresRepository) GetLiveByAccessJTI(ctx context.Context, jti string) (*domain.Session, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM user_sessions WHERE access_jti = $1 AND revoked_at IS NULL`, jti)
	return scanSession(row)
}

// GetLiveByRefreshJTI returns the live session whose current refresh jti is jti, or nil if none.
func (r *PostgresRepository) GetLiveByRefreshJTI(ctx context.Context, jti string) (*domain.Session, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM user_sessions WHERE refresh_jti = $1 AND revoked_at IS NULL`, jti)
	return scanSession(row)
}

// Rotate replaces both jti columns, the digest and the expiry in one conditional update.
func (r *PostgresRepository) Rotate(ctx context.Context, id string, version int64, rot domain.Rotation) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE user_sessions
		SET access_jti = $3, refresh_jti = $4, refresh_token_hash = $5, refresh_expires_at = $6,
			version = version + 1
		WHERE id = $1 AND version = $2 AND revoked_at IS NULL`,
		id, version, rot.AccessJTI, rot.RefreshJTI, rot.RefreshTokenHash, rot.RefreshExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

// Revoke marks the session as revoked. Already revoked or missing sessions are left untouched.
func (r *PostgresRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	_, err := r.q.Exec(ctx,
		`UPDATE user_sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(&s.ID, &s.UserID, &s.DeviceID, &s.AccessJTI, &s.RefreshJTI, &s.RefreshTokenHash,
		&s.RefreshExpiresAt, &s.RevokedAt, &s.Version, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &s, nil
}
