// Package service owns the session lifecycle: issuing token pairs, rotating them on refresh,
// revoking them on logout, and authenticating access tokens against live sessions.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"filevault/backend/internal/apperr"
	"filevault/backend/internal/security"
	"filevault/backend/internal/session/domain"
	"filevault/backend/internal/session/repository"
)

const tracerName = "filevault/backend/internal/session/service"

// TokenTypeBearer is the token_type reported to clients.
const TokenTypeBearer = "Bearer"

var (
	// ErrSessionRevoked means no live session matches the presented token's jti.
	ErrSessionRevoked = fmt.Errorf("%w: session revoked", apperr.ErrUnauthenticated)
	// ErrSessionExpired means the session's persisted refresh expiry has passed.
	ErrSessionExpired = fmt.Errorf("%w: session expired", apperr.ErrUnauthenticated)
	// ErrTokenMismatch means the presented refresh token does not match the stored digest or owner.
	ErrTokenMismatch = fmt.Errorf("%w: refresh token mismatch", apperr.ErrUnauthenticated)
	// ErrMissingToken means no token was presented.
	ErrMissingToken = fmt.Errorf("%w: missing token", apperr.ErrUnauthenticated)
	// ErrRotationConflict means another refresh rotated or revoked the session first.
	ErrRotationConflict = fmt.Errorf("%w: session was rotated concurrently", apperr.ErrConflict)
)

// Metrics receives session lifecycle events. Implementations must be safe for concurrent use.
type Metrics interface {
	SessionIssued()
	SessionRotated()
	SessionRevoked()
	AuthRejected(reason string)
}

type noopMetrics struct{}

func (noopMetrics) SessionIssued()      {}
func (noopMetrics) SessionRotated()     {}
func (noopMetrics) SessionRevoked()     {}
func (noopMetrics) AuthRejected(string) {}

// TokenPair is the credential bundle returned on signup, signin and refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	ExpiresIn        int64 // access token lifetime in seconds
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	SessionID        string
	UserID           string
	DeviceID         string
}

// Manager is the only writer of session records.
type Manager struct {
	repo       repository.Repository
	codec      *security.TokenCodec
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	metrics    Metrics
	tracer     trace.Tracer
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock makes the manager and its codec read time from now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithMetrics reports lifecycle events to metrics.
func WithMetrics(metrics Metrics) Option {
	return func(m *Manager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// NewManager returns a Manager that stores sessions in repo and signs tokens with codec.
func NewManager(repo repository.Repository, codec *security.TokenCodec, accessTTL, refreshTTL time.Duration, opts ...Option) *Manager {
	m := &Manager{
		repo:       repo,
		codec:      codec,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
		metrics:    noopMetrics{},
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.codec = codec.WithClock(m.now)
	return m
}

// AccessTTL returns the lifetime of issued access tokens.
func (m *Manager) AccessTTL() time.Duration { return m.accessTTL }

// RefreshTTL returns the lifetime of issued refresh tokens.
func (m *Manager) RefreshTTL() time.Duration { return m.refreshTTL }

// Gate returns an Auth Gate that shares this manager's store, codec, clock and metrics.
func (m *Manager) Gate() *Gate {
	return &Gate{repo: m.repo, codec: m.codec, metrics: m.metrics, tracer: m.tracer}
}

// DefaultDeviceID is the device id used when the client supplies none. Every such login
// counts as its own device.
func DefaultDeviceID(userID string, at time.Time) string {
	return "device-" + userID + "-" + strconv.FormatInt(at.UnixMilli(), 10)
}

// IssueSession mints a token pair for userID on deviceID and persists a new live session.
// The raw refresh token leaves this method only in the returned pair.
func (m *Manager) IssueSession(ctx context.Context, userID, deviceID string) (*TokenPair, error) {
	ctx, span := m.tracer.Start(ctx, "session.issue")
	defer span.End()

	if deviceID == "" {
		deviceID = DefaultDeviceID(userID, m.now())
	}
	pair, rot, err := m.mint(userID, deviceID)
	if err != nil {
		return nil, spanError(span, err)
	}
	sess := &domain.Session{
		ID:               uuid.New().String(),
		UserID:           userID,
		DeviceID:         deviceID,
		AccessJTI:        rot.AccessJTI,
		RefreshJTI:       rot.RefreshJTI,
		RefreshTokenHash: rot.RefreshTokenHash,
		RefreshExpiresAt: rot.RefreshExpiresAt,
		CreatedAt:        m.now().UTC(),
	}
	if err := m.repo.Create(ctx, sess); err != nil {
		return nil, spanError(span, err)
	}
	span.SetAttributes(attribute.String("session.id", sess.ID))
	pair.SessionID = sess.ID
	m.metrics.SessionIssued()
	return pair, nil
}

// RefreshSession validates rawRefresh against its live session and rotates the session's pair
// in place. After success the presented refresh token can never be used again.
func (m *Manager) RefreshSession(ctx context.Context, rawRefresh string) (*TokenPair, error) {
	ctx, span := m.tracer.Start(ctx, "session.refresh")
	defer span.End()

	if rawRefresh == "" {
		return nil, m.reject(ctx, span, "missing", ErrMissingToken)
	}
	claims, err := m.codec.Verify(rawRefresh, security.TokenTypeRefresh)
	if err != nil {
		return nil, m.reject(ctx, span, "invalid_token", apperr.Unauthenticated(err))
	}
	sess, err := m.repo.GetLiveByRefreshJTI(ctx, claims.JTI)
	if err != nil {
		return nil, spanError(span, err)
	}
	if sess == nil {
		return nil, m.reject(ctx, span, "revoked", ErrSessionRevoked)
	}
	if !m.now().Before(sess.RefreshExpiresAt) {
		return nil, m.reject(ctx, span, "expired", ErrSessionExpired)
	}
	if sess.UserID != claims.Subject || !security.RefreshDigestMatches(rawRefresh, sess.RefreshTokenHash) {
		return nil, m.reject(ctx, span, "mismatch", ErrTokenMismatch)
	}

	deviceID := claims.DeviceID
	if deviceID == "" {
		deviceID = sess.DeviceID
	}
	pair, rot, err := m.mint(sess.UserID, deviceID)
	if err != nil {
		return nil, spanError(span, err)
	}
	if err := m.repo.Rotate(ctx, sess.ID, sess.Version, rot); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, m.reject(ctx, span, "conflict", ErrRotationConflict)
		}
		return nil, spanError(span, err)
	}
	span.SetAttributes(attribute.String("session.id", sess.ID))
	pair.SessionID = sess.ID
	m.metrics.SessionRotated()
	return pair, nil
}

// RevokeSession revokes the live session whose access jti is accessJTI. A missing or
// already revoked session is a successful no-op.
func (m *Manager) RevokeSession(ctx context.Context, accessJTI string) error {
	ctx, span := m.tracer.Start(ctx, "session.revoke")
	defer span.End()

	sess, err := m.repo.GetLiveByAccessJTI(ctx, accessJTI)
	if err != nil {
		return spanError(span, err)
	}
	if sess == nil {
		return nil
	}
	if err := m.repo.Revoke(ctx, sess.ID, m.now().UTC()); err != nil {
		return spanError(span, err)
	}
	span.SetAttributes(attribute.String("session.id", sess.ID))
	m.metrics.SessionRevoked()
	return nil
}

// mint issues an access and a refresh token for the same user and device.
func (m *Manager) mint(userID, deviceID string) (*TokenPair, domain.Rotation, error) {
	access, accessJTI, accessExp, err := m.codec.Issue(userID, deviceID, security.TokenTypeAccess, m.accessTTL)
	if err != nil {
		return nil, domain.Rotation{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, refreshJTI, refreshExp, err := m.codec.Issue(userID, deviceID, security.TokenTypeRefresh, m.refreshTTL)
	if err != nil {
		return nil, domain.Rotation{}, fmt.Errorf("issue refresh token: %w", err)
	}
	pair := &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        TokenTypeBearer,
		ExpiresIn:        int64(m.accessTTL / time.Second),
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		UserID:           userID,
		DeviceID:         deviceID,
	}
	rot := domain.Rotation{
		AccessJTI:        accessJTI,
		RefreshJTI:       refreshJTI,
		RefreshTokenHash: security.RefreshDigest(refresh),
		RefreshExpiresAt: refreshExp,
	}
	return pair, rot, nil
}

func (m *Manager) reject(ctx context.Context, span trace.Span, reason string, err error) error {
	slog.DebugContext(ctx, "session.refresh_rejected", slog.String("reason", reason), slog.Any("err", err))
	m.metrics.AuthRejected(reason)
	span.SetAttributes(attribute.String("auth.reject_reason", reason))
	span.SetStatus(codes.Error, reason)
	return err
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
