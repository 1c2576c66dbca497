package service

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"filevault/backend/internal/apperr"
	"filevault/backend/internal/security"
	"filevault/backend/internal/session/repository"
)

// Identity is the authenticated caller attached to a request after the gate accepts its token.
type Identity struct {
	UserID    string
	JTI       string
	DeviceID  string
	SessionID string
}

// Gate authenticates access tokens. It only reads the store and is safe to call
// concurrently any number of times for the same token.
type Gate struct {
	repo    repository.Repository
	codec   *security.TokenCodec
	metrics Metrics
	tracer  trace.Tracer
}

// Authenticate verifies rawAccess as an access token and requires a live session holding its jti.
// Every failure wraps apperr.ErrUnauthenticated except store errors, which are returned as is.
func (g *Gate) Authenticate(ctx context.Context, rawAccess string) (Identity, error) {
	ctx, span := g.tracer.Start(ctx, "session.authenticate")
	defer span.End()

	if rawAccess == "" {
		g.metrics.AuthRejected("missing")
		return Identity{}, ErrMissingToken
	}
	claims, err := g.codec.Verify(rawAccess, security.TokenTypeAccess)
	if err != nil {
		g.metrics.AuthRejected("invalid_token")
		return Identity{}, apperr.Unauthenticated(err)
	}
	sess, err := g.repo.GetLiveByAccessJTI(ctx, claims.JTI)
	if err != nil {
		return Identity{}, spanError(span, err)
	}
	if sess == nil || sess.UserID != claims.Subject {
		g.metrics.AuthRejected("revoked")
		return Identity{}, ErrSessionRevoked
	}
	return Identity{
		UserID:    claims.Subject,
		JTI:       claims.JTI,
		DeviceID:  claims.DeviceID,
		SessionID: sess.ID,
	}, nil
}
