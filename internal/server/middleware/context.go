// Package middleware holds the chi middleware stack of the auth server.
package middleware

import (
	"context"

	sessionsvc "filevault/backend/internal/session/service"
)

type contextKey struct{ name string }

var (
	identityKey = contextKey{"identity"}
	clientIPKey = contextKey{"client_ip"}
)

// WithIdentity returns a context carrying the authenticated caller.
func WithIdentity(ctx context.Context, id sessionsvc.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity set by RequireAuth and true, or a zero Identity and false.
func IdentityFromContext(ctx context.Context) (sessionsvc.Identity, bool) {
	id, ok := ctx.Value(identityKey).(sessionsvc.Identity)
	return id, ok
}

// WithClientIP returns a context carrying the client IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIPFromContext returns the IP stored by the ClientIP middleware, or "".
// It has the audit.IPExtractor signature.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
