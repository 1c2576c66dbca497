package middleware

import (
	"context"
	"net/http"
	"strings"

	"filevault/backend/internal/httpx"
	sessionsvc "filevault/backend/internal/session/service"
)

const bearerPrefix = "bearer "

// Authenticator validates a raw access token. *sessionsvc.Gate implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, rawAccess string) (sessionsvc.Identity, error)
}

// RequireAuth rejects requests without a valid access token and passes the identity to
// next through the request context.
func RequireAuth(gate Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := gate.Authenticate(r.Context(), AccessToken(r))
			if err != nil {
				httpx.WriteError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// AccessToken returns the Bearer token from the Authorization header, falling back to the
// access_token cookie. Returns "" when neither is present.
func AccessToken(r *http.Request) string {
	if tok := extractBearer(r.Header.Get("Authorization")); tok != "" {
		return tok
	}
	return httpx.CookieValue(r, httpx.AccessCookieName)
}

func extractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) || !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
