// Package handler exposes the signup, signin, token refresh and logout endpoints.
package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"filevault/backend/internal/httpx"
	"filevault/backend/internal/server/middleware"
	sessionsvc "filevault/backend/internal/session/service"
)

// AuthService is what the handlers need from the identity service.
type AuthService interface {
	Signup(ctx context.Context, email, password, deviceID string) (*sessionsvc.TokenPair, error)
	Signin(ctx context.Context, email, password, deviceID string) (*sessionsvc.TokenPair, error)
	Refresh(ctx context.Context, rawRefresh string) (*sessionsvc.TokenPair, error)
	Logout(ctx context.Context, id sessionsvc.Identity) error
}

// TokenResponse is the token bundle returned by signup, signin and refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	DeviceID string `json:"device_id"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// AuthHandler serves the auth endpoints and keeps the token cookies in step with the bodies.
type AuthHandler struct {
	svc        AuthService
	cookies    httpx.CookieConfig
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewAuthHandler returns an AuthHandler. The TTLs set the cookies' Max-Age.
func NewAuthHandler(svc AuthService, cookies httpx.CookieConfig, accessTTL, refreshTTL time.Duration) *AuthHandler {
	return &AuthHandler{svc: svc, cookies: cookies, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// Signup handles POST /signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httpx.DecodeJSON(w, r, &req, false); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	pair, err := h.svc.Signup(r.Context(), req.Email, req.Password, DeviceID(r, req.DeviceID))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	h.writeTokens(w, http.StatusCreated, pair)
}

// Signin handles POST /signin.
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httpx.DecodeJSON(w, r, &req, false); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	pair, err := h.svc.Signin(r.Context(), req.Email, req.Password, DeviceID(r, req.DeviceID))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	h.writeTokens(w, http.StatusOK, pair)
}

// NewToken handles POST /signin/new_token. The refresh_token cookie takes precedence over the body.
func (h *AuthHandler) NewToken(w http.ResponseWriter, r *http.Request) {
	raw := httpx.CookieValue(r, httpx.RefreshCookieName)
	if raw == "" {
		var req refreshRequest
		if err := httpx.DecodeJSON(w, r, &req, true); err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		raw = strings.TrimSpace(req.RefreshToken)
	}
	pair, err := h.svc.Refresh(r.Context(), raw)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	h.writeTokens(w, http.StatusOK, pair)
}

// Logout handles GET /logout. It must run behind middleware.RequireAuth.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, r, sessionsvc.ErrMissingToken)
		return
	}
	if err := h.svc.Logout(r.Context(), id); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	h.cookies.ClearAuthCookies(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *AuthHandler) writeTokens(w http.ResponseWriter, status int, pair *sessionsvc.TokenPair) {
	h.cookies.SetAuthCookies(w, pair.AccessToken, pair.RefreshToken, h.accessTTL, h.refreshTTL)
	httpx.WriteJSON(w, status, TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
	})
}

// DeviceID picks the client device id: X-Device-Id header, then the body field, then the
// device_id query parameter. Empty means the session manager generates one.
func DeviceID(r *http.Request, fromBody string) string {
	if v := strings.TrimSpace(r.Header.Get("X-Device-Id")); v != "" {
		return v
	}
	if v := strings.TrimSpace(fromBody); v != "" {
		return v
	}
	return strings.TrimSpace(r.URL.Query().Get("device_id"))
}
