package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filevault/backend/internal/apperr"
	"filevault/backend/internal/httpx"
	sessionsvc "filevault/backend/internal/session/service"
)

// stubGate accepts exactly one token.
type stubGate struct {
	valid string
	err   error
	seen  []string
}

func (g *stubGate) Authenticate(_ context.Context, raw string) (sessionsvc.Identity, error) {
	g.seen = append(g.seen, raw)
	if g.err != nil {
		return sessionsvc.Identity{}, g.err
	}
	if raw == "" {
		return sessionsvc.Identity{}, sessionsvc.ErrMissingToken
	}
	if raw != g.valid {
		return sessionsvc.Identity{}, apperr.Unauthenticated(errors.New("bad token"))
	}
	return sessionsvc.Identity{UserID: "user-1", JTI: "jti-1", DeviceID: "d1", SessionID: "s1"}, nil
}

func identityEcho(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "no identity", http.StatusTeapot)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"user": id.UserID, "jti": id.JTI})
}

func TestAccessToken_Precedence(t *testing.T) {
	tests := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{"header only", "Bearer h-tok", "", "h-tok"},
		{"cookie only", "", "c-tok", "c-tok"},
		{"header wins over cookie", "Bearer h-tok", "c-tok", "h-tok"},
		{"case insensitive scheme", "bearer h-tok", "", "h-tok"},
		{"non-bearer header falls back to cookie", "Basic abc", "c-tok", "c-tok"},
		{"empty bearer falls back to cookie", "Bearer   ", "c-tok", "c-tok"},
		{"nothing", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/info", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: httpx.AccessCookieName, Value: tt.cookie})
			}
			assert.Equal(t, tt.want, AccessToken(r))
		})
	}
}

func TestRequireAuth(t *testing.T) {
	gate := &stubGate{valid: "good"}
	h := RequireAuth(gate)(http.HandlerFunc(identityEcho))

	t.Run("valid", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/info", nil)
		r.Header.Set("Authorization", "Bearer good")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"user":"user-1","jti":"jti-1"}`, w.Body.String())
	})

	// Header beats cookie even when only the cookie is valid.
	t.Run("invalid header valid cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/info", nil)
		r.Header.Set("Authorization", "Bearer bad")
		r.AddCookie(&http.Cookie{Name: httpx.AccessCookieName, Value: "good"})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"unauthenticated"}`, w.Body.String())
	})

	t.Run("missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/info", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"unauthenticated"}`, w.Body.String())
	})

	t.Run("store failure is 500", func(t *testing.T) {
		h := RequireAuth(&stubGate{err: errors.New("db down")})(http.HandlerFunc(identityEcho))
		r := httptest.NewRequest(http.MethodGet, "/info", nil)
		r.Header.Set("Authorization", "Bearer good")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"error":"internal error"}`, w.Body.String())
	})
}

func TestRequestIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded first hop", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.2:5555", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.2:5555", "198.51.100.4"},
		{"remote addr", nil, "192.0.2.9:1234", "192.0.2.9"},
		{"remote addr without port", nil, "192.0.2.9", "192.0.2.9"},
		{"nothing", nil, "", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, RequestIP(r))
		})
	}
}

func TestClientIP_StoresInContext(t *testing.T) {
	var got string
	h := ClientIP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientIPFromContext(r.Context())
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Real-IP", "198.51.100.4")
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "198.51.100.4", got)
	assert.Empty(t, ClientIPFromContext(context.Background()))
}

func TestCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	t.Run("reflects any origin without allow-list", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/info", nil)
		r.Header.Set("Origin", "https://app.example")
		w := httptest.NewRecorder()
		NewCORSMiddleware(nil)(ok).ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("allow-list rejects others", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/info", nil)
		r.Header.Set("Origin", "https://evil.example")
		w := httptest.NewRecorder()
		NewCORSMiddleware([]string{"https://app.example"})(ok).ServeHTTP(w, r)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodOptions, "/signin", nil)
		r.Header.Set("Origin", "https://app.example")
		w := httptest.NewRecorder()
		NewCORSMiddleware([]string{"https://app.example"})(ok).ServeHTTP(w, r)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Device-Id")
	})
}

func TestRecovery(t *testing.T) {
	h := NewRecoveryMiddleware()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, w.Body.String())
}

func TestLogging_LevelsAndRoute(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r := chi.NewRouter()
	r.Use(NewLoggingMiddleware(logger))
	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/42", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "http_request", line["msg"])
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "/users/{id}", line["route"])
	assert.Equal(t, "/users/42", line["path"])
	assert.EqualValues(t, 404, line["status"])
}

type observation struct {
	method, route string
	status        int
}

type captureObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (c *captureObserver) ObserveHTTP(method, route string, status int, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.obs = append(c.obs, observation{method, route, status})
}

func TestMetrics_RoutePattern(t *testing.T) {
	obs := &captureObserver{}
	r := chi.NewRouter()
	r.Use(NewMetricsMiddleware(obs))
	r.Post("/signin", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/signin", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	require.Len(t, obs.obs, 2)
	assert.Equal(t, observation{"POST", "/signin", 401}, obs.obs[0])
	assert.Equal(t, 404, obs.obs[1].status)
}

func TestTracing_PassesThrough(t *testing.T) {
	r := chi.NewRouter()
	r.Use(NewTracingMiddleware())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
