// Package server assembles the chi router and runs the HTTP server.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	healthhandler "filevault/backend/internal/health/handler"
	"filevault/backend/internal/httpx"
	identityhandler "filevault/backend/internal/identity/handler"
	"filevault/backend/internal/server/middleware"
	userhandler "filevault/backend/internal/user/handler"
)

// Deps holds the handlers and cross-cutting pieces the router mounts.
type Deps struct {
	Auth   *identityhandler.AuthHandler
	Users  *userhandler.UserHandler
	Health *healthhandler.Server
	// Gate validates access tokens for /info and /logout.
	Gate middleware.Authenticator
	// Logger is the request logger. If nil, slog.Default is used.
	Logger *slog.Logger
	// HTTPMetrics observes every request. If nil, request metrics are not recorded.
	HTTPMetrics middleware.HTTPObserver
	// MetricsHandler serves /metrics. If nil, the route is not mounted.
	MetricsHandler http.Handler
	CORSOrigins    []string
}

// NewRouter returns the HTTP handler for the auth server.
//
// Public:        POST /signup, POST /signin, POST /signin/new_token, GET /healthz, GET /readyz, GET /metrics
// Authenticated: GET /info, GET /logout
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewTracingMiddleware())
	r.Use(middleware.ClientIP)
	r.Use(middleware.NewLoggingMiddleware(logger))
	if d.HTTPMetrics != nil {
		r.Use(middleware.NewMetricsMiddleware(d.HTTPMetrics))
	}
	r.Use(middleware.NewCORSMiddleware(d.CORSOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusNotFound, httpx.ErrorBody{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusMethodNotAllowed, httpx.ErrorBody{Error: "method not allowed"})
	})

	if d.Health != nil {
		r.Get("/healthz", d.Health.Healthz)
		r.Get("/readyz", d.Health.Readyz)
	}
	if d.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", d.MetricsHandler)
	}

	r.Post("/signup", d.Auth.Signup)
	r.Post("/signin", d.Auth.Signin)
	r.Post("/signin/new_token", d.Auth.NewToken)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(d.Gate))
		r.Get("/info", d.Users.Info)
		r.Get("/logout", d.Auth.Logout)
	})
	return r
}
