// Package handler serves liveness and readiness probes for Kubernetes, load balancers and CI.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"filevault/backend/internal/httpx"
)

const defaultReadyTimeout = 2 * time.Second

// Pinger checks a dependency. *pgxpool.Pool implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	db      Pinger
	timeout time.Duration
}

// NewServer returns a health server. db may be nil, in which case readiness only reflects the process.
func NewServer(db Pinger) *Server {
	return &Server{db: db, timeout: defaultReadyTimeout}
}

// Healthz reports that the process is serving.
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports whether the database answers a ping within the timeout.
func (s *Server) Readyz(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			slog.WarnContext(r.Context(), "health.not_ready", slog.Any("err", err))
			httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
