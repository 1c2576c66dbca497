package handler

import (
	"context"
	"net/http"

	"filevault/backend/internal/httpx"
	"filevault/backend/internal/server/middleware"
	sessionsvc "filevault/backend/internal/session/service"
)

// InfoService resolves the authenticated user's email.
type InfoService interface {
	Info(ctx context.Context, userID string) (string, error)
}

// UserHandler serves the authenticated user endpoints.
type UserHandler struct {
	svc InfoService
}

func NewUserHandler(svc InfoService) *UserHandler {
	return &UserHandler{svc: svc}
}

// Info handles GET /info and answers {"id": <email>}. It must run behind middleware.RequireAuth.
func (h *UserHandler) Info(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, r, sessionsvc.ErrMissingToken)
		return
	}
	email, err := h.svc.Info(r.Context(), id.UserID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"id": email})
}
