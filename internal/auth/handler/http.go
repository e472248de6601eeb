// Package handler exposes the authentication HTTP surface: register, login,
// logout, session listing, and bulk revocation.
package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"ticketflow/backend/internal/auth/service"
	"ticketflow/backend/internal/server/httpx"
	"ticketflow/backend/internal/server/middleware"
	sessiondomain "ticketflow/backend/internal/session/domain"
	userdomain "ticketflow/backend/internal/user/domain"
)

const maxBodyBytes = 1 << 20

// Handler serves the /auth routes.
type Handler struct {
	svc *service.AuthService
}

func NewHandler(svc *service.AuthService) *Handler {
	return &Handler{svc: svc}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expiresAt"`
	User      *userdomain.User `json:"user"`
}

type sessionsResponse struct {
	Sessions     []sessiondomain.Info `json:"sessions"`
	SessionCount int                  `json:"sessionCount"`
	IsOnline     bool                 `json:"isOnline"`
}

// Register handles POST /auth/register. A successful registration is also a
// login: the response carries a fresh token.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	role := userdomain.Role(req.Role)
	if req.Role == "" {
		role = userdomain.RoleAttendee
	}
	res, err := h.svc.Register(r.Context(), req.Email, req.Password, req.Name, role, requestMeta(r))
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, authResponse{Token: res.Token, ExpiresAt: res.ExpiresAt, User: res.User})
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.Login(r.Context(), req.Email, req.Password, requestMeta(r))
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authResponse{Token: res.Token, ExpiresAt: res.ExpiresAt, User: res.User})
}

// Logout handles POST /auth/logout. Deliberately not behind RequireAuth:
// logging out an already-invalid token is still a 200, so the route accepts
// any bearer value and answers uniformly.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.ExtractBearer(r)
	if err := h.svc.Logout(r.Context(), token); err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Sessions handles GET /auth/sessions. The listing carries metadata only,
// never token values; counts are derived from the live listing.
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	infos, err := h.svc.ListSessions(r.Context(), user.ID)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sessionsResponse{
		Sessions:     infos,
		SessionCount: len(infos),
		IsOnline:     len(infos) > 0,
	})
}

// RevokeAll handles POST /auth/revoke-all-sessions. The calling token is
// revoked along with every other one.
func (h *Handler) RevokeAll(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	if err := h.svc.RevokeAll(r.Context(), user.ID); err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "all sessions revoked"})
}

// Me handles GET /auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, user)
}

// writeAuthError maps service sentinels to HTTP statuses. Credential
// failures share one body so unknown-email and wrong-password are
// indistinguishable to the caller.
func (h *Handler) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		httpx.WriteError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrAccountDisabled):
		// A disabled account answers like a bad password so callers cannot
		// probe account state.
		httpx.WriteError(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, service.ErrLoginNotPermitted):
		httpx.WriteError(w, http.StatusForbidden, "login not permitted")
	case errors.Is(err, service.ErrMissingToken),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrSessionRevoked),
		errors.Is(err, service.ErrUserNotFound):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, service.ErrStorage):
		log.Printf("auth handler: %s %s: %v", r.Method, r.URL.Path, err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	default:
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	}
}

func requestMeta(r *http.Request) service.RequestMetadata {
	return service.RequestMetadata{
		UserAgent: r.UserAgent(),
		IPAddress: middleware.ClientIP(r),
	}
}
