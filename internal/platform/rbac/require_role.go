// Package rbac provides role checks over the identity the auth middleware
// attaches to the request context. Role gates never touch the session ledger
// or the token codec; they are pure post-conditions on an already
// authenticated user.
package rbac

import (
	"context"
	"errors"
	"net/http"

	"ticketflow/backend/internal/server/httpx"
	"ticketflow/backend/internal/server/middleware"
	userdomain "ticketflow/backend/internal/user/domain"
)

var (
	// ErrUnauthenticated means no identity is attached to the context.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden means the caller is authenticated but lacks a required role.
	ErrForbidden = errors.New("insufficient role")
)

// RequireRole ensures the context carries an authenticated user whose role is
// one of roles. Returns the user on success.
func RequireRole(ctx context.Context, roles ...userdomain.Role) (*userdomain.User, error) {
	user, ok := middleware.GetUser(ctx)
	if !ok || user == nil {
		return nil, ErrUnauthenticated
	}
	for _, r := range roles {
		if user.Role == r {
			return user, nil
		}
	}
	return nil, ErrForbidden
}

// Require wraps next so it only runs when the context user holds one of
// roles. A missing identity maps to 401, a wrong role to 403.
func Require(next http.Handler, roles ...userdomain.Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := RequireRole(r.Context(), roles...); err != nil {
			if errors.Is(err, ErrUnauthenticated) {
				httpx.WriteError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			httpx.WriteError(w, http.StatusForbidden, "insufficient permissions")
			return
		}
		next.ServeHTTP(w, r)
	})
}
