package middleware

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"

	"ticketflow/backend/internal/auth/service"
	"ticketflow/backend/internal/server/httpx"
)

const bearerPrefix = "bearer "

// uniformUnauthorized is the single client-facing body for every
// authentication rejection kind. Distinguishing revoked from unknown-user or
// expired would leak account state to unauthenticated callers.
const uniformUnauthorized = "invalid or expired token"

// AuthFunc resolves a bearer token, running the full
// verify/prune/ledger-membership/touch state machine, and returns a request
// context carrying the identity. Kept as a small function type so middleware
// tests can stub authentication without a service.
type AuthFunc func(ctx context.Context, token string) (context.Context, error)

// Identity returns an AuthFunc backed by svc that attaches the resolved user
// and raw token to the request context.
func Identity(svc *service.AuthService) AuthFunc {
	return func(ctx context.Context, token string) (context.Context, error) {
		user, err := svc.Authenticate(ctx, token)
		if err != nil {
			return ctx, err
		}
		return WithIdentity(ctx, user, token), nil
	}
}

// RequireAuth wraps next so the request only proceeds with a valid, live
// session. Every rejection kind maps to 401 with one uniform body; the
// internal kind is logged. Storage failures map to 500.
func RequireAuth(authn AuthFunc, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractBearer(r)
		ctx, err := authn(r.Context(), token)
		if err != nil {
			rejectAuth(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth runs the same state machine as RequireAuth but treats any
// rejection as anonymous: the request proceeds without an identity attached.
func OptionalAuth(authn AuthFunc, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractBearer(r)
		if token != "" {
			if ctx, err := authn(r.Context(), token); err == nil {
				r = r.WithContext(ctx)
			}
		}
		next.ServeHTTP(w, r)
	})
}

func rejectAuth(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrStorage) {
		log.Printf("auth: %s %s: %v", r.Method, r.URL.Path, err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	// Kind is preserved here for observability only.
	log.Printf("auth: %s %s rejected: %v", r.Method, r.URL.Path, err)
	httpx.WriteError(w, http.StatusUnauthorized, uniformUnauthorized)
}

// ExtractBearer returns the Bearer token from the Authorization header, or ""
// if missing or malformed.
func ExtractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

// ClientIP returns the client IP from X-Forwarded-For, X-Real-IP, or
// RemoteAddr, or "unknown".
func ClientIP(r *http.Request) string {
	if s := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); s != "" {
		if i := strings.Index(s, ","); i > 0 {
			s = strings.TrimSpace(s[:i])
		}
		if s != "" {
			return s
		}
	}
	if s := strings.TrimSpace(r.Header.Get("X-Real-IP")); s != "" {
		return s
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
