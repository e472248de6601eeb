// Package server assembles the HTTP API: route table, middleware chain, and
// the http.Server lifecycle.
package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"ticketflow/backend/internal/audit"
	authhandler "ticketflow/backend/internal/auth/handler"
	eventhandler "ticketflow/backend/internal/event/handler"
	healthhandler "ticketflow/backend/internal/health/handler"
	"ticketflow/backend/internal/platform/rbac"
	"ticketflow/backend/internal/server/middleware"
	"ticketflow/backend/internal/telemetry"
	userdomain "ticketflow/backend/internal/user/domain"
)

// Deps carries the wired handlers and cross-cutting dependencies for the
// route table. Telemetry and Audit may be nil.
type Deps struct {
	Auth      *authhandler.Handler
	Events    *eventhandler.Handler
	Health    *healthhandler.Handler
	Authn     middleware.AuthFunc
	Telemetry telemetry.EventEmitter
	Audit     audit.AuditLogger
}

// NewRouter builds the route table. Authenticated routes run telemetry and
// audit inside the auth wrapper so both see the resolved identity.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	observe := func(h http.Handler) http.Handler {
		return middleware.Telemetry(d.Telemetry, middleware.Audit(d.Audit, h))
	}
	public := func(h http.HandlerFunc) http.Handler {
		return observe(h)
	}
	authed := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireAuth(d.Authn, observe(h))
	}
	optional := func(h http.HandlerFunc) http.Handler {
		return middleware.OptionalAuth(d.Authn, observe(h))
	}

	if d.Auth != nil {
		mux.Handle("POST /auth/register", public(d.Auth.Register))
		mux.Handle("POST /auth/login", public(d.Auth.Login))
		// Logout is public: a dead token still answers 200.
		mux.Handle("POST /auth/logout", public(d.Auth.Logout))
		mux.Handle("GET /auth/sessions", authed(d.Auth.Sessions))
		mux.Handle("POST /auth/revoke-all-sessions", authed(d.Auth.RevokeAll))
		mux.Handle("GET /auth/me", authed(d.Auth.Me))
	}

	if d.Events != nil {
		mux.Handle("GET /events", public(d.Events.List))
		mux.Handle("GET /events/mine", authed(d.Events.Mine))
		mux.Handle("GET /events/{id}", optional(d.Events.Get))
		mux.Handle("POST /events", middleware.RequireAuth(d.Authn,
			rbac.Require(observe(http.HandlerFunc(d.Events.Create)), userdomain.RoleOrganizer, userdomain.RoleAdmin)))
		mux.Handle("POST /events/{id}/publish", authed(d.Events.Publish))
	}

	if d.Health != nil {
		mux.Handle("GET /healthz", http.HandlerFunc(d.Health.Check))
	}

	return mux
}

// Run serves the handler on addr until ctx is cancelled, then drains with a
// shutdown grace period.
func Run(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("http: listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
