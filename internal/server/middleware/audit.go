package middleware

import (
	"net/http"
	"strings"

	"ticketflow/backend/internal/audit"
)

// auditSkipPaths are routes whose audit events are written by the service
// layer with richer context, or that are pure reads of no audit value.
var auditSkipPaths = map[string]bool{
	"/auth/login":               true,
	"/auth/logout":              true,
	"/auth/register":            true,
	"/auth/revoke-all-sessions": true,
	"/healthz":                  true,
}

// Audit records mutating requests by authenticated users, best-effort, after
// the handler has run. logger may be nil, which disables the trail.
func Audit(logger audit.AuditLogger, next http.Handler) http.Handler {
	if logger == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			return
		}
		if auditSkipPaths[strings.TrimSuffix(r.URL.Path, "/")] {
			return
		}
		user, ok := GetUser(r.Context())
		if !ok {
			return
		}
		if rec.status >= 400 {
			return
		}
		ar := audit.ParseRoute(r.Method, r.URL.Path)
		logger.LogEvent(r.Context(), user.ID, ar.Action, ar.Resource, r.URL.Path)
	})
}
