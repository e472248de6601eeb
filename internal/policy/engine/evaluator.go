package engine

import (
	"context"

	userdomain "ticketflow/backend/internal/user/domain"
)

// AdmissionResult holds the result of session-admission policy evaluation at login.
type AdmissionResult struct {
	// Allow is false when the login must be refused outright.
	Allow bool
	// EvictOldest is true when the user is at the concurrent-session cap and
	// the oldest session should be removed to make room.
	EvictOldest bool
}

// Evaluator decides session admission using OPA or other engines.
type Evaluator interface {
	// EvaluateAdmission evaluates the session-admission policy for a login by
	// the given user with activeSessions live sessions and a configured cap of
	// maxSessions (0 = uncapped).
	EvaluateAdmission(ctx context.Context, user *userdomain.User, activeSessions, maxSessions int) (AdmissionResult, error)
}
