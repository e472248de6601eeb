// Package handler serves the health endpoint for Kubernetes probes and load
// balancers.
package handler

import (
	"context"
	"net/http"
	"time"

	"ticketflow/backend/internal/server/httpx"
)

// Pinger reports backing-store reachability. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Checker verifies an in-process dependency, e.g. the policy engine.
type Checker func(ctx context.Context) error

// Handler serves GET /healthz.
type Handler struct {
	db       Pinger
	checkers map[string]Checker
}

// NewHandler returns a health handler. db may be nil (skipped). checkers are
// named dependency probes run on every request.
func NewHandler(db Pinger, checkers map[string]Checker) *Handler {
	return &Handler{db: db, checkers: checkers}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Check runs the dependency probes and reports 200 when all pass, 503
// otherwise.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true
	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}
	for name, check := range h.checkers {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
		} else {
			checks[name] = "ok"
		}
	}

	if !healthy {
		httpx.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Checks: checks})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok", Checks: checks})
}
