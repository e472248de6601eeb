// Package handler exposes the event HTTP surface.
package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"ticketflow/backend/internal/event/domain"
	"ticketflow/backend/internal/event/service"
	"ticketflow/backend/internal/platform/rbac"
	"ticketflow/backend/internal/server/httpx"
	"ticketflow/backend/internal/server/middleware"
	userdomain "ticketflow/backend/internal/user/domain"
)

const maxBodyBytes = 1 << 20

// Handler serves the /events routes.
type Handler struct {
	svc *service.EventService
}

func NewHandler(svc *service.EventService) *Handler {
	return &Handler{svc: svc}
}

type createEventRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Venue       string    `json:"venue"`
	StartsAt    time.Time `json:"startsAt"`
	EndsAt      time.Time `json:"endsAt"`
	Capacity    int       `json:"capacity"`
	PriceCents  int64     `json:"priceCents"`
}

type eventListResponse struct {
	Events []*domain.Event `json:"events"`
}

// List handles GET /events: the public listing of published events.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListPublished(r.Context())
	if err != nil {
		h.writeEventError(w, r, err)
		return
	}
	if events == nil {
		events = []*domain.Event{}
	}
	httpx.WriteJSON(w, http.StatusOK, eventListResponse{Events: events})
}

// Get handles GET /events/{id}. Runs behind OptionalAuth: an attached
// identity widens visibility to the viewer's own unpublished events.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	viewer, _ := middleware.GetUser(r.Context())
	e, err := h.svc.Get(r.Context(), r.PathValue("id"), viewer)
	if err != nil {
		h.writeEventError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, e)
}

// Create handles POST /events. Requires the organizer or admin role; the
// route is wrapped by rbac.Require, so the identity is present and role-valid
// here.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := rbac.RequireRole(r.Context(), userdomain.RoleOrganizer, userdomain.RoleAdmin)
	if err != nil {
		h.writeEventError(w, r, err)
		return
	}
	var req createEventRequest
	if err := httpx.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	e, err := h.svc.Create(r.Context(), user, service.NewEventInput{
		Title:       req.Title,
		Description: req.Description,
		Venue:       req.Venue,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		Capacity:    req.Capacity,
		PriceCents:  req.PriceCents,
	})
	if err != nil {
		h.writeEventError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, e)
}

// Publish handles POST /events/{id}/publish. Owner or admin only.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	e, err := h.svc.Publish(r.Context(), r.PathValue("id"), user)
	if err != nil {
		h.writeEventError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, e)
}

// Mine handles GET /events/mine: the caller's own events, published or not.
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	events, err := h.svc.ListByOrganizer(r.Context(), user.ID)
	if err != nil {
		h.writeEventError(w, r, err)
		return
	}
	if events == nil {
		events = []*domain.Event{}
	}
	httpx.WriteJSON(w, http.StatusOK, eventListResponse{Events: events})
}

func (h *Handler) writeEventError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrEventNotFound):
		httpx.WriteError(w, http.StatusNotFound, "event not found")
	case errors.Is(err, service.ErrNotOwner), errors.Is(err, rbac.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, "insufficient permissions")
	case errors.Is(err, rbac.ErrUnauthenticated):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, service.ErrStorage):
		log.Printf("event handler: %s %s: %v", r.Method, r.URL.Path, err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	default:
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	}
}
