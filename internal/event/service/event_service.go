// Package service implements event business rules: creation, visibility, and
// publishing.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ticketflow/backend/internal/audit"
	"ticketflow/backend/internal/event/domain"
	"ticketflow/backend/internal/event/repository"
	userdomain "ticketflow/backend/internal/user/domain"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrNotOwner      = errors.New("not the event organizer")
	// ErrStorage wraps persistence failures.
	ErrStorage = errors.New("storage unavailable")
)

// EventService implements event creation, lookup with visibility rules, and
// publishing.
type EventService struct {
	repo        repository.EventRepository
	auditLogger audit.AuditLogger
}

// NewEventService returns an EventService. auditLogger may be nil.
func NewEventService(repo repository.EventRepository, auditLogger audit.AuditLogger) *EventService {
	return &EventService{repo: repo, auditLogger: auditLogger}
}

// NewEventInput carries the caller-supplied fields for event creation.
type NewEventInput struct {
	Title       string
	Description string
	Venue       string
	StartsAt    time.Time
	EndsAt      time.Time
	Capacity    int
	PriceCents  int64
}

// Create persists a new unpublished event owned by organizer.
func (s *EventService) Create(ctx context.Context, organizer *userdomain.User, in NewEventInput) (*domain.Event, error) {
	now := time.Now().UTC()
	e := &domain.Event{
		ID:          uuid.New().String(),
		OrganizerID: organizer.ID,
		Title:       in.Title,
		Description: in.Description,
		Venue:       in.Venue,
		StartsAt:    in.StartsAt,
		EndsAt:      in.EndsAt,
		Capacity:    in.Capacity,
		PriceCents:  in.PriceCents,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, storageErr(err)
	}
	if s.auditLogger != nil {
		s.auditLogger.LogEvent(ctx, organizer.ID, "create", "event", e.ID)
	}
	return e, nil
}

// Get returns the event if it is visible to viewer. Published events are
// visible to everyone; unpublished ones only to their organizer and admins.
// viewer may be nil (anonymous).
func (s *EventService) Get(ctx context.Context, id string, viewer *userdomain.User) (*domain.Event, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storageErr(err)
	}
	if e == nil {
		return nil, ErrEventNotFound
	}
	if !e.Published && !canManage(viewer, e) {
		// Hidden events are indistinguishable from absent ones.
		return nil, ErrEventNotFound
	}
	return e, nil
}

// ListPublished returns the public event listing.
func (s *EventService) ListPublished(ctx context.Context) ([]*domain.Event, error) {
	events, err := s.repo.ListPublished(ctx)
	if err != nil {
		return nil, storageErr(err)
	}
	return events, nil
}

// ListByOrganizer returns every event owned by organizerID.
func (s *EventService) ListByOrganizer(ctx context.Context, organizerID string) ([]*domain.Event, error) {
	events, err := s.repo.ListByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, storageErr(err)
	}
	return events, nil
}

// Publish marks the event as published. Only the owning organizer or an admin
// may publish; publishing an already-published event is a no-op.
func (s *EventService) Publish(ctx context.Context, id string, actor *userdomain.User) (*domain.Event, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storageErr(err)
	}
	if e == nil {
		return nil, ErrEventNotFound
	}
	if !canManage(actor, e) {
		return nil, ErrNotOwner
	}
	if e.Published {
		return e, nil
	}
	now := time.Now().UTC()
	e.Published = true
	e.PublishedAt = &now
	e.UpdatedAt = now
	if err := s.repo.Update(ctx, e); err != nil {
		return nil, storageErr(err)
	}
	if s.auditLogger != nil {
		s.auditLogger.LogEvent(ctx, actor.ID, "publish", "event", e.ID)
	}
	return e, nil
}

func canManage(u *userdomain.User, e *domain.Event) bool {
	if u == nil {
		return false
	}
	return u.Role == userdomain.RoleAdmin || u.ID == e.OrganizerID
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorage, err)
}
