// Package repository defines the event persistence interface and its Postgres
// implementation.
package repository

import (
	"context"

	"ticketflow/backend/internal/event/domain"
)

// EventRepository is the persistence interface for events. Implementations
// return (nil, nil) when an event is not found.
type EventRepository interface {
	Create(ctx context.Context, e *domain.Event) error
	GetByID(ctx context.Context, id string) (*domain.Event, error)
	ListPublished(ctx context.Context) ([]*domain.Event, error)
	ListByOrganizer(ctx context.Context, organizerID string) ([]*domain.Event, error)
	Update(ctx context.Context, e *domain.Event) error
}
