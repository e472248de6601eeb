// Package domain defines the Event entity, the platform's primary resource.
package domain

import (
	"errors"
	"strings"
	"time"
)

// Event is a ticketed event created by an organizer. Unpublished events are
// visible only to their organizer and to admins.
type Event struct {
	ID          string     `json:"id"`
	OrganizerID string     `json:"organizerId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Venue       string     `json:"venue"`
	StartsAt    time.Time  `json:"startsAt"`
	EndsAt      time.Time  `json:"endsAt"`
	Capacity    int        `json:"capacity"`
	PriceCents  int64      `json:"priceCents"`
	Published   bool       `json:"published"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Validate checks the event fields that must hold before persistence.
func (e *Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return errors.New("title is required")
	}
	if strings.TrimSpace(e.Venue) == "" {
		return errors.New("venue is required")
	}
	if e.StartsAt.IsZero() || e.EndsAt.IsZero() {
		return errors.New("startsAt and endsAt are required")
	}
	if !e.EndsAt.After(e.StartsAt) {
		return errors.New("endsAt must be after startsAt")
	}
	if e.Capacity <= 0 {
		return errors.New("capacity must be positive")
	}
	if e.PriceCents < 0 {
		return errors.New("priceCents must not be negative")
	}
	return nil
}
