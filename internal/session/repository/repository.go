package repository

import (
	"context"
	"time"

	"ticketflow/backend/internal/session/domain"
)

// Repository defines persistence for the per-user session ledger.
//
// Counts and the derived "online" flag are always recomputed from live rows;
// there is no stored counter to drift.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	// GetByTokenHash returns the session for the hash, or nil if not present.
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	// ListByUser returns the user's sessions in insertion (creation) order.
	ListByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	// UpdateLastUsed sets last_used_at for the matching session; absent hash is a no-op.
	UpdateLastUsed(ctx context.Context, tokenHash string, at time.Time) error
	// DeleteByTokenHash removes the matching session; idempotent.
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
	// DeleteAllByUser empties the user's ledger.
	DeleteAllByUser(ctx context.Context, userID string) error
	// DeleteExpiredByUser prunes sessions whose embedded expiry is at or before now.
	DeleteExpiredByUser(ctx context.Context, userID string, now time.Time) error
	// CountByUser returns the live session count for the user.
	CountByUser(ctx context.Context, userID string) (int, error)
}
