package repository

import (
	"context"
	"database/sql"
	"errors"

	"ticketflow/backend/internal/event/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an event repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const eventColumns = `id, organizer_id, title, description, venue, starts_at, ends_at, capacity, price_cents, published, published_at, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, e *domain.Event) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO events (id, organizer_id, title, description, venue, starts_at, ends_at, capacity, price_cents, published, published_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		e.ID, e.OrganizerID, e.Title, e.Description, e.Venue, e.StartsAt, e.EndsAt,
		e.Capacity, e.PriceCents, e.Published, e.PublishedAt, e.CreatedAt, e.UpdatedAt,
	)
	return err
}

// GetByID returns the event, or nil if not present. Errors are database
// failures only, never missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

// ListPublished returns published events ordered by start time.
func (r *PostgresRepository) ListPublished(ctx context.Context) ([]*domain.Event, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events WHERE published ORDER BY starts_at, id`)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// ListByOrganizer returns the organizer's events, published or not, newest first.
func (r *PostgresRepository) ListByOrganizer(ctx context.Context, organizerID string) ([]*domain.Event, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events WHERE organizer_id = $1 ORDER BY created_at DESC, id`, organizerID)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func (r *PostgresRepository) Update(ctx context.Context, e *domain.Event) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE events
		SET title = $2, description = $3, venue = $4, starts_at = $5, ends_at = $6,
		    capacity = $7, price_cents = $8, published = $9, published_at = $10, updated_at = $11
		WHERE id = $1`,
		e.ID, e.Title, e.Description, e.Venue, e.StartsAt, e.EndsAt,
		e.Capacity, e.PriceCents, e.Published, e.PublishedAt, e.UpdatedAt,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.Event, error) {
	var e domain.Event
	var publishedAt sql.NullTime
	err := row.Scan(&e.ID, &e.OrganizerID, &e.Title, &e.Description, &e.Venue,
		&e.StartsAt, &e.EndsAt, &e.Capacity, &e.PriceCents, &e.Published,
		&publishedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		e.PublishedAt = &t
	}
	return &e, nil
}

func collectEvents(rows *sql.Rows) ([]*domain.Event, error) {
	defer rows.Close()
	var out []*domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
