package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ticketflow/backend/internal/user/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, name, password_hash, role, status, last_login_at, last_logout_at, last_activity_at, created_at, updated_at`

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail returns the user for email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// Create persists the user to the database. The user must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Email, u.Name, u.PasswordHash, string(u.Role), string(u.Status), u.CreatedAt, u.UpdatedAt,
	)
	return err
}

// UpdateLastLogin sets last_login_at for the user. The timestamp never moves backwards.
func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET last_login_at = GREATEST(COALESCE(last_login_at, $2), $2), updated_at = $2
		WHERE id = $1`, id, at)
	return err
}

// UpdateLastLogout sets last_logout_at for the user.
func (r *PostgresRepository) UpdateLastLogout(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET last_logout_at = GREATEST(COALESCE(last_logout_at, $2), $2), updated_at = $2
		WHERE id = $1`, id, at)
	return err
}

// UpdateLastActivity sets last_activity_at for the user.
func (r *PostgresRepository) UpdateLastActivity(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET last_activity_at = GREATEST(COALESCE(last_activity_at, $2), $2)
		WHERE id = $1`, id, at)
	return err
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var role, status string
	var lastLogin, lastLogout, lastActivity sql.NullTime
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &status,
		&lastLogin, &lastLogout, &lastActivity, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Role = domain.Role(role)
	u.Status = domain.UserStatus(status)
	u.LastLoginAt = nullTimeToPtr(lastLogin)
	u.LastLogoutAt = nullTimeToPtr(lastLogout)
	u.LastActivityAt = nullTimeToPtr(lastActivity)
	return &u, nil
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}
