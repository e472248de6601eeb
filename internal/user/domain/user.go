package domain

import (
	"errors"
	"time"
)

// User is the core user entity. PasswordHash is never serialized or logged.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Status       UserStatus `json:"status"`
	// LastLoginAt, LastLogoutAt, and LastActivityAt only ever move forward.
	LastLoginAt    *time.Time `json:"lastLoginAt,omitempty"`
	LastLogoutAt   *time.Time `json:"lastLogoutAt,omitempty"`
	LastActivityAt *time.Time `json:"lastActivityAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Role is the user's platform role.
type Role string

const (
	RoleAttendee  Role = "attendee"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	switch r {
	case RoleAttendee, RoleOrganizer, RoleAdmin:
		return true
	}
	return false
}

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// Validate validates the user for persistence. Returns an error describing the
// first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if !ValidRole(u.Role) {
		return errors.New("invalid role")
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	return nil
}
