package domain

import "time"

// Session represents one authenticated device/client instance for a user.
// It is owned exclusively by its user; within a user's ledger the token hash
// is the identity key. The raw bearer token is never stored.
type Session struct {
	ID        string
	UserID    string
	TokenHash string
	// ExpiresAt mirrors the expiry embedded in the issued token; lazy pruning
	// compares it against the clock instead of re-verifying the token.
	ExpiresAt time.Time
	CreatedAt time.Time
	// LastUsedAt is updated on every successful authorized request; always >= CreatedAt.
	LastUsedAt time.Time
	// UserAgent and IPAddress are captured at creation for display and audit
	// only; they never feed authorization decisions.
	UserAgent string
	IPAddress string
}

// Info is the client-visible projection of a Session. Token values are
// deliberately absent: session existence is observable, the secret is not.
type Info struct {
	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsed"`
	UserAgent  string    `json:"userAgent"`
	IPAddress  string    `json:"ipAddress"`
}

// ToInfo returns the client-visible projection of s.
func (s *Session) ToInfo() Info {
	return Info{
		CreatedAt:  s.CreatedAt,
		LastUsedAt: s.LastUsedAt,
		UserAgent:  s.UserAgent,
		IPAddress:  s.IPAddress,
	}
}
