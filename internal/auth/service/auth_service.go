package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"ticketflow/backend/internal/audit"
	policyengine "ticketflow/backend/internal/policy/engine"
	"ticketflow/backend/internal/security"
	sessiondomain "ticketflow/backend/internal/session/domain"
	userdomain "ticketflow/backend/internal/user/domain"
)

// Sentinel errors for the auth service; handlers map them to HTTP statuses.
// The client-facing message is uniform across rejection kinds -- the
// distinction exists for logging and tests only.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrAccountDisabled        = errors.New("account disabled")
	ErrLoginNotPermitted      = errors.New("login not permitted by policy")
	ErrMissingToken           = errors.New("missing token")
	ErrInvalidToken           = errors.New("invalid token")
	ErrTokenExpired           = errors.New("token expired")
	ErrSessionRevoked         = errors.New("session revoked")
	ErrUserNotFound           = errors.New("user not found")
	// ErrStorage wraps persistence failures. Never retried here; retry policy
	// belongs to the caller.
	ErrStorage = errors.New("storage unavailable")
)

// RequestMetadata carries per-request client attributes captured at session
// creation. Informational only; never used for authorization decisions.
type RequestMetadata struct {
	UserAgent string
	IPAddress string
}

// AuthResult holds the outcome of Register or Login.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *userdomain.User
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdateLastLogout(ctx context.Context, id string, at time.Time) error
	UpdateLastActivity(ctx context.Context, id string, at time.Time) error
}

// SessionRepo is the minimal session-ledger repository needed by the auth service.
type SessionRepo interface {
	Create(ctx context.Context, s *sessiondomain.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*sessiondomain.Session, error)
	ListByUser(ctx context.Context, userID string) ([]*sessiondomain.Session, error)
	UpdateLastUsed(ctx context.Context, tokenHash string, at time.Time) error
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
	DeleteAllByUser(ctx context.Context, userID string) error
	DeleteExpiredByUser(ctx context.Context, userID string, now time.Time) error
	CountByUser(ctx context.Context, userID string) (int, error)
}

// AuthService implements registration, login, logout, revocation, and the
// request authentication state machine over a user's session ledger.
type AuthService struct {
	userRepo    UserRepo
	sessionRepo SessionRepo
	policy      policyengine.Evaluator
	auditLogger audit.AuditLogger
	hasher      *security.Hasher
	tokens      *security.TokenProvider
	maxSessions int
}

// NewAuthService returns an AuthService with the given dependencies.
// auditLogger may be nil (no audit trail). maxSessions 0 disables the cap.
func NewAuthService(
	userRepo UserRepo,
	sessionRepo SessionRepo,
	policy policyengine.Evaluator,
	auditLogger audit.AuditLogger,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	maxSessions int,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		policy:      policy,
		auditLogger: auditLogger,
		hasher:      hasher,
		tokens:      tokens,
		maxSessions: maxSessions,
	}
}

// Register creates a user with the given email, password, name, and role, and
// logs the new user in (a registration is also the first login). role may be
// attendee or organizer; admin accounts are provisioned operationally, never
// via public registration.
func (s *AuthService) Register(ctx context.Context, email, password, name string, role userdomain.Role, meta RequestMetadata) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if role == "" {
		role = userdomain.RoleAttendee
	}
	if role == userdomain.RoleAdmin || !userdomain.ValidRole(role) {
		return nil, errors.New("invalid role")
	}
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, storageErr(err)
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user := &userdomain.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hashed,
		Role:         role,
		Status:       userdomain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, storageErr(err)
	}
	s.logAudit(ctx, user.ID, "register", "user", "")
	return s.createSession(ctx, user, meta)
}

// Login authenticates with email/password, applies the session-admission
// policy, appends a session to the ledger, and returns the bearer token.
func (s *AuthService) Login(ctx context.Context, email, password string, meta RequestMetadata) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, storageErr(err)
	}
	if user == nil {
		// Burn a bcrypt comparison so unknown emails cost the same as wrong
		// passwords.
		_ = s.hasher.Compare("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy", []byte(password))
		s.logAudit(ctx, "", "login_failure", "session", email)
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(password)); err != nil {
		s.logAudit(ctx, user.ID, "login_failure", "session", "")
		return nil, ErrInvalidCredentials
	}
	if user.Status != userdomain.UserStatusActive {
		return nil, ErrAccountDisabled
	}
	return s.createSession(ctx, user, meta)
}

// createSession prunes expired sessions, applies the admission policy, mints a
// token, and appends the session to the user's ledger.
func (s *AuthService) createSession(ctx context.Context, user *userdomain.User, meta RequestMetadata) (*AuthResult, error) {
	now := time.Now().UTC()
	if err := s.sessionRepo.DeleteExpiredByUser(ctx, user.ID, now); err != nil {
		return nil, storageErr(err)
	}
	active, err := s.sessionRepo.CountByUser(ctx, user.ID)
	if err != nil {
		return nil, storageErr(err)
	}
	if s.policy != nil {
		res, err := s.policy.EvaluateAdmission(ctx, user, active, s.maxSessions)
		if err != nil {
			return nil, err
		}
		if !res.Allow {
			return nil, ErrLoginNotPermitted
		}
		if res.EvictOldest {
			if err := s.evictOldest(ctx, user.ID); err != nil {
				return nil, err
			}
		}
	}
	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	sess := &sessiondomain.Session{
		ID:         uuid.New().String(),
		UserID:     user.ID,
		TokenHash:  security.HashToken(token),
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
		LastUsedAt: now,
		UserAgent:  meta.UserAgent,
		IPAddress:  meta.IPAddress,
	}
	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		return nil, storageErr(err)
	}
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, storageErr(err)
	}
	user.LastLoginAt = &now
	s.logAudit(ctx, user.ID, "login", "session", "")
	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *AuthService) evictOldest(ctx context.Context, userID string) error {
	sessions, err := s.sessionRepo.ListByUser(ctx, userID)
	if err != nil {
		return storageErr(err)
	}
	if len(sessions) == 0 {
		return nil
	}
	if err := s.sessionRepo.DeleteByTokenHash(ctx, sessions[0].TokenHash); err != nil {
		return storageErr(err)
	}
	return nil
}

// Logout removes the session for the given token from its owner's ledger.
// Idempotent: logging out an absent or already-invalid token succeeds --
// logout is not an assertion that a session existed. Only storage failures
// surface as errors.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	tokenHash := security.HashToken(token)
	sess, err := s.sessionRepo.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		return storageErr(err)
	}
	userID := ""
	if sess != nil {
		userID = sess.UserID
	} else if id, verifyErr := s.tokens.Verify(token); verifyErr == nil {
		userID = id
	}
	if err := s.sessionRepo.DeleteByTokenHash(ctx, tokenHash); err != nil {
		return storageErr(err)
	}
	if userID == "" {
		return nil
	}
	if err := s.userRepo.UpdateLastLogout(ctx, userID, time.Now().UTC()); err != nil {
		return storageErr(err)
	}
	s.logAudit(ctx, userID, "logout", "session", "")
	return nil
}

// RevokeAll empties the user's session ledger, invalidating every outstanding
// token for that user -- including the one used to request the revocation.
func (s *AuthService) RevokeAll(ctx context.Context, userID string) error {
	if err := s.sessionRepo.DeleteAllByUser(ctx, userID); err != nil {
		return storageErr(err)
	}
	if err := s.userRepo.UpdateLastLogout(ctx, userID, time.Now().UTC()); err != nil {
		return storageErr(err)
	}
	s.logAudit(ctx, userID, "revoke_all", "session", "")
	return nil
}

// ListSessions returns the user's live sessions in creation order, pruning
// expired ones first. Token values are never included.
func (s *AuthService) ListSessions(ctx context.Context, userID string) ([]sessiondomain.Info, error) {
	if err := s.sessionRepo.DeleteExpiredByUser(ctx, userID, time.Now().UTC()); err != nil {
		return nil, storageErr(err)
	}
	sessions, err := s.sessionRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, storageErr(err)
	}
	out := make([]sessiondomain.Info, len(sessions))
	for i, sess := range sessions {
		out[i] = sess.ToInfo()
	}
	return out, nil
}

// Authenticate runs the request authentication state machine: codec
// verification, user load, lazy pruning, ledger membership, and the activity
// touch. On success it returns the resolved user.
//
// Expiry is checked before ledger membership, so an expired-but-listed token
// fails with ErrTokenExpired, not ErrSessionRevoked.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*userdomain.User, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	tokenHash := security.HashToken(token)
	userID, err := s.tokens.Verify(token)
	if err != nil {
		switch {
		case errors.Is(err, security.ErrTokenExpired):
			// The ledger entry is dead weight now; prune it eagerly so session
			// listings stop showing it without waiting for the next lookup.
			if delErr := s.sessionRepo.DeleteByTokenHash(ctx, tokenHash); delErr != nil {
				log.Printf("auth: pruning expired session: %v", delErr)
			}
			return nil, ErrTokenExpired
		default:
			return nil, ErrInvalidToken
		}
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, storageErr(err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.Status != userdomain.UserStatusActive {
		return nil, ErrAccountDisabled
	}
	now := time.Now().UTC()
	if err := s.sessionRepo.DeleteExpiredByUser(ctx, userID, now); err != nil {
		return nil, storageErr(err)
	}
	sess, err := s.sessionRepo.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		return nil, storageErr(err)
	}
	if sess == nil || sess.UserID != userID {
		return nil, ErrSessionRevoked
	}
	// Touch is best-effort; a failed timestamp write must not fail the request.
	if err := s.sessionRepo.UpdateLastUsed(ctx, tokenHash, now); err != nil {
		log.Printf("auth: touch session: %v", err)
	}
	if err := s.userRepo.UpdateLastActivity(ctx, userID, now); err != nil {
		log.Printf("auth: update last activity: %v", err)
	}
	return user, nil
}

func (s *AuthService) logAudit(ctx context.Context, userID, action, resource, metadata string) {
	if s.auditLogger == nil {
		return
	}
	s.auditLogger.LogEvent(ctx, userID, action, resource, metadata)
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorage, err)
}

func validateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	ok, _ := regexp.MatchString(simpleEmail, email)
	if !ok {
		return errors.New("invalid email format")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	var hasLetter, hasNumber bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
			hasLetter = true
		case r >= '0' && r <= '9':
			hasNumber = true
		}
	}
	if !hasLetter || !hasNumber {
		return errors.New("password must contain at least one letter and one number")
	}
	return nil
}
