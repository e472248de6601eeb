package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	policyengine "ticketflow/backend/internal/policy/engine"
	"ticketflow/backend/internal/security"
	sessiondomain "ticketflow/backend/internal/session/domain"
	userdomain "ticketflow/backend/internal/user/domain"
)

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*userdomain.User
	fail  error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[string]*userdomain.User{}}
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return nil, r.fail
	}
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return nil, r.fail
	}
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) Create(_ context.Context, u *userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memUserRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	return r.setTime(id, func(u *userdomain.User) { u.LastLoginAt = &at })
}

func (r *memUserRepo) UpdateLastLogout(_ context.Context, id string, at time.Time) error {
	return r.setTime(id, func(u *userdomain.User) { u.LastLogoutAt = &at })
}

func (r *memUserRepo) UpdateLastActivity(_ context.Context, id string, at time.Time) error {
	return r.setTime(id, func(u *userdomain.User) { u.LastActivityAt = &at })
}

func (r *memUserRepo) setTime(id string, fn func(*userdomain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	if u, ok := r.users[id]; ok {
		fn(u)
	}
	return nil
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions []*sessiondomain.Session
	fail     error
}

func (r *memSessionRepo) Create(_ context.Context, s *sessiondomain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	cp := *s
	r.sessions = append(r.sessions, &cp)
	return nil
}

func (r *memSessionRepo) GetByTokenHash(_ context.Context, tokenHash string) (*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return nil, r.fail
	}
	for _, s := range r.sessions {
		if s.TokenHash == tokenHash {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memSessionRepo) ListByUser(_ context.Context, userID string) ([]*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return nil, r.fail
	}
	var out []*sessiondomain.Session
	for _, s := range r.sessions {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memSessionRepo) UpdateLastUsed(_ context.Context, tokenHash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	for _, s := range r.sessions {
		if s.TokenHash == tokenHash && at.After(s.LastUsedAt) {
			s.LastUsedAt = at
		}
	}
	return nil
}

func (r *memSessionRepo) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.sessions = filterSessions(r.sessions, func(s *sessiondomain.Session) bool {
		return s.TokenHash != tokenHash
	})
	return nil
}

func (r *memSessionRepo) DeleteAllByUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.sessions = filterSessions(r.sessions, func(s *sessiondomain.Session) bool {
		return s.UserID != userID
	})
	return nil
}

func (r *memSessionRepo) DeleteExpiredByUser(_ context.Context, userID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.sessions = filterSessions(r.sessions, func(s *sessiondomain.Session) bool {
		return s.UserID != userID || s.ExpiresAt.After(now)
	})
	return nil
}

func (r *memSessionRepo) CountByUser(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return 0, r.fail
	}
	n := 0
	for _, s := range r.sessions {
		if s.UserID == userID {
			n++
		}
	}
	return n, nil
}

func filterSessions(in []*sessiondomain.Session, keep func(*sessiondomain.Session) bool) []*sessiondomain.Session {
	out := in[:0]
	for _, s := range in {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

type stubPolicy struct {
	result policyengine.AdmissionResult
	err    error
}

func (p *stubPolicy) EvaluateAdmission(_ context.Context, _ *userdomain.User, _ int, _ int) (policyengine.AdmissionResult, error) {
	return p.result, p.err
}

type recordingAudit struct {
	mu      sync.Mutex
	actions []string
}

func (a *recordingAudit) LogEvent(_ context.Context, _ string, action, _ string, _ string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
}

func (a *recordingAudit) has(action string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, got := range a.actions {
		if got == action {
			return true
		}
	}
	return false
}

type testEnv struct {
	svc      *AuthService
	users    *memUserRepo
	sessions *memSessionRepo
	audit    *recordingAudit
}

func newTestEnv(t *testing.T, maxSessions int, policy policyengine.Evaluator) *testEnv {
	t.Helper()
	users := newMemUserRepo()
	sessions := &memSessionRepo{}
	aud := &recordingAudit{}
	svc := NewAuthService(users, sessions, policy, aud,
		security.NewHasher(4), security.NewTestTokenProvider(), maxSessions)
	return &testEnv{svc: svc, users: users, sessions: sessions, audit: aud}
}

func register(t *testing.T, env *testEnv, email string) *AuthResult {
	t.Helper()
	res, err := env.svc.Register(context.Background(), email, "password1", "Test User",
		userdomain.RoleAttendee, RequestMetadata{UserAgent: "go-test", IPAddress: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	return res
}

func TestRegisterAndAuthenticate(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	res := register(t, env, "alice@example.com")

	if res.Token == "" {
		t.Fatal("expected a token from registration")
	}
	if res.User.Role != userdomain.RoleAttendee {
		t.Fatalf("role = %s, want attendee", res.User.Role)
	}
	user, err := env.svc.Authenticate(context.Background(), res.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("email = %s", user.Email)
	}
	if !env.audit.has("register") || !env.audit.has("login") {
		t.Fatalf("audit actions = %v", env.audit.actions)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	register(t, env, "alice@example.com")

	_, err := env.svc.Register(context.Background(), "Alice@Example.COM", "password1", "Alice II",
		userdomain.RoleAttendee, RequestMetadata{})
	if !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Fatalf("err = %v, want ErrEmailAlreadyRegistered", err)
	}
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	_, err := env.svc.Register(context.Background(), "root@example.com", "password1", "Root",
		userdomain.RoleAdmin, RequestMetadata{})
	if err == nil {
		t.Fatal("expected registration with admin role to fail")
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"empty email", "", "password1"},
		{"bad email", "not-an-email", "password1"},
		{"short password", "bob@example.com", "pw1"},
		{"no digit", "bob@example.com", "passwords"},
		{"no letter", "bob@example.com", "12345678"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.Register(context.Background(), tc.email, tc.password, "Bob",
				userdomain.RoleAttendee, RequestMetadata{})
			if err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoginUnknownEmailAndWrongPasswordIndistinguishable(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	register(t, env, "alice@example.com")

	_, errUnknown := env.svc.Login(context.Background(), "nobody@example.com", "password1", RequestMetadata{})
	_, errWrong := env.svc.Login(context.Background(), "alice@example.com", "wrong-pass-9", RequestMetadata{})

	if !errors.Is(errUnknown, ErrInvalidCredentials) || !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Fatalf("errors = %v / %v, want ErrInvalidCredentials for both", errUnknown, errWrong)
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Fatalf("rejection messages differ: %q vs %q", errUnknown, errWrong)
	}
	if !env.audit.has("login_failure") {
		t.Fatal("expected a login_failure audit event")
	}
}

func TestLoginDisabledAccount(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	res := register(t, env, "alice@example.com")

	env.users.mu.Lock()
	env.users.users[res.User.ID].Status = userdomain.UserStatusDisabled
	env.users.mu.Unlock()

	_, err := env.svc.Login(context.Background(), "alice@example.com", "password1", RequestMetadata{})
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("err = %v, want ErrAccountDisabled", err)
	}
}

func TestConcurrentLoginsYieldIndependentSessions(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	res := register(t, env, "alice@example.com")

	second, err := env.svc.Login(context.Background(), "alice@example.com", "password1",
		RequestMetadata{UserAgent: "browser-b"})
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if second.Token == res.Token {
		t.Fatal("two logins produced the same token")
	}

	infos, err := env.svc.ListSessions(context.Background(), res.User.ID)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("sessionCount = %d, want 2", len(infos))
	}

	// Revoking one token leaves the other usable.
	if err := env.svc.Logout(context.Background(), res.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := env.svc.Authenticate(context.Background(), res.Token); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("revoked token err = %v, want ErrSessionRevoked", err)
	}
	if _, err := env.svc.Authenticate(context.Background(), second.Token); err != nil {
		t.Fatalf("surviving token rejected: %v", err)
	}

	infos, err = env.svc.ListSessions(context.Background(), res.User.ID)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("sessionCount after logout = %d, want 1", len(infos))
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	res := register(t, env, "alice@example.com")

	for i := 0; i < 3; i++ {
		if err := env.svc.Logout(context.Background(), res.Token); err != nil {
			t.Fatalf("Logout #%d: %v", i+1, err)
		}
	}
	if err := env.svc.Logout(context.Background(), "never-issued-token"); err != nil {
		t.Fatalf("Logout of unknown token: %v", err)
	}
	u, _ := env.users.GetByID(context.Background(), res.User.ID)
	if u.LastLogoutAt == nil {
		t.Fatal("lastLogoutAt not set")
	}
}

func TestRevokeAllInvalidatesEveryToken(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	res := register(t, env, "alice@example.com")
	second, err := env.svc.Login(context.Background(), "alice@example.com", "password1", RequestMetadata{})
	if err != nil {
		t.Fatalf("second login: %v", err)
	}

	if err := env.svc.RevokeAll(context.Background(), res.User.ID); err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}
	for _, token := range []string{res.Token, second.Token} {
		if _, err := env.svc.Authenticate(context.Background(), token); !errors.Is(err, ErrSessionRevoked) {
			t.Fatalf("err = %v, want ErrSessionRevoked", err)
		}
	}
	infos, err := env.svc.ListSessions(context.Background(), res.User.ID)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("sessionCount after revoke-all = %d, want 0", len(infos))
	}
	if !env.audit.has("revoke_all") {
		t.Fatal("expected a revoke_all audit event")
	}
}

func TestAuthenticateRejectionKinds(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	res := register(t, env, "alice@example.com")

	t.Run("missing token", func(t *testing.T) {
		if _, err := env.svc.Authenticate(context.Background(), ""); !errors.Is(err, ErrMissingToken) {
			t.Fatalf("err = %v", err)
		}
	})
	t.Run("garbage token", func(t *testing.T) {
		if _, err := env.svc.Authenticate(context.Background(), "not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("err = %v", err)
		}
	})
	t.Run("unknown user", func(t *testing.T) {
		tokens := security.NewTestTokenProvider()
		token, _, err := tokens.Issue("ghost-user")
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if _, err := env.svc.Authenticate(context.Background(), token); !errors.Is(err, ErrUserNotFound) {
			t.Fatalf("err = %v", err)
		}
	})
	t.Run("disabled user", func(t *testing.T) {
		env.users.mu.Lock()
		env.users.users[res.User.ID].Status = userdomain.UserStatusDisabled
		env.users.mu.Unlock()
		defer func() {
			env.users.mu.Lock()
			env.users.users[res.User.ID].Status = userdomain.UserStatusActive
			env.users.mu.Unlock()
		}()
		if _, err := env.svc.Authenticate(context.Background(), res.Token); !errors.Is(err, ErrAccountDisabled) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestAuthenticateExpiredTokenPrunesLedger(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	res := register(t, env, "alice@example.com")

	// Mint an already-expired token and plant its ledger row by hand.
	expiredProvider := security.NewTokenProviderWithTTL(-time.Minute)
	expiredToken, expiredAt, err := expiredProvider.Issue(res.User.ID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	planted := &sessiondomain.Session{
		ID:         "expired-session",
		UserID:     res.User.ID,
		TokenHash:  security.HashToken(expiredToken),
		ExpiresAt:  expiredAt,
		CreatedAt:  time.Now().UTC().Add(-time.Hour),
		LastUsedAt: time.Now().UTC().Add(-time.Hour),
	}
	if err := env.sessions.Create(context.Background(), planted); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := env.svc.Authenticate(context.Background(), expiredToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
	// Expiry takes precedence over revocation, and the row is gone afterward.
	if got, _ := env.sessions.GetByTokenHash(context.Background(), planted.TokenHash); got != nil {
		t.Fatal("expired session still in ledger")
	}
	infos, err := env.svc.ListSessions(context.Background(), res.User.ID)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("sessionCount = %d, want only the live session", len(infos))
	}
}

func TestAuthenticateTouchesLastUsed(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	res := register(t, env, "alice@example.com")

	before, _ := env.sessions.GetByTokenHash(context.Background(), security.HashToken(res.Token))
	time.Sleep(10 * time.Millisecond)
	if _, err := env.svc.Authenticate(context.Background(), res.Token); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	after, _ := env.sessions.GetByTokenHash(context.Background(), security.HashToken(res.Token))
	if !after.LastUsedAt.After(before.LastUsedAt) {
		t.Fatalf("lastUsed not advanced: %v -> %v", before.LastUsedAt, after.LastUsedAt)
	}
	if after.LastUsedAt.Before(after.CreatedAt) {
		t.Fatal("lastUsed before createdAt")
	}
	u, _ := env.users.GetByID(context.Background(), res.User.ID)
	if u.LastActivityAt == nil {
		t.Fatal("lastActivityAt not set")
	}
}

func TestSessionCapEvictsOldest(t *testing.T) {
	// Real Rego policy with a cap of 2: the third login evicts the oldest.
	env := newTestEnv(t, 2, policyengine.NewOPAEvaluator(""))
	res := register(t, env, "alice@example.com")
	second, err := env.svc.Login(context.Background(), "alice@example.com", "password1", RequestMetadata{})
	if err != nil {
		t.Fatalf("second login: %v", err)
	}

	third, err := env.svc.Login(context.Background(), "alice@example.com", "password1", RequestMetadata{})
	if err != nil {
		t.Fatalf("third login: %v", err)
	}
	if _, err := env.svc.Authenticate(context.Background(), res.Token); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("oldest token err = %v, want ErrSessionRevoked", err)
	}
	for _, token := range []string{second.Token, third.Token} {
		if _, err := env.svc.Authenticate(context.Background(), token); err != nil {
			t.Fatalf("newer token rejected: %v", err)
		}
	}
}

func TestPolicyDenyBlocksLogin(t *testing.T) {
	env := newTestEnv(t, 0, &stubPolicy{result: policyengine.AdmissionResult{Allow: false}})
	_, err := env.svc.Register(context.Background(), "alice@example.com", "password1", "Alice",
		userdomain.RoleAttendee, RequestMetadata{})
	if !errors.Is(err, ErrLoginNotPermitted) {
		t.Fatalf("err = %v, want ErrLoginNotPermitted", err)
	}
}

func TestStorageFailureSurfacesAsErrStorage(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	res := register(t, env, "alice@example.com")

	env.sessions.mu.Lock()
	env.sessions.fail = errors.New("connection refused")
	env.sessions.mu.Unlock()

	if _, err := env.svc.Authenticate(context.Background(), res.Token); !errors.Is(err, ErrStorage) {
		t.Fatalf("err = %v, want ErrStorage", err)
	}
	if _, err := env.svc.ListSessions(context.Background(), res.User.ID); !errors.Is(err, ErrStorage) {
		t.Fatalf("err = %v, want ErrStorage", err)
	}
	if err := env.svc.Logout(context.Background(), res.Token); !errors.Is(err, ErrStorage) {
		t.Fatalf("err = %v, want ErrStorage", err)
	}
}

func TestListSessionsNeverExposesTokens(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	res := register(t, env, "alice@example.com")

	infos, err := env.svc.ListSessions(context.Background(), res.User.ID)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("len = %d", len(infos))
	}
	if infos[0].UserAgent != "go-test" || infos[0].IPAddress != "10.0.0.1" {
		t.Fatalf("info = %+v", infos[0])
	}
	if infos[0].CreatedAt.IsZero() || infos[0].LastUsedAt.Before(infos[0].CreatedAt) {
		t.Fatalf("timestamps = %+v", infos[0])
	}
}
