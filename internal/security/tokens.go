package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Sentinel error kinds for token verification. Callers map all of these to a
// uniform client-facing message; the distinction exists for logging and for
// the expiry-before-revocation precedence check.
var (
	// ErrTokenMalformed is returned when the token structure is unparseable.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenSignature is returned when the signature, algorithm, issuer, or
	// audience check fails. Tampered payloads land here too.
	ErrTokenSignature = errors.New("token signature invalid")
	// ErrTokenExpired is returned when the embedded expiry has passed.
	ErrTokenExpired = errors.New("token expired")
)

// Claims holds the JWT claims for a bearer token. Subject is the user ID.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenProvider issues and verifies HS256 bearer tokens signed with a shared
// secret. It is stateless: revocation is the session ledger's job, not the
// codec's.
type TokenProvider struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
}

// NewTokenProvider returns a TokenProvider that signs with secret.
// issuer and audience are set on claims and validated on Verify.
func NewTokenProvider(secret []byte, issuer, audience string, ttl time.Duration) *TokenProvider {
	return &TokenProvider{secret: secret, issuer: issuer, audience: audience, ttl: ttl}
}

// TTL returns the configured token lifetime.
func (p *TokenProvider) TTL() time.Duration { return p.ttl }

// Issue issues a bearer token for the given user. Returns the token string and
// its expiration time. Two calls with the same user ID produce distinct tokens
// (random jti plus issuance time).
func (p *TokenProvider) Issue(userID string) (token string, expiresAt time.Time, err error) {
	return p.issue(userID, p.ttl)
}

func (p *TokenProvider) issue(userID string, ttl time.Duration) (string, time.Time, error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify parses and validates the token (signature, exp, iss, aud) and returns
// the user ID. Errors are one of ErrTokenMalformed, ErrTokenSignature, or
// ErrTokenExpired.
func (p *TokenProvider) Verify(tokenString string) (userID string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenSignature
		}
		return p.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return "", ErrTokenMalformed
		default:
			return "", ErrTokenSignature
		}
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", ErrTokenSignature
	}
	if claims.Issuer != p.issuer {
		return "", ErrTokenSignature
	}
	audOK := false
	for _, a := range claims.Audience {
		if a == p.audience {
			audOK = true
			break
		}
	}
	if !audOK {
		return "", ErrTokenSignature
	}
	return claims.Subject, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
