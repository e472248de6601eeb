package security

import (
	"strings"
	"testing"
	"time"
)

func TestTokenProvider_IssueAndVerify(t *testing.T) {
	p := NewTestTokenProvider()

	token, exp, err := p.Issue("u1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if token == "" {
		t.Fatal("token empty")
	}
	if exp.Before(time.Now()) {
		t.Fatal("expires at in the past")
	}

	uid, err := p.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if uid != "u1" {
		t.Errorf("Verify user: got %q, want %q", uid, "u1")
	}
}

func TestTokenProvider_IssueIsUnpredictable(t *testing.T) {
	p := NewTestTokenProvider()
	a, _, err := p.Issue("u1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	b, _, err := p.Issue("u1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if a == b {
		t.Fatal("two issuances for the same user must produce distinct tokens")
	}
}

func TestTokenProvider_VerifyMalformed(t *testing.T) {
	p := NewTestTokenProvider()
	if _, err := p.Verify("not-a-jwt"); err != ErrTokenMalformed {
		t.Errorf("malformed: want ErrTokenMalformed, got %v", err)
	}
	if _, err := p.Verify(""); err != ErrTokenMalformed {
		t.Errorf("empty: want ErrTokenMalformed, got %v", err)
	}
}

func TestTokenProvider_VerifyWrongSecret(t *testing.T) {
	p := NewTestTokenProvider()
	other := NewTokenProvider([]byte("a-different-secret"), "test-issuer", "test-audience", 15*time.Minute)
	token, _, err := other.Issue("u1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := p.Verify(token); err != ErrTokenSignature {
		t.Errorf("wrong secret: want ErrTokenSignature, got %v", err)
	}
}

func TestTokenProvider_VerifyTamperedPayload(t *testing.T) {
	p := NewTestTokenProvider()
	token, _, err := p.Issue("u1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %d parts", len(parts))
	}
	// Swap the payload for another token's payload; the signature no longer matches.
	token2, _, err := p.Issue("u2")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	tampered := parts[0] + "." + strings.Split(token2, ".")[1] + "." + parts[2]
	if _, err := p.Verify(tampered); err != ErrTokenSignature {
		t.Errorf("tampered payload: want ErrTokenSignature, got %v", err)
	}
}

func TestTokenProvider_VerifyExpired(t *testing.T) {
	p := NewTokenProviderWithTTL(-time.Minute)
	token, _, err := p.Issue("u1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := p.Verify(token); err != ErrTokenExpired {
		t.Errorf("expired: want ErrTokenExpired, got %v", err)
	}
}

func TestTokenProvider_VerifyWrongIssuerAudience(t *testing.T) {
	p := NewTestTokenProvider()
	otherIss := NewTokenProvider([]byte(testSecret), "other-issuer", "test-audience", 15*time.Minute)
	token, _, err := otherIss.Issue("u1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := p.Verify(token); err != ErrTokenSignature {
		t.Errorf("wrong issuer: want ErrTokenSignature, got %v", err)
	}

	otherAud := NewTokenProvider([]byte(testSecret), "test-issuer", "other-audience", 15*time.Minute)
	token, _, err = otherAud.Issue("u1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := p.Verify(token); err != ErrTokenSignature {
		t.Errorf("wrong audience: want ErrTokenSignature, got %v", err)
	}
}
