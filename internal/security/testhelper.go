package security

import "time"

const testSecret = "ticketflow-unit-test-secret"

// NewTestTokenProvider returns a TokenProvider with a fixed secret and a 15m
// TTL. For unit tests only.
func NewTestTokenProvider() *TokenProvider {
	return NewTokenProviderWithTTL(15 * time.Minute)
}

// NewTokenProviderWithTTL returns a test TokenProvider with the given TTL.
// A negative TTL mints tokens that are already expired, which is how tests
// exercise the expiry path without sleeping.
func NewTokenProviderWithTTL(ttl time.Duration) *TokenProvider {
	return NewTokenProvider([]byte(testSecret), "test-issuer", "test-audience", ttl)
}
