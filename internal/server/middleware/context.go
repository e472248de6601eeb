package middleware

import (
	"context"

	userdomain "ticketflow/backend/internal/user/domain"
)

type contextKey struct{ name string }

var (
	userKey  = contextKey{"user"}
	tokenKey = contextKey{"token"}
)

// WithIdentity returns a context with the resolved user and raw bearer token
// set. Handlers read these via GetUser and GetToken.
func WithIdentity(ctx context.Context, user *userdomain.User, token string) context.Context {
	ctx = context.WithValue(ctx, userKey, user)
	ctx = context.WithValue(ctx, tokenKey, token)
	return ctx
}

// GetUser returns the authenticated user from context and true if set;
// otherwise nil, false.
func GetUser(ctx context.Context) (*userdomain.User, bool) {
	u, ok := ctx.Value(userKey).(*userdomain.User)
	return u, ok && u != nil
}

// GetToken returns the raw bearer token from context and true if set.
func GetToken(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tokenKey).(string)
	return t, ok && t != ""
}
