// backend/src/security/identity.go
package security

import (
	"context"
	"errors"
)

type contextKey string

const userIDContextKey contextKey = "userID"

// ErrNoIdentity is returned when no authenticated user is attached to the
// context.
var ErrNoIdentity = errors.New("no authenticated user in context")

// WithUserID attaches the authenticated user id to the context. The auth
// middleware calls this once per request.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext extracts the authenticated user id.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	return userID, ok && userID != ""
}

// ContextIdentity resolves the current user from the request context. It is
// the standard implementation of the service layer's identity provider.
type ContextIdentity struct{}

func (ContextIdentity) CurrentUserID(ctx context.Context) (string, error) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return "", ErrNoIdentity
	}
	return userID, nil
}
