package auth

import (
	"context"
	"errors"
)

// UserContext carries the authenticated actor through a request.
type UserContext struct {
	UserID string
	Email  string
	Roles  []string
}

type contextKey struct{}

var userContextKey = contextKey{}

// ErrNoUserInContext is returned when a request has no authenticated user.
var ErrNoUserInContext = errors.New("no user in context")

// SetUserInContext stores the user context in the request context.
func SetUserInContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// GetUserFromContext retrieves the user context from the request context.
func GetUserFromContext(ctx context.Context) (*UserContext, error) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	if !ok || user == nil {
		return nil, ErrNoUserInContext
	}
	return user, nil
}
