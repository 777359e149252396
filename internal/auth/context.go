package auth

import (
	"context"
	"errors"
)

var (
	errNoUser     = errors.New("user_id not in context")
	errNoBusiness = errors.New("business_id not in context")
	errNoRole     = errors.New("role not in context")
)

// Identity is the verified caller attached to a request by the token middleware.
type Identity struct {
	UserID     string `json:"user_id"`
	BusinessID string `json:"business_id"`
	Role       string `json:"role"`
}

type identityKey struct{}

func WithIdentity(ctx context.Context, userID, businessID, role string) context.Context {
	return context.WithValue(ctx, identityKey{}, Identity{UserID: userID, BusinessID: businessID, Role: role})
}

// IdentityFrom returns the caller, or the zero Identity on unauthenticated paths.
func IdentityFrom(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}

func UserID(ctx context.Context) (string, error) {
	return nonEmpty(IdentityFrom(ctx).UserID, errNoUser)
}

func BusinessID(ctx context.Context) (string, error) {
	return nonEmpty(IdentityFrom(ctx).BusinessID, errNoBusiness)
}

func Role(ctx context.Context) (string, error) {
	return nonEmpty(IdentityFrom(ctx).Role, errNoRole)
}

func nonEmpty(s string, err error) (string, error) {
	if s == "" {
		return "", err
	}
	return s, nil
}
