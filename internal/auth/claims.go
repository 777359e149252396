package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
	// TokenTypeSocket is a short-lived token for the event websocket. It may
	// travel in a query string, so it is valid for SocketTokenTTL only.
	TokenTypeSocket TokenType = "socket"
)

// Claims are the only supported JWT claims shape for this service.
// Multi-tenant invariant: BusinessID must be present; every call flow is scoped by it.
type Claims struct {
	jwt.RegisteredClaims

	UserID     string    `json:"user_id"`
	BusinessID string    `json:"business_id"`
	Role       string    `json:"role"`
	TokenType  TokenType `json:"token_type"`
}

// carriesRole reports whether tokens of this type must name a role.
func (t TokenType) carriesRole() bool {
	return t == TokenTypeAccess || t == TokenTypeSocket
}
