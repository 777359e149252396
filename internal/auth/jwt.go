package auth

import (
	"errors"
	"time"

	"voice-platform/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SocketTokenTTL bounds how long a websocket token can be replayed.
const SocketTokenTTL = 60 * time.Second

var (
	ErrTokenType       = errors.New("auth: token_type mismatch")
	ErrMissingIdentity = errors.New("auth: user_id and business_id required")
	ErrMissingRole     = errors.New("auth: role missing")
)

type Manager struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return &Manager{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.JWTIssuer,
		audience:   cfg.JWTAudience,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
	}, nil
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// IssuePair issues an access token and a role-less refresh token.
func (m *Manager) IssuePair(now time.Time, userID, businessID, role string) (TokenPair, error) {
	access, err := m.issue(now, TokenTypeAccess, userID, businessID, role, m.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := m.issue(now, TokenTypeRefresh, userID, businessID, "", m.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// IssueSocketToken exchanges an authenticated identity for a websocket token.
func (m *Manager) IssueSocketToken(now time.Time, userID, businessID, role string) (string, error) {
	return m.issue(now, TokenTypeSocket, userID, businessID, role, SocketTokenTTL)
}

func (m *Manager) Verify(tokenString string, expected TokenType, now time.Time) (Claims, error) {
	var claims Claims

	// Claims are validated below against the caller's clock, not wall time.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if _, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}); err != nil {
		return Claims{}, err
	}

	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30 * time.Second),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}
	if err := jwt.NewValidator(opts...).Validate(claims.RegisteredClaims); err != nil {
		return Claims{}, err
	}

	switch {
	case claims.TokenType != expected:
		return Claims{}, ErrTokenType
	case claims.UserID == "" || claims.BusinessID == "":
		return Claims{}, ErrMissingIdentity
	case expected.carriesRole() && claims.Role == "":
		return Claims{}, ErrMissingRole
	}
	return claims, nil
}

func (m *Manager) issue(now time.Time, tokenType TokenType, userID, businessID, role string, ttl time.Duration) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Audience:  audienceOrNil(m.audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		UserID:     userID,
		BusinessID: businessID,
		Role:       role,
		TokenType:  tokenType,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func audienceOrNil(aud string) jwt.ClaimStrings {
	if aud == "" {
		return nil
	}
	return jwt.ClaimStrings{aud}
}
