package core

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the fixed lifetime of issued access tokens. Tokens are
// stateless; expiry is the only thing that invalidates them.
const TokenTTL = time.Hour

// TokenManager issues and verifies HS256-signed access tokens.
// The secret is set once at startup and never mutated, so a single
// instance is safe to share across concurrent requests.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager creates a TokenManager with the fixed token lifetime.
func NewTokenManager(secret []byte) *TokenManager {
	return &TokenManager{secret: secret, ttl: TokenTTL}
}

// Issue signs a token asserting the given identity, valid for the TTL.
func (m *TokenManager) Issue(userID int64, username string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify checks signature and expiry and extracts the Identity.
// No leeway: a token is rejected the moment now reaches its expiry.
func (m *TokenManager) Verify(raw string) (Identity, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)

	token, err := parser.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Identity{}, ErrTokenInvalid
	}
	if claims.UserID <= 0 || claims.Username == "" {
		return Identity{}, ErrTokenInvalid
	}

	return Identity{UserID: claims.UserID, Username: claims.Username}, nil
}
