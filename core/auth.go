package core

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User represents an authenticated principal returned to handlers.
type User struct {
	ID        int64
	Username  string
	Role      string
	CreatedAt time.Time
}

// Identity is the claim set extracted from a validated access token.
// The token carries exactly these two fields; role and password hash are
// never embedded.
type Identity struct {
	UserID   int64
	Username string
}

// Claims is the JWT payload for issued access tokens.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

var (
	// ErrUserNotFound is returned when no credential exists for the username.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned when the password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrPasswordNotSet is returned when the stored record has no password hash.
	ErrPasswordNotSet = errors.New("password not set for account")
	// ErrTokenInvalid covers missing, malformed, and badly signed tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned once now >= the token expiry.
	ErrTokenExpired = errors.New("token expired")
)

// AuthService defines authentication behaviour.
type AuthService interface {
	Login(username, password string) (token string, user User, err error)
	Register(username, password, role string) (int64, error)
}
