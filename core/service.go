package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

// RepositoryAuthService verifies credentials against the user repository
// and issues access tokens on success.
type RepositoryAuthService struct {
	users  UserRepository
	tokens *TokenManager
}

func NewRepositoryAuthService(users UserRepository, tokens *TokenManager) *RepositoryAuthService {
	return &RepositoryAuthService{users: users, tokens: tokens}
}

// Login looks up the credential, verifies the password, and signs a token.
// Each step short-circuits; the repository is only read, never written.
func (s *RepositoryAuthService) Login(username, password string) (string, User, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return "", User{}, ErrInvalidCredentials
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", User{}, ErrUserNotFound
		}
		return "", User{}, err
	}

	// Accounts may exist without a password (e.g., externally provisioned).
	if u.PasswordHash == "" {
		return "", User{}, ErrPasswordNotSet
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", User{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(u.ID, u.Username)
	if err != nil {
		return "", User{}, err
	}

	return token, User{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}, nil
}

// Register hashes the password before anything touches persistence.
// The plaintext never reaches the repository or the logs.
func (s *RepositoryAuthService) Register(username, password, role string) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	return s.users.Create(ctx, username, string(hash), role)
}
