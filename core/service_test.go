package core

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newTestAuthService() (*RepositoryAuthService, *fakeUserRepo, *TokenManager) {
	repo := newFakeUserRepo()
	tokens := NewTokenManager([]byte("test-secret"))
	return NewRepositoryAuthService(repo, tokens), repo, tokens
}

func TestRegisterThenLogin(t *testing.T) {
	svc, _, tokens := newTestAuthService()

	id, err := svc.Register("alice", "s3cret", "user")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	token, user, err := svc.Login("alice", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != id || user.Username != "alice" {
		t.Fatalf("unexpected user: %+v", user)
	}

	identity, err := tokens.Verify(token)
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	if identity.UserID != id || identity.Username != "alice" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestRegisterNeverStoresPlaintext(t *testing.T) {
	svc, repo, _ := newTestAuthService()

	if _, err := svc.Register("alice", "s3cret", "user"); err != nil {
		t.Fatalf("register: %v", err)
	}

	u, err := repo.FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if u.PasswordHash == "s3cret" {
		t.Fatal("plaintext password stored")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, repo, _ := newTestAuthService()
	mustAddUser(t, repo, "bob", "right", "user")

	if _, _, err := svc.Login("bob", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	svc, _, _ := newTestAuthService()

	if _, _, err := svc.Login("ghost", "x"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestLoginPasswordNotSet(t *testing.T) {
	svc, repo, _ := newTestAuthService()
	mustAddUser(t, repo, "svcaccount", "", "user")

	if _, _, err := svc.Login("svcaccount", "anything"); !errors.Is(err, ErrPasswordNotSet) {
		t.Fatalf("expected ErrPasswordNotSet, got %v", err)
	}
}

func TestLoginEmptyInput(t *testing.T) {
	svc, repo, _ := newTestAuthService()
	mustAddUser(t, repo, "alice", "s3cret", "user")

	for _, tc := range []struct{ username, password string }{
		{"", "s3cret"},
		{"alice", ""},
		{"   ", "s3cret"},
	} {
		if _, _, err := svc.Login(tc.username, tc.password); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("login(%q,%q): expected ErrInvalidCredentials, got %v", tc.username, tc.password, err)
		}
	}
}
