package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBootstrapAdminIdempotent(t *testing.T) {
	repo := newFakeUserRepo()
	cfg := Config{
		BootstrapAdminEnabled:    true,
		InitialAdminPasswordPath: filepath.Join(t.TempDir(), "pw.secret"),
	}
	ctx := context.Background()

	if err := BootstrapAdmin(ctx, repo, cfg); err != nil {
		t.Fatalf("first bootstrap: %v", err)
	}
	if err := BootstrapAdmin(ctx, repo, cfg); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}

	_, total, err := repo.List(ctx, 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected exactly one user after two bootstraps, got %d", total)
	}

	// The written password must match the stored hash.
	b, err := os.ReadFile(cfg.InitialAdminPasswordPath)
	if err != nil {
		t.Fatalf("read password file: %v", err)
	}
	password := strings.TrimSuffix(string(b), "\n")
	u, err := repo.FindByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("find admin: %v", err)
	}
	if u.Role != "admin" {
		t.Fatalf("unexpected role %s", u.Role)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		t.Fatalf("written password does not match stored hash: %v", err)
	}
}

func TestBootstrapAdminSkipsWhenAdminExists(t *testing.T) {
	repo := newFakeUserRepo()
	mustAddUser(t, repo, "root", "rootpw", "admin")
	path := filepath.Join(t.TempDir(), "pw.secret")
	cfg := Config{BootstrapAdminEnabled: true, InitialAdminPasswordPath: path}

	if err := BootstrapAdmin(context.Background(), repo, cfg); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	_, total, err := repo.List(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected no new user, got %d users", total)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("password file should not be written when admin exists")
	}
}

func TestBootstrapAdminDisabled(t *testing.T) {
	repo := newFakeUserRepo()
	cfg := Config{BootstrapAdminEnabled: false}

	if err := BootstrapAdmin(context.Background(), repo, cfg); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if has, _ := repo.HasAdmin(context.Background()); has {
		t.Fatal("no user should be created when disabled")
	}
}

func TestBootstrapAdminRequiresPasswordPath(t *testing.T) {
	repo := newFakeUserRepo()
	cfg := Config{BootstrapAdminEnabled: true, InitialAdminPasswordPath: ""}

	if err := BootstrapAdmin(context.Background(), repo, cfg); err == nil {
		t.Fatal("expected error for empty password path")
	}
	if has, _ := repo.HasAdmin(context.Background()); has {
		t.Fatal("no user should be created when the path is missing")
	}
}
