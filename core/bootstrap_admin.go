package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"
)

const (
	bootstrapAdminUsername = "admin"
	bootstrapPasswordLen   = 32
)

// BootstrapAdmin creates an initial admin user when none exists.
// It is idempotent: if an admin already exists, it does nothing.
// The generated password only ever goes to the secrets file; it must not
// appear in the shared log, so an empty path is an error rather than a
// log fallback.
func BootstrapAdmin(ctx context.Context, repo UserRepository, cfg Config) error {
	if !cfg.BootstrapAdminEnabled {
		return nil
	}
	if cfg.InitialAdminPasswordPath == "" {
		return errors.New("initial admin password path is required")
	}

	has, err := repo.HasAdmin(ctx)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	password, err := generatePassword(bootstrapPasswordLen)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if _, err := repo.Create(ctx, bootstrapAdminUsername, string(hash), "admin"); err != nil {
		return err
	}

	if err := os.WriteFile(cfg.InitialAdminPasswordPath, []byte(password+"\n"), 0o600); err != nil {
		return err
	}
	log.Printf("initial admin %q created; credentials written to %s", bootstrapAdminUsername, cfg.InitialAdminPasswordPath)

	return nil
}

func generatePassword(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("password length must be positive")
	}
	// base64 expands by 4/3, so length random bytes always suffice.
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw)[:length], nil
}
