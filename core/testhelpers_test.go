package core

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// fakeUserRepo is an in-memory UserRepository for tests.
type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*UserRecord
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: map[int64]*UserRecord{}}
}

func (r *fakeUserRepo) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id int64) (*UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) Create(ctx context.Context, username, passwordHash, role string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return 0, errors.New(`duplicate key value violates unique constraint "users_username_key"`)
		}
	}
	id := r.nextID
	r.nextID++
	r.users[id] = &UserRecord{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now(),
	}
	return id, nil
}

func (r *fakeUserRepo) Update(ctx context.Context, id int64, input UserUpdateInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrNoRows
	}
	if input.Username != nil {
		u.Username = *input.Username
	}
	if input.PasswordHash != nil {
		u.PasswordHash = *input.PasswordHash
	}
	if input.Role != nil {
		u.Role = *input.Role
	}
	return nil
}

func (r *fakeUserRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return ErrNoRows
	}
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) HasAdmin(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Role == "admin" {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) List(ctx context.Context, page, perPage int) ([]UserListItem, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	items := make([]UserListItem, 0, perPage)
	start := (page - 1) * perPage
	for i := start; i < len(ids) && i < start+perPage; i++ {
		u := r.users[ids[i]]
		items = append(items, UserListItem{ID: u.ID, Username: u.Username, Role: u.Role, CreatedAt: u.CreatedAt})
	}
	return items, len(ids), nil
}

// mustAddUser inserts a user with a bcrypt-hashed password (MinCost for speed).
func mustAddUser(t *testing.T, repo *fakeUserRepo, username, password, role string) int64 {
	t.Helper()
	hash := ""
	if password != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("hash password: %v", err)
		}
		hash = string(b)
	}
	id, err := repo.Create(context.Background(), username, hash, role)
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return id
}

// newTestRedis spins up a miniredis instance and a client pointed at it.
func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}
