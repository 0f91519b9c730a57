package service

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/storefront/backend/internal/config"
	"github.com/storefront/backend/internal/model"
	"golang.org/x/crypto/bcrypt"
)

type fakeUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{nextID: 1, users: make(map[int64]*model.User)}
}

func (f *fakeUserStore) EnsureUserSchema(ctx context.Context) error { return nil }

func (f *fakeUserStore) CreateUser(ctx context.Context, in model.NewUser) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email := model.NormalizeEmail(in.Email)
	for _, u := range f.users {
		if u.Email == email {
			return nil, &pgconn.PgError{Code: "23505"}
		}
	}
	now := time.Now()
	u := &model.User{
		ID:           f.nextID,
		Email:        email,
		PasswordHash: in.PasswordHash,
		FullName:     in.FullName,
		Phone:        in.Phone,
		Address:      in.Address,
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.users[u.ID] = u
	f.nextID++
	out := *u
	return &out, nil
}

func (f *fakeUserStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = model.NormalizeEmail(email)
	for _, u := range f.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserStore) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *u
	return &out, nil
}

func (f *fakeUserStore) ListUsers(ctx context.Context, limit, offset int) ([]*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.User
	for id := int64(1); id < f.nextID; id++ {
		if u, ok := f.users[id]; ok {
			c := *u
			out = append(out, &c)
		}
	}
	if offset >= len(out) {
		return []*model.User{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeUserStore) UpdateUser(ctx context.Context, userID int64, upd model.UserUpdate) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return 0, nil
	}
	if upd.FullName != nil {
		u.FullName = *upd.FullName
	}
	if upd.Phone != nil {
		u.Phone = *upd.Phone
	}
	if upd.Address != nil {
		u.Address = *upd.Address
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	if upd.Role != nil {
		u.Role = *upd.Role
	}
	if upd.Locked != nil {
		u.Locked = *upd.Locked
	}
	u.UpdatedAt = time.Now()
	return 1, nil
}

func (f *fakeUserStore) DeleteUser(ctx context.Context, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[userID]; !ok {
		return 0, nil
	}
	delete(f.users, userID)
	return 1, nil
}

func (f *fakeUserStore) setLocked(id int64, locked bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id].Locked = locked
}

type fakePublisher struct {
	mu     sync.Mutex
	events []model.Event
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, event model.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeAudit struct {
	entries []model.AuditEntry
}

func (f *fakeAudit) NotifyAudit(ctx context.Context, entry model.AuditEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:        "access-secret",
		JWTRefreshSecret: "refresh-secret",
		JWTAccessTTL:     "24h",
		JWTRefreshTTL:    "7d",
		OTPTTL:           "5m",
		ResetTokenTTL:    "10m",
	}
}

func testAuthConfigWith(secret, refreshSecret string) config.AuthConfig {
	cfg := testAuthConfig()
	cfg.JWTSecret = secret
	cfg.JWTRefreshSecret = refreshSecret
	return cfg
}

func newTestHasher() *PasswordHasher {
	return NewPasswordHasher(bcrypt.MinCost)
}

func mustIssuer(cfg config.AuthConfig) *TokenIssuer {
	issuer, err := NewTokenIssuer(cfg)
	if err != nil {
		panic(err)
	}
	return issuer
}
