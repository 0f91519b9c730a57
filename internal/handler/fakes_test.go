package handler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/storefront/backend/internal/model"
)

type memoryUsers struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]model.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{nextID: 1, rows: make(map[int64]model.User)}
}

func (m *memoryUsers) EnsureUserSchema(ctx context.Context) error { return nil }

func (m *memoryUsers) CreateUser(ctx context.Context, in model.NewUser) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := model.NormalizeEmail(in.Email)
	for _, u := range m.rows {
		if u.Email == email {
			return nil, &pgconn.PgError{Code: "23505"}
		}
	}
	u := model.User{
		ID:           m.nextID,
		Email:        email,
		PasswordHash: in.PasswordHash,
		FullName:     in.FullName,
		Phone:        in.Phone,
		Address:      in.Address,
		Role:         in.Role,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	m.rows[u.ID] = u
	m.nextID++
	return &u, nil
}

func (m *memoryUsers) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = model.NormalizeEmail(email)
	for _, u := range m.rows {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memoryUsers) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (m *memoryUsers) ListUsers(ctx context.Context, limit, offset int) ([]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.User{}
	for id := int64(1); id < m.nextID; id++ {
		if u, ok := m.rows[id]; ok {
			out = append(out, &u)
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

func (m *memoryUsers) UpdateUser(ctx context.Context, id int64, upd model.UserUpdate) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
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
	m.rows[id] = u
	return 1, nil
}

func (m *memoryUsers) DeleteUser(ctx context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return 0, nil
	}
	delete(m.rows, id)
	return 1, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []model.Event
}

func (p *capturePublisher) Publish(ctx context.Context, event model.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) last(eventType string) (model.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].Type == eventType {
			return p.events[i], true
		}
	}
	return model.Event{}, false
}

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(ctx context.Context) error { return s.err }

var errDown = errors.New("connection refused")
