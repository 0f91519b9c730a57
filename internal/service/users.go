package service

import (
	"context"
	"time"

	"github.com/storefront/backend/internal/db"
	"github.com/storefront/backend/internal/model"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type AuditNotifier interface {
	NotifyAudit(ctx context.Context, entry model.AuditEntry) error
}

// UserAdminService backs the admin user-management screen.
type UserAdminService struct {
	users  UserStore
	audit  AuditNotifier
	logger *zap.Logger
}

func NewUserAdminService(users UserStore, audit AuditNotifier, logger *zap.Logger) *UserAdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserAdminService{users: users, audit: audit, logger: logger}
}

func (s *UserAdminService) List(ctx context.Context, limit, offset int) ([]*model.User, int, int, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.users.ListUsers(ctx, limit, offset)
	if err != nil {
		return nil, 0, 0, err
	}
	out := make([]*model.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, limit, offset, nil
}

func (s *UserAdminService) Get(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user.Public(), nil
}

func (s *UserAdminService) SetRole(ctx context.Context, actor *model.User, id int64, role model.Role) (*model.User, error) {
	if !role.Valid() {
		return nil, NewValidationError("vai_tro", "Vai trò không hợp lệ")
	}
	if actor.ID == id && role != actor.Role {
		return nil, ErrSelfModification
	}

	user, err := s.update(ctx, id, model.UserUpdate{Role: &role})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, actor, user, model.AuditRoleChanged, "vai_tro="+role.String())
	return user, nil
}

func (s *UserAdminService) SetLocked(ctx context.Context, actor *model.User, id int64, locked bool) (*model.User, error) {
	if actor.ID == id {
		return nil, ErrSelfModification
	}

	user, err := s.update(ctx, id, model.UserUpdate{Locked: &locked})
	if err != nil {
		return nil, err
	}
	action := model.AuditUnlocked
	if locked {
		action = model.AuditLocked
	}
	s.notify(ctx, actor, user, action, "")
	return user, nil
}

func (s *UserAdminService) Delete(ctx context.Context, actor *model.User, id int64) error {
	if actor.ID == id {
		return ErrSelfModification
	}

	target, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return ErrNotFound
		}
		return err
	}

	affected, err := s.users.DeleteUser(ctx, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	s.notify(ctx, actor, target, model.AuditDeleted, "")
	return nil
}

func (s *UserAdminService) update(ctx context.Context, id int64, upd model.UserUpdate) (*model.User, error) {
	affected, err := s.users.UpdateUser(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *UserAdminService) notify(ctx context.Context, actor, target *model.User, action, detail string) {
	s.logger.Info("Admin action",
		zap.String("action", action),
		zap.Int64("actor_id", actor.ID),
		zap.Int64("target_id", target.ID),
	)
	if s.audit == nil {
		return
	}
	entry := model.AuditEntry{
		Action:      action,
		ActorID:     actor.ID,
		ActorEmail:  actor.Email,
		TargetID:    target.ID,
		TargetEmail: target.Email,
		Detail:      detail,
		At:          time.Now().UTC(),
	}
	if err := s.audit.NotifyAudit(ctx, entry); err != nil {
		s.logger.Warn("Failed to send audit notification", zap.String("action", action), zap.Error(err))
	}
}
