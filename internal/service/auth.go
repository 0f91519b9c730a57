package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/db"
	"github.com/storefront/backend/internal/metrics"
	"github.com/storefront/backend/internal/model"
	"go.uber.org/zap"
)

const minPasswordLength = 6

// UserStore is the credential store. *db.Postgres satisfies it.
type UserStore interface {
	EnsureUserSchema(ctx context.Context) error
	CreateUser(ctx context.Context, in model.NewUser) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, userID int64) (*model.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*model.User, error)
	UpdateUser(ctx context.Context, userID int64, upd model.UserUpdate) (int64, error)
	DeleteUser(ctx context.Context, userID int64) (int64, error)
}

// TokenDenylist records revoked token ids until the token would have expired anyway.
type TokenDenylist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event model.Event) error
}

type AuthService struct {
	users    UserStore
	hasher   *PasswordHasher
	tokens   *TokenIssuer
	denylist TokenDenylist
	events   EventPublisher
	logger   *zap.Logger
}

type AuthOption func(*AuthService)

// WithDenylist enables server-side revocation on logout and refresh rotation.
func WithDenylist(d TokenDenylist) AuthOption {
	return func(s *AuthService) { s.denylist = d }
}

func WithEvents(p EventPublisher) AuthOption {
	return func(s *AuthService) { s.events = p }
}

func WithLogger(l *zap.Logger) AuthOption {
	return func(s *AuthService) { s.logger = l }
}

func NewAuthService(users UserStore, hasher *PasswordHasher, tokens *TokenIssuer, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AuthService) EnsureSchema(ctx context.Context) error {
	return s.users.EnsureUserSchema(ctx)
}

// EnsureAdmin creates an admin account at boot when one is configured and
// the email is not yet registered.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = model.NormalizeEmail(email)
	if email == "" && password == "" {
		return nil
	}
	if email == "" || strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: ADMIN_EMAIL/ADMIN_PASSWORD must be set together", ErrMisconfigured)
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: ADMIN_PASSWORD is too short", ErrMisconfigured)
	}

	_, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !db.IsNoRows(err) {
		return err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}

	user, err := s.users.CreateUser(ctx, model.NewUser{
		Email:        email,
		PasswordHash: hash,
		FullName:     "Administrator",
		Role:         model.RoleAdmin,
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil
		}
		return err
	}
	s.logger.Info("Admin account created", zap.Int64("user_id", user.ID), zap.String("email", user.Email))
	return nil
}

// AccessTTL is the configured access lifetime string reported to clients as expiresIn.
func (s *AuthService) AccessTTL() string {
	return s.tokens.AccessTTL()
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (*model.AuthResult, error) {
	email := model.NormalizeEmail(req.Email)
	fullName := strings.TrimSpace(req.FullName)

	verr := &ValidationError{}
	if !validEmail(email) {
		verr.Add("email", "Email không hợp lệ")
	}
	if len(req.Password) < minPasswordLength {
		verr.Add("mat_khau", fmt.Sprintf("Mật khẩu phải có ít nhất %d ký tự", minPasswordLength))
	}
	if fullName == "" {
		verr.Add("ho_ten", "Họ tên là bắt buộc")
	}
	if err := verr.orNil(); err != nil {
		metrics.RegistrationAttemptsTotal.WithLabelValues(metrics.StatusFailure).Inc()
		return nil, err
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		metrics.RegistrationAttemptsTotal.WithLabelValues(metrics.StatusFailure).Inc()
		return nil, ErrEmailTaken
	} else if !db.IsNoRows(err) {
		metrics.RegistrationAttemptsTotal.WithLabelValues(metrics.StatusError).Inc()
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		metrics.RegistrationAttemptsTotal.WithLabelValues(metrics.StatusError).Inc()
		return nil, err
	}

	user, err := s.users.CreateUser(ctx, model.NewUser{
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Phone:        strings.TrimSpace(req.Phone),
		Address:      strings.TrimSpace(req.Address),
		Role:         model.RoleStandard,
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			metrics.RegistrationAttemptsTotal.WithLabelValues(metrics.StatusFailure).Inc()
			return nil, ErrEmailTaken
		}
		metrics.RegistrationAttemptsTotal.WithLabelValues(metrics.StatusError).Inc()
		return nil, err
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		metrics.RegistrationAttemptsTotal.WithLabelValues(metrics.StatusError).Inc()
		return nil, err
	}

	metrics.RegistrationAttemptsTotal.WithLabelValues(metrics.StatusSuccess).Inc()
	s.publish(ctx, newEvent(model.EventUserRegistered, user, map[string]string{"ho_ten": user.FullName}))
	return &model.AuthResult{User: user.Public(), Tokens: pair}, nil
}

// Login checks the password before the lock flag so that a locked account
// only reveals itself to someone holding the right password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.AuthResult, error) {
	email = model.NormalizeEmail(email)

	verr := &ValidationError{}
	if email == "" {
		verr.Add("email", "Email là bắt buộc")
	}
	if password == "" {
		verr.Add("password", "Mật khẩu là bắt buộc")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if db.IsNoRows(err) {
			s.hasher.VerifyDummy(password)
			metrics.LoginAttemptsTotal.WithLabelValues(metrics.StatusFailure).Inc()
			return nil, ErrInvalidCredentials
		}
		metrics.LoginAttemptsTotal.WithLabelValues(metrics.StatusError).Inc()
		return nil, err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		metrics.LoginAttemptsTotal.WithLabelValues(metrics.StatusFailure).Inc()
		return nil, ErrInvalidCredentials
	}

	if user.Locked {
		metrics.LoginAttemptsTotal.WithLabelValues(metrics.StatusLocked).Inc()
		return nil, ErrAccountLocked
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, err
	}

	metrics.LoginAttemptsTotal.WithLabelValues(metrics.StatusSuccess).Inc()
	return &model.AuthResult{User: user.Public(), Tokens: pair}, nil
}

// Authenticate verifies token as kind, then re-reads the user so that lock and
// role changes apply immediately. The returned user has no password hash.
func (s *AuthService) Authenticate(ctx context.Context, token string, kind TokenKind) (*model.User, *Claims, error) {
	claims, err := s.tokens.Verify(token, kind)
	if err != nil {
		return nil, nil, err
	}

	if s.denylist != nil && claims.ID != "" {
		revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, nil, err
		}
		if revoked {
			return nil, nil, ErrTokenRevoked
		}
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil, ErrTokenStale
		}
		return nil, nil, err
	}
	if user.Locked {
		return nil, nil, ErrAccountLocked
	}

	return user.Public(), claims, nil
}

// Refresh exchanges a valid refresh token for a new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*model.AuthResult, error) {
	user, claims, err := s.Authenticate(ctx, refreshToken, TokenRefresh)
	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues(metrics.StatusFailure).Inc()
		return nil, err
	}
	return s.Rotate(ctx, user, claims)
}

// Rotate issues a new pair for a user whose refresh token was already
// authenticated. With a denylist the old refresh token is revoked so it
// cannot be replayed.
func (s *AuthService) Rotate(ctx context.Context, user *model.User, claims *Claims) (*model.AuthResult, error) {
	if user == nil || claims == nil || claims.Kind != TokenRefresh {
		metrics.TokenRefreshTotal.WithLabelValues(metrics.StatusFailure).Inc()
		return nil, ErrTokenInvalid
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues(metrics.StatusError).Inc()
		return nil, err
	}

	s.revoke(ctx, claims)
	metrics.TokenRefreshTotal.WithLabelValues(metrics.StatusSuccess).Inc()
	return &model.AuthResult{User: user, Tokens: pair}, nil
}

// Logout revokes whichever of the presented tokens still verify. Without a
// denylist it does nothing; the transport layer clears the cookies either way.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) {
	if s.denylist == nil {
		return
	}
	if claims, err := s.tokens.Verify(accessToken, TokenAccess); err == nil {
		s.revoke(ctx, claims)
	}
	if claims, err := s.tokens.Verify(refreshToken, TokenRefresh); err == nil {
		s.revoke(ctx, claims)
	}
}

// DisplayExpiry reads the expiry of token without verifying it.
func (s *AuthService) DisplayExpiry(token string) *time.Time {
	claims := s.tokens.DecodeUnverified(token)
	if claims == nil || claims.ExpiresAt == nil {
		return nil
	}
	exp := claims.ExpiresAtTime()
	return &exp
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, req model.UpdateProfileRequest) (*model.User, error) {
	var upd model.UserUpdate
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return nil, NewValidationError("ho_ten", "Họ tên không được để trống")
		}
		upd.FullName = &name
	}
	if req.Phone != nil {
		phone := strings.TrimSpace(*req.Phone)
		upd.Phone = &phone
	}
	if req.Address != nil {
		address := strings.TrimSpace(*req.Address)
		upd.Address = &address
	}
	if upd.Empty() {
		return nil, NewValidationError("body", "Không có thông tin nào để cập nhật")
	}

	affected, err := s.users.UpdateUser(ctx, userID, upd)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user.Public(), nil
}

// ChangePassword requires the current password; on mismatch nothing is written.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return NewValidationError("newPassword", fmt.Sprintf("Mật khẩu mới phải có ít nhất %d ký tự", minPasswordLength))
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if db.IsNoRows(err) {
			return ErrNotFound
		}
		return err
	}

	if !s.hasher.Verify(currentPassword, user.PasswordHash) {
		return ErrWrongPassword
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	affected, err := s.users.UpdateUser(ctx, userID, model.UserUpdate{PasswordHash: &hash})
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	s.publish(ctx, newEvent(model.EventPasswordChanged, user, map[string]string{"source": "update-password"}))
	return nil
}

func (s *AuthService) revoke(ctx context.Context, claims *Claims) {
	if s.denylist == nil || claims == nil || claims.ID == "" {
		return
	}
	ttl := time.Until(claims.ExpiresAtTime())
	if err := s.denylist.Revoke(ctx, claims.ID, ttl); err != nil {
		s.logger.Warn("Failed to revoke token",
			zap.Int64("user_id", claims.UserID),
			zap.String("kind", string(claims.Kind)),
			zap.Error(err),
		)
	}
}

// publish never fails the caller; delivery problems are logged and counted.
func (s *AuthService) publish(ctx context.Context, event model.Event) {
	publishEvent(ctx, s.events, s.logger, event)
}

func publishEvent(ctx context.Context, events EventPublisher, logger *zap.Logger, event model.Event) {
	if events == nil {
		return
	}
	if err := events.Publish(ctx, event); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(event.Type, metrics.StatusFailure).Inc()
		logger.Warn("Failed to publish event",
			zap.String("type", event.Type),
			zap.Int64("user_id", event.UserID),
			zap.Error(err),
		)
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues(event.Type, metrics.StatusSuccess).Inc()
}

// validEmail accepts a bare address only; display-name forms such as
// "x <a@b.com>" parse but are rejected.
func validEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func newEvent(eventType string, user *model.User, data map[string]string) model.Event {
	return model.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     user.ID,
		Email:      user.Email,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}
