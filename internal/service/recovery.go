package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/storefront/backend/internal/config"
	"github.com/storefront/backend/internal/db"
	"github.com/storefront/backend/internal/metrics"
	"github.com/storefront/backend/internal/model"
	"github.com/storefront/backend/internal/template"
	"go.uber.org/zap"
)

const (
	otpDigits       = 6
	resetTokenBytes = 32

	// MaxOTPAttempts wrong guesses discard the outstanding code.
	MaxOTPAttempts = 5

	otpKeyPrefix         = "otp:"
	otpAttemptsKeyPrefix = "otp_attempts:"
	resetKeyPrefix       = "reset:"
)

// CodeStore holds short-lived secrets keyed by email. ConsumeIfMatch must
// delete and report success atomically so a code is accepted at most once.
type CodeStore interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	ConsumeIfMatch(ctx context.Context, key, value string) (bool, error)
	CountMiss(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Delete(ctx context.Context, keys ...string) error
}

// RecoveryService drives forgot-password: request OTP, exchange it for a
// reset token, then set a new password with that token.
type RecoveryService struct {
	users    UserStore
	hasher   *PasswordHasher
	codes    CodeStore
	events   EventPublisher
	logger   *zap.Logger
	otpTTL   time.Duration
	resetTTL time.Duration
	random   io.Reader
	now      func() time.Time
}

func NewRecoveryService(users UserStore, hasher *PasswordHasher, codes CodeStore, cfg config.AuthConfig, events EventPublisher, logger *zap.Logger) (*RecoveryService, error) {
	otpTTL, err := config.ParseDuration(cfg.OTPTTL)
	if err != nil || otpTTL <= 0 {
		return nil, fmt.Errorf("%w: invalid OTP_TTL", ErrMisconfigured)
	}
	resetTTL, err := config.ParseDuration(cfg.ResetTokenTTL)
	if err != nil || resetTTL <= 0 {
		return nil, fmt.Errorf("%w: invalid RESET_TOKEN_TTL", ErrMisconfigured)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecoveryService{
		users:    users,
		hasher:   hasher,
		codes:    codes,
		events:   events,
		logger:   logger,
		otpTTL:   otpTTL,
		resetTTL: resetTTL,
		random:   rand.Reader,
		now:      time.Now,
	}, nil
}

// RequestOTP issues a fresh code for email, replacing any earlier one.
// Unknown emails succeed silently.
func (s *RecoveryService) RequestOTP(ctx context.Context, email string) error {
	email = model.NormalizeEmail(email)
	if email == "" {
		return NewValidationError("email", "Email là bắt buộc")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if db.IsNoRows(err) {
			metrics.PasswordResetTotal.WithLabelValues("request", metrics.StatusFailure).Inc()
			return nil
		}
		return err
	}

	code, err := s.newOTP()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	if err := s.codes.Put(ctx, otpKeyPrefix+email, code, s.otpTTL); err != nil {
		return err
	}
	if err := s.codes.Delete(ctx, otpAttemptsKeyPrefix+email); err != nil {
		return err
	}

	if s.events == nil {
		s.logger.Warn("No event publisher configured, OTP cannot be delivered", zap.Int64("user_id", user.ID))
	}

	userData := template.UserDataFromModel(user)
	body := template.RenderBody(template.DefaultPasswordResetBody, &userData, &template.OTPData{
		Code:      code,
		ExpiresIn: s.otpTTL,
		ExpiresAt: s.now().Add(s.otpTTL),
	})
	publishEvent(ctx, s.events, s.logger, newEvent(model.EventPasswordResetRequested, user, map[string]string{
		"subject": template.DefaultPasswordResetSubject,
		"body":    body,
	}))

	metrics.PasswordResetTotal.WithLabelValues("request", metrics.StatusSuccess).Inc()
	return nil
}

// VerifyOTP consumes the code and returns a single-use reset token. After
// MaxOTPAttempts misses the code is discarded and a new one must be requested.
func (s *RecoveryService) VerifyOTP(ctx context.Context, email, code string) (string, error) {
	email = model.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return "", ErrInvalidOTP
	}

	ok, err := s.codes.ConsumeIfMatch(ctx, otpKeyPrefix+email, code)
	if err != nil {
		return "", err
	}
	if !ok {
		metrics.PasswordResetTotal.WithLabelValues("verify", metrics.StatusFailure).Inc()
		if err := s.recordMiss(ctx, email); err != nil {
			return "", err
		}
		return "", ErrInvalidOTP
	}
	if err := s.codes.Delete(ctx, otpAttemptsKeyPrefix+email); err != nil {
		s.logger.Warn("Failed to clear OTP attempt counter", zap.Error(err))
	}

	token, err := s.newResetToken()
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	if err := s.codes.Put(ctx, resetKeyPrefix+email, token, s.resetTTL); err != nil {
		return "", err
	}

	metrics.PasswordResetTotal.WithLabelValues("verify", metrics.StatusSuccess).Inc()
	return token, nil
}

// ResetPassword sets a new password. The password is validated before the
// token is consumed so a typo does not burn the token.
func (s *RecoveryService) ResetPassword(ctx context.Context, email, resetToken, newPassword string) error {
	email = model.NormalizeEmail(email)
	if len(newPassword) < minPasswordLength {
		return NewValidationError("newPassword", fmt.Sprintf("Mật khẩu mới phải có ít nhất %d ký tự", minPasswordLength))
	}

	ok, err := s.codes.ConsumeIfMatch(ctx, resetKeyPrefix+email, strings.TrimSpace(resetToken))
	if err != nil {
		return err
	}
	if !ok {
		metrics.PasswordResetTotal.WithLabelValues("reset", metrics.StatusFailure).Inc()
		return ErrInvalidResetToken
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if db.IsNoRows(err) {
			return ErrInvalidResetToken
		}
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	affected, err := s.users.UpdateUser(ctx, user.ID, model.UserUpdate{PasswordHash: &hash})
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInvalidResetToken
	}

	metrics.PasswordResetTotal.WithLabelValues("reset", metrics.StatusSuccess).Inc()
	publishEvent(ctx, s.events, s.logger, newEvent(model.EventPasswordChanged, user, map[string]string{"source": "reset-password"}))
	return nil
}

func (s *RecoveryService) recordMiss(ctx context.Context, email string) error {
	misses, err := s.codes.CountMiss(ctx, otpAttemptsKeyPrefix+email, s.otpTTL)
	if err != nil {
		return err
	}
	if misses < MaxOTPAttempts {
		return nil
	}
	s.logger.Warn("OTP discarded after too many wrong attempts", zap.Int64("attempts", misses))
	return s.codes.Delete(ctx, otpKeyPrefix+email, otpAttemptsKeyPrefix+email)
}

func (s *RecoveryService) newOTP() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < otpDigits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(s.random, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

func (s *RecoveryService) newResetToken() (string, error) {
	raw := make([]byte, resetTokenBytes)
	if _, err := io.ReadFull(s.random, raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
