package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/storefront/backend/internal/model"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrConflict      = errors.New("conflict")
	ErrNotFound      = errors.New("not found")
	ErrInvalidOTP    = errors.New("invalid or expired otp")
	ErrMisconfigured = errors.New("auth config invalid")
)

var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	ErrWrongPassword      = fmt.Errorf("%w: current password mismatch", ErrUnauthorized)

	ErrTokenMissing = fmt.Errorf("%w: token missing", ErrUnauthorized)
	ErrTokenInvalid = fmt.Errorf("%w: token invalid", ErrUnauthorized)
	ErrTokenExpired = fmt.Errorf("%w: token expired", ErrUnauthorized)
	ErrTokenStale   = fmt.Errorf("%w: token references a deleted user", ErrUnauthorized)
	ErrTokenRevoked = fmt.Errorf("%w: token revoked", ErrUnauthorized)

	ErrAccountLocked  = fmt.Errorf("%w: account locked", ErrForbidden)
	ErrRoleNotAllowed = fmt.Errorf("%w: role not allowed", ErrForbidden)

	ErrEmailTaken        = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrSelfModification  = fmt.Errorf("%w: admins cannot change their own role, lock or account", ErrInvalidInput)
	ErrInvalidResetToken = fmt.Errorf("%w: reset token", ErrInvalidOTP)
)

// TokenReason returns the sub-reason clients use to decide whether to refresh.
func TokenReason(err error) string {
	switch {
	case errors.Is(err, ErrTokenMissing):
		return "missing"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenStale):
		return "stale"
	case errors.Is(err, ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, ErrTokenInvalid):
		return "invalid"
	default:
		return ""
	}
}

// ValidationError lists field-level problems with a request.
type ValidationError struct {
	Fields []model.FieldError
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []model.FieldError{{Field: field, Message: message}}}
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, model.FieldError{Field: field, Message: message})
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// orNil keeps a nil *ValidationError from becoming a non-nil error interface.
func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}
