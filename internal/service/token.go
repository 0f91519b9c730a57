package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/storefront/backend/internal/config"
	"github.com/storefront/backend/internal/model"
)

type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// Claims is the payload of both token kinds. Only the signing secret and
// lifetime differ between them.
type Claims struct {
	UserID int64     `json:"id"`
	Kind   TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

func (c *Claims) ExpiresAtTime() time.Time {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	accessTTLRaw  string
	now           func() time.Time
}

func NewTokenIssuer(cfg config.AuthConfig) (*TokenIssuer, error) {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, fmt.Errorf("%w: JWT_SECRET is required", ErrMisconfigured)
	}
	if strings.TrimSpace(cfg.JWTRefreshSecret) == "" {
		return nil, fmt.Errorf("%w: JWT_REFRESH_SECRET is required", ErrMisconfigured)
	}
	if cfg.JWTSecret == cfg.JWTRefreshSecret {
		return nil, fmt.Errorf("%w: JWT_SECRET and JWT_REFRESH_SECRET must differ", ErrMisconfigured)
	}

	accessTTL, err := config.ParseDuration(cfg.JWTAccessTTL)
	if err != nil || accessTTL <= 0 {
		return nil, fmt.Errorf("%w: invalid JWT_EXPIRES_IN", ErrMisconfigured)
	}
	refreshTTL, err := config.ParseDuration(cfg.JWTRefreshTTL)
	if err != nil || refreshTTL <= 0 {
		return nil, fmt.Errorf("%w: invalid JWT_REFRESH_EXPIRES_IN", ErrMisconfigured)
	}

	return &TokenIssuer{
		accessSecret:  []byte(cfg.JWTSecret),
		refreshSecret: []byte(cfg.JWTRefreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		accessTTLRaw:  strings.TrimSpace(cfg.JWTAccessTTL),
		now:           time.Now,
	}, nil
}

// AccessTTL is the configured access lifetime as written in the environment ("24h").
func (t *TokenIssuer) AccessTTL() string {
	return t.accessTTLRaw
}

func (t *TokenIssuer) IssueAccess(userID int64) (string, time.Time, error) {
	return t.issue(TokenAccess, userID, t.now().Add(t.accessTTL))
}

func (t *TokenIssuer) IssueRefresh(userID int64) (string, time.Time, error) {
	return t.issue(TokenRefresh, userID, t.now().Add(t.refreshTTL))
}

func (t *TokenIssuer) IssuePair(userID int64) (model.TokenPair, error) {
	access, accessExp, err := t.IssueAccess(userID)
	if err != nil {
		return model.TokenPair{}, err
	}
	refresh, refreshExp, err := t.IssueRefresh(userID)
	if err != nil {
		return model.TokenPair{}, err
	}
	return model.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (t *TokenIssuer) issue(kind TokenKind, userID int64, expiresAt time.Time) (string, time.Time, error) {
	claims := Claims{
		UserID: userID,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(t.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret(kind))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

func (t *TokenIssuer) secret(kind TokenKind) []byte {
	if kind == TokenRefresh {
		return t.refreshSecret
	}
	return t.accessSecret
}

// Verify checks signature, expiry and kind of tokenStr.
func (t *TokenIssuer) Verify(tokenStr string, kind TokenKind) (*Claims, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return nil, ErrTokenMissing
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret(kind), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid || claims.Kind != kind || claims.UserID <= 0 {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// DecodeUnverified reads claims without checking the signature. The result is
// for display only and must not drive authorization.
func (t *TokenIssuer) DecodeUnverified(tokenStr string) *Claims {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(tokenStr), claims); err != nil {
		return nil
	}
	return claims
}
