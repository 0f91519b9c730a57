package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/storefront/backend/internal/metrics"
	"github.com/storefront/backend/internal/model"
	"github.com/storefront/backend/internal/service"
	"go.uber.org/zap"
)

const (
	authUserKey   = "auth_user"
	authClaimsKey = "auth_claims"
	authTokenKey  = "auth_token"
	requestIDKey  = "request_id"
)

// Gate resolves the caller before protected handlers run.
type Gate struct {
	svc    *service.AuthService
	logger *zap.Logger
}

func NewGate(svc *service.AuthService, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{svc: svc, logger: logger}
}

// RequireAuth rejects the request unless a valid access token for an
// existing, unlocked user is presented.
func (g *Gate) RequireAuth() gin.HandlerFunc {
	return g.require(AccessTokenExtractor, service.TokenAccess)
}

// RequireRefresh is RequireAuth for refresh tokens.
func (g *Gate) RequireRefresh() gin.HandlerFunc {
	return g.require(RefreshTokenExtractor, service.TokenRefresh)
}

// OptionalAuth attaches the caller when possible and otherwise continues as a guest.
func (g *Gate) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := AccessTokenExtractor.Extract(c)
		if token == "" {
			c.Next()
			return
		}

		user, claims, err := g.svc.Authenticate(c.Request.Context(), token, service.TokenAccess)
		if err != nil {
			if !errors.Is(err, service.ErrUnauthorized) && !errors.Is(err, service.ErrForbidden) {
				g.logger.Warn("Optional authentication failed", zap.Error(err))
			}
			c.Next()
			return
		}

		setAuth(c, user, claims, token)
		c.Next()
	}
}

func (g *Gate) require(extractor TokenExtractor, kind service.TokenKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		token := extractor.Extract(c)
		if token == "" {
			g.reject(c, service.ErrTokenMissing)
			return
		}

		user, claims, err := g.svc.Authenticate(c.Request.Context(), token, kind)
		if err != nil {
			g.reject(c, err)
			return
		}

		setAuth(c, user, claims, token)
		c.Next()
	}
}

func (g *Gate) reject(c *gin.Context, err error) {
	reason := service.TokenReason(err)
	switch {
	case reason != "":
	case errors.Is(err, service.ErrAccountLocked):
		reason = "locked"
	default:
		reason = "error"
	}
	metrics.AuthRejectionsTotal.WithLabelValues(reason).Inc()
	writeError(c, g.logger, err)
}

// RequireRole must run after RequireAuth. Roles are given by alias ("admin",
// "user") or numeric value; an unknown alias is a programming error.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[model.Role]struct{}, len(roles))
	for _, r := range roles {
		role, err := model.ParseRole(r)
		if err != nil {
			panic("handler: RequireRole: " + err.Error())
		}
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		user := GetAuthUser(c)
		if user == nil {
			metrics.AuthRejectionsTotal.WithLabelValues("missing").Inc()
			writeError(c, nil, service.ErrTokenMissing)
			return
		}
		if _, ok := allowed[user.Role]; !ok {
			metrics.AuthRejectionsTotal.WithLabelValues("role").Inc()
			writeError(c, nil, service.ErrRoleNotAllowed)
			return
		}
		c.Next()
	}
}

func setAuth(c *gin.Context, user *model.User, claims *service.Claims, token string) {
	c.Set(authUserKey, user)
	c.Set(authClaimsKey, claims)
	c.Set(authTokenKey, token)
}

// GetAuthUser returns the authenticated caller, without password hash, or nil.
func GetAuthUser(c *gin.Context) *model.User {
	if value, ok := c.Get(authUserKey); ok {
		if user, ok := value.(*model.User); ok {
			return user
		}
	}
	return nil
}

func getAuthClaims(c *gin.Context) *service.Claims {
	if value, ok := c.Get(authClaimsKey); ok {
		if claims, ok := value.(*service.Claims); ok {
			return claims
		}
	}
	return nil
}

func getAuthToken(c *gin.Context) string {
	return c.GetString(authTokenKey)
}

func CORSMiddleware(allowedOrigins []string, allowCredentials bool) gin.HandlerFunc {
	originMap := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		originMap[trimmed] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := originMap[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				if allowCredentials {
					c.Header("Access-Control-Allow-Credentials", "true")
				}
				c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestLogger logs one line per request and feeds the HTTP metrics.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		latency := time.Since(start)

		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(latency.Seconds())

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		}
		if user := GetAuthUser(c); user != nil {
			fields = append(fields, zap.Int64("user_id", user.ID))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("HTTP request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("HTTP request", fields...)
		default:
			logger.Info("HTTP request", fields...)
		}
	}
}
