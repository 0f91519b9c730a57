package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/storefront/backend/internal/model"
)

// TokenResolver reads a raw token from one place in the request, or "".
type TokenResolver func(c *gin.Context) string

// TokenExtractor tries its resolvers in order and returns the first token found.
type TokenExtractor []TokenResolver

func (e TokenExtractor) Extract(c *gin.Context) string {
	for _, resolve := range e {
		if token := resolve(c); token != "" {
			return token
		}
	}
	return ""
}

var (
	// AccessTokenExtractor: Authorization header, then the "token" cookie.
	AccessTokenExtractor = TokenExtractor{BearerHeader, Cookie(accessCookieName)}

	// RefreshTokenExtractor: JSON body "refreshToken", then the "refreshToken" cookie.
	RefreshTokenExtractor = TokenExtractor{RefreshTokenBody, Cookie(refreshCookieName)}
)

func BearerHeader(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Cookie ignores the placeholder value written on logout.
func Cookie(name string) TokenResolver {
	return func(c *gin.Context) string {
		value, err := c.Cookie(name)
		if err != nil {
			return ""
		}
		value = strings.TrimSpace(value)
		if value == clearedCookieValue {
			return ""
		}
		return value
	}
}

// RefreshTokenBody caches the body so handlers further down can bind it again.
func RefreshTokenBody(c *gin.Context) string {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return ""
	}
	var req model.RefreshRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		return ""
	}
	return strings.TrimSpace(req.RefreshToken)
}
