package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/model"
)

const (
	accessCookieName    = "token"
	refreshCookieName   = "refreshToken"
	sessionCookieMaxAge = 7 * 24 * 60 * 60
	clearedCookieValue  = "none"
	clearedCookieMaxAge = 10
)

// SessionCookies writes the token pair as HttpOnly SameSite=Strict cookies.
type SessionCookies struct {
	Secure bool
}

func (s SessionCookies) Set(c *gin.Context, pair model.TokenPair) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(accessCookieName, pair.AccessToken, sessionCookieMaxAge, "/", "", s.Secure, true)
	c.SetCookie(refreshCookieName, pair.RefreshToken, sessionCookieMaxAge, "/", "", s.Secure, true)
}

// Clear overwrites both cookies with a placeholder that expires almost immediately.
func (s SessionCookies) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(accessCookieName, clearedCookieValue, clearedCookieMaxAge, "/", "", s.Secure, true)
	c.SetCookie(refreshCookieName, clearedCookieValue, clearedCookieMaxAge, "/", "", s.Secure, true)
}
