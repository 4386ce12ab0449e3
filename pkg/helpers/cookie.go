package helpers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RefreshCookieName is the only cookie this service sets. The access token is
// bearer-transmitted and never written to a cookie.
const RefreshCookieName = "refreshToken"

type CookieManager struct {
	Domain string
	Secure bool
}

func NewCookie(domain string, secure bool) *CookieManager {
	return &CookieManager{Domain: domain, Secure: secure}
}

// SetRefresh attaches the refresh token as an HTTP-only, same-site-strict cookie.
func (m *CookieManager) SetRefresh(c *gin.Context, refresh string, exp time.Time) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(RefreshCookieName, refresh, maxAgeFrom(exp), "/", m.Domain, m.Secure, true)
}

func (m *CookieManager) ClearRefresh(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(RefreshCookieName, "", -1, "/", m.Domain, m.Secure, true)
}

func maxAgeFrom(exp time.Time) int {
	sec := int(time.Until(exp).Seconds())
	if sec < 0 {
		return 0
	}
	return sec
}
