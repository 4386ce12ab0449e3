package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lumenshop/storefront/internal/container"
	handlers "github.com/lumenshop/storefront/internal/interface/http"
	"github.com/lumenshop/storefront/internal/interface/middleware"
	"github.com/lumenshop/storefront/pkg/helpers"
)

// OTPModule wires the phone-verification endpoints. Both require an
// authenticated caller; the redis key backing the challenge enforces the
// per-phone resend window on top of these IP limits.
type OTPModule struct {
	Handler *handlers.OTPHandler
	JWT     *helpers.JWTManager
}

func NewOTPModule(h *handlers.OTPHandler, jwt *helpers.JWTManager) *OTPModule {
	return &OTPModule{Handler: h, JWT: jwt}
}

func (m *OTPModule) Register(rg *gin.RouterGroup) {
	sendLimiter := middleware.RateLimit(container.GetRedis(), 5, time.Minute, middleware.KeyByIPAndPath(), nil)
	verifyLimiter := middleware.RateLimit(container.GetRedis(), 30, time.Minute, middleware.KeyByIPAndPath(), nil)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.JWT))
	{
		auth.POST("/auth/otp/send", sendLimiter, m.Handler.Send)
		auth.POST("/auth/otp/verify", verifyLimiter, m.Handler.Verify)
	}
}
