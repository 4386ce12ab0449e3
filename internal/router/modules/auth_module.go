package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lumenshop/storefront/internal/container"
	handlers "github.com/lumenshop/storefront/internal/interface/http"
	"github.com/lumenshop/storefront/internal/interface/middleware"
	"github.com/lumenshop/storefront/pkg/helpers"
)

// AuthModule wires the identity endpoints.
// Public: POST /api/auth/register, /api/auth/login, /api/auth/refresh
// Protected: POST /api/auth/logout, GET/PUT /api/auth/profile
type AuthModule struct {
	Handler *handlers.AuthHandler
	JWT     *helpers.JWTManager
}

func NewAuthModule(h *handlers.AuthHandler, jwt *helpers.JWTManager) *AuthModule {
	return &AuthModule{Handler: h, JWT: jwt}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	registerLimiter := middleware.RateLimit(container.GetRedis(), 5, time.Minute, middleware.KeyByIPAndPath(), nil)
	loginLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIP(), nil)
	refreshLimiter := middleware.RateLimit(container.GetRedis(), 60, time.Minute, middleware.KeyByIP(), middleware.AllowPrivateIP())

	rg.POST("/auth/register", registerLimiter, m.Handler.Register)
	rg.POST("/auth/login", loginLimiter, m.Handler.Login)
	rg.POST("/auth/refresh", refreshLimiter, m.Handler.Refresh)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.JWT))
	auth.Use(middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUserID(), nil))
	{
		auth.POST("/auth/logout", m.Handler.Logout)
		auth.GET("/auth/profile", m.Handler.GetProfile)
		auth.PUT("/auth/profile", m.Handler.UpdateProfile)
	}
}
