package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lumenshop/storefront/internal/container"
	handlers "github.com/lumenshop/storefront/internal/interface/http"
	"github.com/lumenshop/storefront/internal/interface/middleware"
	"github.com/lumenshop/storefront/pkg/helpers"
)

// CartModule wires the authenticated cart endpoints.
type CartModule struct {
	Handler *handlers.CartHandler
	JWT     *helpers.JWTManager
}

func NewCartModule(h *handlers.CartHandler, jwt *helpers.JWTManager) *CartModule {
	return &CartModule{Handler: h, JWT: jwt}
}

func (m *CartModule) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.JWT))
	auth.Use(middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUserID(), nil))
	{
		auth.GET("/cart", m.Handler.GetCart)
		auth.POST("/cart/merge", m.Handler.Merge)
	}
}
