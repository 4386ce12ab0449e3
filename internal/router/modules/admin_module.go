package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/lumenshop/storefront/internal/interface/http"
	"github.com/lumenshop/storefront/internal/interface/middleware"
	"github.com/lumenshop/storefront/internal/domain/repository"
	"github.com/lumenshop/storefront/pkg/helpers"
)

// AdminModule wires endpoints gated on the admin capability.
type AdminModule struct {
	Handler *handlers.AdminHandler
	Users   repository.UserRepository
	JWT     *helpers.JWTManager
}

func NewAdminModule(h *handlers.AdminHandler, users repository.UserRepository, jwt *helpers.JWTManager) *AdminModule {
	return &AdminModule{Handler: h, Users: users, JWT: jwt}
}

func (m *AdminModule) Register(rg *gin.RouterGroup) {
	admin := rg.Group("/admin")
	admin.Use(middleware.Auth(m.JWT), middleware.RequireAdmin(m.Users))
	{
		admin.GET("/users/:id", m.Handler.GetUser)
	}
}
