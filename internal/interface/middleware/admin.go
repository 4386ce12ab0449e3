package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumenshop/storefront/internal/domain/entity"
	"github.com/lumenshop/storefront/internal/domain/repository"
	"github.com/lumenshop/storefront/pkg/response"
)

// RequireAdmin loads the authenticated user and rejects the request unless the
// admin capability predicate holds. Must run after Auth.
func RequireAdmin(users repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(CtxUserIDKey)
		u, err := users.GetByID(uid)
		if err != nil || !entity.HasAdminCapability(u) {
			response.Error[any](c, http.StatusForbidden, "admin access required", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
