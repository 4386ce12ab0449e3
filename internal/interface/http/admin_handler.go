package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/lumenshop/storefront/internal/application"
	"github.com/lumenshop/storefront/pkg/response"
)

// AdminHandler serves the admin-gated surface. Access is decided by the
// capability predicate in middleware, not here.
type AdminHandler struct {
	Svc    *application.AuthService
	Logger *logrus.Logger
}

func NewAdminHandler(svc *application.AuthService, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{Svc: svc, Logger: logger}
}

// GetUser GET /api/admin/users/:id
func (h *AdminHandler) GetUser(c *gin.Context) {
	u, err := h.Svc.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error[any](c, http.StatusNotFound, "user not found", nil)
		return
	}
	response.Success(c, http.StatusOK, userSummary(u), "user", nil)
}
