package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/lumenshop/storefront/internal/application"
	"github.com/lumenshop/storefront/internal/domain/entity"
	"github.com/lumenshop/storefront/pkg/helpers"
	"github.com/lumenshop/storefront/pkg/response"
	"github.com/lumenshop/storefront/pkg/validation"
)

type AuthHandler struct {
	Svc     *application.AuthService
	Logger  *logrus.Logger
	Cookies *helpers.CookieManager
}

func NewAuthHandler(svc *application.AuthService, logger *logrus.Logger, cookieDomain string, cookieSecure bool) *AuthHandler {
	return &AuthHandler{Svc: svc, Logger: logger, Cookies: helpers.NewCookie(cookieDomain, cookieSecure)}
}

type registerRequest struct {
	Phone     string `json:"phone" binding:"required,phone"`
	Password  string `json:"password" binding:"required,pwd"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
}

type loginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type updateProfileRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func userSummary(u *entity.User) gin.H {
	return gin.H{
		"id":             u.ID,
		"phone":          u.Phone,
		"firstName":      u.FirstName,
		"lastName":       u.LastName,
		"role":           u.Role.String(),
		"mobileVerified": u.MobileVerified,
		"createdAt":      u.CreatedAt,
		"updatedAt":      u.UpdatedAt,
	}
}

// Register POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Svc.Register(c.Request.Context(), application.RegisterInput{
		Phone:     req.Phone,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		switch {
		case errors.Is(err, application.ErrDuplicatePhone):
			response.Error[any](c, http.StatusBadRequest, "phone already registered", nil)
		case errors.Is(err, application.ErrInvalidPhone):
			response.Error[any](c, http.StatusBadRequest, "invalid payload", map[string]string{"phone": "must be a valid phone number"})
		default:
			response.Error[any](c, http.StatusInternalServerError, "registration failed", nil)
		}
		return
	}
	response.Success(c, http.StatusCreated, userSummary(u), "registered", nil)
}

// Login POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, pair, err := h.Svc.Login(c.Request.Context(), req.Phone, req.Password)
	if err != nil {
		response.Error[any](c, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}
	h.Cookies.SetRefresh(c, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, gin.H{
		"accessToken": pair.AccessToken,
		"user":        userSummary(u),
	}, "login successful", map[string]any{"access_expires_at": pair.AccessTokenExpiry})
}

// Refresh POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	refresh, err := c.Cookie(helpers.RefreshCookieName)
	if err != nil || refresh == "" {
		response.Error[any](c, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}
	pair, _, err := h.Svc.Refresh(c.Request.Context(), refresh)
	if err != nil {
		response.Error[any](c, http.StatusForbidden, "invalid refresh token", nil)
		return
	}
	h.Cookies.SetRefresh(c, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, gin.H{
		"accessToken": pair.AccessToken,
	}, "token refreshed", map[string]any{"access_expires_at": pair.AccessTokenExpiry})
}

// Logout POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	h.Svc.Logout(c.Request.Context(), c.GetString("userID"))
	h.Cookies.ClearRefresh(c)
	response.Success[any](c, http.StatusOK, gin.H{"loggedOut": true}, "logged out", nil)
}

// GetProfile GET /api/auth/profile
func (h *AuthHandler) GetProfile(c *gin.Context) {
	uid := c.GetString("userID")
	u, err := h.Svc.GetProfile(c.Request.Context(), uid)
	if err != nil {
		response.Error[any](c, http.StatusNotFound, "user not found", nil)
		return
	}
	response.Success(c, http.StatusOK, userSummary(u), "profile", nil)
}

// UpdateProfile PUT /api/auth/profile
// Only firstName/lastName are honored; any other field is silently ignored.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	uid := c.GetString("userID")
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Svc.UpdateProfile(c.Request.Context(), uid, application.UpdateProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		if errors.Is(err, application.ErrUserNotFound) {
			response.Error[any](c, http.StatusNotFound, "user not found", nil)
			return
		}
		response.Error[any](c, http.StatusBadRequest, "failed to update profile", nil)
		return
	}
	response.Success(c, http.StatusOK, userSummary(u), "profile updated", nil)
}
