package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/lumenshop/storefront/internal/application"
	"github.com/lumenshop/storefront/pkg/response"
	"github.com/lumenshop/storefront/pkg/validation"
)

type OTPHandler struct {
	Svc    *application.OTPService
	Logger *logrus.Logger
}

func NewOTPHandler(svc *application.OTPService, logger *logrus.Logger) *OTPHandler {
	return &OTPHandler{Svc: svc, Logger: logger}
}

type otpSendRequest struct {
	Phone string `json:"phone" binding:"required,phone"`
}

type otpVerifyRequest struct {
	Phone string `json:"phone" binding:"required,phone"`
	Code  string `json:"code" binding:"required,otpcode"`
}

// Send POST /api/auth/otp/send
func (h *OTPHandler) Send(c *gin.Context) {
	var req otpSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	phone, err := validation.NormalizePhone(req.Phone)
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", map[string]string{"phone": "must be a valid phone number"})
		return
	}
	retryAfter, err := h.Svc.SendChallenge(c.Request.Context(), phone)
	if err != nil {
		if errors.Is(err, application.ErrOTPThrottled) {
			response.Error[any](c, http.StatusTooManyRequests, "code already sent", map[string]any{"retryAfterSeconds": int(retryAfter.Seconds())})
			return
		}
		response.Error[any](c, http.StatusInternalServerError, "failed to send code", nil)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"sent": true}, "code sent", nil)
}

// Verify POST /api/auth/otp/verify
func (h *OTPHandler) Verify(c *gin.Context) {
	var req otpVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	phone, err := validation.NormalizePhone(req.Phone)
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", map[string]string{"phone": "must be a valid phone number"})
		return
	}
	err = h.Svc.Verify(c.Request.Context(), c.GetString("userID"), phone, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, application.ErrOTPExpired):
			response.Error[any](c, http.StatusGone, "code expired", nil)
		case errors.Is(err, application.ErrOTPMismatch):
			response.Error[any](c, http.StatusBadRequest, "incorrect code", nil)
		case errors.Is(err, application.ErrOTPTooManyAttempts):
			response.Error[any](c, http.StatusTooManyRequests, "too many attempts, request a new code", nil)
		case errors.Is(err, application.ErrUserNotFound):
			response.Error[any](c, http.StatusNotFound, "user not found", nil)
		default:
			response.Error[any](c, http.StatusInternalServerError, "verification failed", nil)
		}
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"verified": true}, "mobile verified", nil)
}
