package handler

import (
	"time"

	"points-ledger/internal/adapter/http/dto"
	"points-ledger/internal/adapter/http/middleware"
	"points-ledger/internal/core/domain"
	"points-ledger/internal/core/ports"
	"points-ledger/pkg/apperror"
	"points-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// OTPHandler issues one-time codes to the caller.
type OTPHandler struct {
	otp ports.OTPAuthority
	ttl time.Duration
}

// NewOTPHandler creates a new OTPHandler. ttl is only reported back to
// the client; the authority enforces it.
func NewOTPHandler(otp ports.OTPAuthority, ttl time.Duration) *OTPHandler {
	if ttl <= 0 {
		ttl = domain.DefaultOTPTTL
	}
	return &OTPHandler{otp: otp, ttl: ttl}
}

// Request handles POST /api/v1/otp.
func (h *OTPHandler) Request(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.OTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	purpose := domain.OTPPurpose(req.Purpose)
	if _, err := h.otp.Generate(c.Request.Context(), userID, purpose); err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.OTPResponse{
		Purpose:   string(purpose),
		ExpiresIn: int64(h.ttl / time.Second),
	})
}
