package handler

import (
	"points-ledger/internal/adapter/http/dto"
	"points-ledger/internal/adapter/http/middleware"
	"points-ledger/internal/core/ports"
	"points-ledger/pkg/apperror"
	"points-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// TransferHandler moves points out of the caller's wallet.
type TransferHandler struct {
	transferSvc ports.TransferService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transferSvc ports.TransferService) *TransferHandler {
	return &TransferHandler{transferSvc: transferSvc}
}

// Transfer handles POST /api/v1/transfers.
func (h *TransferHandler) Transfer(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	result, err := h.transferSvc.TransferPoints(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toTransferResponse(result))
}

// Reserve handles POST /api/v1/transfers/pending.
func (h *TransferHandler) Reserve(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	result, err := h.transferSvc.ReserveTransfer(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toTransferResponse(result))
}

// Confirm handles POST /api/v1/transfers/:id/confirm.
func (h *TransferHandler) Confirm(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.transferSvc.ConfirmPending(c.Request.Context(), c.Param("id"), userID, req.OTPCode)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toTransferResponse(result))
}

// Cancel handles POST /api/v1/transfers/:id/cancel.
func (h *TransferHandler) Cancel(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	result, err := h.transferSvc.CancelPending(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toTransferResponse(result))
}

// bind reads the body and fills in the caller's wallet as the source.
func (h *TransferHandler) bind(c *gin.Context) (ports.TransferRequest, bool) {
	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return ports.TransferRequest{}, false
	}
	dto.SanitizeStruct(&req)

	wallet, ok := callerWallet(c, h.transferSvc)
	if !ok {
		return ports.TransferRequest{}, false
	}

	return ports.TransferRequest{
		SubjectID:    wallet.OwnerID,
		FromWalletID: wallet.ID,
		ToWalletID:   req.ToWalletID,
		Amount:       req.Amount,
		Description:  req.Description,
		OTPCode:      req.OTPCode,
	}, true
}

func toTransferResponse(r *ports.TransferResult) dto.TransferResponse {
	return dto.TransferResponse{
		TransactionID: r.TransactionID,
		Message:       r.Message,
		NewBalance:    r.NewBalance,
	}
}
