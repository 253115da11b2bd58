package handler

import (
	"points-ledger/internal/adapter/http/dto"
	"points-ledger/internal/adapter/http/middleware"
	"points-ledger/internal/core/ports"
	"points-ledger/pkg/apperror"
	"points-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminHandler exposes supply management. Routes sit behind RequireAdmin.
type AdminHandler struct {
	transferSvc ports.TransferService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(transferSvc ports.TransferService) *AdminHandler {
	return &AdminHandler{transferSvc: transferSvc}
}

// Issue handles POST /api/v1/admin/issue.
func (h *AdminHandler) Issue(c *gin.Context) {
	adminID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.transferSvc.IssuePointsFromMaster(c.Request.Context(), ports.IssueRequest{
		AdminID:     adminID,
		ToWalletID:  req.ToWalletID,
		Amount:      req.Amount,
		Description: req.Description,
		OTPCode:     req.OTPCode,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toTransferResponse(result))
}

// SetLock handles PUT /api/v1/admin/wallets/:id/lock.
func (h *AdminHandler) SetLock(c *gin.Context) {
	var req dto.LockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	wallet, err := h.transferSvc.SetWalletLocked(c.Request.Context(), c.Param("id"), *req.Locked)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToWalletResponse(wallet))
}

// GetWallet handles GET /api/v1/admin/wallets/:id.
func (h *AdminHandler) GetWallet(c *gin.Context) {
	wallet, err := h.transferSvc.GetWallet(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToWalletResponse(wallet))
}

// Transactions handles GET /api/v1/admin/wallets/:id/transactions.
func (h *AdminHandler) Transactions(c *gin.Context) {
	walletID := c.Param("id")
	txs, err := history(c, h.transferSvc, walletID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToTransactionList(walletID, txs))
}

// Supply handles GET /api/v1/admin/supply.
func (h *AdminHandler) Supply(c *gin.Context) {
	stats, err := h.transferSvc.SupplyStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}
