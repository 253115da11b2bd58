package handler

import (
	"strconv"
	"time"

	"points-ledger/internal/adapter/http/dto"
	"points-ledger/internal/adapter/http/middleware"
	"points-ledger/internal/core/domain"
	"points-ledger/internal/core/ports"
	"points-ledger/pkg/apperror"
	"points-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

const maxHistoryLimit = 500

// WalletHandler serves the caller's own wallet.
type WalletHandler struct {
	transferSvc ports.TransferService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(transferSvc ports.TransferService) *WalletHandler {
	return &WalletHandler{transferSvc: transferSvc}
}

// Me handles GET /api/v1/wallets/me.
func (h *WalletHandler) Me(c *gin.Context) {
	wallet, ok := callerWallet(c, h.transferSvc)
	if !ok {
		return
	}
	response.OK(c, dto.ToWalletResponse(wallet))
}

// Transactions handles GET /api/v1/wallets/me/transactions.
// Query: limit, or from and to as RFC 3339 timestamps.
func (h *WalletHandler) Transactions(c *gin.Context) {
	wallet, ok := callerWallet(c, h.transferSvc)
	if !ok {
		return
	}

	txs, err := history(c, h.transferSvc, wallet.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToTransactionList(wallet.ID, txs))
}

// history reads either the most recent entries or a date range, depending
// on which query parameters are present.
func history(c *gin.Context, svc ports.TransferService, walletID string) ([]domain.Transaction, error) {
	fromRaw, toRaw := c.Query("from"), c.Query("to")
	if fromRaw != "" || toRaw != "" {
		if fromRaw == "" || toRaw == "" {
			return nil, apperror.Validation("from and to must be given together")
		}
		from, err := time.Parse(time.RFC3339, fromRaw)
		if err != nil {
			return nil, apperror.Validation("from must be an RFC 3339 timestamp")
		}
		to, err := time.Parse(time.RFC3339, toRaw)
		if err != nil {
			return nil, apperror.Validation("to must be an RFC 3339 timestamp")
		}
		return svc.GetTransactionHistoryByDate(c.Request.Context(), walletID, from.UTC(), to.UTC())
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			return nil, apperror.Validation("limit must be between 1 and " + strconv.Itoa(maxHistoryLimit))
		}
		limit = n
	}
	return svc.GetTransactionHistory(c.Request.Context(), walletID, limit)
}

// callerWallet resolves the authenticated user's wallet, writing the error
// response itself when it cannot.
func callerWallet(c *gin.Context, svc ports.TransferService) (*domain.Wallet, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return nil, false
	}
	wallet, err := svc.GetWalletByOwner(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return wallet, true
}
