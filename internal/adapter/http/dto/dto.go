package dto

import (
	"time"

	"points-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// RegisterRequest is the request body for user registration.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50,safe_id"`
	Password string `json:"password" binding:"required,min=8,max=128"`
	FullName string `json:"full_name" binding:"max=100"`
	Email    string `json:"email" binding:"required,email,max=254"`
	Phone    string `json:"phone,omitempty" binding:"omitempty,phone"`
}

// LoginRequest is the request body for user login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterResponse is the response body for successful registration.
type RegisterResponse struct {
	UserID   string          `json:"user_id"`
	WalletID string          `json:"wallet_id"`
	Balance  decimal.Decimal `json:"balance"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// OTPRequest asks for a fresh code for the caller.
type OTPRequest struct {
	Purpose string `json:"purpose" binding:"required"`
}

// OTPResponse acknowledges a generated code. The code itself travels
// over the delivery channel, never in the response.
type OTPResponse struct {
	Purpose   string `json:"purpose"`
	ExpiresIn int64  `json:"expires_in"` // seconds
}

// TransferRequest is the request body for immediate and pending transfers.
// Amounts are accepted as JSON strings or numbers.
type TransferRequest struct {
	ToWalletID  string          `json:"to_wallet_id" binding:"required,max=64,safe_id"`
	Amount      decimal.Decimal `json:"amount" binding:"points"`
	Description string          `json:"description" binding:"required,max=255" sanitize:"trim"`
	OTPCode     string          `json:"otp_code" binding:"omitempty,numeric,max=9"`
}

// ConfirmRequest carries the code that authorizes a pending transfer.
type ConfirmRequest struct {
	OTPCode string `json:"otp_code" binding:"required,numeric,max=9"`
}

// IssueRequest is the request body for minting points from the master supply.
type IssueRequest struct {
	ToWalletID  string          `json:"to_wallet_id" binding:"required,max=64,safe_id"`
	Amount      decimal.Decimal `json:"amount" binding:"points"`
	Description string          `json:"description" binding:"required,max=255" sanitize:"trim"`
	OTPCode     string          `json:"otp_code" binding:"required,numeric,max=9"`
}

// LockRequest sets the lock flag of a wallet.
type LockRequest struct {
	Locked *bool `json:"locked" binding:"required"`
}

// TransferResponse reports the outcome of a committed balance change.
type TransferResponse struct {
	TransactionID string          `json:"transaction_id"`
	Message       string          `json:"message"`
	NewBalance    decimal.Decimal `json:"new_balance"`
}

// WalletResponse is the public view of a wallet.
type WalletResponse struct {
	WalletID  string          `json:"wallet_id"`
	OwnerID   string          `json:"owner_id"`
	Balance   decimal.Decimal `json:"balance"`
	Locked    bool            `json:"is_locked"`
	CreatedAt string          `json:"created_at"`
}

// TransactionResponse is the public view of a ledger entry.
type TransactionResponse struct {
	TransactionID string          `json:"transaction_id"`
	FromWalletID  string          `json:"from_wallet_id"`
	ToWalletID    string          `json:"to_wallet_id"`
	Amount        decimal.Decimal `json:"amount"`
	Type          string          `json:"transaction_type"`
	Status        string          `json:"status"`
	Description   string          `json:"description"`
	Timestamp     string          `json:"timestamp"`
}

// TransactionListResponse wraps a wallet's history.
type TransactionListResponse struct {
	WalletID     string                `json:"wallet_id"`
	Transactions []TransactionResponse `json:"transactions"`
	Count        int                   `json:"count"`
}

// ToWalletResponse converts a domain wallet.
func ToWalletResponse(w *domain.Wallet) WalletResponse {
	return WalletResponse{
		WalletID:  w.ID,
		OwnerID:   w.OwnerID,
		Balance:   w.Balance,
		Locked:    w.Locked,
		CreatedAt: w.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ToTransactionList converts a history slice, preserving order.
func ToTransactionList(walletID string, txs []domain.Transaction) TransactionListResponse {
	items := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		items = append(items, TransactionResponse{
			TransactionID: tx.ID,
			FromWalletID:  tx.FromWalletID,
			ToWalletID:    tx.ToWalletID,
			Amount:        tx.Amount,
			Type:          string(tx.Type),
			Status:        string(tx.Status),
			Description:   tx.Description,
			Timestamp:     tx.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	return TransactionListResponse{WalletID: walletID, Transactions: items, Count: len(items)}
}
