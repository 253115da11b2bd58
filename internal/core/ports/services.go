package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"points-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID string, role domain.Role) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID string
	Role   domain.Role
}

// IDGenerator produces unique identifiers for users, wallets and transactions.
type IDGenerator interface {
	NewID() string
}

// OTPStore keeps at most one live code per (subject, purpose).
type OTPStore interface {
	// Save replaces any existing code for the pair.
	Save(ctx context.Context, subjectID string, purpose domain.OTPPurpose, code string, ttl time.Duration) error
	// Consume deletes the code and returns true only if it is live and
	// matches exactly. A mismatch leaves the stored code untouched.
	Consume(ctx context.Context, subjectID string, purpose domain.OTPPurpose, code string) (bool, error)
}

// OTPSender delivers a generated code to its subject.
type OTPSender interface {
	Send(ctx context.Context, notice domain.OTPNotice) error
}

// OTPAuthority issues and verifies single-use codes.
type OTPAuthority interface {
	Generate(ctx context.Context, subjectID string, purpose domain.OTPPurpose) (string, error)
	Verify(ctx context.Context, subjectID string, code string, purpose domain.OTPPurpose) (bool, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// RateLimiter counts requests per key in fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// --- Service Ports (Business Logic) ---

// TransferRequest holds input for a user-to-user transfer. SubjectID is the
// authenticated caller; it must own the source wallet. ReserveTransfer
// requires it, TransferPoints checks it when set.
type TransferRequest struct {
	SubjectID    string
	FromWalletID string
	ToWalletID   string
	Amount       decimal.Decimal
	Description  string
	OTPCode      string
}

// IssueRequest holds input for minting points out of the master supply.
type IssueRequest struct {
	AdminID     string
	ToWalletID  string
	Amount      decimal.Decimal
	Description string
	OTPCode     string
}

// TransferResult is returned for every committed balance change.
type TransferResult struct {
	Success       bool            `json:"success"`
	Message       string          `json:"message"`
	TransactionID string          `json:"transaction_id"`
	NewBalance    decimal.Decimal `json:"new_balance"`
}

// SupplyStats summarizes the ledger and whether points are conserved.
type SupplyStats struct {
	WalletCount   int             `json:"wallet_count"`
	ActiveWallets int             `json:"active_wallets"`
	LockedWallets int             `json:"locked_wallets"`
	Circulating   decimal.Decimal `json:"circulating"`
	MasterBalance decimal.Decimal `json:"master_balance"`
	TotalSupply   decimal.Decimal `json:"total_supply"`
	Balanced      bool            `json:"balanced"`
}

// TransferService is the transfer orchestrator. Every error it returns is an
// *apperror.AppError.
type TransferService interface {
	TransferPoints(ctx context.Context, req TransferRequest) (*TransferResult, error)
	IssuePointsFromMaster(ctx context.Context, req IssueRequest) (*TransferResult, error)
	OpenWallet(ctx context.Context, ownerID string) (*domain.Wallet, error)
	SetWalletLocked(ctx context.Context, walletID string, locked bool) (*domain.Wallet, error)

	GetWallet(ctx context.Context, walletID string) (*domain.Wallet, error)
	GetWalletByOwner(ctx context.Context, ownerID string) (*domain.Wallet, error)
	GetTransactionHistory(ctx context.Context, walletID string, limit int) ([]domain.Transaction, error)
	GetTransactionHistoryByDate(ctx context.Context, walletID string, from, to time.Time) ([]domain.Transaction, error)
	SupplyStats(ctx context.Context) (*SupplyStats, error)

	ReserveTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
	ConfirmPending(ctx context.Context, txID, subjectID, otpCode string) (*TransferResult, error)
	CancelPending(ctx context.Context, txID, subjectID string) (*TransferResult, error)
}

// AuthService defines registration and login.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
}

// RegisterRequest holds input for user registration.
type RegisterRequest struct {
	Username string
	Password string
	FullName string
	Email    string
	Phone    string
}

// RegisterResponse holds the new user's identity and funded wallet.
type RegisterResponse struct {
	UserID   string          `json:"user_id"`
	WalletID string          `json:"wallet_id"`
	Balance  decimal.Decimal `json:"balance"`
}

// AuditService records audited actions.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
