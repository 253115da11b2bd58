package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"time"

	"points-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// TransferCommand describes one ledger movement to be applied atomically.
// ID and Timestamp are assigned by the caller.
type TransferCommand struct {
	ID           string
	FromWalletID string
	ToWalletID   string
	Amount       decimal.Decimal
	Description  string
	Type         domain.TransactionType
	OTPUsed      string
	Timestamp    time.Time
}

// TransferReceipt carries the committed record and the post-commit balances
// of both wallets involved.
type TransferReceipt struct {
	Transaction domain.Transaction
	FromBalance decimal.Decimal
	ToBalance   decimal.Decimal
}

// TransactionFilter narrows a history query. Zero values mean unbounded.
type TransactionFilter struct {
	Limit int
	From  *time.Time
	To    *time.Time
}

// LedgerStore is the authoritative persistence for wallets and transactions.
// Every mutating method is a single all-or-nothing unit of work.
type LedgerStore interface {
	GetWallet(ctx context.Context, id string) (*domain.Wallet, error)
	GetWalletByOwner(ctx context.Context, ownerID string) (*domain.Wallet, error)
	ListWallets(ctx context.Context) ([]domain.Wallet, error)
	UpsertWallet(ctx context.Context, wallet *domain.Wallet) error
	SetWalletLocked(ctx context.Context, id string, locked bool) (*domain.Wallet, error)

	// AtomicTransfer debits the source, credits the destination and records
	// the transaction. Balances and lock state are re-checked under row locks.
	AtomicTransfer(ctx context.Context, cmd TransferCommand) (*TransferReceipt, error)

	// OpenWallet inserts a new wallet and, when funding is non-nil, applies
	// the funding transfer into it in the same unit. The receipt is nil
	// without funding.
	OpenWallet(ctx context.Context, wallet *domain.Wallet, funding *TransferCommand) (*TransferReceipt, error)

	// ReserveTransfer debits the source and records a PENDING transaction.
	ReserveTransfer(ctx context.Context, cmd TransferCommand) (*TransferReceipt, error)
	// CompletePending credits the destination of a PENDING transaction.
	CompletePending(ctx context.Context, txID string) (*TransferReceipt, error)
	// CancelPending refunds the source of a PENDING transaction.
	CancelPending(ctx context.Context, txID string) (*TransferReceipt, error)

	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	// ListTransactions returns records where the wallet is source or
	// destination, most recent first.
	ListTransactions(ctx context.Context, walletID string, filter TransactionFilter) ([]domain.Transaction, error)
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// Delete removes a user. Deleting a missing user is not an error.
	Delete(ctx context.Context, id string) error
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}
