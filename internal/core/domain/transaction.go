package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of points movement.
type TransactionType string

const (
	TransactionTypeTransferIn  TransactionType = "TRANSFER_IN"
	TransactionTypeTransferOut TransactionType = "TRANSFER_OUT"
	TransactionTypeTransfer    TransactionType = "TRANSFER"
	TransactionTypeInitial     TransactionType = "INITIAL"
	TransactionTypeRollback    TransactionType = "ROLLBACK"
)

// TransactionStatus represents the lifecycle state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
	TransactionStatusCancelled TransactionStatus = "CANCELLED"
)

// ErrTerminalTransaction is returned when a state transition is attempted on
// a transaction that is no longer pending.
var ErrTerminalTransaction = errors.New("transaction is in a terminal state")

// Transaction is a single ledger record.
type Transaction struct {
	ID           string            `json:"transaction_id"`
	FromWalletID string            `json:"from_wallet_id"`
	ToWalletID   string            `json:"to_wallet_id"`
	Amount       decimal.Decimal   `json:"amount"`
	Type         TransactionType   `json:"transaction_type"`
	Status       TransactionStatus `json:"status"`
	Description  string            `json:"description"`
	Timestamp    time.Time         `json:"timestamp"`
	OTPUsed      string            `json:"-"`
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted ||
		t.Status == TransactionStatusFailed ||
		t.Status == TransactionStatusCancelled
}

// Complete moves a pending transaction to COMPLETED.
func (t *Transaction) Complete() error {
	if t.Status != TransactionStatusPending {
		return ErrTerminalTransaction
	}
	t.Status = TransactionStatusCompleted
	return nil
}

// Cancel moves a pending transaction to CANCELLED.
func (t *Transaction) Cancel() error {
	if t.Status != TransactionStatusPending {
		return ErrTerminalTransaction
	}
	t.Status = TransactionStatusCancelled
	return nil
}

// IsOutgoing reports whether the transaction debits its source wallet.
func (t *Transaction) IsOutgoing() bool {
	switch t.Type {
	case TransactionTypeTransfer, TransactionTypeTransferOut, TransactionTypeInitial:
		return true
	default:
		return false
	}
}

// ForWallet returns the transaction as seen from walletID. A TRANSFER row is
// presented as TRANSFER_OUT to its source and TRANSFER_IN to its destination;
// other types are returned unchanged.
func (t Transaction) ForWallet(walletID string) Transaction {
	if t.Type != TransactionTypeTransfer {
		return t
	}
	switch walletID {
	case t.FromWalletID:
		t.Type = TransactionTypeTransferOut
	case t.ToWalletID:
		t.Type = TransactionTypeTransferIn
	}
	return t
}
