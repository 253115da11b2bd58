package postgres

import (
	"context"

	"points-ledger/internal/core/domain"
	"points-ledger/internal/core/ports"
	"points-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5"
)

// LedgerStore implements ports.LedgerStore on PostgreSQL. Every mutation
// runs as one transaction; wallet rows are locked with FOR UPDATE before
// balances are checked.
type LedgerStore struct {
	pool Pool
	tx   *Transactor
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(pool Pool) *LedgerStore {
	return &LedgerStore{pool: pool, tx: NewTransactor(pool)}
}

// Transactor exposes the store's unit-of-work serializer.
func (s *LedgerStore) Transactor() *Transactor {
	return s.tx
}

// AtomicTransfer debits, credits and records one COMPLETED transaction.
func (s *LedgerStore) AtomicTransfer(ctx context.Context, cmd ports.TransferCommand) (*ports.TransferReceipt, error) {
	var receipt *ports.TransferReceipt
	err := s.tx.WithinTx(ctx, func(tx pgx.Tx) (err error) {
		receipt, err = transfer(ctx, tx, cmd)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// OpenWallet inserts the wallet and applies its funding transfer in one
// transaction, so a wallet never exists without its initial points.
func (s *LedgerStore) OpenWallet(ctx context.Context, w *domain.Wallet, funding *ports.TransferCommand) (*ports.TransferReceipt, error) {
	if w.Balance.IsNegative() {
		return nil, apperror.ErrInvalidAmount()
	}
	if funding != nil && funding.ToWalletID != w.ID {
		return nil, apperror.Validation("funding must credit the opened wallet")
	}
	query := `INSERT INTO wallets (` + walletColumns + `) VALUES ($1, $2, $3, $4, $5)`

	var receipt *ports.TransferReceipt
	err := s.tx.WithinTx(ctx, func(tx pgx.Tx) (err error) {
		if _, err := tx.Exec(ctx, query, w.ID, w.OwnerID, w.Balance, w.Locked, w.CreatedAt); err != nil {
			return mapWriteError("insert wallet", err)
		}
		if funding == nil {
			return nil
		}
		receipt, err = transfer(ctx, tx, *funding)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func transfer(ctx context.Context, tx pgx.Tx, cmd ports.TransferCommand) (*ports.TransferReceipt, error) {
	if _, _, err := lockTransferPair(ctx, tx, cmd); err != nil {
		return nil, err
	}

	fromBalance, err := debit(ctx, tx, cmd.FromWalletID, cmd.Amount)
	if err != nil {
		return nil, err
	}
	toBalance, err := credit(ctx, tx, cmd.ToWalletID, cmd.Amount)
	if err != nil {
		return nil, err
	}

	t := newTransaction(cmd, domain.TransactionStatusCompleted)
	if err := insertTransaction(ctx, tx, &t); err != nil {
		return nil, err
	}
	return &ports.TransferReceipt{Transaction: t, FromBalance: fromBalance, ToBalance: toBalance}, nil
}

// ReserveTransfer debits the source and records a PENDING transaction.
func (s *LedgerStore) ReserveTransfer(ctx context.Context, cmd ports.TransferCommand) (*ports.TransferReceipt, error) {
	var receipt *ports.TransferReceipt
	err := s.tx.WithinTx(ctx, func(tx pgx.Tx) error {
		_, to, err := lockTransferPair(ctx, tx, cmd)
		if err != nil {
			return err
		}

		fromBalance, err := debit(ctx, tx, cmd.FromWalletID, cmd.Amount)
		if err != nil {
			return err
		}

		t := newTransaction(cmd, domain.TransactionStatusPending)
		if err := insertTransaction(ctx, tx, &t); err != nil {
			return err
		}

		receipt = &ports.TransferReceipt{Transaction: t, FromBalance: fromBalance, ToBalance: to.Balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// CompletePending credits the destination and marks the transaction COMPLETED.
func (s *LedgerStore) CompletePending(ctx context.Context, txID string) (*ports.TransferReceipt, error) {
	var receipt *ports.TransferReceipt
	err := s.tx.WithinTx(ctx, func(tx pgx.Tx) error {
		t, err := lockPending(ctx, tx, txID)
		if err != nil {
			return err
		}

		from, to, err := lockPair(ctx, tx, t.FromWalletID, t.ToWalletID)
		if err != nil {
			return err
		}
		if from == nil || to == nil {
			return apperror.ErrWalletNotFound()
		}
		if to.Locked {
			return apperror.ErrWalletLocked()
		}

		toBalance, err := credit(ctx, tx, t.ToWalletID, t.Amount)
		if err != nil {
			return err
		}
		if err := t.Complete(); err != nil {
			return apperror.ErrTransactionFinal()
		}
		if err := updateTransactionStatus(ctx, tx, t.ID, t.Status); err != nil {
			return err
		}

		receipt = &ports.TransferReceipt{Transaction: *t, FromBalance: from.Balance, ToBalance: toBalance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// CancelPending refunds the source of an outgoing pending transaction and
// marks it CANCELLED.
func (s *LedgerStore) CancelPending(ctx context.Context, txID string) (*ports.TransferReceipt, error) {
	var receipt *ports.TransferReceipt
	err := s.tx.WithinTx(ctx, func(tx pgx.Tx) error {
		t, err := lockPending(ctx, tx, txID)
		if err != nil {
			return err
		}

		from, to, err := lockPair(ctx, tx, t.FromWalletID, t.ToWalletID)
		if err != nil {
			return err
		}
		if from == nil || to == nil {
			return apperror.ErrWalletNotFound()
		}

		fromBalance := from.Balance
		if t.IsOutgoing() {
			if fromBalance, err = credit(ctx, tx, t.FromWalletID, t.Amount); err != nil {
				return err
			}
		}
		if err := t.Cancel(); err != nil {
			return apperror.ErrTransactionFinal()
		}
		if err := updateTransactionStatus(ctx, tx, t.ID, t.Status); err != nil {
			return err
		}

		receipt = &ports.TransferReceipt{Transaction: *t, FromBalance: fromBalance, ToBalance: to.Balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// lockTransferPair locks both wallets of cmd and re-checks existence, lock
// state and the source balance.
func lockTransferPair(ctx context.Context, tx pgx.Tx, cmd ports.TransferCommand) (from, to *domain.Wallet, err error) {
	if !cmd.Amount.IsPositive() {
		return nil, nil, apperror.ErrInvalidAmount()
	}
	if !domain.WithinScale(cmd.Amount) {
		return nil, nil, apperror.ErrAmountPrecision()
	}
	if cmd.FromWalletID == cmd.ToWalletID {
		return nil, nil, apperror.ErrSelfTransfer()
	}

	from, to, err = lockPair(ctx, tx, cmd.FromWalletID, cmd.ToWalletID)
	if err != nil {
		return nil, nil, err
	}
	if from == nil || to == nil {
		return nil, nil, apperror.ErrWalletNotFound()
	}
	if !from.CanTransact() || !to.CanTransact() {
		return nil, nil, apperror.ErrWalletLocked()
	}
	if !from.HasSufficientBalance(cmd.Amount) {
		return nil, nil, apperror.ErrInsufficientFunds()
	}
	return from, to, nil
}

func lockPending(ctx context.Context, tx pgx.Tx, txID string) (*domain.Transaction, error) {
	t, err := lockTransaction(ctx, tx, txID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperror.ErrTransactionNotFound()
	}
	if t.IsTerminal() {
		return nil, apperror.ErrTransactionFinal()
	}
	return t, nil
}

func newTransaction(cmd ports.TransferCommand, status domain.TransactionStatus) domain.Transaction {
	txType := cmd.Type
	if txType == "" {
		txType = domain.TransactionTypeTransfer
	}
	return domain.Transaction{
		ID:           cmd.ID,
		FromWalletID: cmd.FromWalletID,
		ToWalletID:   cmd.ToWalletID,
		Amount:       cmd.Amount,
		Type:         txType,
		Status:       status,
		Description:  cmd.Description,
		Timestamp:    cmd.Timestamp,
		OTPUsed:      cmd.OTPUsed,
	}
}
