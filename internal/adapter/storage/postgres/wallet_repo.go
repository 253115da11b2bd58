package postgres

import (
	"context"
	"errors"
	"fmt"

	"points-ledger/internal/core/domain"
	"points-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const walletColumns = `wallet_id, owner_id, balance, is_locked, created_at`

// GetWallet fetches a wallet by id. Returns nil, nil when absent.
func (s *LedgerStore) GetWallet(ctx context.Context, id string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE wallet_id = $1`

	w, err := scanWallet(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get wallet by id: %w", err)
	}
	return w, nil
}

// GetWalletByOwner fetches the wallet of a user. Returns nil, nil when absent.
func (s *LedgerStore) GetWalletByOwner(ctx context.Context, ownerID string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_id = $1 ORDER BY created_at LIMIT 1`

	w, err := scanWallet(s.pool.QueryRow(ctx, query, ownerID))
	if err != nil {
		return nil, fmt.Errorf("get wallet by owner: %w", err)
	}
	return w, nil
}

// ListWallets returns every wallet, oldest first.
func (s *LedgerStore) ListWallets(ctx context.Context) ([]domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets ORDER BY created_at, wallet_id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []domain.Wallet
	for rows.Next() {
		var w domain.Wallet
		if err := rows.Scan(&w.ID, &w.OwnerID, &w.Balance, &w.Locked, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan wallet row: %w", err)
		}
		wallets = append(wallets, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet rows: %w", err)
	}
	return wallets, nil
}

// UpsertWallet creates the wallet or replaces its balance and lock state.
// A missing owner surfaces as a constraint violation.
func (s *LedgerStore) UpsertWallet(ctx context.Context, w *domain.Wallet) error {
	if w.Balance.IsNegative() {
		return apperror.ErrInvalidAmount()
	}
	query := `INSERT INTO wallets (` + walletColumns + `)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (wallet_id) DO UPDATE SET balance = EXCLUDED.balance, is_locked = EXCLUDED.is_locked`

	return s.tx.WithinTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, query, w.ID, w.OwnerID, w.Balance, w.Locked, w.CreatedAt); err != nil {
			return mapWriteError("upsert wallet", err)
		}
		return nil
	})
}

// SetWalletLocked toggles the lock flag and returns the updated row.
func (s *LedgerStore) SetWalletLocked(ctx context.Context, id string, locked bool) (*domain.Wallet, error) {
	query := `UPDATE wallets SET is_locked = $1 WHERE wallet_id = $2 RETURNING ` + walletColumns

	var updated *domain.Wallet
	err := s.tx.WithinTx(ctx, func(tx pgx.Tx) error {
		w, err := scanWallet(tx.QueryRow(ctx, query, locked, id))
		if err != nil {
			return fmt.Errorf("set wallet locked: %w", err)
		}
		if w == nil {
			return apperror.ErrWalletNotFound()
		}
		updated = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// lockWallet reads a wallet row with FOR UPDATE. Must run inside a transaction.
func lockWallet(ctx context.Context, tx pgx.Tx, id string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE wallet_id = $1 FOR UPDATE`

	w, err := scanWallet(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("lock wallet %s: %w", id, err)
	}
	return w, nil
}

// lockPair locks two wallets in id order so concurrent units cannot deadlock.
func lockPair(ctx context.Context, tx pgx.Tx, fromID, toID string) (from, to *domain.Wallet, err error) {
	first, second := fromID, toID
	if second < first {
		first, second = second, first
	}
	a, err := lockWallet(ctx, tx, first)
	if err != nil {
		return nil, nil, err
	}
	b, err := lockWallet(ctx, tx, second)
	if err != nil {
		return nil, nil, err
	}
	if first == fromID {
		return a, b, nil
	}
	return b, a, nil
}

// debit subtracts amount from a wallet and returns the new balance. The
// balance CHECK constraint backs up the caller's sufficiency check.
func debit(ctx context.Context, tx pgx.Tx, walletID string, amount decimal.Decimal) (decimal.Decimal, error) {
	return adjust(ctx, tx, `UPDATE wallets SET balance = balance - $1 WHERE wallet_id = $2 RETURNING balance`, walletID, amount)
}

// credit adds amount to a wallet and returns the new balance.
func credit(ctx context.Context, tx pgx.Tx, walletID string, amount decimal.Decimal) (decimal.Decimal, error) {
	return adjust(ctx, tx, `UPDATE wallets SET balance = balance + $1 WHERE wallet_id = $2 RETURNING balance`, walletID, amount)
}

func adjust(ctx context.Context, tx pgx.Tx, query, walletID string, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	if err := tx.QueryRow(ctx, query, amount, walletID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, apperror.ErrWalletNotFound()
		}
		return decimal.Zero, mapWriteError("update balance", err)
	}
	return balance, nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(&w.ID, &w.OwnerID, &w.Balance, &w.Locked, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}
