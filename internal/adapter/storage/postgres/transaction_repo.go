package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"points-ledger/internal/core/domain"
	"points-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const transactionColumns = `transaction_id, from_wallet_id, to_wallet_id, amount, description,
		transaction_type, status, otp_used, timestamp`

// GetTransaction fetches a transaction by id. Returns nil, nil when absent.
func (s *LedgerStore) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE transaction_id = $1`

	t, err := scanTransaction(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get transaction by id: %w", err)
	}
	return t, nil
}

// ListTransactions returns every record touching walletID, most recent first.
func (s *LedgerStore) ListTransactions(ctx context.Context, walletID string, filter ports.TransactionFilter) ([]domain.Transaction, error) {
	conditions := []string{"(from_wallet_id = $1 OR to_wallet_id = $1)"}
	args := []any{walletID}
	argIdx := 2

	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp >= $%d", argIdx))
		args = append(args, *filter.From)
		argIdx++
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp <= $%d", argIdx))
		args = append(args, *filter.To)
		argIdx++
	}

	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE %s ORDER BY timestamp DESC, transaction_id DESC`,
		transactionColumns, strings.Join(conditions, " AND "))
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(
			&t.ID, &t.FromWalletID, &t.ToWalletID, &t.Amount, &t.Description,
			&t.Type, &t.Status, &t.OTPUsed, &t.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.FromWalletID, t.ToWalletID, t.Amount, t.Description,
		string(t.Type), string(t.Status), t.OTPUsed, t.Timestamp,
	)
	if err != nil {
		return mapWriteError("insert transaction", err)
	}
	return nil
}

// lockTransaction reads a transaction row with FOR UPDATE.
func lockTransaction(ctx context.Context, tx pgx.Tx, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE transaction_id = $1 FOR UPDATE`

	t, err := scanTransaction(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("lock transaction: %w", err)
	}
	return t, nil
}

func updateTransactionStatus(ctx context.Context, tx pgx.Tx, id string, status domain.TransactionStatus) error {
	tag, err := tx.Exec(ctx, `UPDATE transactions SET status = $1 WHERE transaction_id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %s", id)
	}
	return nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	err := row.Scan(
		&t.ID, &t.FromWalletID, &t.ToWalletID, &t.Amount, &t.Description,
		&t.Type, &t.Status, &t.OTPUsed, &t.Timestamp,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}
