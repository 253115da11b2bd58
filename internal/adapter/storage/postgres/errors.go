package postgres

import (
	"errors"
	"fmt"

	"points-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// pgCode returns the SQLSTATE of err, or "" if err is not a server error.
func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// mapWriteError turns constraint failures into typed application errors and
// wraps everything else with op.
func mapWriteError(op string, err error) error {
	switch pgCode(err) {
	case pgForeignKeyViolation, pgUniqueViolation:
		return apperror.ErrConstraintViolation(fmt.Errorf("%s: %w", op, err))
	case pgCheckViolation:
		return apperror.ErrInsufficientFunds()
	}
	return fmt.Errorf("%s: %w", op, err)
}
