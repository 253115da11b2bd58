package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
)

// Transactor runs units of work inside a database transaction. Units are
// serialized by a mutex so a unit never interleaves with another unit of the
// same store.
type Transactor struct {
	pool Pool
	mu   sync.Mutex
}

// NewTransactor creates a new Transactor wrapping the connection pool.
func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

// WithinTx begins a transaction, runs fn, and commits. Any error from fn, or a
// context cancelled before commit, rolls the transaction back.
func (t *Transactor) WithinTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		return rollback(ctx, tx, err)
	}
	if err := ctx.Err(); err != nil {
		return rollback(ctx, tx, fmt.Errorf("before commit: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Exclusive runs fn while holding the unit-of-work lock, so fn observes no
// in-flight unit. Used for consistent snapshots.
func (t *Transactor) Exclusive(fn func() error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn()
}

func rollback(ctx context.Context, tx pgx.Tx, cause error) error {
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return errors.Join(cause, fmt.Errorf("rollback tx: %w", err))
	}
	return cause
}
