package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultHistoryLimit bounds the cached per-wallet history.
const DefaultHistoryLimit = 1000

// PointScale is the number of fractional digits balances are stored with.
const PointScale = 4

// WithinScale reports whether amount is representable at PointScale.
func WithinScale(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(PointScale))
}

// Wallet holds a user's points balance.
type Wallet struct {
	ID        string          `json:"wallet_id"`
	OwnerID   string          `json:"owner_id"`
	Balance   decimal.Decimal `json:"balance"`
	Locked    bool            `json:"is_locked"`
	CreatedAt time.Time       `json:"created_at"`

	// History is a cached most-recent-first view; the store is authoritative.
	History []Transaction `json:"-"`
}

// Clone returns a deep copy so callers never share history slices.
func (w *Wallet) Clone() *Wallet {
	if w == nil {
		return nil
	}
	c := *w
	if w.History != nil {
		c.History = make([]Transaction, len(w.History))
		copy(c.History, w.History)
	}
	return &c
}

// CanTransact reports whether the wallet may send or receive points.
func (w *Wallet) CanTransact() bool {
	return !w.Locked
}

// HasSufficientBalance reports whether the wallet can cover amount.
func (w *Wallet) HasSufficientBalance(amount decimal.Decimal) bool {
	return w.Balance.GreaterThanOrEqual(amount)
}

// RecordTransaction adds tx to the head of the history. An entry with the
// same ID and Type is replaced in place. The history is truncated to limit.
func (w *Wallet) RecordTransaction(tx Transaction, limit int) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	for i := range w.History {
		if w.History[i].ID == tx.ID && w.History[i].Type == tx.Type {
			w.History[i] = tx
			return
		}
	}
	w.History = append([]Transaction{tx}, w.History...)
	if len(w.History) > limit {
		w.History = w.History[:limit]
	}
}
