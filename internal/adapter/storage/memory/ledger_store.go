package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"points-ledger/internal/core/domain"
	"points-ledger/internal/core/ports"
	"points-ledger/pkg/apperror"
)

// OwnerLookup resolves wallet owners for the foreign-key check.
type OwnerLookup interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// FaultFunc is consulted right before a unit commits. A non-nil error aborts
// the unit and nothing it staged becomes visible.
type FaultFunc func(op string) error

type txRecord struct {
	tx  domain.Transaction
	seq int64
}

// LedgerStore is an in-memory ports.LedgerStore. Each mutation stages its
// writes on copies and swaps them in only when the whole unit succeeds.
type LedgerStore struct {
	mu      sync.Mutex
	owners  OwnerLookup
	wallets map[string]domain.Wallet
	txs     map[string]txRecord
	seq     int64
	fault   FaultFunc
}

// Option configures a LedgerStore.
type Option func(*LedgerStore)

// WithFault installs a commit-time fault hook.
func WithFault(f FaultFunc) Option {
	return func(s *LedgerStore) { s.fault = f }
}

// NewLedgerStore creates an empty store. owners may be nil to skip the
// owner existence check.
func NewLedgerStore(owners OwnerLookup, opts ...Option) *LedgerStore {
	s := &LedgerStore{
		owners:  owners,
		wallets: make(map[string]domain.Wallet),
		txs:     make(map[string]txRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// unit is one staged all-or-nothing mutation.
type unit struct {
	s       *LedgerStore
	wallets map[string]domain.Wallet
	txs     map[string]domain.Transaction
	order   []string
}

func (u *unit) wallet(id string) (domain.Wallet, bool) {
	if w, ok := u.wallets[id]; ok {
		return w, true
	}
	w, ok := u.s.wallets[id]
	return w, ok
}

func (u *unit) transaction(id string) (domain.Transaction, bool) {
	if t, ok := u.txs[id]; ok {
		return t, true
	}
	r, ok := u.s.txs[id]
	return r.tx, ok
}

func (u *unit) putWallet(w domain.Wallet) { u.wallets[w.ID] = w }

func (u *unit) putTransaction(t domain.Transaction) {
	if _, staged := u.txs[t.ID]; !staged {
		u.order = append(u.order, t.ID)
	}
	u.txs[t.ID] = t
}

// withinUnit runs fn on a fresh unit under the store mutex and commits it.
func (s *LedgerStore) withinUnit(ctx context.Context, op string, fn func(u *unit) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	u := &unit{s: s, wallets: make(map[string]domain.Wallet), txs: make(map[string]domain.Transaction)}
	if err := fn(u); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("before commit: %w", err)
	}
	if s.fault != nil {
		if err := s.fault(op); err != nil {
			return err
		}
	}

	for id, w := range u.wallets {
		s.wallets[id] = w
	}
	for _, id := range u.order {
		rec, exists := s.txs[id]
		if !exists {
			s.seq++
			rec.seq = s.seq
		}
		rec.tx = u.txs[id]
		s.txs[id] = rec
	}
	return nil
}

// Exclusive runs fn while no unit is in flight.
func (s *LedgerStore) Exclusive(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func (s *LedgerStore) GetWallet(ctx context.Context, id string) (*domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (s *LedgerStore) GetWalletByOwner(ctx context.Context, ownerID string) (*domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *domain.Wallet
	for _, w := range s.wallets {
		if w.OwnerID != ownerID {
			continue
		}
		if found == nil || w.CreatedAt.Before(found.CreatedAt) {
			c := w
			found = &c
		}
	}
	return found, nil
}

func (s *LedgerStore) ListWallets(ctx context.Context) ([]domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wallets := make([]domain.Wallet, 0, len(s.wallets))
	for _, w := range s.wallets {
		wallets = append(wallets, w)
	}
	sort.Slice(wallets, func(i, j int) bool {
		if wallets[i].CreatedAt.Equal(wallets[j].CreatedAt) {
			return wallets[i].ID < wallets[j].ID
		}
		return wallets[i].CreatedAt.Before(wallets[j].CreatedAt)
	})
	return wallets, nil
}

func (s *LedgerStore) UpsertWallet(ctx context.Context, w *domain.Wallet) error {
	if w.Balance.IsNegative() {
		return apperror.ErrInvalidAmount()
	}
	if err := s.checkOwner(ctx, w.OwnerID); err != nil {
		return err
	}
	return s.withinUnit(ctx, "upsert_wallet", func(u *unit) error {
		row := *w
		row.History = nil
		if existing, ok := u.wallet(w.ID); ok {
			row.CreatedAt = existing.CreatedAt
			row.OwnerID = existing.OwnerID
		}
		u.putWallet(row)
		return nil
	})
}

func (s *LedgerStore) checkOwner(ctx context.Context, ownerID string) error {
	if s.owners == nil {
		return nil
	}
	owner, err := s.owners.GetByID(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("lookup wallet owner: %w", err)
	}
	if owner == nil {
		return apperror.ErrConstraintViolation(fmt.Errorf("owner %s does not exist", ownerID))
	}
	return nil
}

func (s *LedgerStore) SetWalletLocked(ctx context.Context, id string, locked bool) (*domain.Wallet, error) {
	var updated domain.Wallet
	err := s.withinUnit(ctx, "set_wallet_locked", func(u *unit) error {
		w, ok := u.wallet(id)
		if !ok {
			return apperror.ErrWalletNotFound()
		}
		w.Locked = locked
		u.putWallet(w)
		updated = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *LedgerStore) AtomicTransfer(ctx context.Context, cmd ports.TransferCommand) (*ports.TransferReceipt, error) {
	var receipt *ports.TransferReceipt
	err := s.withinUnit(ctx, "atomic_transfer", func(u *unit) (err error) {
		receipt, err = transfer(u, cmd)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// OpenWallet stages the new wallet and its funding transfer in one unit.
func (s *LedgerStore) OpenWallet(ctx context.Context, w *domain.Wallet, funding *ports.TransferCommand) (*ports.TransferReceipt, error) {
	if w.Balance.IsNegative() {
		return nil, apperror.ErrInvalidAmount()
	}
	if funding != nil && funding.ToWalletID != w.ID {
		return nil, apperror.Validation("funding must credit the opened wallet")
	}
	if err := s.checkOwner(ctx, w.OwnerID); err != nil {
		return nil, err
	}

	var receipt *ports.TransferReceipt
	err := s.withinUnit(ctx, "open_wallet", func(u *unit) (err error) {
		if _, exists := u.wallet(w.ID); exists {
			return apperror.ErrConstraintViolation(fmt.Errorf("wallet %s already exists", w.ID))
		}
		row := *w
		row.History = nil
		u.putWallet(row)

		if funding == nil {
			return nil
		}
		receipt, err = transfer(u, *funding)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func transfer(u *unit, cmd ports.TransferCommand) (*ports.TransferReceipt, error) {
	from, to, err := checkTransfer(u, cmd)
	if err != nil {
		return nil, err
	}
	from.Balance = from.Balance.Sub(cmd.Amount)
	to.Balance = to.Balance.Add(cmd.Amount)
	u.putWallet(from)
	u.putWallet(to)

	t := newTransaction(cmd, domain.TransactionStatusCompleted)
	u.putTransaction(t)

	return &ports.TransferReceipt{Transaction: t, FromBalance: from.Balance, ToBalance: to.Balance}, nil
}

func (s *LedgerStore) ReserveTransfer(ctx context.Context, cmd ports.TransferCommand) (*ports.TransferReceipt, error) {
	var receipt *ports.TransferReceipt
	err := s.withinUnit(ctx, "reserve_transfer", func(u *unit) error {
		from, to, err := checkTransfer(u, cmd)
		if err != nil {
			return err
		}
		from.Balance = from.Balance.Sub(cmd.Amount)
		u.putWallet(from)

		t := newTransaction(cmd, domain.TransactionStatusPending)
		u.putTransaction(t)

		receipt = &ports.TransferReceipt{Transaction: t, FromBalance: from.Balance, ToBalance: to.Balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (s *LedgerStore) CompletePending(ctx context.Context, txID string) (*ports.TransferReceipt, error) {
	var receipt *ports.TransferReceipt
	err := s.withinUnit(ctx, "complete_pending", func(u *unit) error {
		t, from, to, err := pendingWithWallets(u, txID)
		if err != nil {
			return err
		}
		if to.Locked {
			return apperror.ErrWalletLocked()
		}
		to.Balance = to.Balance.Add(t.Amount)
		u.putWallet(to)

		if err := t.Complete(); err != nil {
			return apperror.ErrTransactionFinal()
		}
		u.putTransaction(t)

		receipt = &ports.TransferReceipt{Transaction: t, FromBalance: from.Balance, ToBalance: to.Balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (s *LedgerStore) CancelPending(ctx context.Context, txID string) (*ports.TransferReceipt, error) {
	var receipt *ports.TransferReceipt
	err := s.withinUnit(ctx, "cancel_pending", func(u *unit) error {
		t, from, to, err := pendingWithWallets(u, txID)
		if err != nil {
			return err
		}
		if t.IsOutgoing() {
			from.Balance = from.Balance.Add(t.Amount)
			u.putWallet(from)
		}

		if err := t.Cancel(); err != nil {
			return apperror.ErrTransactionFinal()
		}
		u.putTransaction(t)

		receipt = &ports.TransferReceipt{Transaction: t, FromBalance: from.Balance, ToBalance: to.Balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (s *LedgerStore) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.txs[id]
	if !ok {
		return nil, nil
	}
	t := r.tx
	return &t, nil
}

func (s *LedgerStore) ListTransactions(ctx context.Context, walletID string, filter ports.TransactionFilter) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var recs []txRecord
	for _, r := range s.txs {
		if r.tx.FromWalletID != walletID && r.tx.ToWalletID != walletID {
			continue
		}
		if filter.From != nil && r.tx.Timestamp.Before(*filter.From) {
			continue
		}
		if filter.To != nil && r.tx.Timestamp.After(*filter.To) {
			continue
		}
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].tx.Timestamp.Equal(recs[j].tx.Timestamp) {
			return recs[i].seq > recs[j].seq
		}
		return recs[i].tx.Timestamp.After(recs[j].tx.Timestamp)
	})
	if filter.Limit > 0 && len(recs) > filter.Limit {
		recs = recs[:filter.Limit]
	}

	txns := make([]domain.Transaction, len(recs))
	for i, r := range recs {
		txns[i] = r.tx
	}
	return txns, nil
}

func checkTransfer(u *unit, cmd ports.TransferCommand) (from, to domain.Wallet, err error) {
	if !cmd.Amount.IsPositive() {
		return from, to, apperror.ErrInvalidAmount()
	}
	if !domain.WithinScale(cmd.Amount) {
		return from, to, apperror.ErrAmountPrecision()
	}
	if cmd.FromWalletID == cmd.ToWalletID {
		return from, to, apperror.ErrSelfTransfer()
	}
	if _, dup := u.transaction(cmd.ID); dup {
		return from, to, apperror.ErrConstraintViolation(fmt.Errorf("transaction %s already exists", cmd.ID))
	}
	from, okFrom := u.wallet(cmd.FromWalletID)
	to, okTo := u.wallet(cmd.ToWalletID)
	if !okFrom || !okTo {
		return from, to, apperror.ErrWalletNotFound()
	}
	if !from.CanTransact() || !to.CanTransact() {
		return from, to, apperror.ErrWalletLocked()
	}
	if !from.HasSufficientBalance(cmd.Amount) {
		return from, to, apperror.ErrInsufficientFunds()
	}
	return from, to, nil
}

func pendingWithWallets(u *unit, txID string) (t domain.Transaction, from, to domain.Wallet, err error) {
	t, ok := u.transaction(txID)
	if !ok {
		return t, from, to, apperror.ErrTransactionNotFound()
	}
	if t.IsTerminal() {
		return t, from, to, apperror.ErrTransactionFinal()
	}
	from, okFrom := u.wallet(t.FromWalletID)
	to, okTo := u.wallet(t.ToWalletID)
	if !okFrom || !okTo {
		return t, from, to, apperror.ErrWalletNotFound()
	}
	return t, from, to, nil
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
