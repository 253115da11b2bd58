package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"points-ledger/internal/core/domain"
	"points-ledger/internal/core/ports"
	"points-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultMaxTransfer caps a single user-to-user transfer.
var DefaultMaxTransfer = decimal.NewFromInt(1_000_000)

// DefaultInitialPoints funds every newly opened wallet.
var DefaultInitialPoints = decimal.NewFromInt(100)

// TransferPolicy holds the ledger limits.
type TransferPolicy struct {
	MaxTransfer   decimal.Decimal
	InitialPoints decimal.Decimal
}

// TransferOption configures a TransferServiceImpl.
type TransferOption func(*TransferServiceImpl)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) TransferOption {
	return func(s *TransferServiceImpl) { s.now = now }
}

// TransferServiceImpl implements ports.TransferService. Every mutating call
// holds mu for its whole duration, so validation, the store unit and the
// cache update are never interleaved with another mutation.
type TransferServiceImpl struct {
	store  ports.LedgerStore
	cache  *WalletCache
	otp    ports.OTPAuthority
	users  ports.UserRepository
	audit  ports.AuditService
	ids    ports.IDGenerator
	master domain.MasterWallet
	policy TransferPolicy
	now    func() time.Time
	log    zerolog.Logger

	mu sync.Mutex
}

// NewTransferService creates the transfer orchestrator. audit may be nil.
func NewTransferService(
	store ports.LedgerStore,
	cache *WalletCache,
	otp ports.OTPAuthority,
	users ports.UserRepository,
	audit ports.AuditService,
	ids ports.IDGenerator,
	master domain.MasterWallet,
	policy TransferPolicy,
	log zerolog.Logger,
	opts ...TransferOption,
) *TransferServiceImpl {
	if policy.MaxTransfer.IsZero() {
		policy.MaxTransfer = DefaultMaxTransfer
	}
	s := &TransferServiceImpl{
		store:  store,
		cache:  cache,
		otp:    otp,
		users:  users,
		audit:  audit,
		ids:    ids,
		master: master,
		policy: policy,
		now:    time.Now,
		log:    log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TransferPoints moves points between two user wallets after the source
// owner's transfer OTP has been verified.
func (s *TransferServiceImpl) TransferPoints(ctx context.Context, req ports.TransferRequest) (*ports.TransferResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.With().Str("op", "transfer").Str("from", req.FromWalletID).Str("to", req.ToWalletID).
		Str("amount", req.Amount.String()).Logger()

	if err := s.checkAmount(req.Amount, true); err != nil {
		return nil, s.reject(log, err)
	}
	from, _, err := s.checkWallets(ctx, req.FromWalletID, req.ToWalletID, req.Description)
	if err != nil {
		return nil, s.reject(log, err)
	}
	if req.SubjectID != "" && req.SubjectID != from.OwnerID {
		return nil, s.reject(log, apperror.ErrNotWalletOwner())
	}
	if !from.HasSufficientBalance(req.Amount) {
		return nil, s.reject(log, apperror.ErrInsufficientFunds())
	}
	if err := s.verifyOTP(ctx, from.OwnerID, req.OTPCode); err != nil {
		return nil, s.reject(log, err)
	}

	receipt, err := s.store.AtomicTransfer(ctx, s.command(req.FromWalletID, req.ToWalletID, req.Amount,
		req.Description, domain.TransactionTypeTransfer, req.OTPCode))
	if err != nil {
		return nil, s.reject(log, err)
	}
	s.cache.Apply(receipt)

	log.Info().Str("tx_id", receipt.Transaction.ID).Msg("transfer committed")
	s.record(ctx, from.OwnerID, domain.AuditActionTransfer, receipt.Transaction)

	return &ports.TransferResult{
		Success:       true,
		Message:       "transfer completed",
		TransactionID: receipt.Transaction.ID,
		NewBalance:    receipt.FromBalance,
	}, nil
}

// IssuePointsFromMaster mints points into a wallet out of the master supply.
// It is restricted to administrators and is not subject to MaxTransfer.
func (s *TransferServiceImpl) IssuePointsFromMaster(ctx context.Context, req ports.IssueRequest) (*ports.TransferResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.With().Str("op", "issue").Str("admin_id", req.AdminID).Str("to", req.ToWalletID).
		Str("amount", req.Amount.String()).Logger()

	admin, err := s.users.GetByID(ctx, req.AdminID)
	if err != nil {
		return nil, s.reject(log, fmt.Errorf("lookup admin: %w", err))
	}
	if admin == nil || !admin.IsAdmin() {
		return nil, s.reject(log, apperror.ErrNotAdmin())
	}

	if err := s.checkAmount(req.Amount, false); err != nil {
		return nil, s.reject(log, err)
	}
	master, _, err := s.checkWallets(ctx, s.master.ID, req.ToWalletID, req.Description)
	if err != nil {
		return nil, s.reject(log, err)
	}
	if !master.HasSufficientBalance(req.Amount) {
		return nil, s.reject(log, apperror.ErrMasterSupplyExhausted())
	}
	if err := s.verifyOTP(ctx, admin.ID, req.OTPCode); err != nil {
		return nil, s.reject(log, err)
	}

	receipt, err := s.store.AtomicTransfer(ctx, s.command(s.master.ID, req.ToWalletID, req.Amount,
		req.Description, domain.TransactionTypeInitial, req.OTPCode))
	if err != nil {
		if errors.Is(err, apperror.ErrInsufficientFunds()) {
			err = apperror.ErrMasterSupplyExhausted()
		}
		return nil, s.reject(log, err)
	}
	s.cache.Apply(receipt)

	log.Info().Str("tx_id", receipt.Transaction.ID).Msg("points issued")
	s.record(ctx, admin.ID, domain.AuditActionIssue, receipt.Transaction)

	return &ports.TransferResult{
		Success:       true,
		Message:       "points issued",
		TransactionID: receipt.Transaction.ID,
		NewBalance:    receipt.ToBalance,
	}, nil
}

// OpenWallet returns the owner's wallet, creating it and funding it with the
// initial points from the master supply when it does not exist yet.
func (s *TransferServiceImpl) OpenWallet(ctx context.Context, ownerID string) (*domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.With().Str("op", "open_wallet").Str("owner_id", ownerID).Logger()

	existing, err := s.cache.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, s.reject(log, err)
	}
	if existing != nil {
		return existing, nil
	}

	initial := s.policy.InitialPoints
	if initial.IsPositive() {
		master, err := s.cache.Get(ctx, s.master.ID)
		if err != nil {
			return nil, s.reject(log, err)
		}
		if master == nil || !master.HasSufficientBalance(initial) {
			return nil, s.reject(log, apperror.ErrMasterSupplyExhausted())
		}
	}

	w := &domain.Wallet{
		ID:        s.ids.NewID(),
		OwnerID:   ownerID,
		Balance:   decimal.Zero,
		CreatedAt: s.now().UTC(),
	}
	var funding *ports.TransferCommand
	if initial.IsPositive() {
		cmd := s.command(s.master.ID, w.ID, initial, "Initial points", domain.TransactionTypeInitial, "")
		funding = &cmd
	}

	receipt, err := s.store.OpenWallet(ctx, w, funding)
	if err != nil {
		if funding != nil && errors.Is(err, apperror.ErrInsufficientFunds()) {
			err = apperror.ErrMasterSupplyExhausted()
		}
		return nil, s.reject(log, err)
	}
	s.cache.Put(w)
	if receipt != nil {
		s.cache.Apply(receipt)
		log.Info().Str("wallet_id", w.ID).Str("tx_id", receipt.Transaction.ID).Msg("wallet opened")
	} else {
		log.Info().Str("wallet_id", w.ID).Msg("wallet opened")
	}

	return s.GetWallet(ctx, w.ID)
}

// SetWalletLocked locks or unlocks a wallet. The master wallet is immutable.
func (s *TransferServiceImpl) SetWalletLocked(ctx context.Context, walletID string, locked bool) (*domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.With().Str("op", "set_locked").Str("wallet_id", walletID).Bool("locked", locked).Logger()

	if s.master.Is(walletID) {
		return nil, s.reject(log, apperror.ErrMasterWalletImmutable())
	}
	w, err := s.store.SetWalletLocked(ctx, walletID, locked)
	if err != nil {
		return nil, s.reject(log, err)
	}
	s.cache.Put(w)

	action := domain.AuditActionUnlock
	if locked {
		action = domain.AuditActionLock
	}
	log.Info().Msg("wallet lock changed")
	s.auditLog(ctx, &domain.AuditLog{
		Action:       action,
		ResourceType: "wallet",
		ResourceID:   walletID,
	})
	return s.GetWallet(ctx, walletID)
}

func (s *TransferServiceImpl) GetWallet(ctx context.Context, walletID string) (*domain.Wallet, error) {
	w, err := s.cache.Get(ctx, walletID)
	if err != nil {
		return nil, s.reject(s.log, err)
	}
	if w == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	return w, nil
}

func (s *TransferServiceImpl) GetWalletByOwner(ctx context.Context, ownerID string) (*domain.Wallet, error) {
	w, err := s.cache.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, s.reject(s.log, err)
	}
	if w == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	return w, nil
}

// GetTransactionHistory returns the wallet's records, most recent first, as
// seen from that wallet. limit <= 0 returns everything.
func (s *TransferServiceImpl) GetTransactionHistory(ctx context.Context, walletID string, limit int) ([]domain.Transaction, error) {
	return s.history(ctx, walletID, ports.TransactionFilter{Limit: limit})
}

// GetTransactionHistoryByDate returns the wallet's records within [from, to].
func (s *TransferServiceImpl) GetTransactionHistoryByDate(ctx context.Context, walletID string, from, to time.Time) ([]domain.Transaction, error) {
	if from.After(to) {
		return nil, apperror.Validation("from must not be after to")
	}
	return s.history(ctx, walletID, ports.TransactionFilter{From: &from, To: &to})
}

func (s *TransferServiceImpl) history(ctx context.Context, walletID string, filter ports.TransactionFilter) ([]domain.Transaction, error) {
	if _, err := s.GetWallet(ctx, walletID); err != nil {
		return nil, err
	}
	txns, err := s.store.ListTransactions(ctx, walletID, filter)
	if err != nil {
		return nil, s.reject(s.log, err)
	}
	views := make([]domain.Transaction, len(txns))
	for i, t := range txns {
		views[i] = t.ForWallet(walletID)
	}
	return views, nil
}

// SupplyStats summarizes balances straight from the store.
func (s *TransferServiceImpl) SupplyStats(ctx context.Context) (*ports.SupplyStats, error) {
	wallets, err := s.store.ListWallets(ctx)
	if err != nil {
		return nil, s.reject(s.log, err)
	}

	stats := &ports.SupplyStats{TotalSupply: s.master.InitialSupply}
	for _, w := range wallets {
		if s.master.Is(w.ID) {
			stats.MasterBalance = w.Balance
			continue
		}
		stats.WalletCount++
		if w.Locked {
			stats.LockedWallets++
		} else {
			stats.ActiveWallets++
		}
		stats.Circulating = stats.Circulating.Add(w.Balance)
	}

	// Reserved points are debited from the source but not yet credited.
	pending, err := s.pendingTotal(ctx, wallets)
	if err != nil {
		return nil, s.reject(s.log, err)
	}
	stats.Balanced = stats.Circulating.Add(stats.MasterBalance).Add(pending).Equal(stats.TotalSupply)
	return stats, nil
}

func (s *TransferServiceImpl) pendingTotal(ctx context.Context, wallets []domain.Wallet) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, w := range wallets {
		txns, err := s.store.ListTransactions(ctx, w.ID, ports.TransactionFilter{})
		if err != nil {
			return total, err
		}
		for _, t := range txns {
			if t.FromWalletID == w.ID && t.Status == domain.TransactionStatusPending {
				total = total.Add(t.Amount)
			}
		}
	}
	return total, nil
}

// ReserveTransfer debits the source and records a PENDING transfer that
// ConfirmPending or CancelPending later settles. The caller must own the
// source and present its transfer OTP.
func (s *TransferServiceImpl) ReserveTransfer(ctx context.Context, req ports.TransferRequest) (*ports.TransferResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.With().Str("op", "reserve").Str("from", req.FromWalletID).Str("to", req.ToWalletID).
		Str("amount", req.Amount.String()).Logger()

	if err := s.checkAmount(req.Amount, true); err != nil {
		return nil, s.reject(log, err)
	}
	from, _, err := s.checkWallets(ctx, req.FromWalletID, req.ToWalletID, req.Description)
	if err != nil {
		return nil, s.reject(log, err)
	}
	if req.SubjectID == "" || req.SubjectID != from.OwnerID {
		return nil, s.reject(log, apperror.ErrNotWalletOwner())
	}
	if !from.HasSufficientBalance(req.Amount) {
		return nil, s.reject(log, apperror.ErrInsufficientFunds())
	}
	if err := s.verifyOTP(ctx, from.OwnerID, req.OTPCode); err != nil {
		return nil, s.reject(log, err)
	}

	receipt, err := s.store.ReserveTransfer(ctx, s.command(req.FromWalletID, req.ToWalletID, req.Amount,
		req.Description, domain.TransactionTypeTransfer, req.OTPCode))
	if err != nil {
		return nil, s.reject(log, err)
	}
	s.cache.Apply(receipt)

	log.Info().Str("tx_id", receipt.Transaction.ID).Msg("transfer reserved")
	s.record(ctx, from.OwnerID, domain.AuditActionReserve, receipt.Transaction)

	return &ports.TransferResult{
		Success:       true,
		Message:       "transfer pending confirmation",
		TransactionID: receipt.Transaction.ID,
		NewBalance:    receipt.FromBalance,
	}, nil
}

// ConfirmPending completes a reserved transfer once the source owner's
// transfer OTP verifies.
func (s *TransferServiceImpl) ConfirmPending(ctx context.Context, txID, subjectID, otpCode string) (*ports.TransferResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.With().Str("op", "confirm").Str("tx_id", txID).Str("subject_id", subjectID).Logger()

	if _, err := s.pendingOwnedBy(ctx, txID, subjectID); err != nil {
		return nil, s.reject(log, err)
	}
	if err := s.verifyOTP(ctx, subjectID, otpCode); err != nil {
		return nil, s.reject(log, err)
	}

	receipt, err := s.store.CompletePending(ctx, txID)
	if err != nil {
		return nil, s.reject(log, err)
	}
	s.cache.Apply(receipt)

	log.Info().Msg("pending transfer completed")
	s.record(ctx, subjectID, domain.AuditActionConfirm, receipt.Transaction)

	return &ports.TransferResult{
		Success:       true,
		Message:       "transfer completed",
		TransactionID: receipt.Transaction.ID,
		NewBalance:    receipt.FromBalance,
	}, nil
}

// CancelPending cancels a reserved transfer and refunds its source.
func (s *TransferServiceImpl) CancelPending(ctx context.Context, txID, subjectID string) (*ports.TransferResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.With().Str("op", "cancel").Str("tx_id", txID).Str("subject_id", subjectID).Logger()

	if _, err := s.pendingOwnedBy(ctx, txID, subjectID); err != nil {
		return nil, s.reject(log, err)
	}

	receipt, err := s.store.CancelPending(ctx, txID)
	if err != nil {
		return nil, s.reject(log, err)
	}
	s.cache.Apply(receipt)

	log.Info().Msg("pending transfer cancelled")
	s.record(ctx, subjectID, domain.AuditActionCancel, receipt.Transaction)

	return &ports.TransferResult{
		Success:       true,
		Message:       "transfer cancelled",
		TransactionID: receipt.Transaction.ID,
		NewBalance:    receipt.FromBalance,
	}, nil
}

func (s *TransferServiceImpl) pendingOwnedBy(ctx context.Context, txID, subjectID string) (*domain.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if t == nil {
		return nil, apperror.ErrTransactionNotFound()
	}
	if t.IsTerminal() {
		return nil, apperror.ErrTransactionFinal()
	}
	from, err := s.cache.Get(ctx, t.FromWalletID)
	if err != nil {
		return nil, err
	}
	if from == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	if from.OwnerID != subjectID {
		return nil, apperror.ErrNotWalletOwner()
	}
	// Settlement touches both sides; cache the destination before the store
	// unit so the receipt lands on it.
	if _, err := s.cache.Get(ctx, t.ToWalletID); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TransferServiceImpl) checkAmount(amount decimal.Decimal, capped bool) error {
	if !amount.IsPositive() {
		return apperror.ErrInvalidAmount()
	}
	if !domain.WithinScale(amount) {
		return apperror.ErrAmountPrecision()
	}
	if capped && amount.GreaterThan(s.policy.MaxTransfer) {
		return apperror.ErrExceedsLimit()
	}
	return nil
}

// checkWallets runs the self-transfer, description, existence and lock
// checks in that order.
func (s *TransferServiceImpl) checkWallets(ctx context.Context, fromID, toID, description string) (from, to *domain.Wallet, err error) {
	if fromID == toID {
		return nil, nil, apperror.ErrSelfTransfer()
	}
	if strings.TrimSpace(description) == "" {
		return nil, nil, apperror.ErrMissingDescription()
	}

	if from, err = s.cache.Get(ctx, fromID); err != nil {
		return nil, nil, err
	}
	if to, err = s.cache.Get(ctx, toID); err != nil {
		return nil, nil, err
	}
	if from == nil || to == nil {
		return nil, nil, apperror.ErrWalletNotFound()
	}
	if !from.CanTransact() || !to.CanTransact() {
		return nil, nil, apperror.ErrWalletLocked()
	}
	return from, to, nil
}

func (s *TransferServiceImpl) verifyOTP(ctx context.Context, subjectID, code string) error {
	ok, err := s.otp.Verify(ctx, subjectID, code, domain.OTPPurposeTransfer)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.ErrInvalidOTP()
	}
	return nil
}

func (s *TransferServiceImpl) command(from, to string, amount decimal.Decimal, description string,
	txType domain.TransactionType, otp string) ports.TransferCommand {
	return ports.TransferCommand{
		ID:           s.ids.NewID(),
		FromWalletID: from,
		ToWalletID:   to,
		Amount:       amount,
		Description:  strings.TrimSpace(description),
		Type:         txType,
		OTPUsed:      otp,
		Timestamp:    s.now().UTC(),
	}
}

// reject logs err and converts it to an *apperror.AppError. Anything that is
// not already an AppError is a storage failure.
func (s *TransferServiceImpl) reject(log zerolog.Logger, err error) error {
	if appErr, ok := apperror.As(err); ok {
		if appErr.Kind == apperror.KindPersistence {
			log.Error().Err(err).Msg("ledger operation failed")
		} else {
			log.Warn().Str("error_code", appErr.Code).Msg(appErr.Message)
		}
		return appErr
	}
	log.Error().Err(err).Msg("ledger operation failed")
	return apperror.ErrPersistence(err)
}

func (s *TransferServiceImpl) record(ctx context.Context, actorID string, action domain.AuditAction, t domain.Transaction) {
	details, _ := json.Marshal(map[string]string{
		"from":   t.FromWalletID,
		"to":     t.ToWalletID,
		"amount": t.Amount.String(),
		"type":   string(t.Type),
		"status": string(t.Status),
	})
	s.auditLog(ctx, &domain.AuditLog{
		ActorID:      actorID,
		Action:       action,
		ResourceType: "transaction",
		ResourceID:   t.ID,
		Details:      string(details),
	})
}

func (s *TransferServiceImpl) auditLog(ctx context.Context, entry *domain.AuditLog) {
	if s.audit == nil {
		return
	}
	entry.ID = uuid.New()
	entry.CreatedAt = s.now().UTC()
	s.audit.Log(ctx, entry)
}
