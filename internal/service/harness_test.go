package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"points-ledger/internal/adapter/storage/memory"
	"points-ledger/internal/core/domain"
	"points-ledger/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var harnessStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// seqIDs hands out predictable identifiers.
type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

type harnessConfig struct {
	supply    int64
	initial   int64
	storeOpts []memory.Option
}

// ledgerHarness wires the orchestrator to the in-memory adapters.
type ledgerHarness struct {
	svc     *TransferServiceImpl
	store   *memory.LedgerStore
	users   *memory.UserRepo
	otp     *OTPService
	cache   *WalletCache
	clock   *testClock
	master  domain.MasterWallet
	adminID string
}

func newHarness(t *testing.T, cfg harnessConfig) *ledgerHarness {
	t.Helper()
	if cfg.supply == 0 {
		cfg.supply = 10_000_000
	}

	clock := &testClock{t: harnessStart}
	users := memory.NewUserRepo()
	store := memory.NewLedgerStore(users, cfg.storeOpts...)
	master := domain.NewMasterWallet(decimal.NewFromInt(cfg.supply))
	ids := &seqIDs{}

	otp := NewOTPService(memory.NewOTPStore(clock.Now), NewLogSender(zerolog.Nop()), users, 0, 0, zerolog.Nop())
	otp.now = clock.Now

	cache := NewWalletCache(store, 0)
	svc := NewTransferService(store, cache, otp, users, nil, ids, master, TransferPolicy{
		MaxTransfer:   DefaultMaxTransfer,
		InitialPoints: decimal.NewFromInt(cfg.initial),
	}, zerolog.Nop(), WithClock(clock.Now))

	boot := NewBootstrapper(users, store, svc, NewArgon2HashServiceWithParams(cheapArgon2), ids, master, zerolog.Nop())
	boot.now = clock.Now
	require.NoError(t, boot.Run(context.Background(), AdminAccount{Username: "admin", Password: "admin-pw"}))
	require.NoError(t, cache.Warm(context.Background()))

	admin, err := users.GetByUsername(context.Background(), "admin")
	require.NoError(t, err)
	require.NotNil(t, admin)

	return &ledgerHarness{
		svc:     svc,
		store:   store,
		users:   users,
		otp:     otp,
		cache:   cache,
		clock:   clock,
		master:  master,
		adminID: admin.ID,
	}
}

// openUser creates a user and their wallet and returns (userID, walletID).
func (h *ledgerHarness) openUser(t *testing.T, username string) (string, string) {
	t.Helper()
	ctx := context.Background()
	u := &domain.User{ID: "user-" + username, Username: username, Email: username + "@example.com", Role: domain.RoleUser}
	require.NoError(t, h.users.Create(ctx, u))
	w, err := h.svc.OpenWallet(ctx, u.ID)
	require.NoError(t, err)
	return u.ID, w.ID
}

func (h *ledgerHarness) code(t *testing.T, subjectID string) string {
	t.Helper()
	code, err := h.otp.Generate(context.Background(), subjectID, domain.OTPPurposeTransfer)
	require.NoError(t, err)
	return code
}

// fund issues amount from the master supply into walletID.
func (h *ledgerHarness) fund(t *testing.T, walletID string, amount int64) {
	t.Helper()
	_, err := h.svc.IssuePointsFromMaster(context.Background(), ports.IssueRequest{
		AdminID:     h.adminID,
		ToWalletID:  walletID,
		Amount:      decimal.NewFromInt(amount),
		Description: "funding",
		OTPCode:     h.code(t, h.adminID),
	})
	require.NoError(t, err)
}

func (h *ledgerHarness) transfer(t *testing.T, ownerID, from, to string, amount int64) (*ports.TransferResult, error) {
	t.Helper()
	return h.svc.TransferPoints(context.Background(), ports.TransferRequest{
		FromWalletID: from,
		ToWalletID:   to,
		Amount:       decimal.NewFromInt(amount),
		Description:  "gift",
		OTPCode:      h.code(t, ownerID),
	})
}

// storeBalance reads the authoritative balance.
func (h *ledgerHarness) storeBalance(t *testing.T, walletID string) decimal.Decimal {
	t.Helper()
	w, err := h.store.GetWallet(context.Background(), walletID)
	require.NoError(t, err)
	require.NotNil(t, w)
	return w.Balance
}

// cachedBalance reads through the orchestrator.
func (h *ledgerHarness) cachedBalance(t *testing.T, walletID string) decimal.Decimal {
	t.Helper()
	w, err := h.svc.GetWallet(context.Background(), walletID)
	require.NoError(t, err)
	return w.Balance
}

// requireConserved checks the master plus every other wallet plus pending
// reservations add up to the supply, in both the store and the cache.
func (h *ledgerHarness) requireConserved(t *testing.T) {
	t.Helper()
	stats, err := h.svc.SupplyStats(context.Background())
	require.NoError(t, err)
	require.True(t, stats.Balanced, "supply not conserved: %+v", stats)

	wallets, err := h.store.ListWallets(context.Background())
	require.NoError(t, err)
	for _, w := range wallets {
		require.True(t, w.Balance.Equal(h.cachedBalance(t, w.ID)), "cache diverged for %s", w.ID)
	}
}
