package service

import (
	"context"
	"fmt"
	"sync"

	"points-ledger/internal/core/domain"
	"points-ledger/internal/core/ports"

	"golang.org/x/sync/singleflight"
)

// maxLoadAttempts bounds how often a lazy load re-reads a wallet that a
// concurrent commit may have changed.
const maxLoadAttempts = 3

// WalletCache mirrors committed wallet state for reads. The store stays
// authoritative: entries change only through Put and Apply, both fed by
// committed store results. Loads install an entry only if no Put or Apply
// ran between their store read and the install.
type WalletCache struct {
	store        ports.LedgerStore
	historyLimit int

	mu      sync.RWMutex
	wallets map[string]*domain.Wallet
	byOwner map[string]string
	version uint64

	group singleflight.Group
}

// NewWalletCache creates an empty cache over store.
func NewWalletCache(store ports.LedgerStore, historyLimit int) *WalletCache {
	if historyLimit <= 0 {
		historyLimit = domain.DefaultHistoryLimit
	}
	return &WalletCache{
		store:        store,
		historyLimit: historyLimit,
		wallets:      make(map[string]*domain.Wallet),
		byOwner:      make(map[string]string),
	}
}

// Warm bulk-loads every wallet and its recent history.
func (c *WalletCache) Warm(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		seen := c.currentVersion()

		wallets, err := c.store.ListWallets(ctx)
		if err != nil {
			return fmt.Errorf("list wallets: %w", err)
		}
		loaded := make([]*domain.Wallet, 0, len(wallets))
		for i := range wallets {
			w := wallets[i]
			if err := c.loadHistory(ctx, &w); err != nil {
				return err
			}
			loaded = append(loaded, &w)
		}

		c.mu.Lock()
		if c.version != seen {
			c.mu.Unlock()
			if attempt < maxLoadAttempts {
				continue
			}
			return fmt.Errorf("warm cache: wallets kept changing")
		}
		for _, w := range loaded {
			c.wallets[w.ID] = w
			c.indexOwner(w)
		}
		c.mu.Unlock()
		return nil
	}
}

// Get returns a copy of the wallet, loading it from the store on a miss.
// A missing wallet yields nil, nil.
func (c *WalletCache) Get(ctx context.Context, id string) (*domain.Wallet, error) {
	c.mu.RLock()
	w, ok := c.wallets[id]
	if ok {
		defer c.mu.RUnlock()
		return w.Clone(), nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do("wallet:"+id, func() (interface{}, error) {
		return c.load(ctx, func() (*domain.Wallet, error) { return c.store.GetWallet(ctx, id) })
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Wallet).Clone(), nil
}

// GetByOwner returns a copy of the owner's wallet.
func (c *WalletCache) GetByOwner(ctx context.Context, ownerID string) (*domain.Wallet, error) {
	c.mu.RLock()
	if id, ok := c.byOwner[ownerID]; ok {
		w := c.wallets[id]
		defer c.mu.RUnlock()
		return w.Clone(), nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do("owner:"+ownerID, func() (interface{}, error) {
		return c.load(ctx, func() (*domain.Wallet, error) { return c.store.GetWalletByOwner(ctx, ownerID) })
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Wallet).Clone(), nil
}

// load fetches a wallet and its history and installs it unless an entry
// arrived meanwhile. A fetch that raced a commit is retried; after
// maxLoadAttempts the fresh read is returned without caching it. The result
// is a private copy.
func (c *WalletCache) load(ctx context.Context, fetch func() (*domain.Wallet, error)) (*domain.Wallet, error) {
	for attempt := 1; ; attempt++ {
		seen := c.currentVersion()

		w, err := fetch()
		if err != nil {
			return nil, fmt.Errorf("load wallet: %w", err)
		}
		if w == nil {
			return (*domain.Wallet)(nil), nil
		}
		if err := c.loadHistory(ctx, w); err != nil {
			return nil, err
		}

		c.mu.Lock()
		if existing, ok := c.wallets[w.ID]; ok {
			c.mu.Unlock()
			return existing.Clone(), nil
		}
		if c.version != seen {
			c.mu.Unlock()
			if attempt < maxLoadAttempts {
				continue
			}
			return w, nil
		}
		c.wallets[w.ID] = w
		c.indexOwner(w)
		c.mu.Unlock()
		return w.Clone(), nil
	}
}

func (c *WalletCache) currentVersion() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

func (c *WalletCache) loadHistory(ctx context.Context, w *domain.Wallet) error {
	txns, err := c.store.ListTransactions(ctx, w.ID, ports.TransactionFilter{Limit: c.historyLimit})
	if err != nil {
		return fmt.Errorf("load history for %s: %w", w.ID, err)
	}
	w.History = make([]domain.Transaction, len(txns))
	for i, t := range txns {
		w.History[i] = t.ForWallet(w.ID)
	}
	return nil
}

// Put installs a committed wallet row, keeping any cached history.
func (c *WalletCache) Put(w *domain.Wallet) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.version++
	next := w.Clone()
	if existing, ok := c.wallets[w.ID]; ok && next.History == nil {
		next.History = existing.History
	}
	c.wallets[next.ID] = next
	c.indexOwner(next)
}

// Apply mirrors a committed receipt: both balances are taken from the store
// and each side records its own view of the transaction. Wallets that are
// not cached are left to be loaded on demand; the version bump makes any
// load already in flight re-read them.
func (c *WalletCache) Apply(r *ports.TransferReceipt) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.version++
	t := r.Transaction
	if w, ok := c.wallets[t.FromWalletID]; ok {
		w.Balance = r.FromBalance
		w.RecordTransaction(t.ForWallet(w.ID), c.historyLimit)
	}
	if w, ok := c.wallets[t.ToWalletID]; ok {
		w.Balance = r.ToBalance
		w.RecordTransaction(t.ForWallet(w.ID), c.historyLimit)
	}
}

// Len returns the number of cached wallets.
func (c *WalletCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.wallets)
}

func (c *WalletCache) indexOwner(w *domain.Wallet) {
	if _, ok := c.byOwner[w.OwnerID]; !ok {
		c.byOwner[w.OwnerID] = w.ID
	}
}
