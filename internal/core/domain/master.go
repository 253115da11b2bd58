package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MasterWalletID = "MASTER_WALLET"
	SystemUserID   = "SYSTEM"
)

// DefaultMasterSupply is the total number of points that will ever exist.
var DefaultMasterSupply = decimal.NewFromInt(10_000_000)

// MasterWallet identifies the wallet holding unissued supply. Exactly one is
// constructed at startup and passed to the components that need it.
type MasterWallet struct {
	ID            string
	OwnerID       string
	InitialSupply decimal.Decimal
}

// NewMasterWallet returns the master wallet descriptor for the given supply.
func NewMasterWallet(supply decimal.Decimal) MasterWallet {
	if supply.IsZero() {
		supply = DefaultMasterSupply
	}
	return MasterWallet{
		ID:            MasterWalletID,
		OwnerID:       SystemUserID,
		InitialSupply: supply,
	}
}

// Seed returns the wallet row to create when no master wallet exists yet.
func (m MasterWallet) Seed(now time.Time) *Wallet {
	return &Wallet{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Balance:   m.InitialSupply,
		CreatedAt: now,
	}
}

// Is reports whether walletID names the master wallet.
func (m MasterWallet) Is(walletID string) bool {
	return walletID == m.ID
}
