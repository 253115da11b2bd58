package service

import (
	"context"
	"fmt"
	"time"

	"points-ledger/internal/core/domain"
	"points-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

// AdminAccount describes the administrator ensured at startup. An empty
// Username skips admin creation.
type AdminAccount struct {
	Username string
	Password string
	FullName string
	Email    string
}

// Bootstrapper creates the system user, the master wallet and the
// configured administrator when they are missing.
type Bootstrapper struct {
	users   ports.UserRepository
	store   ports.LedgerStore
	wallets ports.TransferService
	hashSvc ports.HashService
	ids     ports.IDGenerator
	master  domain.MasterWallet
	log     zerolog.Logger
	now     func() time.Time
}

func NewBootstrapper(
	users ports.UserRepository,
	store ports.LedgerStore,
	wallets ports.TransferService,
	hashSvc ports.HashService,
	ids ports.IDGenerator,
	master domain.MasterWallet,
	log zerolog.Logger,
) *Bootstrapper {
	return &Bootstrapper{
		users:   users,
		store:   store,
		wallets: wallets,
		hashSvc: hashSvc,
		ids:     ids,
		master:  master,
		log:     log,
		now:     time.Now,
	}
}

// Run is idempotent.
func (b *Bootstrapper) Run(ctx context.Context, admin AdminAccount) error {
	if err := b.ensureSystemUser(ctx); err != nil {
		return err
	}
	if err := b.ensureMasterWallet(ctx); err != nil {
		return err
	}
	if admin.Username == "" {
		return nil
	}
	return b.ensureAdmin(ctx, admin)
}

func (b *Bootstrapper) ensureSystemUser(ctx context.Context) error {
	u, err := b.users.GetByID(ctx, b.master.OwnerID)
	if err != nil {
		return fmt.Errorf("lookup system user: %w", err)
	}
	if u != nil {
		return nil
	}
	if err := b.users.Create(ctx, &domain.User{
		ID:        b.master.OwnerID,
		Username:  "system",
		FullName:  "System",
		Role:      domain.RoleSystem,
		CreatedAt: b.now().UTC(),
	}); err != nil {
		return fmt.Errorf("create system user: %w", err)
	}
	b.log.Info().Str("user_id", b.master.OwnerID).Msg("system user created")
	return nil
}

func (b *Bootstrapper) ensureMasterWallet(ctx context.Context) error {
	w, err := b.store.GetWallet(ctx, b.master.ID)
	if err != nil {
		return fmt.Errorf("lookup master wallet: %w", err)
	}
	if w != nil {
		return nil
	}
	if err := b.store.UpsertWallet(ctx, b.master.Seed(b.now().UTC())); err != nil {
		return fmt.Errorf("seed master wallet: %w", err)
	}
	b.log.Info().Str("supply", b.master.InitialSupply.String()).Msg("master wallet seeded")
	return nil
}

func (b *Bootstrapper) ensureAdmin(ctx context.Context, admin AdminAccount) error {
	u, err := b.users.GetByUsername(ctx, admin.Username)
	if err != nil {
		return fmt.Errorf("lookup admin: %w", err)
	}
	if u == nil {
		if admin.Password == "" {
			return fmt.Errorf("admin %q has no password configured", admin.Username)
		}
		hash, err := b.hashSvc.Hash(admin.Password)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
		u = &domain.User{
			ID:           b.ids.NewID(),
			Username:     admin.Username,
			PasswordHash: hash,
			FullName:     admin.FullName,
			Email:        admin.Email,
			Role:         domain.RoleAdmin,
			CreatedAt:    b.now().UTC(),
		}
		if err := b.users.Create(ctx, u); err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		b.log.Info().Str("user_id", u.ID).Str("username", u.Username).Msg("admin user created")
	}

	if _, err := b.wallets.OpenWallet(ctx, u.ID); err != nil {
		return fmt.Errorf("open admin wallet: %w", err)
	}
	return nil
}
