// Package app wires the adapters, services and HTTP router from config.
package app

import (
	"context"
	"fmt"
	"time"

	"points-ledger/config"
	httpHandler "points-ledger/internal/adapter/http/handler"
	memStorage "points-ledger/internal/adapter/storage/memory"
	pgStorage "points-ledger/internal/adapter/storage/postgres"
	redisStorage "points-ledger/internal/adapter/storage/redis"
	"points-ledger/internal/core/domain"
	"points-ledger/internal/core/ports"
	"points-ledger/internal/service"
	"points-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const otpPurgeInterval = time.Minute

// App is a fully wired points ledger.
type App struct {
	Router    *gin.Engine
	Transfers *service.TransferServiceImpl
	Auth      *service.AuthServiceImpl
	OTP       *service.OTPService
	Tokens    *service.JWTTokenService

	audit   *service.AuditServiceImpl
	log     zerolog.Logger
	cancel  context.CancelFunc
	closers []func()
}

// Options overrides pieces of the wiring. Zero values use config.
type Options struct {
	// Redis, when set, is used instead of dialing cfg.Redis.
	Redis *goredis.Client
	// OTPSender replaces the log-only delivery channel.
	OTPSender ports.OTPSender
}

// Build creates every component, bootstraps the ledger and warms the cache.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts Options) (*App, error) {
	a := &App{log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	var (
		users     ports.UserRepository
		store     ports.LedgerStore
		auditRepo ports.AuditRepository
		checkers  []ports.HealthChecker
	)

	switch cfg.Ledger.Driver {
	case "postgres":
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		users = pgStorage.NewUserRepo(pool)
		store = pgStorage.NewLedgerStore(pool)
		auditRepo = pgStorage.NewAuditRepository(pool)
		checkers = append(checkers, pgStorage.NewHealthCheck(pool))
	case "memory":
		memUsers := memStorage.NewUserRepo()
		users = memUsers
		store = memStorage.NewLedgerStore(memUsers)
		checkers = append(checkers, memStorage.NewHealthCheck())
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", cfg.Ledger.Driver)
	}

	var (
		otpStore ports.OTPStore
		limiter  ports.RateLimiter
	)

	switch cfg.OTP.Store {
	case "redis":
		rdb := opts.Redis
		if rdb == nil {
			var err error
			rdb, err = redisStorage.NewClient(ctx, cfg.Redis, log)
			if err != nil {
				return nil, fmt.Errorf("connect redis: %w", err)
			}
			a.closers = append(a.closers, func() { _ = rdb.Close() })
		}
		otpStore = redisStorage.NewOTPStore(rdb)
		limiter = redisStorage.NewRateLimitStore(rdb)
		checkers = append(checkers, redisStorage.NewHealthCheck(rdb))
	case "memory":
		memOTP := memStorage.NewOTPStore(nil)
		otpStore = memOTP
		limiter = memStorage.NewRateLimiter(nil)

		janitorCtx, cancel := context.WithCancel(context.Background())
		a.cancel = cancel
		go purgeExpired(janitorCtx, memOTP, log)
	default:
		return nil, fmt.Errorf("unknown otp store %q", cfg.OTP.Store)
	}

	sender := opts.OTPSender
	if sender == nil {
		sender = service.NewLogSender(logger.Component(log, "otp"))
	}

	master := domain.NewMasterWallet(decimal.NewFromInt(cfg.Ledger.MasterSupply))
	ids := service.NewUUIDGenerator()
	hashSvc := service.NewArgon2HashService()

	a.audit = service.NewAuditService(auditRepo, logger.Component(log, "audit"))
	a.Tokens = service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	a.OTP = service.NewOTPService(otpStore, sender, users, cfg.OTP.TTL, cfg.OTP.Length, logger.Component(log, "otp"))

	cache := service.NewWalletCache(store, cfg.Ledger.HistoryLimit)
	a.Transfers = service.NewTransferService(store, cache, a.OTP, users, a.audit, ids, master, service.TransferPolicy{
		MaxTransfer:   decimal.NewFromInt(cfg.Ledger.MaxTransfer),
		InitialPoints: decimal.NewFromInt(cfg.Ledger.InitialUserPoints),
	}, logger.Component(log, "transfer"))
	a.Auth = service.NewAuthService(users, a.Transfers, hashSvc, a.Tokens, ids, a.audit, logger.Component(log, "auth"))

	boot := service.NewBootstrapper(users, store, a.Transfers, hashSvc, ids, master, logger.Component(log, "bootstrap"))
	if err := boot.Run(ctx, service.AdminAccount{
		Username: cfg.Admin.Username,
		Password: cfg.Admin.Password,
		FullName: cfg.Admin.FullName,
		Email:    cfg.Admin.Email,
	}); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	if err := cache.Warm(ctx); err != nil {
		return nil, fmt.Errorf("warm wallet cache: %w", err)
	}
	log.Info().Int("wallets", cache.Len()).Msg("wallet cache warmed")

	a.Router = httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        a.Auth,
		TransferSvc:    a.Transfers,
		OTP:            a.OTP,
		OTPTTL:         cfg.OTP.TTL,
		TokenSvc:       a.Tokens,
		RateLimiter:    limiter,
		OTPPerMinute:   cfg.RateLimit.OTPPerMinute,
		HealthCheckers: checkers,
		AuditSvc:       a.audit,
		Logger:         logger.Component(log, "http"),
	})

	ok = true
	return a, nil
}

// Close stops background work, flushes pending audit writes and releases
// connections. It is safe to call on a partially built App.
func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.audit != nil {
		a.audit.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func purgeExpired(ctx context.Context, store *memStorage.OTPStore, log zerolog.Logger) {
	ticker := time.NewTicker(otpPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.PurgeExpired(); n > 0 {
				log.Debug().Int("purged", n).Msg("expired otp codes removed")
			}
		}
	}
}
