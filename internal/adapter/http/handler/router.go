package handler

import (
	"time"

	"points-ledger/internal/adapter/http/middleware"
	"points-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	TransferSvc    ports.TransferService
	OTP            ports.OTPAuthority
	OTPTTL         time.Duration
	TokenSvc       ports.TokenService
	RateLimiter    ports.RateLimiter // nil = rate limiting disabled
	OTPPerMinute   int64
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = request audit disabled
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rules := middleware.DefaultRateLimitRules(deps.OTPPerMinute)

	// rl returns the limiter for group, or a no-op when limiting is off.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimiter, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Public routes ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	walletHandler := NewWalletHandler(deps.TransferSvc)
	wallets := v1.Group("/wallets", jwtAuth)
	{
		wallets.GET("/me", walletHandler.Me)
		wallets.GET("/me/transactions", walletHandler.Transactions)
	}

	otpHandler := NewOTPHandler(deps.OTP, deps.OTPTTL)
	v1.POST("/otp", jwtAuth, rl("otp"), otpHandler.Request)

	transferHandler := NewTransferHandler(deps.TransferSvc)
	transfers := v1.Group("/transfers", jwtAuth, rl("transfers"))
	{
		transfers.POST("", transferHandler.Transfer)
		transfers.POST("/pending", transferHandler.Reserve)
		transfers.POST("/:id/confirm", transferHandler.Confirm)
		transfers.POST("/:id/cancel", transferHandler.Cancel)
	}

	// --- Admin routes ---
	adminHandler := NewAdminHandler(deps.TransferSvc)
	admin := v1.Group("/admin", jwtAuth, middleware.RequireAdmin())
	{
		admin.POST("/issue", adminHandler.Issue)
		admin.GET("/supply", adminHandler.Supply)
		admin.GET("/wallets/:id", adminHandler.GetWallet)
		admin.GET("/wallets/:id/transactions", adminHandler.Transactions)
		admin.PUT("/wallets/:id/lock", adminHandler.SetLock)
	}

	return r
}
