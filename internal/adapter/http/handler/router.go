package handler

import (
	"custodial-wallet/internal/adapter/http/middleware"
	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	KeySvc         ports.APIKeyService
	LedgerSvc      ports.LedgerService
	HistorySvc     ports.HistoryService
	ReconcileSvc   ports.ReconciliationService
	RateLimitStore ports.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Public         PublicConfig
	MetricsEnabled bool
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(middleware.DefaultMaxBodyBytes))

	if deps.MetricsEnabled {
		r.Use(metrics.Instrument())
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc, deps.Public)
	r.GET("/config/public", authHandler.PublicConfig)
	auth := r.Group("/auth/google", rl("auth"))
	{
		auth.GET("", authHandler.ProviderInfo)
		auth.GET("/callback", authHandler.Callback)
	}

	// --- Gateway callbacks (signature-authenticated) ---
	webhookHandler := NewWebhookHandler(deps.ReconcileSvc)
	r.POST("/wallet/paystack/webhook", rl("webhook"), webhookHandler.Paystack)

	authenticate := middleware.Authenticate(deps.AuthSvc, deps.KeySvc)

	// --- Key management (user sessions only) ---
	keyHandler := NewKeyHandler(deps.KeySvc)
	keys := r.Group("/keys", authenticate, middleware.RequireUser(), rl("keys"))
	{
		keys.GET("", keyHandler.List)
		keys.POST("/create", keyHandler.Create)
		keys.POST("/rollover", keyHandler.Rollover)
		keys.POST("/revoke", keyHandler.Revoke)
	}

	// --- Wallet (user sessions or scoped API keys) ---
	walletHandler := NewWalletHandler(deps.LedgerSvc, deps.HistorySvc)
	read := middleware.RequirePermission(domain.PermissionRead)
	wallet := r.Group("/wallet", authenticate)
	{
		wallet.POST("/deposit", middleware.RequirePermission(domain.PermissionDeposit), rl("wallet_write"), walletHandler.Deposit)
		wallet.GET("/deposit/:reference/status", read, rl("wallet_read"), walletHandler.DepositStatus)
		wallet.GET("/balance", read, rl("wallet_read"), walletHandler.Balance)
		wallet.POST("/transfer", middleware.RequirePermission(domain.PermissionTransfer), rl("wallet_write"), walletHandler.Transfer)
		wallet.GET("/transactions", read, rl("wallet_read"), walletHandler.Transactions)
	}

	return r
}
