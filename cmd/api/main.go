package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"custodial-wallet/config"
	"custodial-wallet/internal/adapter/gateway/paystack"
	httpHandler "custodial-wallet/internal/adapter/http/handler"
	"custodial-wallet/internal/adapter/identity/google"
	"custodial-wallet/internal/adapter/ratelimit"
	"custodial-wallet/internal/adapter/storage/memory"
	pgStorage "custodial-wallet/internal/adapter/storage/postgres"
	redisStorage "custodial-wallet/internal/adapter/storage/redis"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/internal/service"
	"custodial-wallet/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// repositories is the storage wiring shared by both drivers.
type repositories struct {
	users      ports.UserRepository
	wallets    ports.WalletRepository
	txns       ports.TransactionRepository
	keys       ports.APIKeyRepository
	idemp      ports.IdempotencyRepository
	events     ports.GatewayEventRepository
	audit      ports.AuditRepository
	transactor ports.DBTransactor
	health     ports.HealthChecker
	close      func()
}

func main() {
	// A missing .env is fine; real deployments use the environment.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("WALLET_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting Custodial Wallet")

	ctx := context.Background()

	repos, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise storage")
	}
	defer repos.close()

	healthCheckers := []ports.HealthChecker{repos.health}

	// Redis is optional: without it idempotency relies on the durable log and
	// rate limiting falls back to in-process token buckets.
	var idempCache ports.IdempotencyCache
	var rateLimitStore ports.RateLimitStore = ratelimit.NewLocalStore()
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		idempCache = redisStorage.NewIdempotencyCache(rdb)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("Redis disabled, using in-process rate limiting")
	}

	// Core services
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	gateway := paystack.NewClient(cfg.Gateway, nil, log)
	verifier := google.NewVerifier(cfg.Identity, nil)

	if cfg.Gateway.AllowStub {
		log.Warn().Msg("Gateway stub enabled, deposits will never reach Paystack")
	}
	if cfg.Identity.AllowInsecureMock {
		log.Warn().Msg("Insecure mock sign-in enabled, do not use in production")
	}

	// Business services
	authSvc := service.NewAuthService(
		repos.users, repos.wallets, repos.transactor,
		tokenSvc, verifier, cfg.Identity,
		cfg.Ledger.WalletNumberRetries, log,
	)
	keySvc := service.NewAPIKeyService(
		repos.keys, repos.users, service.NewBlake2bKeyHasher(), repos.transactor,
		cfg.Ledger.MaxActiveKeys, log,
	)
	ledgerSvc := service.NewLedgerService(
		repos.wallets, repos.txns, repos.idemp, idempCache, gateway, repos.transactor,
		cfg.Ledger.WalletNumberRetries, cfg.Ledger.ReferenceRetries, log,
	)
	reconcileSvc := service.NewReconciliationService(
		repos.txns, repos.wallets, repos.events, sigSvc, repos.transactor,
		cfg.Gateway.SecretKey, cfg.Gateway.AllowUnsignedWebhooks,
		cfg.Ledger.WalletNumberRetries, log,
	)
	historySvc := service.NewHistoryService(repos.txns)
	auditSvc := service.NewAuditService(repos.audit, log)

	sweeper := service.NewSweeper(repos.txns, cfg.Ledger.PendingDepositTTL, cfg.Ledger.SweepSchedule, log)
	if err := sweeper.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start pending deposit sweeper")
	}
	defer sweeper.Stop()

	// Load OpenAPI spec for Swagger UI
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		KeySvc:         keySvc,
		LedgerSvc:      ledgerSvc,
		HistorySvc:     historySvc,
		ReconcileSvc:   reconcileSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: healthCheckers,
		AuditSvc:       auditSvc,
		Public: httpHandler.PublicConfig{
			GoogleClientID:   cfg.Identity.GoogleClientID,
			GatewayPublicKey: cfg.Gateway.PublicKey,
		},
		MetricsEnabled: cfg.Metrics.Enabled,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// openStorage builds the repositories for the configured driver.
func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*repositories, error) {
	switch cfg.Storage.Driver {
	case "memory":
		log.Warn().Msg("Using in-memory storage, all state is lost on restart")
		store := memory.New()
		return &repositories{
			users:      store.Users(),
			wallets:    store.Wallets(),
			txns:       store.Transactions(),
			keys:       store.APIKeys(),
			idemp:      store.Idempotency(),
			events:     store.GatewayEvents(),
			audit:      store.Audit(),
			transactor: store,
			health:     store,
			close:      func() {},
		}, nil

	case "postgres":
		if cfg.Database.AutoMigrate {
			if err := pgStorage.Migrate(cfg.Database.DSN(), log); err != nil {
				return nil, fmt.Errorf("migrating database: %w", err)
			}
		}

		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		log.Info().Msg("PostgreSQL connected")

		return &repositories{
			users:      pgStorage.NewUserRepo(pool),
			wallets:    pgStorage.NewWalletRepo(pool),
			txns:       pgStorage.NewTransactionRepo(pool),
			keys:       pgStorage.NewAPIKeyRepo(pool),
			idemp:      pgStorage.NewIdempotencyRepo(pool),
			events:     pgStorage.NewGatewayEventRepo(pool),
			audit:      pgStorage.NewAuditRepo(pool),
			transactor: pgStorage.NewTransactor(pool),
			health:     pgStorage.NewHealthCheck(pool),
			close:      pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
