package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mamadousy92i/Mobile-Money-Transfert/config"
	httpHandler "github.com/mamadousy92i/Mobile-Money-Transfert/internal/adapter/http/handler"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/adapter/identity"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/adapter/notify"
	pgStorage "github.com/mamadousy92i/Mobile-Money-Transfert/internal/adapter/storage/postgres"
	redisStorage "github.com/mamadousy92i/Mobile-Money-Transfert/internal/adapter/storage/redis"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/domain"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/ports"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/gateway"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/service"
	"github.com/mamadousy92i/Mobile-Money-Transfert/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("mobile-money-core", cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Mobile Money Transfer")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	txRepo := pgStorage.NewTransactionRepo(pool)
	wdRepo := pgStorage.NewWithdrawalRepo(pool)
	seqRepo := pgStorage.NewSequenceRepo(pool, cfg.Transfer.NumSeed)
	idempotencyRepo := pgStorage.NewIdempotencyRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Build the simulated operator gateways from configuration
	channels, err := gateway.BuildChannels(cfg.Transfer.Currency, cfg.Channels)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid channel configuration")
	}
	registry := gateway.NewRegistryFromChannels(channels, log)
	log.Info().Int("channels", len(channels)).Msg("Gateway registry ready")

	// Transfer rules (amount bounds, phone pattern, conversion rates)
	rules, err := service.NewTransferRules(cfg.Transfer)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid transfer configuration")
	}

	commission, err := domain.NewFeeSchedule(
		cfg.Withdrawal.Commission.Percentage,
		cfg.Withdrawal.Commission.Fixed,
		cfg.Withdrawal.Commission.Min,
		cfg.Withdrawal.Commission.Max,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid commission configuration")
	}

	// Out-of-scope collaborators behind narrow ports
	notifier := notify.NewWebhookNotifier(cfg.Notify, log)
	resolver := identity.NewHTTPResolver(cfg.Identity, log)

	// Initialize core services
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	transferSvc := service.NewTransferService(
		txRepo,
		seqRepo,
		idempotencyRepo,
		idempotencyCache,
		registry,
		resolver,
		notifier,
		transactor,
		rules,
		log,
	)
	withdrawalSvc := service.NewWithdrawalService(
		wdRepo,
		txRepo,
		notifier,
		transactor,
		commission,
		cfg.Transfer.CodeAttempts,
		log,
	)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Load OpenAPI spec for Swagger UI
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		TransferSvc:    transferSvc,
		WithdrawalSvc:  withdrawalSvc,
		Registry:       registry,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
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
