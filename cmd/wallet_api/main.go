package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/savings-wallet-ledger/internal/config"
	"github.com/savings-wallet-ledger/internal/data/mongo"
	"github.com/savings-wallet-ledger/internal/data/postgres"
	"github.com/savings-wallet-ledger/internal/logger"
	"github.com/savings-wallet-ledger/internal/platform/gateway"
	"github.com/savings-wallet-ledger/internal/platform/metrics"
	"github.com/savings-wallet-ledger/internal/platform/persistence"
	"github.com/savings-wallet-ledger/internal/platform/security"
	"github.com/savings-wallet-ledger/internal/transaction_processor/components"
	"github.com/savings-wallet-ledger/internal/wallet_api"
	"github.com/savings-wallet-ledger/internal/wallet_api/service"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("wallet_api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Wallet API",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
		"currency", cfg.Ledger.Currency,
	)

	recorder := metrics.NewRecorder("wallet_api")

	// Pending migrations are applied while the pool is opened
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	accountRepo := postgres.NewAccountRepository(log, postgresDB)
	sessionRepo := postgres.NewSessionRepository(log, postgresDB)
	ledgerRepo := postgres.NewTransactionRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	idempotencyRepo := postgres.NewIdempotencyRepository(log, postgresDB)
	savingsRepo := postgres.NewSavingsRepository(log, postgresDB)
	loanRepo := postgres.NewLoanRepository(log, postgresDB)
	statementRepo := mongo.NewStatementRepository(log, mongoDB.Database())

	processor, releaseProcessor := components.CreateProcessingService(
		postgresDB.Pool(),
		accountRepo,
		outboxRepo,
		ledgerRepo,
		recorder,
		log.With("component", "processing"),
		cfg,
	)
	tracker := components.CreateIdempotencyTracker(postgresDB.Pool(), idempotencyRepo, log, cfg)

	tokens := security.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTL)
	passwords := security.NewPasswordHasher(cfg.Auth.BcryptCost)
	verifier := gateway.NewVerifier(cfg.Webhook)
	if !verifier.Required() {
		log.Warn("Webhook signature verification is disabled")
	}

	// Initialize services
	savingsService := service.NewSavingsService(processor, savingsRepo, log)
	services := wallet_api.Services{
		Auth:         service.NewAuthService(accountRepo, sessionRepo, tokens, passwords, cfg.Ledger.Currency, cfg.Auth.RefreshTokenTTL, log),
		Accounts:     service.NewAccountService(postgresDB.Pool(), accountRepo, sessionRepo, log),
		History:      service.NewHistoryService(statementRepo),
		Transactions: service.NewTransactionService(processor, savingsService, ledgerRepo, log),
		Webhooks:     service.NewWebhookService(verifier, tracker, processor, recorder, log.With("component", "webhook")),
		Savings:      savingsService,
		Loans:        service.NewLoanService(processor, savingsService, loanRepo, cfg.Loan, log),
	}

	checks := map[string]wallet_api.HealthCheck{
		"postgres": func(ctx context.Context) error { return postgresDB.Pool().Ping(ctx) },
		"mongodb":  func(ctx context.Context) error { return mongoDB.Database().Client().Ping(ctx, nil) },
	}

	server := wallet_api.NewServer(log, cfg, services, tokens, verifier.ProviderHeader(), recorder, checks)
	log.Info("REST server initialized")

	errChan := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// Stop accepting requests before the pools they depend on go away
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	releaseProcessor()
	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serverErr != nil {
		log.Error("Wallet API shutdown with errors", "error", serverErr)
		os.Exit(1)
	}
	log.Info("Wallet API shutdown completed")
}
