package components

import (
	"log/slog"

	"github.com/savings-wallet-ledger/internal/config"
	"github.com/savings-wallet-ledger/internal/domain/account"
	"github.com/savings-wallet-ledger/internal/domain/idempotency"
	"github.com/savings-wallet-ledger/internal/domain/ledger"
	"github.com/savings-wallet-ledger/internal/domain/outbox"
	"github.com/savings-wallet-ledger/internal/platform/metrics"
	"github.com/savings-wallet-ledger/internal/platform/persistence"
	"github.com/savings-wallet-ledger/internal/transaction_processor/service"
)

// WebhookScope labels idempotency records written for payment gateway callbacks
const WebhookScope = "webhook"

// CreateProcessingService creates the balance mutator with all its dependencies.
// The returned func releases the worker pool and must be called on shutdown.
func CreateProcessingService(
	db persistence.TxBeginner,
	accountRepo account.Repository,
	outboxRepo outbox.Repository,
	ledgerRepo ledger.Repository,
	recorder *metrics.Recorder,
	logger *slog.Logger,
	cfg *config.Config,
) (service.ProcessingService, func()) {
	validator := NewTransactionValidator(ledgerRepo, logger)
	accountManager := NewAccountManager(accountRepo, logger)
	ledgerRecorder := NewLedgerRecorder(ledgerRepo, logger)
	outboxManager := NewOutboxManager(outboxRepo, logger)

	baseService := service.NewProcessingService(
		db,
		validator,
		accountManager,
		ledgerRecorder,
		outboxManager,
		recorder,
		cfg.Ledger.MutationTimeout,
		logger,
	)

	if cfg.WorkerPool.Size <= 0 {
		logger.Warn("Worker pool disabled, using base service", "pool_size", cfg.WorkerPool.Size)
		return baseService, func() {}
	}

	workerPoolService, err := service.NewWorkerPoolProcessingService(
		baseService,
		service.WorkerPoolConfig{
			Size: cfg.WorkerPool.Size,
		},
		logger.With("component", "worker_pool"),
	)
	if err != nil {
		logger.Error("Failed to create worker pool service, falling back to base service", "error", err)
		return baseService, func() {}
	}

	logger.Info("Created worker pool processing service", "pool_size", cfg.WorkerPool.Size)
	return workerPoolService, workerPoolService.Shutdown
}

// CreateIdempotencyTracker creates the webhook deduplication tracker
func CreateIdempotencyTracker(
	db persistence.TxBeginner,
	repo idempotency.Repository,
	logger *slog.Logger,
	cfg *config.Config,
) service.IdempotencyTracker {
	return NewIdempotencyTracker(db, repo, WebhookScope, cfg.Webhook.IdempotencyLease, logger.With("component", "idempotency"))
}
