package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/savings-wallet-ledger/internal/domain/ledger"
	"github.com/savings-wallet-ledger/internal/domain/outbox"
	"github.com/savings-wallet-ledger/internal/transaction_processor/service"
)

type OutboxManagerImpl struct {
	outboxRepo outbox.Repository
	logger     *slog.Logger
}

func NewOutboxManager(outboxRepo outbox.Repository, logger *slog.Logger) service.OutboxManager {
	return &OutboxManagerImpl{
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// CreateOutboxEntry queues the committed state of a ledger entry for the projector
func (m *OutboxManagerImpl) CreateOutboxEntry(ctx context.Context, tx pgx.Tx, transaction *ledger.Transaction) error {
	logger := m.logger
	if transaction.CorrelationID != "" {
		logger = m.logger.With("correlation_id", transaction.CorrelationID)
	}

	outboxMessage, err := outbox.NewMessage(transaction)
	if err != nil {
		logger.Error("Failed to create new outbox message (marshal payload)",
			"reference", transaction.Reference,
			"error", err,
		)
		return fmt.Errorf("failed to create outbox message payload for %s: %w", transaction.Reference, err)
	}

	if err = m.outboxRepo.WithTx(tx).Create(ctx, outboxMessage); err != nil {
		logger.Error("Failed to create outbox message",
			"reference", transaction.Reference,
			"acc_id", transaction.AccountID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create outbox message for %s: %w", transaction.Reference, err)
	}
	logger.Debug("Outbox message created",
		"reference", transaction.Reference,
		"outbox_id", outboxMessage.ID,
	)

	return nil
}
