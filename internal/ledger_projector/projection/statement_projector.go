package projection

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/savings-wallet-ledger/internal/domain/ledger"
	"github.com/savings-wallet-ledger/internal/platform/metrics"
)

// Projector writes ledger events into the statement read model
type Projector interface {
	Project(ctx context.Context, transaction *ledger.Transaction) error
}

// StatementProjector implements Projector on top of the Mongo statement store
type StatementProjector struct {
	statements ledger.StatementRepository
	metrics    *metrics.Recorder
	logger     *slog.Logger
}

func NewStatementProjector(statements ledger.StatementRepository, recorder *metrics.Recorder, logger *slog.Logger) *StatementProjector {
	return &StatementProjector{
		statements: statements,
		metrics:    recorder,
		logger:     logger,
	}
}

// Project upserts the entry. Replays and out-of-order events are absorbed by the store.
func (p *StatementProjector) Project(ctx context.Context, transaction *ledger.Transaction) error {
	logger := p.logger
	if transaction.CorrelationID != "" {
		logger = logger.With("correlation_id", transaction.CorrelationID)
	}

	if err := p.statements.Upsert(ctx, transaction); err != nil {
		p.metrics.StatementProjection(metrics.OutcomeFailed)
		logger.Error("Failed to project ledger event",
			"reference", transaction.Reference,
			"status", string(transaction.Status),
			"error", err,
		)
		return fmt.Errorf("failed to project %s: %w", transaction.Reference, err)
	}

	p.metrics.StatementProjection(metrics.OutcomeApplied)
	logger.Debug("Projected ledger event",
		"reference", transaction.Reference,
		"account_id", transaction.AccountID.String(),
		"status", string(transaction.Status),
	)
	return nil
}
