package components

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/savings-wallet-ledger/internal/domain/ledger"
	"github.com/savings-wallet-ledger/internal/transaction_processor/service"
)

// LedgerRecorderImpl writes ledger entries inside the mutation transaction
type LedgerRecorderImpl struct {
	ledgerRepo ledger.Repository
	logger     *slog.Logger
}

func NewLedgerRecorder(ledgerRepo ledger.Repository, logger *slog.Logger) service.LedgerRecorder {
	return &LedgerRecorderImpl{
		ledgerRepo: ledgerRepo,
		logger:     logger,
	}
}

// Record inserts a new entry. A concurrent insert of the same reference surfaces
// as ledger.ErrDuplicateReference.
func (r *LedgerRecorderImpl) Record(ctx context.Context, tx pgx.Tx, transaction *ledger.Transaction) error {
	logger := r.logger
	if transaction.CorrelationID != "" {
		logger = r.logger.With("correlation_id", transaction.CorrelationID)
	}

	if err := r.ledgerRepo.WithTx(tx).Create(ctx, transaction); err != nil {
		if errors.Is(err, ledger.ErrDuplicateReference{Reference: transaction.Reference}) {
			logger.Info("Reference inserted concurrently", "reference", transaction.Reference)
			return err
		}
		logger.Error("Failed to create ledger entry", "reference", transaction.Reference, "error", err)
		return err
	}

	logger.Info("Ledger entry created",
		"reference", transaction.Reference,
		"kind", string(transaction.Kind),
		"status", string(transaction.Status),
	)
	return nil
}

// LockPending row-locks the entry for reference so it settles once
func (r *LedgerRecorderImpl) LockPending(ctx context.Context, tx pgx.Tx, reference string) (*ledger.Transaction, error) {
	transaction, err := r.ledgerRepo.WithTx(tx).GetByReferenceForUpdate(ctx, reference)
	if err != nil {
		if !errors.Is(err, ledger.ErrTransactionNotFound{}) {
			r.logger.Error("Failed to lock ledger entry", "reference", reference, "error", err)
		}
		return nil, err
	}
	return transaction, nil
}

// Complete stores the terminal status of a pending entry
func (r *LedgerRecorderImpl) Complete(ctx context.Context, tx pgx.Tx, transaction *ledger.Transaction) error {
	if err := r.ledgerRepo.WithTx(tx).CompletePending(ctx, transaction); err != nil {
		var notPending ledger.ErrNotPending
		if errors.As(err, &notPending) {
			r.logger.Info("Ledger entry already settled", "reference", transaction.Reference)
			return err
		}
		r.logger.Error("Failed to complete ledger entry", "reference", transaction.Reference, "error", err)
		return err
	}

	r.logger.Info("Ledger entry settled",
		"reference", transaction.Reference,
		"status", string(transaction.Status),
		"reason", transaction.FailureReason,
	)
	return nil
}
