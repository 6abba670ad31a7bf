package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/savings-wallet-ledger/internal/domain/account"
	"github.com/savings-wallet-ledger/internal/domain/ledger"
	"github.com/savings-wallet-ledger/internal/domain/shared"
	"github.com/savings-wallet-ledger/internal/transaction_processor/service"
)

type TransactionValidatorImpl struct {
	ledgerRepo ledger.Repository
	logger     *slog.Logger
}

func NewTransactionValidator(ledgerRepo ledger.Repository, logger *slog.Logger) service.TransactionValidator {
	return &TransactionValidatorImpl{
		ledgerRepo: ledgerRepo,
		logger:     logger,
	}
}

// Validate checks the request shape before any storage is touched
func (v *TransactionValidatorImpl) Validate(ctx context.Context, request *shared.TransactionRequest) error {
	logger := v.logger
	if request.CorrelationID != "" {
		logger = v.logger.With("correlation_id", request.CorrelationID)
	}

	if !request.Kind.IsValid() {
		logger.Warn("Unknown transaction kind", "reference", request.Reference, "kind", request.Kind)
		return shared.ErrInvalidTransactionKind
	}

	if request.Amount <= 0 {
		logger.Warn("Invalid amount", "reference", request.Reference, "amount", request.Amount)
		return account.ErrInvalidAmount
	}

	if request.AccountID == uuid.Nil {
		return account.ErrAccountNotFound{}
	}

	if request.Reference == "" {
		return shared.ErrEmptyReference
	}
	if len(request.Reference) > shared.MaxReferenceLength {
		logger.Warn("Reference too long", "length", len(request.Reference))
		return shared.ErrReferenceTooLong
	}

	if err := (&ledger.Transaction{}).AttachMetadata(request.Metadata); err != nil {
		return err
	}

	return nil
}

// CheckIdempotency returns the entry already stored for reference, or nil.
// With a nil tx the lookup runs outside the mutation transaction as a fast path.
// A reference owned by another account is a conflict; a Nil accountID skips that check.
func (v *TransactionValidatorImpl) CheckIdempotency(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, reference string) (*ledger.Transaction, error) {
	repo := v.ledgerRepo
	if tx != nil {
		repo = repo.WithTx(tx)
	}

	existing, err := repo.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound{}) {
			return nil, nil
		}
		v.logger.Error("Failed to check ledger for reference", "reference", reference, "error", err)
		return nil, fmt.Errorf("reference lookup failed for %s: %w", reference, err)
	}

	if accountID != uuid.Nil && existing.AccountID != accountID {
		v.logger.Warn("Reference belongs to another account",
			"reference", reference,
			"account_id", accountID.String(),
		)
		return nil, ledger.ErrReferenceConflict{Reference: reference}
	}

	v.logger.Info("Reference already recorded", "reference", reference, "status", string(existing.Status))
	return existing, nil
}
