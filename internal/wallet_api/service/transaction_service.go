package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/savings-wallet-ledger/internal/domain/ledger"
	"github.com/savings-wallet-ledger/internal/domain/shared"
	processing "github.com/savings-wallet-ledger/internal/transaction_processor/service"
)

// TransactionServiceImpl implements the TransactionService interface
type TransactionServiceImpl struct {
	processor  processing.ProcessingService
	savings    SavingsService
	ledgerRepo ledger.Repository
	logger     *slog.Logger
}

// NewTransactionService creates a new transaction service
func NewTransactionService(processor processing.ProcessingService, savings SavingsService, ledgerRepo ledger.Repository, logger *slog.Logger) TransactionService {
	return &TransactionServiceImpl{
		processor:  processor,
		savings:    savings,
		ledgerRepo: ledgerRepo,
		logger:     logger,
	}
}

// CreateTransaction routes a client request by kind. Loan kinds only go
// through the loan endpoints so the loan row stays in step with the ledger.
func (s *TransactionServiceImpl) CreateTransaction(ctx context.Context, request *shared.TransactionRequest) (*processing.Result, error) {
	switch request.Kind {
	case shared.TransactionKindDeposit, shared.TransactionKindTopup:
		return s.processor.ApplyTransaction(ctx, request)
	case shared.TransactionKindWithdrawal:
		return s.processor.ApplyTransaction(ctx, request, s.savings.WithdrawalGuard())
	case shared.TransactionKindSave:
		return s.savings.Contribute(ctx, request)
	default:
		return nil, shared.ErrInvalidTransactionKind
	}
}

// InitializePayment creates the pending deposit the gateway will settle
func (s *TransactionServiceImpl) InitializePayment(ctx context.Context, request *shared.TransactionRequest) (*processing.Result, error) {
	req := *request
	req.Kind = shared.TransactionKindDeposit
	return s.processor.InitiatePending(ctx, &req)
}

// GetTransaction reads the authoritative ledger row so a client can re-query
// a reference after a timeout
func (s *TransactionServiceImpl) GetTransaction(ctx context.Context, accountID uuid.UUID, reference string) (*ledger.Transaction, error) {
	transaction, err := s.ledgerRepo.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if transaction.AccountID != accountID {
		return nil, ledger.ErrTransactionNotFound{Reference: reference}
	}
	return transaction, nil
}
