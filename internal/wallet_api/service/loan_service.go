package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/savings-wallet-ledger/internal/config"
	"github.com/savings-wallet-ledger/internal/domain/loan"
	"github.com/savings-wallet-ledger/internal/domain/shared"
	processing "github.com/savings-wallet-ledger/internal/transaction_processor/service"
)

// LoanServiceImpl implements the LoanService interface
type LoanServiceImpl struct {
	processor processing.ProcessingService
	savings   SavingsService
	loanRepo  loan.Repository
	cfg       config.LoanConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewLoanService creates a new loan service
func NewLoanService(processor processing.ProcessingService, savings SavingsService, loanRepo loan.Repository, cfg config.LoanConfig, logger *slog.Logger) LoanService {
	return &LoanServiceImpl{
		processor: processor,
		savings:   savings,
		loanRepo:  loanRepo,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// RequestLoan disburses the principal with one loan entry and records the
// loan row in the same transaction
func (s *LoanServiceImpl) RequestLoan(ctx context.Context, request *shared.TransactionRequest) (*LoanResult, error) {
	if request.Amount <= 0 {
		return nil, loan.ErrInvalidPrincipal
	}
	if s.cfg.MaxPrincipal > 0 && request.Amount > s.cfg.MaxPrincipal {
		return nil, loan.ErrPrincipalTooLarge
	}

	replay, err := s.findReplay(ctx, request)
	if err != nil {
		return nil, err
	}
	if replay != nil {
		disbursed, err := s.disbursedLoanOrNil(ctx, request.AccountID, request.Reference)
		if err != nil {
			return nil, err
		}
		return &LoanResult{Result: replay, Loan: disbursed}, nil
	}

	_, err = s.loanRepo.GetActiveByAccountID(ctx, request.AccountID)
	switch {
	case err == nil:
		return nil, loan.ErrActiveLoanExists
	case !errors.Is(err, loan.ErrNoActiveLoan):
		return nil, err
	}

	var created *loan.Loan
	disburse := func(ctx context.Context, txc *processing.TxContext) error {
		l, err := loan.NewLoan(txc.Account.ID, txc.Transaction.Amount, s.cfg.DefaultRateBps, txc.Transaction.Reference, s.cfg.Term, s.now())
		if err != nil {
			return err
		}
		if err := s.loanRepo.WithTx(txc.Tx).Create(ctx, l); err != nil {
			return err
		}
		created = l
		return nil
	}

	req := *request
	req.Kind = shared.TransactionKindLoan
	result, err := s.processor.ApplyTransaction(ctx, &req, disburse)
	if err != nil {
		return nil, err
	}

	// the hook may have run in a transaction that lost a duplicate reference race
	if result.Replayed {
		created, err = s.disbursedLoanOrNil(ctx, request.AccountID, result.Transaction.Reference)
		if err != nil {
			return nil, err
		}
	} else if created != nil {
		s.logger.Info("Loan disbursed",
			"account_id", created.AccountID.String(),
			"loan_id", created.ID.String(),
			"total_due", created.TotalDue,
		)
	}

	return &LoanResult{Result: result, Loan: created}, nil
}

func (s *LoanServiceImpl) GetActiveLoan(ctx context.Context, accountID uuid.UUID) (*loan.Loan, error) {
	return s.loanRepo.GetActiveByAccountID(ctx, accountID)
}

// RepayLoan rejects over-repayment before the mutator and again under the loan row lock
func (s *LoanServiceImpl) RepayLoan(ctx context.Context, request *shared.TransactionRequest) (*LoanResult, error) {
	replay, err := s.findReplay(ctx, request)
	if err != nil {
		return nil, err
	}
	if replay != nil {
		current, err := s.activeLoanOrNil(ctx, request.AccountID)
		if err != nil {
			return nil, err
		}
		return &LoanResult{Result: replay, Loan: current}, nil
	}

	active, err := s.loanRepo.GetActiveByAccountID(ctx, request.AccountID)
	switch {
	case err == nil:
		if request.Amount > active.Outstanding() {
			return nil, loan.ErrExceedsOutstandingLoan
		}
	case !errors.Is(err, loan.ErrNoActiveLoan):
		return nil, err
	}

	var repaid *loan.Loan
	repay := func(ctx context.Context, txc *processing.TxContext) error {
		loans := s.loanRepo.WithTx(txc.Tx)
		l, err := loans.LockActiveByAccountID(ctx, txc.Account.ID)
		if err != nil {
			return err
		}
		if err := l.Repay(txc.Transaction.Amount, s.now()); err != nil {
			return err
		}
		if err := loans.Update(ctx, l); err != nil {
			return err
		}
		repaid = l
		return nil
	}

	req := *request
	req.Kind = shared.TransactionKindLoanRepayment
	result, err := s.processor.ApplyTransaction(ctx, &req, s.savings.WithdrawalGuard(), repay)
	if err != nil {
		return nil, err
	}

	if result.Replayed {
		repaid, err = s.activeLoanOrNil(ctx, request.AccountID)
		if err != nil {
			return nil, err
		}
	} else if repaid != nil && repaid.Status == loan.StatusRepaid {
		s.logger.Info("Loan fully repaid", "account_id", repaid.AccountID.String(), "loan_id", repaid.ID.String())
	}

	return &LoanResult{Result: result, Loan: repaid}, nil
}

func (s *LoanServiceImpl) activeLoanOrNil(ctx context.Context, accountID uuid.UUID) (*loan.Loan, error) {
	l, err := s.loanRepo.GetActiveByAccountID(ctx, accountID)
	if errors.Is(err, loan.ErrNoActiveLoan) {
		return nil, nil
	}
	return l, err
}

// disbursedLoanOrNil returns the active loan only when reference disbursed it
func (s *LoanServiceImpl) disbursedLoanOrNil(ctx context.Context, accountID uuid.UUID, reference string) (*loan.Loan, error) {
	l, err := s.activeLoanOrNil(ctx, accountID)
	if err != nil || l == nil || l.DisbursementReference != reference {
		return nil, err
	}
	return l, nil
}

// findReplay answers a retried reference before the loan rules run
func (s *LoanServiceImpl) findReplay(ctx context.Context, request *shared.TransactionRequest) (*processing.Result, error) {
	if request.Reference == "" {
		return nil, nil
	}
	return s.processor.FindReplay(ctx, request.AccountID, request.Reference)
}
