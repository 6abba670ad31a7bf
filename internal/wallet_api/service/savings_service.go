package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/savings-wallet-ledger/internal/domain/account"
	"github.com/savings-wallet-ledger/internal/domain/savings"
	"github.com/savings-wallet-ledger/internal/domain/shared"
	processing "github.com/savings-wallet-ledger/internal/transaction_processor/service"
)

// SavingsServiceImpl layers savings plans on top of the balance mutator.
// Plan rows are only written inside the mutation transaction of the entry
// that moves the money.
type SavingsServiceImpl struct {
	processor   processing.ProcessingService
	savingsRepo savings.Repository
	logger      *slog.Logger
	now         func() time.Time
}

// NewSavingsService creates a new savings service
func NewSavingsService(processor processing.ProcessingService, savingsRepo savings.Repository, logger *slog.Logger) SavingsService {
	return &SavingsServiceImpl{
		processor:   processor,
		savingsRepo: savingsRepo,
		logger:      logger,
		now:         time.Now,
	}
}

// CreatePlan opens a plan locked until now + duration
func (s *SavingsServiceImpl) CreatePlan(ctx context.Context, input CreatePlanInput) (*savings.Plan, error) {
	if input.DurationDays <= 0 {
		return nil, savings.ErrInvalidDuration
	}

	plan, err := savings.NewPlan(
		input.AccountID,
		input.Name,
		input.TargetAmount,
		input.ContributionAmount,
		input.Frequency,
		time.Duration(input.DurationDays)*24*time.Hour,
		s.now(),
	)
	if err != nil {
		return nil, err
	}

	_, err = s.savingsRepo.GetActiveByAccountID(ctx, input.AccountID)
	switch {
	case err == nil:
		return nil, savings.ErrActivePlanExists
	case !errors.Is(err, savings.ErrNoActivePlan):
		return nil, err
	}

	if err := s.savingsRepo.Create(ctx, plan); err != nil {
		return nil, err
	}

	s.logger.Info("Savings plan created",
		"account_id", plan.AccountID.String(),
		"plan_id", plan.ID.String(),
		"withdrawal_date", plan.WithdrawalDate,
	)
	return plan, nil
}

func (s *SavingsServiceImpl) GetActivePlan(ctx context.Context, accountID uuid.UUID) (*savings.Plan, error) {
	return s.savingsRepo.GetActiveByAccountID(ctx, accountID)
}

// Contribute credits the balance and locks the same amount into the active plan
func (s *SavingsServiceImpl) Contribute(ctx context.Context, request *shared.TransactionRequest) (*processing.Result, error) {
	req := *request
	if req.Kind == "" {
		req.Kind = shared.TransactionKindSave
	}
	if req.Kind != shared.TransactionKindSave && req.Kind != shared.TransactionKindTopup {
		return nil, shared.ErrInvalidTransactionKind
	}

	return s.processor.ApplyTransaction(ctx, &req, s.lockContribution)
}

// WithdrawSavings debits the balance out of the locked portion once the plan matured
func (s *SavingsServiceImpl) WithdrawSavings(ctx context.Context, request *shared.TransactionRequest) (*processing.Result, error) {
	// a retried withdrawal is answered before the plan checks it may no longer pass
	if request.Reference != "" {
		replay, err := s.processor.FindReplay(ctx, request.AccountID, request.Reference)
		if err != nil {
			return nil, err
		}
		if replay != nil {
			return replay, nil
		}
	}

	plan, err := s.savingsRepo.GetActiveByAccountID(ctx, request.AccountID)
	switch {
	case err == nil:
		if plan.IsLocked(s.now()) {
			return nil, savings.ErrSavingsLocked
		}
		if request.Amount > plan.SavedAmount {
			return nil, account.ErrInsufficientSavings
		}
	case !errors.Is(err, savings.ErrNoActivePlan):
		return nil, err
	}
	// with no active plan the hook rejects the withdrawal

	req := *request
	req.Kind = shared.TransactionKindWithdrawal
	return s.processor.ApplyTransaction(ctx, &req, s.releaseSavings)
}

// WithdrawalGuard rejects a debit that reaches into savings that are still
// locked. After maturity the overflow is released from the plan.
func (s *SavingsServiceImpl) WithdrawalGuard() processing.TxHook {
	return func(ctx context.Context, txc *processing.TxContext) error {
		acc := txc.Account
		overflow := acc.LockedSavingsBalance - acc.Balance
		if overflow <= 0 {
			return nil
		}

		plans := s.savingsRepo.WithTx(txc.Tx)
		plan, err := plans.LockActiveByAccountID(ctx, acc.ID)
		if errors.Is(err, savings.ErrNoActivePlan) {
			return acc.ReleaseSavings(overflow)
		}
		if err != nil {
			return err
		}

		now := s.now()
		if plan.IsLocked(now) {
			return savings.ErrSavingsLocked
		}
		if err := acc.ReleaseSavings(overflow); err != nil {
			return err
		}
		plan.RecordWithdrawal(overflow, now)
		return plans.Update(ctx, plan)
	}
}

func (s *SavingsServiceImpl) lockContribution(ctx context.Context, txc *processing.TxContext) error {
	plans := s.savingsRepo.WithTx(txc.Tx)
	plan, err := plans.LockActiveByAccountID(ctx, txc.Account.ID)
	if err != nil {
		return err
	}

	amount := txc.Transaction.Amount
	if err := txc.Account.LockSavings(amount); err != nil {
		return err
	}
	plan.RecordContribution(amount, s.now())
	if err := plans.Update(ctx, plan); err != nil {
		return err
	}

	if plan.GoalReached() {
		s.logger.Info("Savings goal reached", "account_id", plan.AccountID.String(), "plan_id", plan.ID.String())
	}
	return nil
}

func (s *SavingsServiceImpl) releaseSavings(ctx context.Context, txc *processing.TxContext) error {
	plans := s.savingsRepo.WithTx(txc.Tx)
	plan, err := plans.LockActiveByAccountID(ctx, txc.Account.ID)
	if err != nil {
		return err
	}

	now := s.now()
	if plan.IsLocked(now) {
		return savings.ErrSavingsLocked
	}

	amount := txc.Transaction.Amount
	if err := txc.Account.ReleaseSavings(amount); err != nil {
		return err
	}
	plan.RecordWithdrawal(amount, now)
	return plans.Update(ctx, plan)
}
