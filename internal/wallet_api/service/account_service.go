package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/savings-wallet-ledger/internal/domain/account"
	"github.com/savings-wallet-ledger/internal/domain/session"
	"github.com/savings-wallet-ledger/internal/platform/persistence"
)

// AccountServiceImpl implements the AccountService interface
type AccountServiceImpl struct {
	db          persistence.TxBeginner
	accountRepo account.Repository
	sessionRepo session.Repository
	logger      *slog.Logger
	now         func() time.Time
}

// NewAccountService creates a new account service
func NewAccountService(db persistence.TxBeginner, accountRepo account.Repository, sessionRepo session.Repository, logger *slog.Logger) AccountService {
	return &AccountServiceImpl{
		db:          db,
		accountRepo: accountRepo,
		sessionRepo: sessionRepo,
		logger:      logger,
		now:         time.Now,
	}
}

// GetAccount retrieves an account by its ID, returns ErrAccountNotFound if not found
func (s *AccountServiceImpl) GetAccount(ctx context.Context, accountID uuid.UUID) (*account.Account, error) {
	return s.accountRepo.GetByID(ctx, accountID)
}

// Deactivate flips the account inactive under its row lock so no mutation
// commits against it afterwards
func (s *AccountServiceImpl) Deactivate(ctx context.Context, accountID uuid.UUID) error {
	err := persistence.ExecuteTx(ctx, s.db, func(tx pgx.Tx) error {
		accounts := s.accountRepo.WithTx(tx)

		acc, err := accounts.LockForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if !acc.Active {
			return nil
		}

		acc.Deactivate()
		if err := accounts.Update(ctx, acc); err != nil {
			return err
		}
		return s.sessionRepo.WithTx(tx).RevokeAllForAccount(ctx, accountID, s.now())
	})
	if err != nil {
		return err
	}

	s.logger.Info("Account deactivated", "account_id", accountID.String())
	return nil
}
