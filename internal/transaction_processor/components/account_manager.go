package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/savings-wallet-ledger/internal/domain/account"
	"github.com/savings-wallet-ledger/internal/transaction_processor/service"
)

// AccountManagerImpl implements the AccountManager interface
type AccountManagerImpl struct {
	accountRepo account.Repository
	logger      *slog.Logger
}

// NewAccountManager creates a new AccountManagerImpl
func NewAccountManager(accountRepo account.Repository, logger *slog.Logger) service.AccountManager {
	return &AccountManagerImpl{
		accountRepo: accountRepo,
		logger:      logger,
	}
}

// LockAccount takes the row lock that serializes every balance change of the account.
// Deactivated accounts are refused.
func (m *AccountManagerImpl) LockAccount(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (*account.Account, error) {
	lockedAccount, err := m.accountRepo.WithTx(tx).LockForUpdate(ctx, accountID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound{AccountID: accountID}) {
			m.logger.Warn("Account not found for lock", "acc_id", accountID.String())
			return nil, err
		}
		m.logger.Error("Failed to lock account", "acc_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to lock account %s: %w", accountID.String(), err)
	}

	if !lockedAccount.Active {
		m.logger.Warn("Account is deactivated", "acc_id", accountID.String())
		return nil, account.ErrAccountInactive
	}

	m.logger.Debug("Account locked", "acc_id", lockedAccount.ID.String(), "bal", lockedAccount.Balance, "ver", lockedAccount.Version)
	return lockedAccount, nil
}

// SaveAccount persists the balances of a locked account
func (m *AccountManagerImpl) SaveAccount(ctx context.Context, tx pgx.Tx, acc *account.Account) error {
	if acc.Balance < 0 || acc.LockedSavingsBalance < 0 || acc.LockedSavingsBalance > acc.Balance {
		m.logger.Error("Refusing to persist inconsistent balances",
			"acc_id", acc.ID.String(),
			"bal", acc.Balance,
			"locked", acc.LockedSavingsBalance,
		)
		return account.ErrInsufficientFunds
	}

	if err := m.accountRepo.WithTx(tx).Update(ctx, acc); err != nil {
		if errors.Is(err, account.ErrConcurrentModification{AccountID: acc.ID}) {
			m.logger.Warn("Concurrent modification on account update", "acc_id", acc.ID.String())
		} else {
			m.logger.Error("Failed to update account in DB", "acc_id", acc.ID.String(), "error", err)
		}
		return err
	}

	m.logger.Debug("Account updated in DB", "acc_id", acc.ID.String(), "new_bal", acc.Balance, "new_ver", acc.Version)
	return nil
}
