package account

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/savings-wallet-ledger/internal/domain/shared"
)

// Common errors
var (
	ErrInsufficientFunds     = errors.New("insufficient funds for withdrawal")
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrEmptyFullName         = errors.New("full name cannot be empty")
	ErrInvalidEmail          = errors.New("email address is invalid")
	ErrInvalidCurrencyFormat = errors.New("currency must be a 3-letter code")
	ErrAccountInactive       = errors.New("account is deactivated")
	ErrInsufficientSavings   = errors.New("locked savings balance is lower than the requested amount")
	ErrBalanceOverflow       = errors.New("amount would exceed the maximum account balance")
)

// Account is a wallet holder and their server-authoritative balances
type Account struct {
	ID                   uuid.UUID `json:"id"`
	Email                string    `json:"email"`
	FullName             string    `json:"full_name"`
	PasswordHash         string    `json:"-"`
	Balance              int64     `json:"balance"`                // Stored in minor units
	LockedSavingsBalance int64     `json:"locked_savings_balance"` // Portion of Balance committed to a savings plan
	Currency             string    `json:"currency"`
	Active               bool      `json:"active"`
	Version              int       `json:"version"` // For optimistic locking
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// NormalizeEmail is the form emails are stored and looked up in
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewAccount creates an active account with a zero balance
func NewAccount(email, fullName, passwordHash, currency string) (*Account, error) {
	email = NormalizeEmail(email)
	if !strings.Contains(email, "@") || strings.HasPrefix(email, "@") || strings.HasSuffix(email, "@") {
		return nil, ErrInvalidEmail
	}
	if strings.TrimSpace(fullName) == "" {
		return nil, ErrEmptyFullName
	}
	if len(currency) != 3 {
		return nil, ErrInvalidCurrencyFormat
	}

	now := time.Now()
	return &Account{
		ID:           uuid.New(),
		Email:        email,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: passwordHash,
		Balance:      0,
		Currency:     strings.ToUpper(currency),
		Active:       true,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Deposit adds the specified amount to the account balance
func (a *Account) Deposit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > math.MaxInt64-a.Balance {
		return ErrBalanceOverflow
	}

	a.Balance += amount
	a.touch()
	return nil
}

// Withdraw subtracts the specified amount from the account balance
func (a *Account) Withdraw(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	if a.Balance < amount {
		return ErrInsufficientFunds
	}

	a.Balance -= amount
	a.touch()
	return nil
}

// Apply performs the balance effect of a ledger kind
func (a *Account) Apply(kind shared.TransactionKind, amount int64) error {
	switch kind {
	case shared.TransactionKindDeposit, shared.TransactionKindSave,
		shared.TransactionKindTopup, shared.TransactionKindLoan:
		return a.Deposit(amount)
	case shared.TransactionKindWithdrawal, shared.TransactionKindLoanRepayment:
		return a.Withdraw(amount)
	default:
		return shared.ErrInvalidTransactionKind
	}
}

// CanWithdraw checks if the account has sufficient funds for a withdrawal
func (a *Account) CanWithdraw(amount int64) bool {
	return a.Balance >= amount
}

// AvailableBalance is the part of the balance not committed to savings
func (a *Account) AvailableBalance() int64 {
	return a.Balance - a.LockedSavingsBalance
}

// LockSavings moves part of the balance into the locked savings sub-balance
func (a *Account) LockSavings(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if a.LockedSavingsBalance+amount > a.Balance {
		return ErrInsufficientFunds
	}
	a.LockedSavingsBalance += amount
	return nil
}

// ReleaseSavings returns part of the locked savings sub-balance to the free balance
func (a *Account) ReleaseSavings(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > a.LockedSavingsBalance {
		return ErrInsufficientSavings
	}
	a.LockedSavingsBalance -= amount
	return nil
}

// Deactivate marks the account as closed. Accounts are never deleted.
func (a *Account) Deactivate() {
	a.Active = false
	a.touch()
}

func (a *Account) touch() {
	a.UpdatedAt = time.Now()
	a.Version++
}
