package handler

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/savings-wallet-ledger/internal/domain/account"
	"github.com/savings-wallet-ledger/internal/domain/ledger"
	"github.com/savings-wallet-ledger/internal/domain/loan"
	"github.com/savings-wallet-ledger/internal/domain/savings"
	"github.com/savings-wallet-ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Amounts cross the HTTP edge as major-unit decimals ("12.50" or 12.5) and
// are converted to minor units before they reach a service.

// RegisterRequest represents a request to open an account
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	FullName string `json:"full_name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest represents a request to start a session
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SessionResponse carries the access token. The refresh token travels in a cookie only.
type SessionResponse struct {
	AccountID   string `json:"account_id"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   string `json:"expires_at"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	ID                   string `json:"id"`
	Email                string `json:"email"`
	FullName             string `json:"full_name"`
	Balance              string `json:"balance"`
	LockedSavingsBalance string `json:"locked_savings_balance"`
	AvailableBalance     string `json:"available_balance"`
	Currency             string `json:"currency"`
	Active               bool   `json:"active"`
	CreatedAt            string `json:"created_at"`
	UpdatedAt            string `json:"updated_at"`
}

// CreateTransactionRequest represents a client-initiated balance change
type CreateTransactionRequest struct {
	Type      string          `json:"type" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
	Metadata  json.RawMessage `json:"metadata"`
}

// AmountRequest is the body of operations whose kind is fixed by the route
type AmountRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
	Metadata  json.RawMessage `json:"metadata"`
}

// TransactionResponse represents a ledger entry in API responses
type TransactionResponse struct {
	ID            string         `json:"id"`
	Reference     string         `json:"reference"`
	AccountID     string         `json:"account_id"`
	Type          string         `json:"type"`
	Amount        string         `json:"amount"`
	Currency      string         `json:"currency"`
	Status        string         `json:"status"`
	BalanceAfter  *string        `json:"balance_after,omitempty"`
	FailureReason string         `json:"failure_reason,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     string         `json:"created_at"`
	ProcessedAt   string         `json:"processed_at,omitempty"`
}

// TransactionResult is returned by every mutating endpoint
type TransactionResult struct {
	Transaction TransactionResponse `json:"transaction"`
	Replayed    bool                `json:"replayed"`
}

// CreatePlanRequest represents a request to open a savings plan
type CreatePlanRequest struct {
	Name               string          `json:"name" binding:"required"`
	TargetAmount       decimal.Decimal `json:"target_amount"`
	ContributionAmount decimal.Decimal `json:"contribution_amount"`
	Frequency          string          `json:"frequency" binding:"required"`
	DurationDays       int             `json:"duration_days" binding:"required,min=1"`
}

// PlanResponse represents a savings plan in API responses
type PlanResponse struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	TargetAmount       string `json:"target_amount"`
	ContributionAmount string `json:"contribution_amount"`
	Frequency          string `json:"frequency"`
	SavedAmount        string `json:"saved_amount"`
	StartDate          string `json:"start_date"`
	WithdrawalDate     string `json:"withdrawal_date"`
	Locked             bool   `json:"locked"`
	Active             bool   `json:"active"`
}

// LoanResponse represents a loan in API responses
type LoanResponse struct {
	ID                    string `json:"id"`
	Principal             string `json:"principal"`
	RateBps               int64  `json:"rate_bps"`
	TotalDue              string `json:"total_due"`
	Repaid                string `json:"repaid"`
	Outstanding           string `json:"outstanding"`
	Status                string `json:"status"`
	DisbursementReference string `json:"disbursement_reference"`
	DueDate               string `json:"due_date"`
}

// LoanResult is returned by the loan mutations
type LoanResult struct {
	Transaction TransactionResponse `json:"transaction"`
	Loan        *LoanResponse       `json:"loan,omitempty"`
	Replayed    bool                `json:"replayed"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page     int `form:"page,default=1" binding:"min=1"`
	PageSize int `form:"page_size,default=20" binding:"min=1,max=100"`
}

// transactionKind accepts the public type names. "withdraw" is kept as an alias.
func transactionKind(raw string) shared.TransactionKind {
	kind := strings.ToLower(strings.TrimSpace(raw))
	if kind == "withdraw" {
		return shared.TransactionKindWithdrawal
	}
	return shared.TransactionKind(kind)
}

func formatAmount(minor int64) string {
	return shared.FromMinorUnits(minor).StringFixed(shared.MinorUnitExponent)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func mapAccountToResponse(acc *account.Account) AccountResponse {
	return AccountResponse{
		ID:                   acc.ID.String(),
		Email:                acc.Email,
		FullName:             acc.FullName,
		Balance:              formatAmount(acc.Balance),
		LockedSavingsBalance: formatAmount(acc.LockedSavingsBalance),
		AvailableBalance:     formatAmount(acc.Balance - acc.LockedSavingsBalance),
		Currency:             acc.Currency,
		Active:               acc.Active,
		CreatedAt:            formatTime(acc.CreatedAt),
		UpdatedAt:            formatTime(acc.UpdatedAt),
	}
}

func mapTransactionToResponse(transaction *ledger.Transaction) TransactionResponse {
	response := TransactionResponse{
		ID:            transaction.ID.String(),
		Reference:     transaction.Reference,
		AccountID:     transaction.AccountID.String(),
		Type:          string(transaction.Kind),
		Amount:        formatAmount(transaction.Amount),
		Currency:      transaction.Currency,
		Status:        string(transaction.Status),
		FailureReason: transaction.FailureReason,
		Metadata:      transaction.Metadata,
		CreatedAt:     formatTime(transaction.CreatedAt),
	}
	if transaction.BalanceAfter != nil {
		balance := formatAmount(*transaction.BalanceAfter)
		response.BalanceAfter = &balance
	}
	if transaction.ProcessedAt != nil {
		response.ProcessedAt = formatTime(*transaction.ProcessedAt)
	}
	return response
}

func mapPlanToResponse(plan *savings.Plan, now time.Time) PlanResponse {
	return PlanResponse{
		ID:                 plan.ID.String(),
		Name:               plan.Name,
		TargetAmount:       formatAmount(plan.TargetAmount),
		ContributionAmount: formatAmount(plan.ContributionAmount),
		Frequency:          string(plan.Frequency),
		SavedAmount:        formatAmount(plan.SavedAmount),
		StartDate:          formatTime(plan.StartDate),
		WithdrawalDate:     formatTime(plan.WithdrawalDate),
		Locked:             plan.IsLocked(now),
		Active:             plan.Active,
	}
}

func mapLoanToResponse(l *loan.Loan) *LoanResponse {
	if l == nil {
		return nil
	}
	return &LoanResponse{
		ID:                    l.ID.String(),
		Principal:             formatAmount(l.Principal),
		RateBps:               l.RateBps,
		TotalDue:              formatAmount(l.TotalDue),
		Repaid:                formatAmount(l.Repaid),
		Outstanding:           formatAmount(l.Outstanding()),
		Status:                string(l.Status),
		DisbursementReference: l.DisbursementReference,
		DueDate:               formatTime(l.DueDate),
	}
}
