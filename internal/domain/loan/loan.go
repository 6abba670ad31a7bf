package loan

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrExceedsOutstandingLoan = errors.New("repayment exceeds the outstanding loan balance")
	ErrNoActiveLoan           = errors.New("account has no active loan")
	ErrActiveLoanExists       = errors.New("account already has an active loan")
	ErrPrincipalTooLarge      = errors.New("loan amount exceeds the maximum principal")
	ErrInvalidRate            = errors.New("loan rate must not be negative")
	ErrInvalidPrincipal       = errors.New("loan amount must be positive")
)

// Status of a loan
type Status string

const (
	StatusActive Status = "active"
	StatusRepaid Status = "repaid"
)

// basisPoints per unit (10000 bps = 100%)
var basisPoints = decimal.NewFromInt(10000)

// Loan is a disbursed loan and its repayment progress
type Loan struct {
	ID                    uuid.UUID `json:"id"`
	AccountID             uuid.UUID `json:"account_id"`
	Principal             int64     `json:"principal"`
	RateBps               int64     `json:"rate_bps"`
	TotalDue              int64     `json:"total_due"`
	Repaid                int64     `json:"repaid"`
	Status                Status    `json:"status"`
	DisbursementReference string    `json:"disbursement_reference"`
	DueDate               time.Time `json:"due_date"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// TotalDue computes principal * (1 + rate), rounded half up to minor units
func TotalDue(principal, rateBps int64) int64 {
	rate := decimal.NewFromInt(rateBps).Div(basisPoints)
	return decimal.NewFromInt(principal).Mul(decimal.NewFromInt(1).Add(rate)).Round(0).IntPart()
}

// NewLoan creates an active loan for a disbursement reference
func NewLoan(accountID uuid.UUID, principal, rateBps int64, reference string, term time.Duration, now time.Time) (*Loan, error) {
	if principal <= 0 {
		return nil, ErrInvalidPrincipal
	}
	if rateBps < 0 {
		return nil, ErrInvalidRate
	}

	now = now.UTC().Truncate(time.Microsecond)
	return &Loan{
		ID:                    uuid.New(),
		AccountID:             accountID,
		Principal:             principal,
		RateBps:               rateBps,
		TotalDue:              TotalDue(principal, rateBps),
		Status:                StatusActive,
		DisbursementReference: reference,
		DueDate:               now.Add(term),
		CreatedAt:             now,
		UpdatedAt:             now,
	}, nil
}

// Outstanding is what is still owed
func (l *Loan) Outstanding() int64 {
	return l.TotalDue - l.Repaid
}

// Repay records a repayment; amounts above the outstanding balance are rejected
func (l *Loan) Repay(amount int64, now time.Time) error {
	if amount <= 0 {
		return ErrInvalidPrincipal
	}
	if l.Status != StatusActive {
		return ErrNoActiveLoan
	}
	if amount > l.Outstanding() {
		return ErrExceedsOutstandingLoan
	}
	l.Repaid += amount
	if l.Repaid == l.TotalDue {
		l.Status = StatusRepaid
	}
	l.UpdatedAt = now
	return nil
}
