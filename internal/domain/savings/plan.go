package savings

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSavingsLocked       = errors.New("savings are locked until the plan withdrawal date")
	ErrNoActivePlan        = errors.New("account has no active savings plan")
	ErrActivePlanExists    = errors.New("account already has an active savings plan")
	ErrInvalidDuration     = errors.New("savings plan duration must be positive")
	ErrInvalidFrequency    = errors.New("contribution frequency must be daily, weekly or monthly")
	ErrInvalidContribution = errors.New("contribution amount must be positive")
	ErrEmptyPlanName       = errors.New("savings plan name cannot be empty")
)

// Frequency of scheduled contributions
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

func (f Frequency) IsValid() bool {
	return f == FrequencyDaily || f == FrequencyWeekly || f == FrequencyMonthly
}

// Plan is a savings goal that locks contributions until WithdrawalDate
type Plan struct {
	ID                 uuid.UUID `json:"id"`
	AccountID          uuid.UUID `json:"account_id"`
	Name               string    `json:"name"`
	TargetAmount       int64     `json:"target_amount"`
	ContributionAmount int64     `json:"contribution_amount"`
	Frequency          Frequency `json:"frequency"`
	StartDate          time.Time `json:"start_date"`
	WithdrawalDate     time.Time `json:"withdrawal_date"`
	SavedAmount        int64     `json:"saved_amount"`
	Active             bool      `json:"active"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// NewPlan starts an active plan now that matures after duration
func NewPlan(accountID uuid.UUID, name string, targetAmount, contributionAmount int64, frequency Frequency, duration time.Duration, now time.Time) (*Plan, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyPlanName
	}
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if !frequency.IsValid() {
		return nil, ErrInvalidFrequency
	}
	if contributionAmount <= 0 || targetAmount < 0 {
		return nil, ErrInvalidContribution
	}

	now = now.UTC().Truncate(time.Microsecond)
	return &Plan{
		ID:                 uuid.New(),
		AccountID:          accountID,
		Name:               strings.TrimSpace(name),
		TargetAmount:       targetAmount,
		ContributionAmount: contributionAmount,
		Frequency:          frequency,
		StartDate:          now,
		WithdrawalDate:     now.Add(duration),
		Active:             true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// IsLocked reports whether savings still cannot be withdrawn
func (p *Plan) IsLocked(now time.Time) bool {
	return p.Active && now.Before(p.WithdrawalDate)
}

// RecordContribution adds a contribution to the plan total
func (p *Plan) RecordContribution(amount int64, now time.Time) {
	p.SavedAmount += amount
	p.UpdatedAt = now
}

// RecordWithdrawal removes a matured withdrawal from the plan and closes the plan once empty
func (p *Plan) RecordWithdrawal(amount int64, now time.Time) {
	p.SavedAmount -= amount
	if p.SavedAmount <= 0 {
		p.SavedAmount = 0
		p.Active = false
	}
	p.UpdatedAt = now
}

// GoalReached reports whether the target has been met
func (p *Plan) GoalReached() bool {
	return p.TargetAmount > 0 && p.SavedAmount >= p.TargetAmount
}
