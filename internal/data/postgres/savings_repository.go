package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/savings-wallet-ledger/internal/domain/savings"
	"github.com/savings-wallet-ledger/internal/platform/persistence"
)

const planColumns = `id, account_id, name, target_amount, contribution_amount, frequency, start_date, withdrawal_date, saved_amount, active, created_at, updated_at`

// SavingsRepository implements the savings.Repository interface for PostgreSQL
type SavingsRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewSavingsRepository(logger *slog.Logger, db *persistence.PostgresDB) savings.Repository {
	return &SavingsRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *SavingsRepository) WithTx(tx pgx.Tx) savings.Repository {
	return &SavingsRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a plan. A second active plan for the account yields ErrActivePlanExists.
func (r *SavingsRepository) Create(ctx context.Context, plan *savings.Plan) error {
	query := `
		INSERT INTO savings_plans (` + planColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.querier.Exec(ctx, query,
		plan.ID,
		plan.AccountID,
		plan.Name,
		plan.TargetAmount,
		plan.ContributionAmount,
		plan.Frequency,
		plan.StartDate,
		plan.WithdrawalDate,
		plan.SavedAmount,
		plan.Active,
		plan.CreatedAt,
		plan.UpdatedAt,
	)
	if err != nil {
		if persistence.IsUniqueViolation(err, "savings_plans_one_active_per_account") {
			return savings.ErrActivePlanExists
		}
		r.logger.Error("Failed to create savings plan", "account_id", plan.AccountID.String(), "error", err)
		return fmt.Errorf("failed to create savings plan: %w", err)
	}

	return nil
}

// GetActiveByAccountID returns ErrNoActivePlan when the account has none
func (r *SavingsRepository) GetActiveByAccountID(ctx context.Context, accountID uuid.UUID) (*savings.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM savings_plans WHERE account_id = $1 AND active`
	return r.getActive(ctx, query, accountID)
}

// LockActiveByAccountID is GetActiveByAccountID with a row lock
func (r *SavingsRepository) LockActiveByAccountID(ctx context.Context, accountID uuid.UUID) (*savings.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM savings_plans WHERE account_id = $1 AND active FOR UPDATE`
	return r.getActive(ctx, query, accountID)
}

func (r *SavingsRepository) getActive(ctx context.Context, query string, accountID uuid.UUID) (*savings.Plan, error) {
	var plan savings.Plan
	err := r.querier.QueryRow(ctx, query, accountID).Scan(
		&plan.ID,
		&plan.AccountID,
		&plan.Name,
		&plan.TargetAmount,
		&plan.ContributionAmount,
		&plan.Frequency,
		&plan.StartDate,
		&plan.WithdrawalDate,
		&plan.SavedAmount,
		&plan.Active,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, savings.ErrNoActivePlan
		}
		r.logger.Error("Failed to get savings plan", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to get savings plan: %w", err)
	}

	return &plan, nil
}

func (r *SavingsRepository) Update(ctx context.Context, plan *savings.Plan) error {
	query := `
		UPDATE savings_plans
		SET saved_amount = $1, active = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := r.querier.Exec(ctx, query, plan.SavedAmount, plan.Active, plan.UpdatedAt, plan.ID)
	if err != nil {
		r.logger.Error("Failed to update savings plan", "id", plan.ID.String(), "error", err)
		return fmt.Errorf("failed to update savings plan: %w", err)
	}
	if result.RowsAffected() == 0 {
		return savings.ErrNoActivePlan
	}

	return nil
}
