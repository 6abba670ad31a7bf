package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/savings-wallet-ledger/internal/domain/loan"
	"github.com/savings-wallet-ledger/internal/platform/persistence"
)

const loanColumns = `id, account_id, principal, rate_bps, total_due, repaid, status, disbursement_reference, due_date, created_at, updated_at`

// LoanRepository implements the loan.Repository interface for PostgreSQL
type LoanRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewLoanRepository(logger *slog.Logger, db *persistence.PostgresDB) loan.Repository {
	return &LoanRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *LoanRepository) WithTx(tx pgx.Tx) loan.Repository {
	return &LoanRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a loan. A second active loan for the account yields ErrActiveLoanExists.
func (r *LoanRepository) Create(ctx context.Context, l *loan.Loan) error {
	query := `
		INSERT INTO loans (` + loanColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.querier.Exec(ctx, query,
		l.ID,
		l.AccountID,
		l.Principal,
		l.RateBps,
		l.TotalDue,
		l.Repaid,
		l.Status,
		l.DisbursementReference,
		l.DueDate,
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		if persistence.IsUniqueViolation(err, "loans_one_active_per_account") {
			return loan.ErrActiveLoanExists
		}
		r.logger.Error("Failed to create loan", "account_id", l.AccountID.String(), "error", err)
		return fmt.Errorf("failed to create loan: %w", err)
	}

	return nil
}

// GetActiveByAccountID returns ErrNoActiveLoan when the account owes nothing
func (r *LoanRepository) GetActiveByAccountID(ctx context.Context, accountID uuid.UUID) (*loan.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE account_id = $1 AND status = $2`
	return r.getActive(ctx, query, accountID)
}

func (r *LoanRepository) LockActiveByAccountID(ctx context.Context, accountID uuid.UUID) (*loan.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE account_id = $1 AND status = $2 FOR UPDATE`
	return r.getActive(ctx, query, accountID)
}

func (r *LoanRepository) getActive(ctx context.Context, query string, accountID uuid.UUID) (*loan.Loan, error) {
	var l loan.Loan
	err := r.querier.QueryRow(ctx, query, accountID, loan.StatusActive).Scan(
		&l.ID,
		&l.AccountID,
		&l.Principal,
		&l.RateBps,
		&l.TotalDue,
		&l.Repaid,
		&l.Status,
		&l.DisbursementReference,
		&l.DueDate,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, loan.ErrNoActiveLoan
		}
		r.logger.Error("Failed to get loan", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}

	return &l, nil
}

func (r *LoanRepository) Update(ctx context.Context, l *loan.Loan) error {
	query := `
		UPDATE loans
		SET repaid = $1, status = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := r.querier.Exec(ctx, query, l.Repaid, l.Status, l.UpdatedAt, l.ID)
	if err != nil {
		r.logger.Error("Failed to update loan", "id", l.ID.String(), "error", err)
		return fmt.Errorf("failed to update loan: %w", err)
	}
	if result.RowsAffected() == 0 {
		return loan.ErrNoActiveLoan
	}

	return nil
}
