package loan

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository persists loans
type Repository interface {
	Create(ctx context.Context, loan *Loan) error
	GetActiveByAccountID(ctx context.Context, accountID uuid.UUID) (*Loan, error)
	LockActiveByAccountID(ctx context.Context, accountID uuid.UUID) (*Loan, error)
	Update(ctx context.Context, loan *Loan) error
	WithTx(tx pgx.Tx) Repository
}
