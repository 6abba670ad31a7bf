package savings

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository persists savings plans
type Repository interface {
	Create(ctx context.Context, plan *Plan) error
	GetActiveByAccountID(ctx context.Context, accountID uuid.UUID) (*Plan, error)
	LockActiveByAccountID(ctx context.Context, accountID uuid.UUID) (*Plan, error)
	Update(ctx context.Context, plan *Plan) error
	WithTx(tx pgx.Tx) Repository
}
