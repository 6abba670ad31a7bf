package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/savings-wallet-ledger/internal/domain/shared"
)

// Repository is the append-only store of ledger entries
type Repository interface {
	Create(ctx context.Context, transaction *Transaction) error
	GetByReference(ctx context.Context, reference string) (*Transaction, error)

	// GetByReferenceForUpdate row-locks the entry so a pending settlement happens once
	GetByReferenceForUpdate(ctx context.Context, reference string) (*Transaction, error)
	ListByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Transaction, error)
	CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error)

	// CompletePending moves a pending entry to a terminal status. Terminal entries are never rewritten.
	CompletePending(ctx context.Context, transaction *Transaction) error
	WithTx(tx pgx.Tx) Repository
}

// StatementRepository is the read model of ledger entries used for account history
type StatementRepository interface {
	Upsert(ctx context.Context, transaction *Transaction) error
	GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Transaction, error)
	CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error)
	GetByStatus(ctx context.Context, accountID uuid.UUID, status shared.TransactionStatus, limit int) ([]*Transaction, error)
}

// ErrTransactionNotFound indicates missing ledger entry
type ErrTransactionNotFound struct {
	Reference string
}

func (e ErrTransactionNotFound) Error() string {
	return "transaction not found: " + e.Reference
}

// Is implements the errors.Is interface for ErrTransactionNotFound
func (e ErrTransactionNotFound) Is(target error) bool {
	t, ok := target.(ErrTransactionNotFound)
	if !ok {
		return false
	}
	// An empty target reference matches any ErrTransactionNotFound
	if t.Reference == "" {
		return true
	}
	return e.Reference == t.Reference
}

// ErrDuplicateReference indicates the storage level uniqueness constraint fired
type ErrDuplicateReference struct {
	Reference string
}

func (e ErrDuplicateReference) Error() string {
	return "duplicate transaction reference: " + e.Reference
}

// Is implements the errors.Is interface for ErrDuplicateReference
func (e ErrDuplicateReference) Is(target error) bool {
	t, ok := target.(ErrDuplicateReference)
	if !ok {
		return false
	}
	if t.Reference == "" {
		return true
	}
	return e.Reference == t.Reference
}

// ErrReferenceConflict indicates a reference already used by a different account
type ErrReferenceConflict struct {
	Reference string
}

func (e ErrReferenceConflict) Error() string {
	return "reference belongs to another account: " + e.Reference
}

// ErrNotPending indicates a status transition on an entry that already settled
type ErrNotPending struct {
	Reference string
}

func (e ErrNotPending) Error() string {
	return "transaction is not pending: " + e.Reference
}
