package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/savings-wallet-ledger/internal/domain/account"
	"github.com/savings-wallet-ledger/internal/domain/idempotency"
	"github.com/savings-wallet-ledger/internal/domain/ledger"
	"github.com/savings-wallet-ledger/internal/domain/shared"
)

// ProcessingService is the only writer of account balances and ledger entries.
type ProcessingService interface {
	ApplyTransaction(ctx context.Context, request *shared.TransactionRequest, hooks ...TxHook) (*Result, error)
	InitiatePending(ctx context.Context, request *shared.TransactionRequest) (*Result, error)
	SettleTransaction(ctx context.Context, request *shared.SettlementRequest) (*Result, error)
	// FindReplay returns the entry already recorded for a client reference as a
	// replayed Result, or nil when the reference is unused or not the caller's to choose.
	FindReplay(ctx context.Context, accountID uuid.UUID, reference string) (*Result, error)
}

// Result of a mutation. Replayed is set when the reference was already recorded
// and the stored entry is returned unchanged.
type Result struct {
	Transaction *ledger.Transaction
	Replayed    bool
}

// TxContext is what a hook sees inside the mutation's database transaction.
// Account is the locked row after the kind's balance effect was applied.
type TxContext struct {
	Tx            pgx.Tx
	Account       *account.Account
	BalanceBefore int64
	Transaction   *ledger.Transaction
}

// TxHook runs inside the mutation transaction, after the balance effect and
// before the ledger row is written. Returning an error rolls everything back.
type TxHook func(ctx context.Context, txc *TxContext) error

// TransactionValidator validates transaction requests before processing
type TransactionValidator interface {
	Validate(ctx context.Context, request *shared.TransactionRequest) error
	// CheckIdempotency returns the entry already recorded under reference, or nil.
	// A nil tx reads outside any transaction.
	CheckIdempotency(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, reference string) (*ledger.Transaction, error)
}

// AccountManager handles account row access inside a mutation
type AccountManager interface {
	LockAccount(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (*account.Account, error)
	SaveAccount(ctx context.Context, tx pgx.Tx, acc *account.Account) error
}

// LedgerRecorder writes ledger rows inside a mutation
type LedgerRecorder interface {
	Record(ctx context.Context, tx pgx.Tx, transaction *ledger.Transaction) error
	LockPending(ctx context.Context, tx pgx.Tx, reference string) (*ledger.Transaction, error)
	Complete(ctx context.Context, tx pgx.Tx, transaction *ledger.Transaction) error
}

// OutboxManager handles the creation of outbox entries for processed transactions
type OutboxManager interface {
	CreateOutboxEntry(ctx context.Context, tx pgx.Tx, transaction *ledger.Transaction) error
}

// IdempotencyTracker deduplicates retried external requests by key
type IdempotencyTracker interface {
	BeginOrGet(ctx context.Context, key, requestHash string) (idempotency.Decision, error)
	Finalize(ctx context.Context, key string, responseCode int, responseBody []byte) error
	Release(ctx context.Context, key string, lockedAt time.Time) error
	Purge(ctx context.Context, olderThan time.Duration) (int64, error)
}
