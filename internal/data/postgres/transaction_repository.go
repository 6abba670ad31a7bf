package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/savings-wallet-ledger/internal/domain/ledger"
	"github.com/savings-wallet-ledger/internal/domain/shared"
	"github.com/savings-wallet-ledger/internal/platform/persistence"
)

const transactionColumns = `id, reference, account_id, kind, amount, currency, status, metadata, balance_after, failure_reason, correlation_id, created_at, processed_at`

// TransactionRepository implements the ledger.Repository interface for PostgreSQL.
// Rows are append-only; the only permitted rewrite is pending to terminal.
type TransactionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewTransactionRepository creates a new PostgreSQL ledger repository
func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.Repository {
	return &TransactionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *TransactionRepository) WithTx(tx pgx.Tx) ledger.Repository {
	return &TransactionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create inserts a ledger entry. A reference that already exists yields ErrDuplicateReference.
func (r *TransactionRepository) Create(ctx context.Context, transaction *ledger.Transaction) error {
	query := `
		INSERT INTO transactions (id, reference, account_id, kind, amount, currency, status, metadata, balance_after, failure_reason, correlation_id, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.querier.Exec(ctx, query,
		transaction.ID,
		transaction.Reference,
		transaction.AccountID,
		transaction.Kind,
		transaction.Amount,
		transaction.Currency,
		transaction.Status,
		transaction.Metadata,
		transaction.BalanceAfter,
		transaction.FailureReason,
		transaction.CorrelationID,
		transaction.CreatedAt,
		transaction.ProcessedAt,
	)
	if err != nil {
		if persistence.IsUniqueViolation(err, "transactions_reference_key") {
			return ledger.ErrDuplicateReference{Reference: transaction.Reference}
		}
		r.logger.Error("Failed to create transaction",
			"reference", transaction.Reference,
			"error", err,
		)
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// GetByReference returns ErrTransactionNotFound when no entry carries the reference
func (r *TransactionRepository) GetByReference(ctx context.Context, reference string) (*ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1`

	transaction, err := scanTransaction(r.querier.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrTransactionNotFound{Reference: reference}
		}
		r.logger.Error("Failed to get transaction", "reference", reference, "error", err)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return transaction, nil
}

func (r *TransactionRepository) GetByReferenceForUpdate(ctx context.Context, reference string) (*ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1 FOR UPDATE`

	transaction, err := scanTransaction(r.querier.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrTransactionNotFound{Reference: reference}
		}
		r.logger.Error("Failed to lock transaction", "reference", reference, "error", err)
		return nil, fmt.Errorf("failed to lock transaction: %w", err)
	}

	return transaction, nil
}

// ListByAccountID returns the account's entries, newest first
func (r *TransactionRepository) ListByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*ledger.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list transactions", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	transactions := make([]*ledger.Transaction, 0, limit)
	for rows.Next() {
		transaction, err := scanTransaction(rows)
		if err != nil {
			r.logger.Error("Failed to scan transaction", "error", err)
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, transaction)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over transactions", "error", err)
		return nil, fmt.Errorf("error iterating over transactions: %w", err)
	}

	return transactions, nil
}

func (r *TransactionRepository) CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM transactions WHERE account_id = $1`

	var count int64
	if err := r.querier.QueryRow(ctx, query, accountID).Scan(&count); err != nil {
		r.logger.Error("Failed to count transactions", "account_id", accountID.String(), "error", err)
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	return count, nil
}

// CompletePending writes the terminal state of a pending entry. An entry that
// already settled is left untouched and ErrNotPending is returned.
func (r *TransactionRepository) CompletePending(ctx context.Context, transaction *ledger.Transaction) error {
	if !transaction.Status.IsTerminal() {
		return fmt.Errorf("cannot complete transaction %s with status %s", transaction.Reference, transaction.Status)
	}

	query := `
		UPDATE transactions
		SET status = $1, balance_after = $2, failure_reason = $3, metadata = $4, processed_at = $5
		WHERE reference = $6 AND status = $7
	`

	result, err := r.querier.Exec(ctx, query,
		transaction.Status,
		transaction.BalanceAfter,
		transaction.FailureReason,
		transaction.Metadata,
		transaction.ProcessedAt,
		transaction.Reference,
		shared.TransactionStatusPending,
	)
	if err != nil {
		r.logger.Error("Failed to complete pending transaction",
			"reference", transaction.Reference,
			"status", string(transaction.Status),
			"error", err,
		)
		return fmt.Errorf("failed to complete pending transaction: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ledger.ErrNotPending{Reference: transaction.Reference}
	}

	return nil
}

func scanTransaction(row pgx.Row) (*ledger.Transaction, error) {
	var transaction ledger.Transaction
	err := row.Scan(
		&transaction.ID,
		&transaction.Reference,
		&transaction.AccountID,
		&transaction.Kind,
		&transaction.Amount,
		&transaction.Currency,
		&transaction.Status,
		&transaction.Metadata,
		&transaction.BalanceAfter,
		&transaction.FailureReason,
		&transaction.CorrelationID,
		&transaction.CreatedAt,
		&transaction.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}
