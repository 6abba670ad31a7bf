package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/savings-wallet-ledger/internal/domain/idempotency"
	"github.com/savings-wallet-ledger/internal/platform/persistence"
)

// IdempotencyRepository implements the idempotency.Repository interface for PostgreSQL
type IdempotencyRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewIdempotencyRepository(logger *slog.Logger, db *persistence.PostgresDB) idempotency.Repository {
	return &IdempotencyRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *IdempotencyRepository) WithTx(tx pgx.Tx) idempotency.Repository {
	return &IdempotencyRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Insert claims the key. It reports false, without error, when the key is already taken.
func (r *IdempotencyRepository) Insert(ctx context.Context, record *idempotency.Record) (bool, error) {
	query := `
		INSERT INTO idempotency_records (key, scope, request_hash, status, locked_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (key) DO NOTHING
	`

	result, err := r.querier.Exec(ctx, query,
		record.Key,
		record.Scope,
		record.RequestHash,
		record.Status,
		record.LockedAt,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert idempotency record", "key", record.Key, "error", err)
		return false, fmt.Errorf("failed to insert idempotency record: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// GetForUpdate locks the record for the rest of the surrounding transaction
func (r *IdempotencyRepository) GetForUpdate(ctx context.Context, key string) (*idempotency.Record, error) {
	query := `
		SELECT key, scope, request_hash, status, response_code, response_body, locked_at, created_at, updated_at
		FROM idempotency_records
		WHERE key = $1
		FOR UPDATE
	`

	var (
		record       idempotency.Record
		responseCode *int
	)
	err := r.querier.QueryRow(ctx, query, key).Scan(
		&record.Key,
		&record.Scope,
		&record.RequestHash,
		&record.Status,
		&responseCode,
		&record.ResponseBody,
		&record.LockedAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, idempotency.ErrRecordMissing
		}
		r.logger.Error("Failed to get idempotency record", "key", key, "error", err)
		return nil, fmt.Errorf("failed to get idempotency record: %w", err)
	}
	if responseCode != nil {
		record.ResponseCode = *responseCode
	}

	return &record, nil
}

func (r *IdempotencyRepository) Reclaim(ctx context.Context, key string, lockedAt time.Time) error {
	query := `
		UPDATE idempotency_records
		SET locked_at = $1, updated_at = $1
		WHERE key = $2 AND status = $3
	`

	result, err := r.querier.Exec(ctx, query, lockedAt, key, idempotency.StatusPending)
	if err != nil {
		r.logger.Error("Failed to reclaim idempotency record", "key", key, "error", err)
		return fmt.Errorf("failed to reclaim idempotency record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return idempotency.ErrNotPending
	}

	return nil
}

// MarkDone stores the final response. Only a pending record can be finalized.
func (r *IdempotencyRepository) MarkDone(ctx context.Context, key string, responseCode int, responseBody []byte) error {
	query := `
		UPDATE idempotency_records
		SET status = $1, response_code = $2, response_body = $3, updated_at = NOW()
		WHERE key = $4 AND status = $5
	`

	result, err := r.querier.Exec(ctx, query, idempotency.StatusDone, responseCode, responseBody, key, idempotency.StatusPending)
	if err != nil {
		r.logger.Error("Failed to finalize idempotency record", "key", key, "error", err)
		return fmt.Errorf("failed to finalize idempotency record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return idempotency.ErrNotPending
	}

	return nil
}

// DeletePending frees a key whose request failed so a retry can run again.
// A claim reclaimed by another holder since lockedAt is left alone.
func (r *IdempotencyRepository) DeletePending(ctx context.Context, key string, lockedAt time.Time) error {
	query := `DELETE FROM idempotency_records WHERE key = $1 AND status = $2 AND locked_at = $3`

	result, err := r.querier.Exec(ctx, query, key, idempotency.StatusPending, lockedAt)
	if err != nil {
		r.logger.Error("Failed to release idempotency record", "key", key, "error", err)
		return fmt.Errorf("failed to release idempotency record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return idempotency.ErrNotPending
	}

	return nil
}

func (r *IdempotencyRepository) DeleteDoneBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM idempotency_records WHERE status = $1 AND updated_at < $2`

	result, err := r.querier.Exec(ctx, query, idempotency.StatusDone, before)
	if err != nil {
		r.logger.Error("Failed to purge idempotency records", "error", err)
		return 0, fmt.Errorf("failed to purge idempotency records: %w", err)
	}

	return result.RowsAffected(), nil
}
