package components

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/savings-wallet-ledger/internal/domain/idempotency"
	"github.com/savings-wallet-ledger/internal/platform/persistence"
	"github.com/savings-wallet-ledger/internal/transaction_processor/service"
)

// DefaultIdempotencyLease is how long a pending key blocks duplicates when no lease is configured
const DefaultIdempotencyLease = 30 * time.Second

// IdempotencyTrackerImpl deduplicates retried external requests by key
type IdempotencyTrackerImpl struct {
	db     persistence.TxBeginner
	repo   idempotency.Repository
	scope  string
	lease  time.Duration
	logger *slog.Logger
	now    func() time.Time
}

func NewIdempotencyTracker(db persistence.TxBeginner, repo idempotency.Repository, scope string, lease time.Duration, logger *slog.Logger) service.IdempotencyTracker {
	if lease <= 0 {
		lease = DefaultIdempotencyLease
	}
	return &IdempotencyTrackerImpl{
		db:     db,
		repo:   repo,
		scope:  scope,
		lease:  lease,
		logger: logger,
		now:    time.Now,
	}
}

// BeginOrGet claims key for the caller or reports what an earlier request left behind.
// A Proceed decision obliges the caller to Finalize or Release the key.
func (t *IdempotencyTrackerImpl) BeginOrGet(ctx context.Context, key, requestHash string) (idempotency.Decision, error) {
	if err := idempotency.ValidateKey(key); err != nil {
		return idempotency.Decision{}, err
	}

	var decision idempotency.Decision
	err := persistence.ExecuteTx(ctx, t.db, func(tx pgx.Tx) error {
		repo := t.repo.WithTx(tx)
		now := t.now().UTC().Truncate(time.Microsecond)

		inserted, err := repo.Insert(ctx, &idempotency.Record{
			Key:         key,
			Scope:       t.scope,
			RequestHash: requestHash,
			Status:      idempotency.StatusPending,
			LockedAt:    now,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return err
		}
		if inserted {
			decision = idempotency.Decision{Outcome: idempotency.OutcomeProceed, LockedAt: now}
			return nil
		}

		record, err := repo.GetForUpdate(ctx, key)
		if err != nil {
			if errors.Is(err, idempotency.ErrRecordMissing) {
				// released between our insert attempt and the read
				return idempotency.ErrRequestInProgress
			}
			return err
		}

		if record.RequestHash != requestHash {
			t.logger.Warn("Idempotency key reused with a different payload", "key", key)
			return idempotency.ErrKeyReused
		}

		switch {
		case record.Status == idempotency.StatusDone:
			decision = idempotency.Decision{
				Outcome:      idempotency.OutcomeReplay,
				ResponseCode: record.ResponseCode,
				ResponseBody: record.ResponseBody,
			}
			return nil
		case record.LeaseExpired(now, t.lease):
			t.logger.Warn("Reclaiming abandoned idempotency key", "key", key, "locked_at", record.LockedAt)
			if err := repo.Reclaim(ctx, key, now); err != nil {
				return err
			}
			decision = idempotency.Decision{Outcome: idempotency.OutcomeProceed, LockedAt: now}
			return nil
		default:
			return idempotency.ErrRequestInProgress
		}
	})
	if err != nil {
		return idempotency.Decision{}, err
	}

	return decision, nil
}

// Finalize caches the response of a successful request under key
func (t *IdempotencyTrackerImpl) Finalize(ctx context.Context, key string, responseCode int, responseBody []byte) error {
	if err := t.repo.MarkDone(ctx, key, responseCode, responseBody); err != nil {
		t.logger.Error("Failed to finalize idempotency key", "key", key, "error", err)
		return err
	}
	return nil
}

// Release frees the claim taken at lockedAt after a failed request so the retry
// is processed immediately. A claim another request reclaimed in the meantime is kept.
func (t *IdempotencyTrackerImpl) Release(ctx context.Context, key string, lockedAt time.Time) error {
	err := t.repo.DeletePending(ctx, key, lockedAt)
	if errors.Is(err, idempotency.ErrNotPending) {
		t.logger.Warn("Idempotency key no longer held, leaving it to its new holder", "key", key)
		return nil
	}
	return err
}

// Purge removes finalized keys older than olderThan
func (t *IdempotencyTrackerImpl) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	removed, err := t.repo.DeleteDoneBefore(ctx, t.now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		t.logger.Info("Purged idempotency keys", "count", removed)
	}
	return removed, nil
}
