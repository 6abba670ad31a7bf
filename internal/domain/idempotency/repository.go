package idempotency

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// Repository persists idempotency records
type Repository interface {
	// Insert creates a pending record and reports false when the key already exists
	Insert(ctx context.Context, record *Record) (bool, error)
	GetForUpdate(ctx context.Context, key string) (*Record, error)
	// Reclaim refreshes the lease of an abandoned pending record
	Reclaim(ctx context.Context, key string, lockedAt time.Time) error
	MarkDone(ctx context.Context, key string, responseCode int, responseBody []byte) error
	// DeletePending removes the pending record only while lockedAt still owns it
	DeletePending(ctx context.Context, key string, lockedAt time.Time) error
	DeleteDoneBefore(ctx context.Context, before time.Time) (int64, error)
	WithTx(tx pgx.Tx) Repository
}
