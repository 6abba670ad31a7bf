package components

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/savings-wallet-ledger/internal/domain/idempotency"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockIdempotencyRepo struct {
	mock.Mock
}

func (m *MockIdempotencyRepo) Insert(ctx context.Context, record *idempotency.Record) (bool, error) {
	args := m.Called(ctx, record)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyRepo) GetForUpdate(ctx context.Context, key string) (*idempotency.Record, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*idempotency.Record), args.Error(1)
}

func (m *MockIdempotencyRepo) Reclaim(ctx context.Context, key string, lockedAt time.Time) error {
	args := m.Called(ctx, key, lockedAt)
	return args.Error(0)
}

func (m *MockIdempotencyRepo) MarkDone(ctx context.Context, key string, responseCode int, responseBody []byte) error {
	args := m.Called(ctx, key, responseCode, responseBody)
	return args.Error(0)
}

func (m *MockIdempotencyRepo) DeletePending(ctx context.Context, key string, lockedAt time.Time) error {
	args := m.Called(ctx, key, lockedAt)
	return args.Error(0)
}

func (m *MockIdempotencyRepo) DeleteDoneBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockIdempotencyRepo) WithTx(tx pgx.Tx) idempotency.Repository {
	args := m.Called(tx)
	return args.Get(0).(idempotency.Repository)
}

func newTestTracker(t *testing.T, now time.Time) (*IdempotencyTrackerImpl, pgxmock.PgxPoolIface, *MockIdempotencyRepo) {
	t.Helper()
	db, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(db.Close)

	repo := &MockIdempotencyRepo{}
	repo.On("WithTx", mock.Anything).Return(repo).Maybe()

	tracker := NewIdempotencyTracker(db, repo, WebhookScope, 30*time.Second, slog.Default()).(*IdempotencyTrackerImpl)
	tracker.now = func() time.Time { return now }
	return tracker, db, repo
}

func TestIdempotencyTracker_BeginOrGet(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("new key proceeds", func(t *testing.T) {
		tracker, db, repo := newTestTracker(t, now)
		db.ExpectBegin()
		repo.On("Insert", ctx, mock.MatchedBy(func(r *idempotency.Record) bool {
			return r.Key == "evt_1" && r.Scope == WebhookScope && r.Status == idempotency.StatusPending && r.LockedAt.Equal(now)
		})).Return(true, nil).Once()
		db.ExpectCommit()

		decision, err := tracker.BeginOrGet(ctx, "evt_1", "hash-a")
		require.NoError(t, err)
		assert.Equal(t, idempotency.OutcomeProceed, decision.Outcome)
		assert.True(t, decision.LockedAt.Equal(now))
		repo.AssertExpectations(t)
		assert.NoError(t, db.ExpectationsWereMet())
	})

	t.Run("finalized key replays cached response", func(t *testing.T) {
		tracker, db, repo := newTestTracker(t, now)
		db.ExpectBegin()
		repo.On("Insert", ctx, mock.Anything).Return(false, nil).Once()
		repo.On("GetForUpdate", ctx, "evt_1").Return(&idempotency.Record{
			Key: "evt_1", RequestHash: "hash-a", Status: idempotency.StatusDone,
			ResponseCode: 200, ResponseBody: []byte(`{"ok":true}`),
		}, nil).Once()
		db.ExpectCommit()

		decision, err := tracker.BeginOrGet(ctx, "evt_1", "hash-a")
		require.NoError(t, err)
		assert.Equal(t, idempotency.OutcomeReplay, decision.Outcome)
		assert.Equal(t, 200, decision.ResponseCode)
		assert.Equal(t, []byte(`{"ok":true}`), decision.ResponseBody)
		assert.NoError(t, db.ExpectationsWereMet())
	})

	t.Run("pending key within lease is in progress", func(t *testing.T) {
		tracker, db, repo := newTestTracker(t, now)
		db.ExpectBegin()
		repo.On("Insert", ctx, mock.Anything).Return(false, nil).Once()
		repo.On("GetForUpdate", ctx, "evt_1").Return(&idempotency.Record{
			Key: "evt_1", RequestHash: "hash-a", Status: idempotency.StatusPending, LockedAt: now.Add(-5 * time.Second),
		}, nil).Once()
		db.ExpectRollback()

		_, err := tracker.BeginOrGet(ctx, "evt_1", "hash-a")
		assert.ErrorIs(t, err, idempotency.ErrRequestInProgress)
		assert.NoError(t, db.ExpectationsWereMet())
	})

	t.Run("abandoned key is reclaimed", func(t *testing.T) {
		tracker, db, repo := newTestTracker(t, now)
		db.ExpectBegin()
		repo.On("Insert", ctx, mock.Anything).Return(false, nil).Once()
		repo.On("GetForUpdate", ctx, "evt_1").Return(&idempotency.Record{
			Key: "evt_1", RequestHash: "hash-a", Status: idempotency.StatusPending, LockedAt: now.Add(-time.Minute),
		}, nil).Once()
		repo.On("Reclaim", ctx, "evt_1", now).Return(nil).Once()
		db.ExpectCommit()

		decision, err := tracker.BeginOrGet(ctx, "evt_1", "hash-a")
		require.NoError(t, err)
		assert.Equal(t, idempotency.OutcomeProceed, decision.Outcome)
		assert.True(t, decision.LockedAt.Equal(now), "the reclaiming holder owns the new lock time")
		repo.AssertExpectations(t)
	})

	t.Run("key reused with another payload", func(t *testing.T) {
		tracker, db, repo := newTestTracker(t, now)
		db.ExpectBegin()
		repo.On("Insert", ctx, mock.Anything).Return(false, nil).Once()
		repo.On("GetForUpdate", ctx, "evt_1").Return(&idempotency.Record{
			Key: "evt_1", RequestHash: "hash-a", Status: idempotency.StatusDone,
		}, nil).Once()
		db.ExpectRollback()

		_, err := tracker.BeginOrGet(ctx, "evt_1", "hash-b")
		assert.ErrorIs(t, err, idempotency.ErrKeyReused)
	})

	t.Run("key released between insert and read", func(t *testing.T) {
		tracker, db, repo := newTestTracker(t, now)
		db.ExpectBegin()
		repo.On("Insert", ctx, mock.Anything).Return(false, nil).Once()
		repo.On("GetForUpdate", ctx, "evt_1").Return(nil, idempotency.ErrRecordMissing).Once()
		db.ExpectRollback()

		_, err := tracker.BeginOrGet(ctx, "evt_1", "hash-a")
		assert.ErrorIs(t, err, idempotency.ErrRequestInProgress)
	})

	t.Run("empty key", func(t *testing.T) {
		tracker, db, _ := newTestTracker(t, now)

		_, err := tracker.BeginOrGet(ctx, "", "hash-a")
		assert.ErrorIs(t, err, idempotency.ErrEmptyKey)
		assert.NoError(t, db.ExpectationsWereMet())
	})
}

func TestIdempotencyTracker_FinalizeReleasePurge(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("finalize", func(t *testing.T) {
		tracker, _, repo := newTestTracker(t, now)
		repo.On("MarkDone", ctx, "evt_1", 200, []byte(`{"ok":true}`)).Return(nil).Once()

		assert.NoError(t, tracker.Finalize(ctx, "evt_1", 200, []byte(`{"ok":true}`)))
		repo.AssertExpectations(t)
	})

	t.Run("finalize after lease was taken over", func(t *testing.T) {
		tracker, _, repo := newTestTracker(t, now)
		repo.On("MarkDone", ctx, "evt_1", 200, mock.Anything).Return(idempotency.ErrNotPending).Once()

		assert.ErrorIs(t, tracker.Finalize(ctx, "evt_1", 200, nil), idempotency.ErrNotPending)
	})

	t.Run("release", func(t *testing.T) {
		tracker, _, repo := newTestTracker(t, now)
		repo.On("DeletePending", ctx, "evt_1", now).Return(errors.New("db down")).Once()

		assert.EqualError(t, tracker.Release(ctx, "evt_1", now), "db down")
	})

	t.Run("release after the key was reclaimed keeps the new claim", func(t *testing.T) {
		tracker, _, repo := newTestTracker(t, now)
		staleLock := now.Add(-time.Minute)
		repo.On("DeletePending", ctx, "evt_1", staleLock).Return(idempotency.ErrNotPending).Once()

		assert.NoError(t, tracker.Release(ctx, "evt_1", staleLock))
		repo.AssertExpectations(t)
		repo.AssertNotCalled(t, "DeletePending", ctx, "evt_1", now)
	})

	t.Run("purge", func(t *testing.T) {
		tracker, _, repo := newTestTracker(t, now)
		repo.On("DeleteDoneBefore", ctx, now.Add(-72*time.Hour)).Return(int64(3), nil).Once()

		removed, err := tracker.Purge(ctx, 72*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(3), removed)
	})
}
