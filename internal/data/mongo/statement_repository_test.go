package mongo

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/savings-wallet-ledger/internal/domain/ledger"
	"github.com/savings-wallet-ledger/internal/domain/shared"
)

func testEntry(reference string, status shared.TransactionStatus) *ledger.Transaction {
	return &ledger.Transaction{
		ID:        uuid.New(),
		Reference: reference,
		AccountID: uuid.New(),
		Kind:      shared.TransactionKindDeposit,
		Amount:    500,
		Currency:  "NGN",
		Status:    status,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func toDocument(t *testing.T, transaction *ledger.Transaction) bson.D {
	raw, err := bson.Marshal(transaction)
	require.NoError(t, err)
	var doc bson.D
	require.NoError(t, bson.Unmarshal(raw, &doc))
	return doc
}

func TestStatementRepository_Upsert(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("inserts or replaces pending", func(mt *mtest.T) {
		repo := NewStatementRepository(slog.Default(), mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		err := repo.Upsert(context.Background(), testEntry("ref-A", shared.TransactionStatusSuccess))
		assert.NoError(t, err)
	})

	mt.Run("terminal document is kept", func(mt *mtest.T) {
		repo := NewStatementRepository(slog.Default(), mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := repo.Upsert(context.Background(), testEntry("ref-A", shared.TransactionStatusPending))
		assert.NoError(t, err)
	})

	mt.Run("other write errors surface", func(mt *mtest.T) {
		repo := NewStatementRepository(slog.Default(), mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Message: "bad value",
		}))

		err := repo.Upsert(context.Background(), testEntry("ref-A", shared.TransactionStatusSuccess))
		assert.ErrorContains(t, err, "failed to upsert statement entry")
	})
}

func TestStatementRepository_Queries(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("by account", func(mt *mtest.T) {
		repo := NewStatementRepository(slog.Default(), mt.DB)
		first := testEntry("ref-B", shared.TransactionStatusSuccess)
		second := testEntry("ref-A", shared.TransactionStatusFailed)
		ns := mt.DB.Name() + "." + StatementCollectionName
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, toDocument(t, first), toDocument(t, second)))

		entries, err := repo.GetByAccountID(context.Background(), first.AccountID, 10, 0)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "ref-B", entries[0].Reference)
		assert.Equal(t, shared.TransactionStatusFailed, entries[1].Status)
	})

	mt.Run("empty page", func(mt *mtest.T) {
		repo := NewStatementRepository(slog.Default(), mt.DB)
		ns := mt.DB.Name() + "." + StatementCollectionName
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		entries, err := repo.GetByStatus(context.Background(), uuid.New(), shared.TransactionStatusPending, 5)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	mt.Run("by reference missing", func(mt *mtest.T) {
		repo := NewStatementRepository(slog.Default(), mt.DB)
		ns := mt.DB.Name() + "." + StatementCollectionName
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := repo.GetByReference(context.Background(), "ref-Z")
		assert.ErrorIs(t, err, ledger.ErrTransactionNotFound{Reference: "ref-Z"})
	})

	mt.Run("count", func(mt *mtest.T) {
		repo := NewStatementRepository(slog.Default(), mt.DB)
		ns := mt.DB.Name() + "." + StatementCollectionName
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(3)}}))

		count, err := repo.CountByAccountID(context.Background(), uuid.New())
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
	})
}

func TestStatementRepository_EnsureIndexes(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("creates indexes", func(mt *mtest.T) {
		repo := NewStatementRepository(slog.Default(), mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		assert.NoError(t, repo.EnsureIndexes(context.Background()))
	})
}
