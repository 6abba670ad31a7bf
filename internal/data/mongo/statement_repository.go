// Package mongo holds the statement read model: a denormalized copy of every
// ledger entry, projected from ledger events and queried for account history.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/savings-wallet-ledger/internal/domain/ledger"
	"github.com/savings-wallet-ledger/internal/domain/shared"
)

const (
	// StatementCollectionName is the name of the statement collection in MongoDB
	StatementCollectionName = "ledger_entries"
)

// StatementRepository implements the ledger.StatementRepository interface for MongoDB
type StatementRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

func NewStatementRepository(logger *slog.Logger, db *mongo.Database) *StatementRepository {
	return &StatementRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the unique reference index Upsert relies on
func (r *StatementRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(StatementCollectionName)

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "reference", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("reference_unique"),
		},
		{
			Keys:    bson.D{{Key: "account_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("account_created"),
		},
	})
	if err != nil {
		r.logger.Error("Failed to create statement indexes", "error", err)
		return fmt.Errorf("failed to create statement indexes: %w", err)
	}

	return nil
}

// Upsert writes the latest known state of an entry. A document that already
// reached a terminal status is never replaced, so replayed or reordered events
// are harmless.
func (r *StatementRepository) Upsert(ctx context.Context, transaction *ledger.Transaction) error {
	collection := r.db.Collection(StatementCollectionName)

	filter := bson.M{
		"reference": transaction.Reference,
		"status": bson.M{"$nin": []shared.TransactionStatus{
			shared.TransactionStatusSuccess,
			shared.TransactionStatusFailed,
		}},
	}

	_, err := collection.ReplaceOne(ctx, filter, transaction, options.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// the stored document is already terminal
			r.logger.Debug("Statement entry already settled",
				"reference", transaction.Reference,
				"status", string(transaction.Status))
			return nil
		}
		r.logger.Error("Failed to upsert statement entry",
			"reference", transaction.Reference,
			"error", err)
		return fmt.Errorf("failed to upsert statement entry: %w", err)
	}

	return nil
}

// GetByReference returns ErrTransactionNotFound when the entry was not projected yet
func (r *StatementRepository) GetByReference(ctx context.Context, reference string) (*ledger.Transaction, error) {
	collection := r.db.Collection(StatementCollectionName)

	var transaction ledger.Transaction
	err := collection.FindOne(ctx, bson.M{"reference": reference}).Decode(&transaction)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ledger.ErrTransactionNotFound{Reference: reference}
		}
		r.logger.Error("Failed to get statement entry",
			"reference", reference,
			"error", err)
		return nil, fmt.Errorf("failed to get statement entry: %w", err)
	}

	return &transaction, nil
}

// GetByAccountID retrieves paginated entries for an account, newest first.
func (r *StatementRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*ledger.Transaction, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	return r.find(ctx, bson.M{"account_id": accountID}, opts)
}

// GetByStatus lists an account's entries in one status, newest first
func (r *StatementRepository) GetByStatus(ctx context.Context, accountID uuid.UUID, status shared.TransactionStatus, limit int) ([]*ledger.Transaction, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	return r.find(ctx, bson.M{"account_id": accountID, "status": status}, opts)
}

func (r *StatementRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*ledger.Transaction, error) {
	collection := r.db.Collection(StatementCollectionName)

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get statement entries", "error", err)
		return nil, fmt.Errorf("failed to get statement entries: %w", err)
	}
	defer cursor.Close(ctx)

	transactions := []*ledger.Transaction{}
	if err := cursor.All(ctx, &transactions); err != nil {
		r.logger.Error("Failed to decode statement entries", "error", err)
		return nil, fmt.Errorf("failed to decode statement entries: %w", err)
	}

	return transactions, nil
}

// CountByAccountID counts the entries projected for an account
func (r *StatementRepository) CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	collection := r.db.Collection(StatementCollectionName)

	count, err := collection.CountDocuments(ctx, bson.M{"account_id": accountID})
	if err != nil {
		r.logger.Error("Failed to count statement entries",
			"account_id", accountID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count statement entries: %w", err)
	}

	return count, nil
}
