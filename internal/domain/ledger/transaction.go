package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/savings-wallet-ledger/internal/domain/shared"
)

// ErrInvalidMetadata is returned when metadata is not a JSON object
var ErrInvalidMetadata = errors.New("metadata must be a JSON object")

// Transaction is one immutable ledger entry, unique by Reference
type Transaction struct {
	ID            uuid.UUID                `json:"id" bson:"transaction_id"`
	Reference     string                   `json:"reference" bson:"reference"`
	AccountID     uuid.UUID                `json:"account_id" bson:"account_id"`
	Kind          shared.TransactionKind   `json:"kind" bson:"kind"`
	Amount        int64                    `json:"amount" bson:"amount"` // Stored in minor units
	Currency      string                   `json:"currency" bson:"currency"`
	Status        shared.TransactionStatus `json:"status" bson:"status"`
	Metadata      map[string]any           `json:"metadata,omitempty" bson:"metadata,omitempty"`
	BalanceAfter  *int64                   `json:"balance_after,omitempty" bson:"balance_after,omitempty"`
	FailureReason string                   `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
	CorrelationID string                   `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	CreatedAt     time.Time                `json:"created_at" bson:"created_at"`
	ProcessedAt   *time.Time               `json:"processed_at,omitempty" bson:"processed_at,omitempty"`
}

// NewTransaction builds a ledger entry for a request. Status is set by the caller.
func NewTransaction(request *shared.TransactionRequest, currency string, status shared.TransactionStatus) *Transaction {
	createdAt := request.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return &Transaction{
		ID:            uuid.New(),
		Reference:     request.Reference,
		AccountID:     request.AccountID,
		Kind:          request.Kind,
		Amount:        request.Amount,
		Currency:      currency,
		Status:        status,
		CorrelationID: request.CorrelationID,
		CreatedAt:     createdAt.UTC().Truncate(time.Microsecond),
	}
}

// Succeed marks the entry applied with the resulting balance snapshot
func (t *Transaction) Succeed(balanceAfter int64, at time.Time) {
	t.Status = shared.TransactionStatusSuccess
	t.BalanceAfter = &balanceAfter
	processed := at.UTC().Truncate(time.Microsecond)
	t.ProcessedAt = &processed
}

// Fail marks a pending entry as failed without touching the balance
func (t *Transaction) Fail(reason shared.FailureReason, at time.Time) {
	t.Status = shared.TransactionStatusFailed
	t.FailureReason = string(reason)
	processed := at.UTC().Truncate(time.Microsecond)
	t.ProcessedAt = &processed
}

// SameOperation reports whether a replayed request describes the stored entry
func (t *Transaction) SameOperation(accountID uuid.UUID, kind shared.TransactionKind, amount int64) bool {
	return t.AccountID == accountID && t.Kind == kind && t.Amount == amount
}

// AttachMetadata decodes a caller supplied JSON object onto the entry
func (t *Transaction) AttachMetadata(raw json.RawMessage) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var metadata map[string]any
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return ErrInvalidMetadata
	}
	t.Metadata = metadata
	return nil
}
