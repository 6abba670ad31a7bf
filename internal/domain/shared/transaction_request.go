package shared

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidTransactionKind = errors.New("invalid transaction kind")
	ErrInvalidCurrency        = errors.New("invalid currency")
	ErrReservedReference      = errors.New("reference uses a reserved prefix")
	ErrReferenceTooLong       = errors.New("reference is too long")
	ErrEmptyReference         = errors.New("reference is required")
)

const (
	// GeneratedReferencePrefix marks references minted by the ledger itself
	GeneratedReferencePrefix = "txn_"
	// GatewayReferencePrefix marks references derived from payment gateway identifiers
	GatewayReferencePrefix = "gw_"

	MaxReferenceLength = 128
)

// TransactionRequest is the input of a single balance mutation
type TransactionRequest struct {
	AccountID     uuid.UUID       `json:"account_id"`
	Kind          TransactionKind `json:"kind"`
	Amount        int64           `json:"amount"` // Stored in minor units
	Reference     string          `json:"reference,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// SettlementRequest carries a payment gateway outcome for a reference
type SettlementRequest struct {
	AccountID     uuid.UUID       `json:"account_id"`
	Reference     string          `json:"reference"`
	Amount        int64           `json:"amount"`
	Currency      string          `json:"currency,omitempty"`
	Succeeded     bool            `json:"succeeded"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// NewReference mints a collision resistant ledger reference
func NewReference() string {
	return GeneratedReferencePrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// GatewayReference builds the ledger reference for a gateway payment id
func GatewayReference(paymentID string) string {
	return GatewayReferencePrefix + paymentID
}

// ValidateClientReference rejects references a caller is not allowed to choose
func ValidateClientReference(reference string) error {
	if len(reference) > MaxReferenceLength {
		return ErrReferenceTooLong
	}
	if strings.HasPrefix(reference, GeneratedReferencePrefix) || strings.HasPrefix(reference, GatewayReferencePrefix) {
		return ErrReservedReference
	}
	return nil
}
