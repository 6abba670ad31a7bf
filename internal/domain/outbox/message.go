package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/savings-wallet-ledger/internal/domain/ledger"
	"github.com/savings-wallet-ledger/internal/domain/shared"
)

// Message is a ledger event waiting to be relayed, written in the same
// database transaction as the balance change it describes
type Message struct {
	ID            int64                    `json:"id"`
	Reference     string                   `json:"reference"`
	AccountID     uuid.UUID                `json:"account_id"`
	EventStatus   shared.TransactionStatus `json:"event_status"`
	Payload       json.RawMessage          `json:"payload"`
	Status        shared.OutboxStatus      `json:"status"`
	Attempts      int                      `json:"attempts"`
	CreatedAt     time.Time                `json:"created_at"`
	LastAttemptAt *time.Time               `json:"last_attempt_at,omitempty"`
}

func NewMessage(transaction *ledger.Transaction) (*Message, error) {
	payload, err := json.Marshal(transaction)
	if err != nil {
		return nil, err
	}

	return &Message{
		Reference:   transaction.Reference,
		AccountID:   transaction.AccountID,
		EventStatus: transaction.Status,
		Payload:     payload,
		Status:      shared.OutboxStatusPending,
		Attempts:    0,
		CreatedAt:   time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// Transaction decodes the ledger entry carried by the payload
func (m *Message) Transaction() (*ledger.Transaction, error) {
	var transaction ledger.Transaction
	if err := json.Unmarshal(m.Payload, &transaction); err != nil {
		return nil, err
	}
	return &transaction, nil
}
