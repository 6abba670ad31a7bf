package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/savings-wallet-ledger/internal/domain/ledger"
	"github.com/savings-wallet-ledger/internal/ledger_projector/projection"
	"github.com/savings-wallet-ledger/internal/platform/messaging/producers"
	"github.com/savings-wallet-ledger/internal/platform/metrics"
)

// LedgerEventHandler handles ledger events consumed from Kafka
type LedgerEventHandler struct {
	projector projection.Projector
	producer  producers.DeadLetterPublisher
	metrics   *metrics.Recorder
	logger    *slog.Logger
}

// NewLedgerEventHandler creates a new handler. producer may be nil when no DLQ is configured.
func NewLedgerEventHandler(
	logger *slog.Logger,
	projector projection.Projector,
	producer producers.DeadLetterPublisher,
	recorder *metrics.Recorder,
) *LedgerEventHandler {
	return &LedgerEventHandler{
		projector: projector,
		producer:  producer,
		metrics:   recorder,
		logger:    logger,
	}
}

// HandleMessage projects one event. Malformed events are parked and acknowledged;
// projection failures are returned so the consumer retries the same message.
func (h *LedgerEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	transaction, err := decodeEvent(value)
	if err != nil {
		return h.park(ctx, key, value, err)
	}

	if err := h.projector.Project(ctx, transaction); err != nil {
		return fmt.Errorf("projecting %s failed: %w", transaction.Reference, err)
	}
	return nil
}

func decodeEvent(value []byte) (*ledger.Transaction, error) {
	var transaction ledger.Transaction
	if err := json.Unmarshal(value, &transaction); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ledger event: %w", err)
	}
	if transaction.Reference == "" {
		return nil, errors.New("ledger event has no reference")
	}
	if transaction.AccountID == uuid.Nil {
		return nil, errors.New("ledger event has no account")
	}
	if !transaction.Status.IsValid() {
		return nil, fmt.Errorf("ledger event has unknown status %q", transaction.Status)
	}
	return &transaction, nil
}

func (h *LedgerEventHandler) park(ctx context.Context, key, value []byte, cause error) error {
	h.metrics.StatementProjection(metrics.OutcomeRejected)
	h.logger.Error("Unprocessable ledger event", "message_key", string(key), "error", cause)

	dlqErr := producers.ErrDLQDisabled
	if h.producer != nil {
		dlqErr = h.producer.PublishToDLQ(ctx, string(key), value, cause.Error())
	}
	switch {
	case dlqErr == nil:
		return nil
	case errors.Is(dlqErr, producers.ErrDLQDisabled):
		h.logger.Warn("DLQ disabled, dropping unprocessable ledger event", "message_key", string(key))
		return nil
	default:
		h.logger.Error("Failed to publish message to DLQ",
			"dlq_error", dlqErr,
			"original_error", cause,
			"message_key", string(key),
		)
		return fmt.Errorf("failed to park unprocessable ledger event: %w", dlqErr)
	}
}
