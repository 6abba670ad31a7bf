package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/savings-wallet-ledger/internal/domain/outbox"
	"github.com/savings-wallet-ledger/internal/domain/shared"
	"github.com/savings-wallet-ledger/internal/platform/messaging/producers"
)

// Header names carried on every ledger event
const (
	HeaderReference   = "reference"
	HeaderEventStatus = "event-status"
)

// EventPublisher relays one outbox message to the event stream
type EventPublisher interface {
	PublishEvent(ctx context.Context, message *outbox.Message) error
}

// EventPublisherImpl implements EventPublisher
type EventPublisherImpl struct {
	outboxRepo outbox.Repository
	publisher  producers.MessagePublisher
	logger     *slog.Logger
}

// NewEventPublisher creates a new publisher
func NewEventPublisher(
	outboxRepo outbox.Repository,
	publisher producers.MessagePublisher,
	logger *slog.Logger,
) EventPublisher {
	return &EventPublisherImpl{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		logger:     logger,
	}
}

// PublishEvent publishes the stored payload keyed by account, then marks the message PROCESSED.
// A crash between the two steps republishes the event, which the statement projection absorbs.
func (p *EventPublisherImpl) PublishEvent(ctx context.Context, message *outbox.Message) error {
	logger := p.logger.With("outbox_id", message.ID, "reference", message.Reference)

	headers := map[string]string{
		HeaderReference:   message.Reference,
		HeaderEventStatus: string(message.EventStatus),
	}
	if err := p.publisher.Publish(ctx, message.AccountID.String(), message.Payload, headers); err != nil {
		return fmt.Errorf("failed to publish outbox message %d: %w", message.ID, err)
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED", "error", err)
		return fmt.Errorf("event for %s published, but failed to mark outbox %d as PROCESSED: %w", message.Reference, message.ID, err)
	}

	logger.Debug("Outbox message published and marked as PROCESSED")
	return nil
}
