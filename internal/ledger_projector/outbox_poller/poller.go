package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/savings-wallet-ledger/internal/config"
	"github.com/savings-wallet-ledger/internal/domain/outbox"
	"github.com/savings-wallet-ledger/internal/domain/shared"
	"github.com/savings-wallet-ledger/internal/platform/metrics"
)

// Poller relays pending outbox messages to Kafka
type Poller struct {
	outboxRepo       outbox.Repository
	eventPublisher   EventPublisher
	pool             *ants.Pool
	metrics          *metrics.Recorder
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
}

// NewPoller creates a poller. Messages of different accounts are relayed
// concurrently on pool; one account's messages always go out in creation order.
func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	eventPublisher EventPublisher,
	pool *ants.Pool,
	recorder *metrics.Recorder,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:       outboxRepo,
		eventPublisher:   eventPublisher,
		pool:             pool,
		metrics:          recorder,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
	}
}

// Start begins polling until context is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting Outbox Poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox Poller stopping due to context cancellation")
			return
		case <-ticker.C:
			if err := p.processPendingMessages(ctx); err != nil {
				p.logger.Error("Error during batch processing of pending outbox messages", "error", err)
			}
		}
	}
}

func (p *Poller) processPendingMessages(ctx context.Context) error {
	messages, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending outbox messages: %w", err)
	}

	if len(messages) == 0 {
		return nil
	}

	p.logger.Info("Fetched pending outbox messages", "count", len(messages))

	var wg sync.WaitGroup
	for _, batch := range groupByAccount(messages) {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			p.relayAccount(ctx, batch)
		}
		if err := p.pool.Submit(task); err != nil {
			p.logger.Warn("Worker pool rejected relay task, running inline", "error", err)
			task()
		}
	}
	wg.Wait()
	return nil
}

// relayAccount stops at the first failure so later events never overtake it
func (p *Poller) relayAccount(ctx context.Context, messages []*outbox.Message) {
	for _, msg := range messages {
		if err := p.eventPublisher.PublishEvent(ctx, msg); err != nil {
			p.handleFailure(ctx, msg, err)
			return
		}
		p.metrics.OutboxRelay(metrics.OutcomeApplied)
	}
}

func (p *Poller) handleFailure(ctx context.Context, msg *outbox.Message, err error) {
	logger := p.logger.With("outbox_id", msg.ID, "reference", msg.Reference)
	logger.Error("Failed to relay outbox message", "current_attempts", msg.Attempts, "error", err)

	if errInc := p.outboxRepo.IncrementAttempts(ctx, msg.ID); errInc != nil {
		logger.Error("Failed to increment attempts for outbox message", "error", errInc)
		p.metrics.OutboxRelay(metrics.OutcomeFailed)
		return
	}

	if msg.Attempts+1 < p.maxRetryAttempts {
		p.metrics.OutboxRelay(metrics.OutcomeFailed)
		return
	}

	logger.Warn("Max retry attempts reached for outbox message, marking as FAILED_TO_PUBLISH",
		"attempts_made", msg.Attempts+1,
	)
	if errUpdate := p.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusFailedToPublish); errUpdate != nil {
		logger.Error("Failed to update outbox status to FAILED_TO_PUBLISH after max retries", "error", errUpdate)
	}
	p.metrics.OutboxRelay(metrics.OutcomeRejected)
}

// groupByAccount keeps the repository order within each account
func groupByAccount(messages []*outbox.Message) [][]*outbox.Message {
	index := make(map[uuid.UUID]int)
	var groups [][]*outbox.Message
	for _, msg := range messages {
		i, ok := index[msg.AccountID]
		if !ok {
			i = len(groups)
			index[msg.AccountID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], msg)
	}
	return groups
}
