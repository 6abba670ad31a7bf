package maintenance

import (
	"context"
	"log/slog"
	"time"
)

// KeyPurger removes finalized idempotency keys older than a retention window
type KeyPurger interface {
	Purge(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyPurger periodically drops finalized webhook keys so the table stays bounded.
// Pending keys are never touched.
type IdempotencyPurger struct {
	purger    KeyPurger
	interval  time.Duration
	retention time.Duration
	logger    *slog.Logger
}

func NewIdempotencyPurger(purger KeyPurger, interval, retention time.Duration, logger *slog.Logger) *IdempotencyPurger {
	return &IdempotencyPurger{
		purger:    purger,
		interval:  interval,
		retention: retention,
		logger:    logger,
	}
}

// Start runs one purge immediately and then on every interval until ctx is canceled
func (p *IdempotencyPurger) Start(ctx context.Context) {
	p.logger.Info("Starting idempotency purger",
		"interval", p.interval.String(),
		"retention", p.retention.String(),
	)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Idempotency purger stopping due to context cancellation")
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *IdempotencyPurger) runOnce(ctx context.Context) {
	removed, err := p.purger.Purge(ctx, p.retention)
	if err != nil {
		p.logger.Error("Failed to purge idempotency keys", "error", err)
		return
	}
	p.logger.Debug("Idempotency purge finished", "removed", removed)
}
