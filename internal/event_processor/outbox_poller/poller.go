package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bloodbank-ledger/internal/config"
	"github.com/bloodbank-ledger/internal/domain/outbox"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/bloodbank-ledger/internal/platform/metrics"
)

const (
	outcomePublished = "published"
	outcomeRetry     = "retry"
	outcomeFailed    = "failed"
	outcomeInvalid   = "invalid"

	purgeInterval = time.Hour
)

// Poller relays pending outbox messages in creation order
type Poller struct {
	outboxRepo       outbox.Repository
	relay            EventRelay
	logger           *slog.Logger
	metrics          *metrics.Metrics
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
	retention        time.Duration
	lastPurge        time.Time
}

func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	relay EventRelay,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Poller {
	return &Poller{
		outboxRepo:       outboxRepo,
		relay:            relay,
		logger:           logger,
		metrics:          m,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
		retention:        cfg.Retention,
	}
}

// Start begins polling until context is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting Outbox Poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
		"retention", p.retention.String(),
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox Poller stopping due to context cancellation")
			return
		case <-ticker.C:
			if _, err := p.processPendingMessages(ctx); err != nil {
				p.logger.Error("Error during batch processing of pending outbox messages", "error", err)
			}
			p.purgeIfDue(ctx, time.Now())
		}
	}
}

// processPendingMessages relays one batch and reports how many were published
func (p *Poller) processPendingMessages(ctx context.Context) (int, error) {
	messages, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	if len(messages) == 0 {
		return 0, nil
	}

	p.logger.Debug("Fetched pending outbox messages", "count", len(messages))

	published := 0
	for _, msg := range messages {
		if ctx.Err() != nil {
			return published, nil
		}

		logger := p.logger.With("outbox_id", msg.ID, "event_id", msg.EventID.String(), "event_type", msg.EventType)

		event, err := msg.GetEvent()
		if err != nil {
			logger.Error("Outbox payload is not a domain event, marking as FAILED_TO_PUBLISH", "error", err)
			p.metrics.IncrementOutbox(outcomeInvalid)
			if errUpdate := p.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusFailedToPublish); errUpdate != nil {
				logger.Error("Failed to update outbox status to FAILED_TO_PUBLISH", "error", errUpdate)
			}
			continue
		}
		if event.CorrelationID != "" {
			logger = logger.With("correlation_id", event.CorrelationID)
		}

		if err := p.relay.Relay(ctx, msg, event); err != nil {
			p.handleFailure(ctx, logger, msg, err)
			continue
		}

		published++
		p.metrics.IncrementOutbox(outcomePublished)
		logger.Info("Relayed outbox message")
	}
	return published, nil
}

func (p *Poller) handleFailure(ctx context.Context, logger *slog.Logger, msg *outbox.Message, cause error) {
	logger.Error("Failed to relay outbox message", "current_attempts", msg.Attempts, "error", cause)

	if err := p.outboxRepo.IncrementAttempts(ctx, msg.ID); err != nil {
		logger.Error("Failed to increment attempts for outbox message", "error", err)
		return
	}

	msg.IncrementAttempts()
	if !msg.Exhausted(p.maxRetryAttempts) {
		p.metrics.IncrementOutbox(outcomeRetry)
		return
	}

	logger.Warn("Max retry attempts reached for outbox message, marking as FAILED_TO_PUBLISH", "attempts_made", msg.Attempts)
	p.metrics.IncrementOutbox(outcomeFailed)
	if err := p.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusFailedToPublish); err != nil {
		logger.Error("Failed to update outbox status to FAILED_TO_PUBLISH after max retries", "error", err)
	}
}

// purgeIfDue deletes relayed messages past retention, at most once per purgeInterval
func (p *Poller) purgeIfDue(ctx context.Context, now time.Time) {
	if p.retention <= 0 || now.Sub(p.lastPurge) < purgeInterval {
		return
	}
	p.lastPurge = now

	purged, err := p.outboxRepo.PurgeProcessed(ctx, now.Add(-p.retention))
	if err != nil {
		p.logger.Error("Failed to purge processed outbox messages", "error", err)
		return
	}
	if purged > 0 {
		p.logger.Info("Purged processed outbox messages", "count", purged, "retention", p.retention.String())
	}
}
