package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bloodbank-ledger/internal/domain/activity"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/bloodbank-ledger/internal/platform/metrics"
	"github.com/google/uuid"
)

const (
	outcomeProjected = "projected"
	outcomeDuplicate = "duplicate"
	outcomeInvalid   = "invalid"
	outcomeFailed    = "failed"
)

// ActivityProjectionService writes each event as one activity entry
type ActivityProjectionService struct {
	repo    activity.Repository
	logger  *slog.Logger
	metrics *metrics.Metrics
}

var _ ProjectionService = (*ActivityProjectionService)(nil)

func NewActivityProjectionService(logger *slog.Logger, repo activity.Repository, m *metrics.Metrics) *ActivityProjectionService {
	return &ActivityProjectionService{
		repo:    repo,
		logger:  logger,
		metrics: m,
	}
}

func (s *ActivityProjectionService) Project(ctx context.Context, event *shared.DomainEvent) error {
	logger := s.logger.With(
		"event_id", event.EventID.String(),
		"event_type", event.Type,
		"aggregate_id", event.AggregateID,
	)
	if event.CorrelationID != "" {
		logger = logger.With("correlation_id", event.CorrelationID)
	}

	if err := validateEvent(event); err != nil {
		s.metrics.IncrementProjected(outcomeInvalid)
		return err
	}

	entry, err := activity.NewEntry(event)
	if err != nil {
		s.metrics.IncrementProjected(outcomeInvalid)
		return fmt.Errorf("%w: payload of %s is not an object: %v", ErrInvalidEvent, event.EventID, err)
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		if errors.Is(err, activity.ErrDuplicateEntry{}) {
			logger.Info("Event already projected, skipping")
			s.metrics.IncrementProjected(outcomeDuplicate)
			return nil
		}
		s.metrics.IncrementProjected(outcomeFailed)
		return fmt.Errorf("failed to project event %s: %w", event.EventID, err)
	}

	s.metrics.IncrementProjected(outcomeProjected)
	logger.Info("Projected event into activity log")
	return nil
}

func validateEvent(event *shared.DomainEvent) error {
	switch {
	case event.EventID == uuid.Nil:
		return fmt.Errorf("%w: missing event_id", ErrInvalidEvent)
	case event.Type == "":
		return fmt.Errorf("%w: missing type", ErrInvalidEvent)
	case event.AggregateType == "" || event.AggregateID == "":
		return fmt.Errorf("%w: missing aggregate", ErrInvalidEvent)
	case event.OccurredAt.IsZero():
		return fmt.Errorf("%w: missing occurred_at", ErrInvalidEvent)
	}
	return nil
}
