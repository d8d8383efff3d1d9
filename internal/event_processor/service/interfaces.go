package service

import (
	"context"
	"errors"

	"github.com/bloodbank-ledger/internal/domain/shared"
)

// ErrInvalidEvent marks an event that can never be projected. Callers park
// such events in the DLQ instead of retrying them.
var ErrInvalidEvent = errors.New("invalid domain event")

// ProjectionService records committed domain events in the activity log.
// Projecting the same event twice is a no-op.
type ProjectionService interface {
	Project(ctx context.Context, event *shared.DomainEvent) error
}
