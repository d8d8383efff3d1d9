package activity

import (
	"context"

	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Filter narrows List and Count. Zero values mean "any".
type Filter struct {
	AggregateType shared.AggregateType
	AggregateID   string
	EventType     shared.EventType
}

// Repository manages activity log persistence with pagination support
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	GetByEventID(ctx context.Context, eventID uuid.UUID) (*Entry, error)
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Entry, error)
	Count(ctx context.Context, filter Filter) (int64, error)
}

// ErrEntryNotFound indicates missing activity entry
type ErrEntryNotFound struct {
	EventID uuid.UUID
}

func (e ErrEntryNotFound) Error() string {
	return "activity entry not found: " + e.EventID.String()
}

// Is implements the errors.Is interface for ErrEntryNotFound
func (e ErrEntryNotFound) Is(target error) bool {
	t, ok := target.(ErrEntryNotFound)
	if !ok {
		return false
	}
	// A nil EventID in the target matches any ErrEntryNotFound
	if t.EventID == uuid.Nil {
		return true
	}
	return e.EventID == t.EventID
}

// ErrDuplicateEntry indicates the event was already projected
type ErrDuplicateEntry struct {
	EventID uuid.UUID
}

func (e ErrDuplicateEntry) Error() string {
	return "duplicate activity entry: " + e.EventID.String()
}

// Is implements the errors.Is interface for ErrDuplicateEntry
func (e ErrDuplicateEntry) Is(target error) bool {
	t, ok := target.(ErrDuplicateEntry)
	if !ok {
		return false
	}
	if t.EventID == uuid.Nil {
		return true
	}
	return e.EventID == t.EventID
}
