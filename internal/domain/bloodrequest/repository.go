package bloodrequest

import (
	"context"

	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Filter narrows List. Zero values mean "any".
type Filter struct {
	Status      Status
	BloodGroup  shared.BloodGroup
	RequesterID string
	Limit       int
	Offset      int
}

// Repository defines blood request persistence
type Repository interface {
	Create(ctx context.Context, req *BloodRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*BloodRequest, error)

	// LockForUpdate acquires a pessimistic lock on the request row
	LockForUpdate(ctx context.Context, id uuid.UUID) (*BloodRequest, error)

	// Update persists the request using optimistic locking on the previous version
	Update(ctx context.Context, req *BloodRequest) error
	List(ctx context.Context, filter Filter) ([]*BloodRequest, error)
	Count(ctx context.Context, filter Filter) (int64, error)
}

// Matches applies the filter to a single request
func (f Filter) Matches(r *BloodRequest) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.BloodGroup != "" && r.BloodGroup != f.BloodGroup {
		return false
	}
	if f.RequesterID != "" && r.RequesterID != f.RequesterID {
		return false
	}
	return true
}
