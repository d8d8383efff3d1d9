package donation

import (
	"context"

	"github.com/google/uuid"
)

// Filter narrows List. Zero values mean "any".
type Filter struct {
	Status  Status
	DonorID string
	Limit   int
	Offset  int
}

// Repository defines donation request persistence
type Repository interface {
	Create(ctx context.Context, req *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Request, error)
	Update(ctx context.Context, req *Request) error
	List(ctx context.Context, filter Filter) ([]*Request, error)
	Count(ctx context.Context, filter Filter) (int64, error)
}

// Matches applies the filter to a single donation request
func (f Filter) Matches(r *Request) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.DonorID != "" && r.DonorID != f.DonorID {
		return false
	}
	return true
}
