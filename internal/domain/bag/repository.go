package bag

import (
	"context"

	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Repository defines blood bag persistence
type Repository interface {
	// Create fails with shared.DuplicateBagNumberError when the number is taken
	Create(ctx context.Context, bag *BloodBag) error
	GetByID(ctx context.Context, id uuid.UUID) (*BloodBag, error)
	GetByNumber(ctx context.Context, bagNumber string) (*BloodBag, error)
	ListAvailable(ctx context.Context, group shared.BloodGroup) ([]*BloodBag, error)

	// MarkUsed moves the bag from available to used only if it is still available.
	// It fails with shared.AlreadyUsedError or shared.NotFoundError otherwise.
	MarkUsed(ctx context.Context, id uuid.UUID, requestID uuid.UUID) (*BloodBag, error)
}
