package bag

import (
	"fmt"
	"strings"
	"time"

	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Status of a blood bag. Bags move from available to used exactly once.
type Status string

const (
	StatusAvailable Status = "available"
	StatusUsed      Status = "used"
)

// BloodBag is a uniquely numbered unit of collected blood
type BloodBag struct {
	ID                uuid.UUID         `json:"id"`
	BagNumber         string            `json:"bag_number"`
	BloodGroup        shared.BloodGroup `json:"blood_group"`
	DonorID           string            `json:"donor_id"`
	UnitsAvailable    int               `json:"units_available"`
	Status            Status            `json:"status"`
	DonationRequestID *uuid.UUID        `json:"donation_request_id,omitempty"`
	UsedByRequestID   *uuid.UUID        `json:"used_by_request_id,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UsedAt            *time.Time        `json:"used_at,omitempty"`
}

// NewBloodBag creates an available bag. An empty bagNumber is replaced by a generated one.
func NewBloodBag(group shared.BloodGroup, donorID string, units int, bagNumber string) (*BloodBag, error) {
	if !group.Valid() {
		return nil, shared.ErrInvalidBloodGroup
	}
	if units <= 0 {
		return nil, shared.ErrInvalidUnits
	}

	now := time.Now()
	bagNumber = strings.TrimSpace(bagNumber)
	if bagNumber == "" {
		bagNumber = GenerateBagNumber(now)
	}

	return &BloodBag{
		ID:             uuid.New(),
		BagNumber:      bagNumber,
		BloodGroup:     group,
		DonorID:        donorID,
		UnitsAvailable: units,
		Status:         StatusAvailable,
		CreatedAt:      now,
	}, nil
}

// GenerateBagNumber returns a number of the form BAG-20240131-1A2B3C4D
func GenerateBagNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("BAG-%s-%s", now.Format("20060102"), suffix)
}

// IsAvailable reports whether the bag can still be consumed
func (b *BloodBag) IsAvailable() bool {
	return b.Status == StatusAvailable
}
