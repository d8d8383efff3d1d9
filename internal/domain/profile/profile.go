// Package profile describes the read-only view of donors owned by the user-profile store.
package profile

import (
	"context"
	"time"

	"github.com/bloodbank-ledger/internal/domain/shared"
)

// DonorProfile is the subset of a donor's profile this engine consumes
type DonorProfile struct {
	DonorID          string            `json:"donor_id"`
	Name             string            `json:"name"`
	Phone            string            `json:"phone,omitempty"`
	BloodGroup       shared.BloodGroup `json:"blood_group"`
	LastDonationDate *time.Time        `json:"last_donation_date,omitempty"`
	DateOfBirth      *time.Time        `json:"date_of_birth,omitempty"`
	WeightKg         *float64          `json:"weight_kg,omitempty"`
}

// AgeAt returns the donor's age in whole years at now, or nil when unknown
func (p *DonorProfile) AgeAt(now time.Time) *int {
	if p.DateOfBirth == nil {
		return nil
	}
	dob := *p.DateOfBirth
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return &age
}

// Provider looks up donor profiles. It fails with shared.NotFoundError for unknown donors.
type Provider interface {
	GetDonor(ctx context.Context, donorID string) (*DonorProfile, error)
}
