package donation

import (
	"time"

	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Status of a donation request
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Request is a donor's offer to donate, reviewed by an admin
type Request struct {
	ID              uuid.UUID         `json:"id"`
	DonorID         string            `json:"donor_id"`
	DonorName       string            `json:"donor_name,omitempty"`
	BloodGroup      shared.BloodGroup `json:"blood_group"`
	Units           int               `json:"units"`
	Status          Status            `json:"status"`
	BloodBagNumber  *string           `json:"blood_bag_number,omitempty"`
	BagID           *uuid.UUID        `json:"bag_id,omitempty"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
	ReviewedBy      string            `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time        `json:"reviewed_at,omitempty"`
	Version         int               `json:"version"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// NewRequest creates a pending donation request
func NewRequest(donor shared.Actor, group shared.BloodGroup, units int) (*Request, error) {
	if !group.Valid() {
		return nil, shared.ErrInvalidBloodGroup
	}
	if units <= 0 {
		return nil, shared.ErrInvalidUnits
	}

	now := time.Now()
	return &Request{
		ID:         uuid.New(),
		DonorID:    donor.ID,
		DonorName:  donor.Name,
		BloodGroup: group,
		Units:      units,
		Status:     StatusPending,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Approve records the bag the donation produced
func (r *Request) Approve(bagID uuid.UUID, bagNumber string, approverID string) error {
	if err := r.review(StatusApproved, approverID); err != nil {
		return err
	}
	r.BagID = &bagID
	r.BloodBagNumber = &bagNumber
	return nil
}

// Reject closes the request without side effects
func (r *Request) Reject(reason string, approverID string) error {
	if err := r.review(StatusRejected, approverID); err != nil {
		return err
	}
	r.RejectionReason = reason
	return nil
}

func (r *Request) review(to Status, approverID string) error {
	if r.Status != StatusPending {
		return shared.InvalidTransitionError{Entity: "donation request", From: string(r.Status), To: string(to)}
	}
	now := time.Now()
	r.Status = to
	r.ReviewedBy = approverID
	r.ReviewedAt = &now
	r.UpdatedAt = now
	r.Version++
	return nil
}
