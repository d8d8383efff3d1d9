package bloodrequest

import (
	"strings"
	"time"

	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Status of a blood request
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusFulfilled Status = "fulfilled"
	StatusCancelled Status = "cancelled"
)

// Urgency of a blood request
type Urgency string

const (
	UrgencyNormal    Urgency = "normal"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyEmergency Urgency = "emergency"
)

// ReviewStatus tracks the admin approval of a request, independent of fulfillment
type ReviewStatus string

const (
	ReviewAwaiting ReviewStatus = "awaiting"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// FulfillmentSource records how a request was assigned
type FulfillmentSource string

const (
	SourceNone  FulfillmentSource = ""
	SourceDonor FulfillmentSource = "donor"
	SourceBank  FulfillmentSource = "bank"
)

var transitions = map[Status][]Status{
	StatusPending: {StatusActive, StatusCancelled},
	StatusActive:  {StatusFulfilled, StatusCancelled},
}

// CanTransition reports whether from -> to is in the transition table
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ParseStatus validates a status string
func ParseStatus(s string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case StatusPending, StatusActive, StatusFulfilled, StatusCancelled:
		return status, true
	}
	return "", false
}

// ParseUrgency validates an urgency string, defaulting empty input to normal
func ParseUrgency(s string) (Urgency, bool) {
	urgency := Urgency(strings.ToLower(strings.TrimSpace(s)))
	switch urgency {
	case "":
		return UrgencyNormal, true
	case UrgencyNormal, UrgencyUrgent, UrgencyEmergency:
		return urgency, true
	}
	return "", false
}

// Details are the caller-supplied fields of a new request
type Details struct {
	BloodGroup   shared.BloodGroup
	UnitsNeeded  int
	Urgency      Urgency
	PatientName  string
	Hospital     string
	ContactPhone string
	Reason       string
	RequiredBy   *time.Time
}

// DonorContact is the donor attached by AssignDonor
type DonorContact struct {
	DonorID string `json:"donor_id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
}

// BloodRequest is a request for units of one blood group
type BloodRequest struct {
	ID              uuid.UUID         `json:"id"`
	BloodGroup      shared.BloodGroup `json:"blood_group"`
	UnitsNeeded     int               `json:"units_needed"`
	Status          Status            `json:"status"`
	Review          ReviewStatus      `json:"review_status"`
	Urgency         Urgency           `json:"urgency"`
	RequesterID     string            `json:"requester_id"`
	PatientName     string            `json:"patient_name,omitempty"`
	Hospital        string            `json:"hospital,omitempty"`
	ContactPhone    string            `json:"contact_phone,omitempty"`
	Reason          string            `json:"reason,omitempty"`
	RequiredBy      *time.Time        `json:"required_by,omitempty"`
	Source          FulfillmentSource `json:"fulfillment_source,omitempty"`
	Donor           *DonorContact     `json:"donor,omitempty"`
	AssignedBagID   *uuid.UUID        `json:"assigned_bag_id,omitempty"`
	UnitsFromBank   int               `json:"units_from_bank,omitempty"`
	UsageDetails    string            `json:"usage_details,omitempty"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
	Version         int               `json:"version"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// NewBloodRequest creates a pending request
func NewBloodRequest(requesterID string, d Details) (*BloodRequest, error) {
	if !d.BloodGroup.Valid() {
		return nil, shared.ErrInvalidBloodGroup
	}
	if d.UnitsNeeded <= 0 {
		return nil, shared.ErrInvalidUnits
	}
	if d.Urgency == "" {
		d.Urgency = UrgencyNormal
	}

	now := time.Now()
	return &BloodRequest{
		ID:           uuid.New(),
		BloodGroup:   d.BloodGroup,
		UnitsNeeded:  d.UnitsNeeded,
		Status:       StatusPending,
		Review:       ReviewAwaiting,
		Urgency:      d.Urgency,
		RequesterID:  requesterID,
		PatientName:  d.PatientName,
		Hospital:     d.Hospital,
		ContactPhone: d.ContactPhone,
		Reason:       d.Reason,
		RequiredBy:   d.RequiredBy,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// TransitionTo moves the request to a new status if the table allows it
func (r *BloodRequest) TransitionTo(to Status) error {
	if !CanTransition(r.Status, to) {
		return shared.InvalidTransitionError{Entity: "blood request", From: string(r.Status), To: string(to)}
	}
	r.Status = to
	r.UpdatedAt = time.Now()
	r.Version++
	return nil
}

// AssignDonor attaches a live donor and activates the request
func (r *BloodRequest) AssignDonor(donor DonorContact) error {
	if r.Status != StatusPending {
		return shared.InvalidTransitionError{Entity: "blood request", From: string(r.Status), To: string(StatusActive)}
	}
	if err := r.TransitionTo(StatusActive); err != nil {
		return err
	}
	r.Source = SourceDonor
	r.Donor = &donor
	return nil
}

// AssignBag attaches a bank bag. The request ends active, or fulfilled when fulfill is set.
func (r *BloodRequest) AssignBag(bagID uuid.UUID, units int, usageDetails string, fulfill bool) error {
	if r.Status != StatusPending {
		return shared.InvalidTransitionError{Entity: "blood request", From: string(r.Status), To: string(StatusActive)}
	}
	if err := r.TransitionTo(StatusActive); err != nil {
		return err
	}
	if fulfill {
		// one persisted write, so the version moves once
		r.Status = StatusFulfilled
	}
	r.Source = SourceBank
	r.AssignedBagID = &bagID
	r.UnitsFromBank = units
	r.UsageDetails = usageDetails
	return nil
}

// Approve marks the request as reviewed and visible to donors
func (r *BloodRequest) Approve() error {
	if r.Status != StatusPending || r.Review != ReviewAwaiting {
		return shared.InvalidTransitionError{Entity: "blood request review", From: string(r.Review), To: string(ReviewApproved)}
	}
	r.Review = ReviewApproved
	r.UpdatedAt = time.Now()
	r.Version++
	return nil
}

// Reject marks the review rejected and cancels the request
func (r *BloodRequest) Reject(reason string) error {
	if r.IsTerminal() {
		return shared.InvalidTransitionError{Entity: "blood request", From: string(r.Status), To: string(StatusCancelled)}
	}
	if err := r.TransitionTo(StatusCancelled); err != nil {
		return err
	}
	r.Review = ReviewRejected
	r.RejectionReason = reason
	return nil
}

// IsTerminal reports whether no further transitions are possible
func (r *BloodRequest) IsTerminal() bool {
	return r.Status == StatusFulfilled || r.Status == StatusCancelled
}
