package handler

import (
	"time"

	"github.com/bloodbank-ledger/internal/domain/inventory"
)

// StockEntryRequest credits collected units to a group
type StockEntryRequest struct {
	BloodGroup string            `json:"blood_group" binding:"required"`
	Units      int               `json:"units"`
	DonorMeta  map[string]string `json:"donor_meta,omitempty"`
}

// StockDonateRequest debits units handed out to a receiver
type StockDonateRequest struct {
	BloodGroup   string            `json:"blood_group" binding:"required"`
	Units        int               `json:"units"`
	ReceiverMeta map[string]string `json:"receiver_meta,omitempty"`
	RequestID    string            `json:"request_id,omitempty" binding:"omitempty,uuid"`
}

// StockExchangeRequest moves units from one group's counter to another's
type StockExchangeRequest struct {
	FromGroup string `json:"from_group" binding:"required"`
	ToGroup   string `json:"to_group" binding:"required"`
	Units     int    `json:"units"`
	Note      string `json:"note,omitempty"`
}

// StockChangeResponse is a committed ledger transaction with the group's new total
type StockChangeResponse struct {
	Transaction *inventory.Transaction `json:"transaction"`
	BloodGroup  string                 `json:"blood_group"`
	Units       int                    `json:"units"`
}

// StockLevel is one group's counter in GET /stock
type StockLevel struct {
	BloodGroup string `json:"blood_group"`
	Units      int    `json:"units"`
}

// TransactionQuery filters GET /transactions
type TransactionQuery struct {
	Type       string `form:"type" binding:"omitempty,oneof=entry donate exchange"`
	BloodGroup string `form:"blood_group"`
	RequestID  string `form:"request_id" binding:"omitempty,uuid"`
	From       string `form:"from"`
	To         string `form:"to"`
}

// CreateBagRequest registers a bag collected outside the donation workflow
type CreateBagRequest struct {
	BloodGroup string `json:"blood_group" binding:"required"`
	DonorID    string `json:"donor_id"`
	Units      int    `json:"units"`
	BagNumber  string `json:"bag_number"`
}

// SubmitDonationRequest is a donor's offer. An empty blood group defaults to the donor profile.
type SubmitDonationRequest struct {
	BloodGroup string `json:"blood_group"`
	Units      int    `json:"units"`
}

// ApproveDonationRequest names the bag the approved donation is stored in
type ApproveDonationRequest struct {
	BloodBagNumber string `json:"blood_bag_number"`
}

// RejectRequest carries the reason for rejecting a donation or a blood request
type RejectRequest struct {
	Reason string `json:"reason"`
}

// SubmitBloodRequest opens a request for units of one group
type SubmitBloodRequest struct {
	BloodGroup   string     `json:"blood_group" binding:"required"`
	UnitsNeeded  int        `json:"units_needed"`
	Urgency      string     `json:"urgency"`
	PatientName  string     `json:"patient_name"`
	Hospital     string     `json:"hospital"`
	ContactPhone string     `json:"contact_phone"`
	Reason       string     `json:"reason"`
	RequiredBy   *time.Time `json:"required_by,omitempty"`
}

// AssignDonorRequest attaches a live donor. Donor callers may omit donor_id.
type AssignDonorRequest struct {
	DonorID    string `json:"donor_id"`
	DonorName  string `json:"donor_name" binding:"required"`
	DonorPhone string `json:"donor_phone" binding:"required"`
}

// AssignFromBankRequest fulfils a request from a stored bag. Zero units uses the whole bag.
type AssignFromBankRequest struct {
	BagID        string `json:"bag_id" binding:"required,uuid"`
	Units        int    `json:"units"`
	UsageDetails string `json:"usage_details"`
}

// UpdateStatusRequest moves a request along its lifecycle
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// RequestQuery filters GET /requests
type RequestQuery struct {
	Status     string `form:"status"`
	BloodGroup string `form:"blood_group"`
}

// DonationQuery filters GET /donation-requests
type DonationQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=pending approved rejected"`
}

// ActivityQuery filters GET /activity
type ActivityQuery struct {
	AggregateType string `form:"aggregate_type"`
	AggregateID   string `form:"aggregate_id"`
	EventType     string `form:"event_type"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page     int `form:"page,default=1" binding:"min=1"`
	PageSize int `form:"page_size,default=20" binding:"min=1,max=100"`
}

func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}
