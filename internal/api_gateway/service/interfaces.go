package service

import (
	"context"

	"github.com/bloodbank-ledger/internal/domain/bag"
	"github.com/bloodbank-ledger/internal/domain/bloodrequest"
	"github.com/bloodbank-ledger/internal/domain/donation"
	"github.com/bloodbank-ledger/internal/domain/eligibility"
	"github.com/bloodbank-ledger/internal/domain/inventory"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// InventoryLedger defines the blood stock operations
type InventoryLedger interface {
	// RecordEntry credits units to a group and appends an entry transaction
	RecordEntry(ctx context.Context, actor shared.Actor, group shared.BloodGroup, units int, meta map[string]string) (*inventory.Transaction, error)

	// RecordDonation debits units from a group and appends a donate transaction.
	// Returns InsufficientStockError when the group holds fewer units.
	RecordDonation(ctx context.Context, actor shared.Actor, group shared.BloodGroup, units int, meta map[string]string, linkedRequestID *uuid.UUID) (*inventory.Transaction, error)

	// RecordExchange moves units between two groups as one exchange transaction
	RecordExchange(ctx context.Context, actor shared.Actor, from, to shared.BloodGroup, units int, meta map[string]string) (*ExchangeResult, error)

	GetStock(ctx context.Context, group shared.BloodGroup) (*inventory.Stock, error)

	// GetStockAll returns all eight groups; groups without a counter read as 0
	GetStockAll(ctx context.Context) (map[shared.BloodGroup]int, error)

	// ListTransactions returns a page of transactions, newest first, and the total matching count
	ListTransactions(ctx context.Context, filter inventory.Filter) ([]*inventory.Transaction, int64, error)
}

// BloodBagRegistry defines blood bag operations
type BloodBagRegistry interface {
	// CreateBag registers an available bag and credits its units to stock.
	// An empty bagNumber is generated.
	CreateBag(ctx context.Context, actor shared.Actor, group shared.BloodGroup, donorID string, units int, bagNumber string) (*bag.BloodBag, error)
	ListAvailable(ctx context.Context, group shared.BloodGroup) ([]*bag.BloodBag, error)
	GetBag(ctx context.Context, id uuid.UUID) (*bag.BloodBag, error)
}

// RequestWorkflow defines the blood request lifecycle
type RequestWorkflow interface {
	SubmitRequest(ctx context.Context, actor shared.Actor, details bloodrequest.Details) (*bloodrequest.BloodRequest, error)

	// AssignDonor attaches a live donor to a pending request and activates it
	AssignDonor(ctx context.Context, actor shared.Actor, requestID uuid.UUID, donor DonorAssignment) (*bloodrequest.BloodRequest, error)

	// AssignFromBank consumes a bag, debits stock and activates the request in one unit of work
	AssignFromBank(ctx context.Context, actor shared.Actor, requestID uuid.UUID, assignment BankAssignment) (*bloodrequest.BloodRequest, error)

	UpdateStatus(ctx context.Context, actor shared.Actor, requestID uuid.UUID, status bloodrequest.Status) (*bloodrequest.BloodRequest, error)

	// Cancel soft-cancels a pending request. Only admins and the owning requester may cancel.
	Cancel(ctx context.Context, actor shared.Actor, requestID uuid.UUID) (*bloodrequest.BloodRequest, error)

	GetRequest(ctx context.Context, requestID uuid.UUID) (*bloodrequest.BloodRequest, error)
	ListRequests(ctx context.Context, filter bloodrequest.Filter) ([]*bloodrequest.BloodRequest, int64, error)
}

// ApprovalWorkflow defines the admin review of donations and blood requests
type ApprovalWorkflow interface {
	// SubmitDonation files a pending donation after the eligibility check
	SubmitDonation(ctx context.Context, actor shared.Actor, group shared.BloodGroup, units int) (*donation.Request, error)

	// ApproveDonation creates the bag, credits stock and approves the donation in one unit of work
	ApproveDonation(ctx context.Context, actor shared.Actor, donationID uuid.UUID, bagNumber string) (*bag.BloodBag, error)
	RejectDonation(ctx context.Context, actor shared.Actor, donationID uuid.UUID, reason string) (*donation.Request, error)
	ListDonations(ctx context.Context, filter donation.Filter) ([]*donation.Request, int64, error)

	ApproveBloodRequest(ctx context.Context, actor shared.Actor, requestID uuid.UUID) (*bloodrequest.BloodRequest, error)
	RejectBloodRequest(ctx context.Context, actor shared.Actor, requestID uuid.UUID, reason string) (*bloodrequest.BloodRequest, error)

	// DonorEligibility evaluates a donor's profile and approved donations
	DonorEligibility(ctx context.Context, donorID string) (*eligibility.Result, error)
}

// ExchangeResult holds both sides of an exchange
type ExchangeResult struct {
	Transaction *inventory.Transaction `json:"transaction"`
	From        *inventory.Stock       `json:"from"`
	To          *inventory.Stock       `json:"to"`
}

// DonorAssignment identifies the donor attached to a request. A donor caller
// may leave DonorID empty to assign themselves.
type DonorAssignment struct {
	DonorID string
	Name    string
	Phone   string
}

// BankAssignment identifies the bag used for a request. Units, when set, must
// equal the bag's units; zero takes the whole bag.
type BankAssignment struct {
	BagID        uuid.UUID
	Units        int
	UsageDetails string
}
