package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bloodbank-ledger/internal/domain/bag"
	"github.com/bloodbank-ledger/internal/domain/bloodrequest"
	"github.com/bloodbank-ledger/internal/domain/donation"
	"github.com/bloodbank-ledger/internal/domain/eligibility"
	"github.com/bloodbank-ledger/internal/domain/profile"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/bloodbank-ledger/internal/domain/uow"
	"github.com/bloodbank-ledger/internal/platform/metrics"
	"github.com/google/uuid"
)

const donationEntity = "donation_request"

// ApprovalWorkflowService implements the ApprovalWorkflow interface
type ApprovalWorkflowService struct {
	uow       uow.UnitOfWork
	ledger    *InventoryLedgerService
	bags      *BloodBagRegistryService
	profiles  profile.Provider
	evaluator *eligibility.Evaluator
	events    *eventRecorder
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

var _ ApprovalWorkflow = (*ApprovalWorkflowService)(nil)

// NewApprovalWorkflow wires the workflow. profiles may be nil, in which case
// donations are evaluated on the donor's approved donations alone.
func NewApprovalWorkflow(
	logger *slog.Logger,
	unitOfWork uow.UnitOfWork,
	ledger *InventoryLedgerService,
	bags *BloodBagRegistryService,
	profiles profile.Provider,
	evaluator *eligibility.Evaluator,
	m *metrics.Metrics,
) *ApprovalWorkflowService {
	return &ApprovalWorkflowService{
		uow:       unitOfWork,
		ledger:    ledger,
		bags:      bags,
		profiles:  profiles,
		evaluator: evaluator,
		events:    newEventRecorder(logger),
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

func (w *ApprovalWorkflowService) SubmitDonation(ctx context.Context, actor shared.Actor, group shared.BloodGroup, units int) (*donation.Request, error) {
	if err := shared.Authorize(actor, shared.CapDonationSubmit); err != nil {
		return nil, err
	}

	p, err := w.lookupDonor(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	if p != nil && p.BloodGroup != "" {
		if group == "" {
			group = p.BloodGroup
		}
		if group != p.BloodGroup {
			return nil, fmt.Errorf("%w: donor %s is %s, donation declares %s", shared.ErrBloodGroupMismatch, actor.ID, p.BloodGroup, group)
		}
	}

	result, err := w.evaluate(ctx, actor.ID, p)
	if err != nil {
		return nil, err
	}
	if !result.Eligible {
		w.logger.Info("Donation refused by eligibility check", "donor_id", actor.ID, "reasons", result.Reasons)
		return nil, shared.IneligibleError{Reasons: result.Reasons}
	}

	req, err := donation.NewRequest(actor, group, units)
	if err != nil {
		return nil, err
	}
	if req.DonorName == "" && p != nil {
		req.DonorName = p.Name
	}

	err = w.uow.Execute(ctx, func(ctx context.Context, repos uow.Repositories) error {
		if err := repos.Donations.Create(ctx, req); err != nil {
			w.logger.Error("Failed to create donation request", "donor_id", actor.ID, "error", err)
			return err
		}
		return w.events.record(ctx, repos.Outbox, actor, shared.EventDonationSubmitted, shared.AggregateDonation, req.ID.String(), req)
	})
	if err != nil {
		return nil, err
	}

	w.donationCommitted(req)
	return req, nil
}

func (w *ApprovalWorkflowService) ApproveDonation(ctx context.Context, actor shared.Actor, donationID uuid.UUID, bagNumber string) (*bag.BloodBag, error) {
	if err := shared.Authorize(actor, shared.CapDonationReview); err != nil {
		return nil, err
	}

	var (
		req     *donation.Request
		created *bag.BloodBag
		credit  *ledgerResult
	)
	err := w.uow.Execute(ctx, func(ctx context.Context, repos uow.Repositories) error {
		var err error
		req, err = repos.Donations.LockForUpdate(ctx, donationID)
		if err != nil {
			return err
		}
		if req.Status != donation.StatusPending {
			return shared.InvalidTransitionError{Entity: "donation request", From: string(req.Status), To: string(donation.StatusApproved)}
		}

		created, credit, err = w.bags.intake(ctx, repos, actor, req.BloodGroup, req.DonorID, req.Units, bagNumber, &req.ID)
		if err != nil {
			return err
		}

		if err := req.Approve(created.ID, created.BagNumber, actor.ID); err != nil {
			return err
		}
		if err := repos.Donations.Update(ctx, req); err != nil {
			return err
		}
		return w.events.record(ctx, repos.Outbox, actor, shared.EventDonationApproved, shared.AggregateDonation, req.ID.String(), req)
	})
	if err != nil {
		w.logger.Warn("Donation approval rolled back", "donation_id", donationID.String(), "error", err)
		return nil, err
	}

	w.ledger.observe(credit)
	w.donationCommitted(req)
	return created, nil
}

func (w *ApprovalWorkflowService) RejectDonation(ctx context.Context, actor shared.Actor, donationID uuid.UUID, reason string) (*donation.Request, error) {
	if err := shared.Authorize(actor, shared.CapDonationReview); err != nil {
		return nil, err
	}

	var req *donation.Request
	err := w.uow.Execute(ctx, func(ctx context.Context, repos uow.Repositories) error {
		var err error
		req, err = repos.Donations.LockForUpdate(ctx, donationID)
		if err != nil {
			return err
		}
		if err := req.Reject(reason, actor.ID); err != nil {
			return err
		}
		if err := repos.Donations.Update(ctx, req); err != nil {
			return err
		}
		return w.events.record(ctx, repos.Outbox, actor, shared.EventDonationRejected, shared.AggregateDonation, req.ID.String(), req)
	})
	if err != nil {
		return nil, err
	}

	w.donationCommitted(req)
	return req, nil
}

func (w *ApprovalWorkflowService) ListDonations(ctx context.Context, filter donation.Filter) ([]*donation.Request, int64, error) {
	repo := w.uow.Repositories().Donations

	reqs, err := repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	total, err := repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	return reqs, total, nil
}

func (w *ApprovalWorkflowService) ApproveBloodRequest(ctx context.Context, actor shared.Actor, requestID uuid.UUID) (*bloodrequest.BloodRequest, error) {
	return w.reviewRequest(ctx, actor, requestID, shared.EventRequestApproved, func(req *bloodrequest.BloodRequest) error {
		return req.Approve()
	})
}

func (w *ApprovalWorkflowService) RejectBloodRequest(ctx context.Context, actor shared.Actor, requestID uuid.UUID, reason string) (*bloodrequest.BloodRequest, error) {
	return w.reviewRequest(ctx, actor, requestID, shared.EventRequestRejected, func(req *bloodrequest.BloodRequest) error {
		return req.Reject(reason)
	})
}

func (w *ApprovalWorkflowService) reviewRequest(ctx context.Context, actor shared.Actor, requestID uuid.UUID, eventType shared.EventType, apply func(*bloodrequest.BloodRequest) error) (*bloodrequest.BloodRequest, error) {
	if err := shared.Authorize(actor, shared.CapRequestReview); err != nil {
		return nil, err
	}

	var req *bloodrequest.BloodRequest
	err := w.uow.Execute(ctx, func(ctx context.Context, repos uow.Repositories) error {
		var err error
		req, err = repos.Requests.LockForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if err := apply(req); err != nil {
			return err
		}
		if err := repos.Requests.Update(ctx, req); err != nil {
			return err
		}
		return w.events.record(ctx, repos.Outbox, actor, eventType, shared.AggregateRequest, req.ID.String(), req)
	})
	if err != nil {
		return nil, err
	}

	w.metrics.IncrementTransition(requestEntity, string(req.Review))
	w.logger.Info("Blood request reviewed",
		"request_id", req.ID.String(),
		"review_status", string(req.Review),
		"status", string(req.Status),
	)
	return req, nil
}

func (w *ApprovalWorkflowService) DonorEligibility(ctx context.Context, donorID string) (*eligibility.Result, error) {
	if w.profiles == nil {
		return nil, shared.NotFoundError{Entity: "donor", ID: donorID}
	}
	p, err := w.profiles.GetDonor(ctx, donorID)
	if err != nil {
		return nil, err
	}
	return w.evaluate(ctx, donorID, p)
}

// lookupDonor returns the donor's profile, or nil when the donor has none
func (w *ApprovalWorkflowService) lookupDonor(ctx context.Context, donorID string) (*profile.DonorProfile, error) {
	if w.profiles == nil {
		return nil, nil
	}
	p, err := w.profiles.GetDonor(ctx, donorID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// evaluate runs the eligibility rules over the profile and the donor's most
// recent approved donation, whichever is later.
func (w *ApprovalWorkflowService) evaluate(ctx context.Context, donorID string, p *profile.DonorProfile) (*eligibility.Result, error) {
	now := w.now()

	var in eligibility.Input
	if p != nil {
		in.LastDonationDate = p.LastDonationDate
		in.AgeYears = p.AgeAt(now)
		in.WeightKg = p.WeightKg
	}

	approved, err := w.uow.Repositories().Donations.List(ctx, donation.Filter{
		DonorID: donorID,
		Status:  donation.StatusApproved,
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(approved) > 0 {
		last := approved[0].CreatedAt
		if approved[0].ReviewedAt != nil {
			last = *approved[0].ReviewedAt
		}
		if in.LastDonationDate == nil || last.After(*in.LastDonationDate) {
			in.LastDonationDate = &last
		}
	}

	result := w.evaluator.Evaluate(in, now)
	return &result, nil
}

func (w *ApprovalWorkflowService) donationCommitted(req *donation.Request) {
	w.metrics.IncrementTransition(donationEntity, string(req.Status))
	w.logger.Info("Donation request updated",
		"donation_id", req.ID.String(),
		"donor_id", req.DonorID,
		"status", string(req.Status),
	)
}
