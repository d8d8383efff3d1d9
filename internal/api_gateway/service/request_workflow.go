package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bloodbank-ledger/internal/domain/bloodrequest"
	"github.com/bloodbank-ledger/internal/domain/profile"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/bloodbank-ledger/internal/domain/uow"
	"github.com/bloodbank-ledger/internal/platform/metrics"
	"github.com/google/uuid"
)

const requestEntity = "blood_request"

// RequestWorkflowConfig holds the request policy switches
type RequestWorkflowConfig struct {
	// BankAssignmentFulfills moves a request straight to fulfilled when a bag is assigned
	BankAssignmentFulfills bool
}

// RequestWorkflowService implements the RequestWorkflow interface
type RequestWorkflowService struct {
	uow      uow.UnitOfWork
	ledger   *InventoryLedgerService
	bags     *BloodBagRegistryService
	profiles profile.Provider
	events   *eventRecorder
	metrics  *metrics.Metrics
	cfg      RequestWorkflowConfig
	logger   *slog.Logger
}

var _ RequestWorkflow = (*RequestWorkflowService)(nil)

// NewRequestWorkflow wires the workflow. profiles may be nil, which skips the
// donor blood group check.
func NewRequestWorkflow(
	logger *slog.Logger,
	unitOfWork uow.UnitOfWork,
	ledger *InventoryLedgerService,
	bags *BloodBagRegistryService,
	profiles profile.Provider,
	m *metrics.Metrics,
	cfg RequestWorkflowConfig,
) *RequestWorkflowService {
	return &RequestWorkflowService{
		uow:      unitOfWork,
		ledger:   ledger,
		bags:     bags,
		profiles: profiles,
		events:   newEventRecorder(logger),
		metrics:  m,
		cfg:      cfg,
		logger:   logger,
	}
}

func (w *RequestWorkflowService) SubmitRequest(ctx context.Context, actor shared.Actor, details bloodrequest.Details) (*bloodrequest.BloodRequest, error) {
	if err := shared.Authorize(actor, shared.CapRequestSubmit); err != nil {
		return nil, err
	}

	req, err := bloodrequest.NewBloodRequest(actor.ID, details)
	if err != nil {
		return nil, err
	}

	err = w.uow.Execute(ctx, func(ctx context.Context, repos uow.Repositories) error {
		if err := repos.Requests.Create(ctx, req); err != nil {
			w.logger.Error("Failed to create blood request", "requester_id", actor.ID, "error", err)
			return err
		}
		return w.events.record(ctx, repos.Outbox, actor, shared.EventRequestSubmitted, shared.AggregateRequest, req.ID.String(), req)
	})
	if err != nil {
		return nil, err
	}

	w.committed(req)
	return req, nil
}

func (w *RequestWorkflowService) AssignDonor(ctx context.Context, actor shared.Actor, requestID uuid.UUID, donor DonorAssignment) (*bloodrequest.BloodRequest, error) {
	if err := shared.Authorize(actor, shared.CapRequestAssignDonor); err != nil {
		return nil, err
	}

	if actor.Role == shared.RoleDonor {
		if donor.DonorID == "" {
			donor.DonorID = actor.ID
		}
		if donor.DonorID != actor.ID {
			return nil, fmt.Errorf("%w: a donor can only assign themselves", shared.ErrForbidden)
		}
		if donor.Name == "" {
			donor.Name = actor.Name
		}
	}

	// The group of a request never changes, so the profile check runs before the unit of work.
	current, err := w.uow.Repositories().Requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := w.checkDonorGroup(ctx, current.BloodGroup, &donor); err != nil {
		return nil, err
	}

	var req *bloodrequest.BloodRequest
	err = w.uow.Execute(ctx, func(ctx context.Context, repos uow.Repositories) error {
		var err error
		req, err = repos.Requests.LockForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		contact := bloodrequest.DonorContact{DonorID: donor.DonorID, Name: donor.Name, Phone: donor.Phone}
		if err := req.AssignDonor(contact); err != nil {
			return err
		}
		if err := repos.Requests.Update(ctx, req); err != nil {
			return err
		}
		return w.events.record(ctx, repos.Outbox, actor, shared.EventRequestDonorAssigned, shared.AggregateRequest, req.ID.String(), req)
	})
	if err != nil {
		return nil, err
	}

	w.committed(req)
	return req, nil
}

// checkDonorGroup compares the donor's profile group with the request group and
// fills missing contact details. Donors without a profile are not checked.
func (w *RequestWorkflowService) checkDonorGroup(ctx context.Context, group shared.BloodGroup, donor *DonorAssignment) error {
	if w.profiles == nil || donor.DonorID == "" {
		return nil
	}

	p, err := w.profiles.GetDonor(ctx, donor.DonorID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			w.logger.Debug("Donor has no profile, skipping blood group check", "donor_id", donor.DonorID)
			return nil
		}
		return err
	}

	if p.BloodGroup != "" && p.BloodGroup != group {
		return fmt.Errorf("%w: donor %s is %s, request needs %s", shared.ErrBloodGroupMismatch, donor.DonorID, p.BloodGroup, group)
	}
	if donor.Name == "" {
		donor.Name = p.Name
	}
	if donor.Phone == "" {
		donor.Phone = p.Phone
	}
	return nil
}

func (w *RequestWorkflowService) AssignFromBank(ctx context.Context, actor shared.Actor, requestID uuid.UUID, assignment BankAssignment) (*bloodrequest.BloodRequest, error) {
	if err := shared.Authorize(actor, shared.CapRequestAssignBank); err != nil {
		return nil, err
	}
	if assignment.Units < 0 {
		return nil, shared.ErrInvalidUnits
	}

	var (
		req   *bloodrequest.BloodRequest
		debit *ledgerResult
	)
	err := w.uow.Execute(ctx, func(ctx context.Context, repos uow.Repositories) error {
		var err error
		req, err = repos.Requests.LockForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != bloodrequest.StatusPending {
			return shared.InvalidTransitionError{Entity: "blood request", From: string(req.Status), To: string(bloodrequest.StatusActive)}
		}

		b, err := repos.Bags.GetByID(ctx, assignment.BagID)
		if err != nil {
			return err
		}
		if b.BloodGroup != req.BloodGroup {
			return fmt.Errorf("%w: bag %s is %s, request needs %s", shared.ErrBloodGroupMismatch, b.BagNumber, b.BloodGroup, req.BloodGroup)
		}
		if !b.IsAvailable() {
			return shared.AlreadyUsedError{BagID: b.ID.String()}
		}
		// a bag is consumed whole, so the debit is always the bag's units
		units := b.UnitsAvailable
		if assignment.Units != 0 && assignment.Units != units {
			return fmt.Errorf("%w: bag %s holds %d units, %d requested", shared.ErrInvalidUnits, b.BagNumber, units, assignment.Units)
		}

		if _, err := w.bags.markUsed(ctx, repos, actor, b.ID, req.ID); err != nil {
			return err
		}

		meta := map[string]string{"bag_number": b.BagNumber}
		if assignment.UsageDetails != "" {
			meta["usage_details"] = assignment.UsageDetails
		}
		debit, err = w.ledger.donate(ctx, repos, actor, b.BloodGroup, units, meta, &req.ID)
		if err != nil {
			return err
		}

		if err := req.AssignBag(b.ID, units, assignment.UsageDetails, w.cfg.BankAssignmentFulfills); err != nil {
			return err
		}
		if err := repos.Requests.Update(ctx, req); err != nil {
			return err
		}
		return w.events.record(ctx, repos.Outbox, actor, shared.EventRequestBankAssigned, shared.AggregateRequest, req.ID.String(), req)
	})
	if err != nil {
		w.logger.Warn("Bank assignment rolled back", "request_id", requestID.String(), "bag_id", assignment.BagID.String(), "error", err)
		return nil, err
	}

	w.ledger.observe(debit)
	w.committed(req)
	return req, nil
}

func (w *RequestWorkflowService) UpdateStatus(ctx context.Context, actor shared.Actor, requestID uuid.UUID, status bloodrequest.Status) (*bloodrequest.BloodRequest, error) {
	if err := shared.Authorize(actor, shared.CapRequestStatus); err != nil {
		return nil, err
	}

	var req *bloodrequest.BloodRequest
	err := w.uow.Execute(ctx, func(ctx context.Context, repos uow.Repositories) error {
		var err error
		req, err = repos.Requests.LockForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if err := req.TransitionTo(status); err != nil {
			return err
		}
		if err := repos.Requests.Update(ctx, req); err != nil {
			return err
		}
		return w.events.record(ctx, repos.Outbox, actor, shared.EventRequestStatusChanged, shared.AggregateRequest, req.ID.String(), req)
	})
	if err != nil {
		return nil, err
	}

	w.committed(req)
	return req, nil
}

func (w *RequestWorkflowService) Cancel(ctx context.Context, actor shared.Actor, requestID uuid.UUID) (*bloodrequest.BloodRequest, error) {
	if err := shared.Authorize(actor, shared.CapRequestCancel); err != nil {
		return nil, err
	}

	var req *bloodrequest.BloodRequest
	err := w.uow.Execute(ctx, func(ctx context.Context, repos uow.Repositories) error {
		var err error
		req, err = repos.Requests.LockForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if actor.Role == shared.RoleRequester && req.RequesterID != actor.ID {
			return fmt.Errorf("%w: request belongs to another requester", shared.ErrForbidden)
		}
		if req.Status != bloodrequest.StatusPending {
			return shared.InvalidTransitionError{Entity: "blood request", From: string(req.Status), To: string(bloodrequest.StatusCancelled)}
		}
		if err := req.TransitionTo(bloodrequest.StatusCancelled); err != nil {
			return err
		}
		if err := repos.Requests.Update(ctx, req); err != nil {
			return err
		}
		return w.events.record(ctx, repos.Outbox, actor, shared.EventRequestCancelled, shared.AggregateRequest, req.ID.String(), req)
	})
	if err != nil {
		return nil, err
	}

	w.committed(req)
	return req, nil
}

func (w *RequestWorkflowService) GetRequest(ctx context.Context, requestID uuid.UUID) (*bloodrequest.BloodRequest, error) {
	return w.uow.Repositories().Requests.GetByID(ctx, requestID)
}

func (w *RequestWorkflowService) ListRequests(ctx context.Context, filter bloodrequest.Filter) ([]*bloodrequest.BloodRequest, int64, error) {
	repo := w.uow.Repositories().Requests

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

func (w *RequestWorkflowService) committed(req *bloodrequest.BloodRequest) {
	w.metrics.IncrementTransition(requestEntity, string(req.Status))
	w.logger.Info("Blood request updated",
		"request_id", req.ID.String(),
		"status", string(req.Status),
		"review_status", string(req.Review),
		"version", req.Version,
	)
}
