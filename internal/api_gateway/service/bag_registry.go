package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bloodbank-ledger/internal/domain/bag"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/bloodbank-ledger/internal/domain/uow"
	"github.com/google/uuid"
)

// BloodBagRegistryService implements the BloodBagRegistry interface
type BloodBagRegistryService struct {
	uow    uow.UnitOfWork
	ledger *InventoryLedgerService
	events *eventRecorder
	logger *slog.Logger
}

var _ BloodBagRegistry = (*BloodBagRegistryService)(nil)

func NewBloodBagRegistry(logger *slog.Logger, unitOfWork uow.UnitOfWork, ledger *InventoryLedgerService) *BloodBagRegistryService {
	return &BloodBagRegistryService{
		uow:    unitOfWork,
		ledger: ledger,
		events: newEventRecorder(logger),
		logger: logger,
	}
}

// CreateBag registers a bag and credits its units to stock in one unit of work
func (r *BloodBagRegistryService) CreateBag(ctx context.Context, actor shared.Actor, group shared.BloodGroup, donorID string, units int, bagNumber string) (*bag.BloodBag, error) {
	if err := shared.Authorize(actor, shared.CapStockWrite); err != nil {
		return nil, err
	}

	var (
		created *bag.BloodBag
		credit  *ledgerResult
	)
	err := r.uow.Execute(ctx, func(ctx context.Context, repos uow.Repositories) error {
		var err error
		created, credit, err = r.intake(ctx, repos, actor, group, donorID, units, bagNumber, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.ledger.observe(credit)
	return created, nil
}

func (r *BloodBagRegistryService) ListAvailable(ctx context.Context, group shared.BloodGroup) ([]*bag.BloodBag, error) {
	if group != "" && !group.Valid() {
		return nil, shared.ErrInvalidBloodGroup
	}
	return r.uow.Repositories().Bags.ListAvailable(ctx, group)
}

func (r *BloodBagRegistryService) GetBag(ctx context.Context, id uuid.UUID) (*bag.BloodBag, error) {
	return r.uow.Repositories().Bags.GetByID(ctx, id)
}

// intake creates the bag and records the matching stock entry inside an open
// unit of work. A bag never exists without its credit.
func (r *BloodBagRegistryService) intake(ctx context.Context, repos uow.Repositories, actor shared.Actor, group shared.BloodGroup, donorID string, units int, bagNumber string, donationID *uuid.UUID) (*bag.BloodBag, *ledgerResult, error) {
	b, err := r.create(ctx, repos, actor, group, donorID, units, bagNumber, donationID)
	if err != nil {
		return nil, nil, err
	}

	meta := map[string]string{
		"bag_number": b.BagNumber,
		"donor_id":   donorID,
	}
	if donationID != nil {
		meta["donation_request_id"] = donationID.String()
	}
	credit, err := r.ledger.entry(ctx, repos, actor, group, units, meta, nil)
	if err != nil {
		return nil, nil, err
	}
	return b, credit, nil
}

// create registers a bag inside an open unit of work
func (r *BloodBagRegistryService) create(ctx context.Context, repos uow.Repositories, actor shared.Actor, group shared.BloodGroup, donorID string, units int, bagNumber string, donationID *uuid.UUID) (*bag.BloodBag, error) {
	b, err := bag.NewBloodBag(group, donorID, units, bagNumber)
	if err != nil {
		return nil, err
	}
	b.DonationRequestID = donationID

	if err := repos.Bags.Create(ctx, b); err != nil {
		if errors.Is(err, shared.ErrDuplicateBagNumber) {
			r.logger.Warn("Duplicate blood bag number", "bag_number", b.BagNumber)
		} else {
			r.logger.Error("Failed to create blood bag", "bag_number", b.BagNumber, "error", err)
		}
		return nil, err
	}

	if err := r.events.record(ctx, repos.Outbox, actor, shared.EventBagCreated, shared.AggregateBag, b.ID.String(), b); err != nil {
		return nil, err
	}

	r.logger.Info("Blood bag created", "bag_id", b.ID.String(), "bag_number", b.BagNumber, "blood_group", group.String())
	return b, nil
}

// markUsed consumes a bag inside an open unit of work
func (r *BloodBagRegistryService) markUsed(ctx context.Context, repos uow.Repositories, actor shared.Actor, bagID uuid.UUID, requestID uuid.UUID) (*bag.BloodBag, error) {
	used, err := repos.Bags.MarkUsed(ctx, bagID, requestID)
	if err != nil {
		if errors.Is(err, shared.ErrAlreadyUsed) {
			r.logger.Warn("Blood bag already used", "bag_id", bagID.String(), "request_id", requestID.String())
		}
		return nil, err
	}

	if err := r.events.record(ctx, repos.Outbox, actor, shared.EventBagUsed, shared.AggregateBag, used.ID.String(), used); err != nil {
		return nil, err
	}
	return used, nil
}
