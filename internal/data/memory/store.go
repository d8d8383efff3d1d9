// Package memory is an in-process storage driver. A single mutex serialises
// every unit of work, and an undo journal reverts the writes of a failed one.
package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bloodbank-ledger/internal/domain/bag"
	"github.com/bloodbank-ledger/internal/domain/bloodrequest"
	"github.com/bloodbank-ledger/internal/domain/donation"
	"github.com/bloodbank-ledger/internal/domain/inventory"
	"github.com/bloodbank-ledger/internal/domain/outbox"
	"github.com/bloodbank-ledger/internal/domain/profile"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/bloodbank-ledger/internal/domain/uow"
	"github.com/google/uuid"
)

// Store holds every table of the engine in memory
type Store struct {
	mu     sync.Mutex
	logger *slog.Logger

	stock        map[shared.BloodGroup]inventory.Stock
	transactions []*inventory.Transaction
	bags         map[uuid.UUID]bag.BloodBag
	bagNumbers   map[string]uuid.UUID
	requests     map[uuid.UUID]bloodrequest.BloodRequest
	donations    map[uuid.UUID]donation.Request
	outbox       []*outbox.Message
	outboxSeq    int64
	profiles     map[string]profile.DonorProfile
}

var (
	_ uow.UnitOfWork   = (*Store)(nil)
	_ profile.Provider = (*Store)(nil)
)

// NewStore creates a store with every blood group stocked at zero
func NewStore(logger *slog.Logger) *Store {
	s := &Store{
		logger:     logger,
		stock:      make(map[shared.BloodGroup]inventory.Stock),
		bags:       make(map[uuid.UUID]bag.BloodBag),
		bagNumbers: make(map[string]uuid.UUID),
		requests:   make(map[uuid.UUID]bloodrequest.BloodRequest),
		donations:  make(map[uuid.UUID]donation.Request),
		profiles:   make(map[string]profile.DonorProfile),
	}
	now := time.Now()
	for _, g := range shared.AllBloodGroups() {
		s.stock[g] = inventory.Stock{BloodGroup: g, Version: 1, UpdatedAt: now}
	}
	return s
}

// journal records how to revert each write of the running unit of work
type journal struct {
	undo []func()
}

func (j *journal) record(fn func()) {
	if j != nil {
		j.undo = append(j.undo, fn)
	}
}

func (j *journal) rollback() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

// Execute runs fn while holding the store lock. Writes are reverted when fn
// returns an error or panics.
func (s *Store) Execute(ctx context.Context, fn func(ctx context.Context, repos uow.Repositories) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	j := &journal{}
	defer func() {
		if r := recover(); r != nil {
			j.rollback()
			panic(r)
		}
	}()

	if err = fn(ctx, s.repositories(j)); err != nil {
		j.rollback()
		s.logger.Debug("Unit of work rolled back", "error", err)
		return err
	}
	return nil
}

// Repositories returns repositories that lock the store per call
func (s *Store) Repositories() uow.Repositories {
	return s.repositories(nil)
}

func (s *Store) repositories(j *journal) uow.Repositories {
	v := view{s: s, j: j}
	return uow.Repositories{
		Stock:        &stockRepo{v},
		Transactions: &transactionRepo{v},
		Bags:         &bagRepo{v},
		Requests:     &requestRepo{v},
		Donations:    &donationRepo{v},
		Outbox:       &outboxRepo{v},
	}
}

// Outbox returns an outbox repository for use outside a unit of work
func (s *Store) Outbox() outbox.Repository {
	return &outboxRepo{view{s: s}}
}

// view is the store as seen by one set of repositories. Inside a unit of work
// the lock is already held and j is set; outside, each call locks on its own.
type view struct {
	s *Store
	j *journal
}

func (v view) do(fn func()) {
	if v.j == nil {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	}
	fn()
}

// page applies limit/offset to an already ordered slice
func page[T any](items []T, limit, offset int) []T {
	if offset > len(items) {
		offset = len(items)
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func sortNewestFirst[T any](items []T, createdAt func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return createdAt(items[i]).After(createdAt(items[j]))
	})
}
