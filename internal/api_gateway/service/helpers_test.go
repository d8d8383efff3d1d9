package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/bloodbank-ledger/internal/data/memory"
	"github.com/bloodbank-ledger/internal/domain/eligibility"
	"github.com/bloodbank-ledger/internal/domain/outbox"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/bloodbank-ledger/internal/domain/uow"
	"github.com/bloodbank-ledger/internal/platform/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var (
	admin     = shared.Actor{ID: "admin-1", Name: "Admin", Role: shared.RoleAdmin}
	executive = shared.Actor{ID: "exec-1", Name: "Exec", Role: shared.RoleExecutive}
	requester = shared.Actor{ID: "req-1", Name: "Ward 4", Role: shared.RoleRequester}
	donor     = shared.Actor{ID: "donor-1", Name: "Asha", Role: shared.RoleDonor}
)

type testEngine struct {
	store     *memory.Store
	ledger    *InventoryLedgerService
	bags      *BloodBagRegistryService
	requests  *RequestWorkflowService
	approvals *ApprovalWorkflowService
	metrics   *metrics.Metrics
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, cfg RequestWorkflowConfig) *testEngine {
	t.Helper()
	return newTestEngineWith(t, nil, cfg)
}

// newTestEngineWith builds the engine over a memory store. A non-nil wrap
// replaces the unit of work the services see.
func newTestEngineWith(t *testing.T, wrap func(*memory.Store) uow.UnitOfWork, cfg RequestWorkflowConfig) *testEngine {
	t.Helper()
	logger := newTestLogger()
	store := memory.NewStore(logger)
	m := metrics.New(prometheus.NewRegistry())

	var unitOfWork uow.UnitOfWork = store
	if wrap != nil {
		unitOfWork = wrap(store)
	}

	ledger := NewInventoryLedger(logger, unitOfWork, m)
	bags := NewBloodBagRegistry(logger, unitOfWork, ledger)
	return &testEngine{
		store:     store,
		ledger:    ledger,
		bags:      bags,
		requests:  NewRequestWorkflow(logger, unitOfWork, ledger, bags, store, m, cfg),
		approvals: NewApprovalWorkflow(logger, unitOfWork, ledger, bags, store, eligibility.NewEvaluator(eligibility.DefaultRules()), m),
		metrics:   m,
	}
}

func (e *testEngine) stock(t *testing.T, group shared.BloodGroup) int {
	t.Helper()
	s, err := e.ledger.GetStock(context.Background(), group)
	require.NoError(t, err)
	return s.Units
}

func (e *testEngine) seedStock(t *testing.T, group shared.BloodGroup, units int) {
	t.Helper()
	_, err := e.ledger.RecordEntry(context.Background(), admin, group, units, nil)
	require.NoError(t, err)
}

func (e *testEngine) pendingEvents(t *testing.T) []shared.EventType {
	t.Helper()
	msgs, err := e.store.Outbox().GetPending(context.Background(), 0)
	require.NoError(t, err)
	types := make([]shared.EventType, 0, len(msgs))
	for _, m := range msgs {
		types = append(types, m.EventType)
	}
	return types
}

func date(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}

// faultyUnitOfWork runs the memory store but fails the outbox write whose
// event type matches failOn, so the whole unit of work must roll back.
type faultyUnitOfWork struct {
	*memory.Store
	failOn shared.EventType
	err    error
}

func (f *faultyUnitOfWork) Execute(ctx context.Context, fn func(ctx context.Context, repos uow.Repositories) error) error {
	return f.Store.Execute(ctx, func(ctx context.Context, repos uow.Repositories) error {
		repos.Outbox = &faultyOutbox{Repository: repos.Outbox, failOn: f.failOn, err: f.err}
		return fn(ctx, repos)
	})
}

type faultyOutbox struct {
	outbox.Repository
	failOn shared.EventType
	err    error
}

func (f *faultyOutbox) Create(ctx context.Context, msg *outbox.Message) error {
	if msg.EventType == f.failOn {
		return f.err
	}
	return f.Repository.Create(ctx, msg)
}
