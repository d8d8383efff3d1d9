package outbox_poller

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/bloodbank-ledger/internal/config"
	"github.com/bloodbank-ledger/internal/data/memory"
	"github.com/bloodbank-ledger/internal/domain/outbox"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/bloodbank-ledger/internal/platform/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEventPublisher mocks producers.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, key string, value []byte, headers map[string]string) error {
	args := m.Called(ctx, key, value, headers)
	return args.Error(0)
}

func (m *MockEventPublisher) Close() error {
	return m.Called().Error(0)
}

// MockEventRelay mocks EventRelay
type MockEventRelay struct {
	mock.Mock
}

func (m *MockEventRelay) Relay(ctx context.Context, message *outbox.Message, event *shared.DomainEvent) error {
	args := m.Called(ctx, message, event)
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.OutboxConfig {
	return &config.OutboxConfig{PollingInterval: 5 * time.Millisecond, BatchSize: 10, MaxRetryAttempts: 3}
}

func enqueue(t *testing.T, repo outbox.Repository, aggregateID string) *outbox.Message {
	t.Helper()
	msg, err := outbox.NewMessage(&shared.DomainEvent{
		EventID:       uuid.New(),
		Type:          shared.EventStockEntryRecorded,
		AggregateType: shared.AggregateStock,
		AggregateID:   aggregateID,
		Actor:         shared.Actor{ID: "exec-1", Role: shared.RoleExecutive},
		Payload:       json.RawMessage(`{"units":3}`),
		CorrelationID: "corr-1",
		OccurredAt:    time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), msg))
	return msg
}

func status(t *testing.T, repo outbox.Repository, msg *outbox.Message) (shared.OutboxStatus, int) {
	t.Helper()
	stored, err := repo.GetByEventID(context.Background(), msg.EventID)
	require.NoError(t, err)
	return stored.Status, stored.Attempts
}

func TestPoller_RelaysPendingInOrder(t *testing.T) {
	repo := memory.NewStore(testLogger()).Outbox()
	publisher := new(MockEventPublisher)
	m := metrics.New(prometheus.NewRegistry())
	poller := NewPoller(testConfig(), repo, NewKafkaRelay(repo, publisher, testLogger()), testLogger(), m)

	first := enqueue(t, repo, "A+")
	second := enqueue(t, repo, "O-")

	var keys []string
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { keys = append(keys, args.String(1)) }).
		Return(nil).Twice()

	published, err := poller.processPendingMessages(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, published)
	assert.Equal(t, []string{"A+", "O-"}, keys)
	for _, msg := range []*outbox.Message{first, second} {
		st, _ := status(t, repo, msg)
		assert.Equal(t, shared.OutboxStatusProcessed, st)
	}
	assert.Equal(t, float64(2), testutil.ToFloat64(m.OutboxPublished.WithLabelValues(outcomePublished)))

	published, err = poller.processPendingMessages(context.Background())
	require.NoError(t, err)
	assert.Zero(t, published)
	publisher.AssertNumberOfCalls(t, "Publish", 2)
}

func TestPoller_PublishesPayloadAndHeaders(t *testing.T) {
	repo := memory.NewStore(testLogger()).Outbox()
	publisher := new(MockEventPublisher)
	poller := NewPoller(testConfig(), repo, NewKafkaRelay(repo, publisher, testLogger()), testLogger(), nil)
	msg := enqueue(t, repo, "B+")

	publisher.On("Publish", mock.Anything, "B+", []byte(msg.Payload), map[string]string{
		"event-type":     string(shared.EventStockEntryRecorded),
		"aggregate-type": string(shared.AggregateStock),
		"correlation-id": "corr-1",
	}).Return(nil).Once()

	_, err := poller.processPendingMessages(context.Background())
	require.NoError(t, err)
	publisher.AssertExpectations(t)
}

func TestPoller_RetriesThenFails(t *testing.T) {
	repo := memory.NewStore(testLogger()).Outbox()
	publisher := new(MockEventPublisher)
	m := metrics.New(prometheus.NewRegistry())
	poller := NewPoller(testConfig(), repo, NewKafkaRelay(repo, publisher, testLogger()), testLogger(), m)
	msg := enqueue(t, repo, "AB-")

	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker unavailable"))

	for i := 1; i <= 3; i++ {
		published, err := poller.processPendingMessages(context.Background())
		require.NoError(t, err)
		assert.Zero(t, published)

		st, attempts := status(t, repo, msg)
		assert.Equal(t, i, attempts)
		if i < 3 {
			assert.Equal(t, shared.OutboxStatusPending, st)
		} else {
			assert.Equal(t, shared.OutboxStatusFailedToPublish, st)
		}
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.OutboxPublished.WithLabelValues(outcomeRetry)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OutboxPublished.WithLabelValues(outcomeFailed)))

	// a failed message is no longer pending
	_, err := poller.processPendingMessages(context.Background())
	require.NoError(t, err)
	publisher.AssertNumberOfCalls(t, "Publish", 3)
}

func TestPoller_OneFailureDoesNotBlockBatch(t *testing.T) {
	repo := memory.NewStore(testLogger()).Outbox()
	relay := new(MockEventRelay)
	poller := NewPoller(testConfig(), repo, relay, testLogger(), nil)
	bad := enqueue(t, repo, "A-")
	good := enqueue(t, repo, "B-")

	relay.On("Relay", mock.Anything, mock.MatchedBy(func(m *outbox.Message) bool { return m.EventID == bad.EventID }), mock.Anything).
		Return(errors.New("timeout")).Once()
	relay.On("Relay", mock.Anything, mock.MatchedBy(func(m *outbox.Message) bool { return m.EventID == good.EventID }), mock.Anything).
		Return(nil).Once()

	published, err := poller.processPendingMessages(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, published)
	_, attempts := status(t, repo, bad)
	assert.Equal(t, 1, attempts)
	relay.AssertExpectations(t)
}

func TestPoller_UndecodablePayloadIsFailed(t *testing.T) {
	repo := memory.NewStore(testLogger()).Outbox()
	relay := new(MockEventRelay)
	m := metrics.New(prometheus.NewRegistry())
	poller := NewPoller(testConfig(), repo, relay, testLogger(), m)

	msg := &outbox.Message{
		EventID:     uuid.New(),
		EventType:   shared.EventBagCreated,
		AggregateID: "x",
		Payload:     json.RawMessage(`"not an event"`),
		Status:      shared.OutboxStatusPending,
	}
	require.NoError(t, repo.Create(context.Background(), msg))

	_, err := poller.processPendingMessages(context.Background())

	require.NoError(t, err)
	st, _ := status(t, repo, msg)
	assert.Equal(t, shared.OutboxStatusFailedToPublish, st)
	relay.AssertNotCalled(t, "Relay", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OutboxPublished.WithLabelValues(outcomeInvalid)))
}

// failingRepo fails GetPending; other methods are never reached
type failingRepo struct {
	outbox.Repository
}

func (failingRepo) GetPending(context.Context, int) ([]*outbox.Message, error) {
	return nil, errors.New("connection reset")
}

func TestPoller_GetPendingError(t *testing.T) {
	poller := NewPoller(testConfig(), failingRepo{}, new(MockEventRelay), testLogger(), nil)

	_, err := poller.processPendingMessages(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get pending outbox messages")
}

func TestPoller_StartStopsOnCancel(t *testing.T) {
	repo := memory.NewStore(testLogger()).Outbox()
	publisher := new(MockEventPublisher)
	poller := NewPoller(testConfig(), repo, NewKafkaRelay(repo, publisher, testLogger()), testLogger(), nil)
	msg := enqueue(t, repo, "O+")

	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		stored, err := repo.GetByEventID(context.Background(), msg.EventID)
		return err == nil && stored.Status == shared.OutboxStatusProcessed
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestPoller_PurgesProcessedPastRetention(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore(testLogger()).Outbox()
	cfg := testConfig()
	cfg.Retention = time.Hour
	poller := NewPoller(cfg, repo, new(MockEventRelay), testLogger(), nil)

	relayed := enqueue(t, repo, "A+")
	require.NoError(t, repo.UpdateStatus(ctx, relayed.ID, shared.OutboxStatusProcessed))
	pending := enqueue(t, repo, "A+")

	now := time.Now().Add(2 * time.Hour)
	poller.purgeIfDue(ctx, now)

	_, err := repo.GetByEventID(ctx, relayed.EventID)
	assert.ErrorAs(t, err, new(outbox.ErrMessageNotFound))
	_, err = repo.GetByEventID(ctx, pending.EventID)
	assert.NoError(t, err)

	// within the purge interval nothing more is deleted
	require.NoError(t, repo.UpdateStatus(ctx, pending.ID, shared.OutboxStatusProcessed))
	poller.purgeIfDue(ctx, now.Add(time.Minute))
	_, err = repo.GetByEventID(ctx, pending.EventID)
	assert.NoError(t, err)

	poller.purgeIfDue(ctx, now.Add(purgeInterval))
	_, err = repo.GetByEventID(ctx, pending.EventID)
	assert.ErrorAs(t, err, new(outbox.ErrMessageNotFound))
}
