package producers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockKafkaWriter mocks KafkaWriter interface
type MockKafkaWriter struct {
	mock.Mock
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockKafkaWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEventProducer_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("WritesKeyValueAndHeaders", func(t *testing.T) {
		writer := new(MockKafkaWriter)
		producer := &EventProducer{logger: discardLogger(), writer: writer, topic: "bloodbank_events"}

		value := []byte(`{"type":"bag.created"}`)
		writer.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 {
				return false
			}
			msg := msgs[0]
			return string(msg.Key) == "bag-1" &&
				string(msg.Value) == string(value) &&
				len(msg.Headers) == 1 &&
				msg.Headers[0].Key == "event-type" &&
				string(msg.Headers[0].Value) == "bag.created"
		})).Return(nil).Once()

		err := producer.Publish(ctx, "bag-1", value, map[string]string{"event-type": "bag.created"})

		require.NoError(t, err)
		writer.AssertExpectations(t)
	})

	t.Run("NoHeaders", func(t *testing.T) {
		writer := new(MockKafkaWriter)
		producer := &EventProducer{logger: discardLogger(), writer: writer, topic: "bloodbank_events"}

		writer.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
			return len(msgs) == 1 && msgs[0].Headers == nil
		})).Return(nil).Once()

		require.NoError(t, producer.Publish(ctx, "k", []byte("{}"), nil))
		writer.AssertExpectations(t)
	})

	t.Run("WriterError", func(t *testing.T) {
		writer := new(MockKafkaWriter)
		producer := &EventProducer{logger: discardLogger(), writer: writer, topic: "bloodbank_events"}
		writeErr := errors.New("leader not available")

		writer.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).Return(writeErr).Once()

		err := producer.Publish(ctx, "k", []byte("{}"), nil)

		require.Error(t, err)
		assert.ErrorIs(t, err, writeErr)
		assert.Contains(t, err.Error(), "bloodbank_events")
	})
}

func TestEventProducer_Close(t *testing.T) {
	writer := new(MockKafkaWriter)
	producer := &EventProducer{logger: discardLogger(), writer: writer, topic: "bloodbank_events"}
	closeErr := errors.New("close failed")

	writer.On("Close").Return(closeErr).Once()

	err := producer.Close()
	assert.ErrorIs(t, err, closeErr)
}

func TestToHeaders(t *testing.T) {
	assert.Nil(t, toHeaders(nil))
	assert.Equal(t, []kafka.Header{{Key: "a", Value: []byte("1")}}, toHeaders(map[string]string{"a": "1"}))
}
