package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"pos-ledger/internal/domain"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testEvent(eventType domain.EventType) domain.RecordEvent {
	record := &domain.Record{
		ID:          uuid.New(),
		Kind:        domain.KindSale,
		TotalAmount: decimal.NewFromInt(1500),
		StockStatus: domain.StockApplied,
		Items: []domain.CartLine{
			{ProductID: uuid.New(), Name: "Widget", UnitPrice: decimal.NewFromInt(500), Qty: 3},
		},
	}
	return domain.NewRecordEvent(eventType, record, time.Now())
}

func TestProducer_Publish(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := newProducer(mockProducer, "pos.test", zap.NewNop())

	event := testEvent(domain.EventRecordCommitted)

	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		assert.Equal(t, "pos.test", msg.Topic)

		key, err := msg.Key.Encode()
		require.NoError(t, err)
		assert.Equal(t, event.RecordID.String(), string(key))

		value, err := msg.Value.Encode()
		require.NoError(t, err)

		var decoded domain.RecordEvent
		require.NoError(t, json.Unmarshal(value, &decoded))
		assert.Equal(t, domain.EventRecordCommitted, decoded.EventType)
		assert.Equal(t, event.RecordID, decoded.RecordID)
		assert.True(t, decoded.TotalAmount.Equal(event.TotalAmount))
		return nil
	})

	require.NoError(t, producer.Publish(context.Background(), event))
	require.NoError(t, mockProducer.Close())
}

func TestProducer_Publish_Error(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := newProducer(mockProducer, "", nil)

	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := producer.Publish(context.Background(), testEvent(domain.EventRecordPartial))
	require.Error(t, err)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	assert.Equal(t, DefaultTopic, producer.topic)

	require.NoError(t, mockProducer.Close())
}

func TestProducer_Publish_CanceledContext(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := newProducer(mockProducer, "pos.test", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := producer.Publish(ctx, testEvent(domain.EventRecordVoided))
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, mockProducer.Close())
}
