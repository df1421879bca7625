package event

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/erp/shopsync/internal/domain/integration"
	"github.com/erp/shopsync/internal/infrastructure/config"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaForwarder_Handle(t *testing.T) {
	w := &fakeWriter{}
	f := NewKafkaForwarder(w, zaptest.NewLogger(t))
	assert.Equal(t, ForwardedEventTypes, f.EventTypes())

	order := &integration.LocalOrder{
		Name:       "SO-Shopify-00001",
		ExternalID: integration.ExternalID{ParentID: 4501},
		Progress:   integration.OrderProgressInvoiced,
	}
	ev := integration.NewOrderSyncedEvent(order)
	require.NoError(t, f.Handle(context.Background(), ev))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "4501", string(msg.Key))
	assert.Equal(t, []kafka.Header{
		{Key: HeaderEventType, Value: []byte(integration.EventTypeOrderSynced)},
		{Key: HeaderAggregateType, Value: []byte(integration.AggregateTypeOrder)},
	}, msg.Headers)

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, ev.EventID().String(), env.ID)
	assert.Equal(t, integration.EventTypeOrderSynced, env.Type)
	assert.Equal(t, "4501", env.AggregateID)

	var payload integration.OrderSynced
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, int64(4501), payload.OrderID)
	assert.Equal(t, integration.OrderProgressInvoiced, payload.Progress)
}

func TestKafkaForwarder_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	f := NewKafkaForwarder(w, nil, integration.EventTypeStockLevelChanged)

	err := f.Handle(context.Background(), stockEvent("ITEM-9"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forward StockLevelChanged ITEM-9")

	require.NoError(t, f.Close())
	assert.True(t, w.closed)
}

func TestKafkaForwarder_ThroughBus(t *testing.T) {
	bus := startedBus(t)
	w := &fakeWriter{}
	bus.Subscribe(NewKafkaForwarder(w, nil))

	item := &integration.LocalItem{Code: "ITEM-1", ExternalID: integration.ExternalID{ParentID: 10}}
	require.NoError(t, bus.Publish(context.Background(),
		integration.NewProductSyncedEvent(item, integration.DirectionPull),
		stockEvent("ITEM-1"),
	))
	assert.Len(t, w.msgs, 1)
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter(config.KafkaConfig{
		Brokers:      []string{"k1:9092", "k2:9092"},
		Topic:        "shopsync.events",
		BatchTimeout: 100 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	})
	defer w.Close()

	assert.Equal(t, "shopsync.events", w.Topic)
	assert.Equal(t, 100*time.Millisecond, w.BatchTimeout)
	assert.NotNil(t, w.Addr)
}
