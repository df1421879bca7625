package event

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/erp/shopsync/internal/domain/integration"
	"github.com/erp/shopsync/internal/domain/shared"
	"github.com/erp/shopsync/internal/infrastructure/config"
)

// Kafka message header names
const (
	HeaderEventType     = "event_type"
	HeaderAggregateType = "aggregate_type"
)

// MessageWriter is the part of *kafka.Writer the forwarder uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ForwardedEventTypes are the sync events published to Kafka by default.
var ForwardedEventTypes = []string{
	integration.EventTypeProductSynced,
	integration.EventTypeOrderSynced,
	integration.EventTypeStockPushed,
}

// NewKafkaWriter builds a writer for cfg. Messages with the same key land on
// the same partition.
func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

// KafkaForwarder is an event handler that republishes sync events to Kafka,
// keyed by aggregate id.
type KafkaForwarder struct {
	writer     MessageWriter
	eventTypes []string
	logger     *zap.Logger
}

// NewKafkaForwarder creates a forwarder. Without eventTypes it forwards
// ForwardedEventTypes.
func NewKafkaForwarder(writer MessageWriter, logger *zap.Logger, eventTypes ...string) *KafkaForwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(eventTypes) == 0 {
		eventTypes = ForwardedEventTypes
	}
	return &KafkaForwarder{
		writer:     writer,
		eventTypes: eventTypes,
		logger:     logger.Named("kafka_forwarder"),
	}
}

// EventTypes returns the event types this handler is interested in
func (f *KafkaForwarder) EventTypes() []string {
	return f.eventTypes
}

// Handle writes one message per event
func (f *KafkaForwarder) Handle(ctx context.Context, ev shared.DomainEvent) error {
	msg, err := toMessage(ev)
	if err != nil {
		return err
	}
	if err := f.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("forward %s %s: %w", ev.EventType(), ev.AggregateID(), err)
	}
	f.logger.Debug("event forwarded",
		zap.String("event_type", ev.EventType()),
		zap.String("aggregate_id", ev.AggregateID()),
	)
	return nil
}

// Close flushes and closes the writer
func (f *KafkaForwarder) Close() error {
	return f.writer.Close()
}

func toMessage(ev shared.DomainEvent) (kafka.Message, error) {
	env, err := NewEnvelope(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	value, err := env.Marshal()
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode envelope: %w", err)
	}
	return kafka.Message{
		Key:   []byte(ev.AggregateID()),
		Value: value,
		Time:  ev.OccurredAt(),
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(ev.EventType())},
			{Key: HeaderAggregateType, Value: []byte(ev.AggregateType())},
		},
	}, nil
}

var _ shared.EventHandler = (*KafkaForwarder)(nil)
