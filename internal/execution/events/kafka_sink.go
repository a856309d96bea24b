package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaSink is a notifier subscriber that publishes lifecycle events to a
// Kafka topic. The client order id is the message key, so a partition sees
// one order's events in dispatch order. Delivery is at-least-once; a write
// failure is logged and only the Kafka copy is lost, tracker state is
// already committed.
type KafkaSink struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaSink creates a sink writing to topic via brokers.
func NewKafkaSink(brokers []string, topic string, logger *zap.Logger) *KafkaSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaSink{writer: writer, logger: logger}
}

// Handle implements the Subscriber contract.
func (s *KafkaSink) Handle(ev OrderEvent) {
	value, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("marshal order event", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.ClientOrderID),
		Value: value,
	})
	if err != nil {
		s.logger.Error("publish order event to kafka",
			zap.String("type", string(ev.Type)),
			zap.String("client_order_id", ev.ClientOrderID),
			zap.Error(err))
	}
}

// Close flushes and closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
