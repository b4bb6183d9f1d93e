// Package events publishes order lifecycle events to Kafka for downstream
// consumers (fulfilment, analytics). Publishing is best effort: a broker
// outage never fails an order.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"kortstore/internal/domain"
)

// Publisher emits order events.
type Publisher interface {
	OrderCompleted(ctx context.Context, order *domain.Order)
	Close() error
}

// OrderEvent is the wire format of an order lifecycle event.
type OrderEvent struct {
	Type      string    `json:"type"`
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	Total     float64   `json:"total"`
	Items     int       `json:"items"`
	Timestamp time.Time `json:"timestamp"`
}

// KafkaPublisher writes order events to a single topic.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

func NewKafkaPublisher(topic string, logger zerolog.Logger, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w, logger: logger}
}

func (p *KafkaPublisher) OrderCompleted(ctx context.Context, order *domain.Order) {
	event := OrderEvent{
		Type:      "order_completed",
		OrderID:   order.ID,
		UserID:    order.UserID,
		Total:     order.Total,
		Items:     len(order.Items),
		Timestamp: order.CreatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Msg("events: encode order event failed")
		return
	}
	msg := kafka.Message{
		Key:   []byte(order.UserID),
		Value: payload,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn().Err(err).Str("order_id", order.ID).Msg("events: publish failed")
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher discards events. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) OrderCompleted(context.Context, *domain.Order) {}
func (NopPublisher) Close() error                                  { return nil }
