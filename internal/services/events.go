package services

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/zipdrophq/zipdrop-backend/internal/models"
	"github.com/zipdrophq/zipdrop-backend/pkg/rabbitmq"
)

// Routing keys published on the orders exchange.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"
)

// EventPublisher emits order lifecycle events. Publishing is best effort and
// runs after the authoritative state change has committed.
type EventPublisher interface {
	PublishOrderEvent(key string, order *models.Order) error
}

// AMQPPublisher publishes order events to RabbitMQ.
type AMQPPublisher struct {
	client *rabbitmq.Client
	log    *zap.Logger
}

func NewAMQPPublisher(client *rabbitmq.Client, log *zap.Logger) *AMQPPublisher {
	return &AMQPPublisher{client: client, log: log}
}

func (p *AMQPPublisher) PublishOrderEvent(key string, order *models.Order) error {
	payload := map[string]any{
		"order_id":     order.OrderID,
		"order_number": order.OrderNumber,
		"customer_id":  order.CustomerID,
		"status":       order.Status,
		"total_amount": order.TotalAmount,
		"occurred_at":  time.Now().UTC().Format(time.RFC3339),
	}
	if order.PartnerID != nil {
		payload["partner_id"] = *order.PartnerID
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := p.client.Publish(rabbitmq.OrdersExchange, key, body); err != nil {
		p.log.Warn("order event publish failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// NoopPublisher discards events, used when the broker is not configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderEvent(string, *models.Order) error { return nil }
