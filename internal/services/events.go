package services

import (
	"encoding/json"

	"mercado/internal/metrics"

	"go.uber.org/zap"
)

// Routing keys of the events published on the marketplace exchange.
const (
	EventOrderCreated           = "order.created"
	EventOrderUpdated           = "order.updated"
	EventOrderCancelled         = "order.cancelled"
	EventOrderStatusChanged     = "order.status_changed"
	EventPasswordResetRequested = "user.password_reset_requested"
)

// EventPublisher sends an event body to the broker.
type EventPublisher interface {
	Publish(routingKey string, body []byte) error
}

// emitter publishes events on a best-effort basis. A nil publisher turns
// every emit into a no-op.
type emitter struct {
	pub EventPublisher
	log *zap.Logger
}

func (e emitter) emit(routingKey string, payload any) {
	if e.pub == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		e.log.Error("failed to marshal event", zap.String("routing_key", routingKey), zap.Error(err))
		return
	}
	if err := e.pub.Publish(routingKey, body); err != nil {
		metrics.PublishError()
		e.log.Warn("failed to publish event", zap.String("routing_key", routingKey), zap.Error(err))
	}
}
