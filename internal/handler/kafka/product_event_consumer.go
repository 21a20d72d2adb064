package kafka

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"shopflow/internal/app/notifications"
	"shopflow/internal/domain"
	kafka_infra "shopflow/internal/infrastructure/kafka"
)

// ProductEventConsumer keeps the product snapshot projection current from
// both product-created and product-updated events. Messages without an
// event-type header are typed by topic: createdTopic is product-created,
// anything else product-updated.
type ProductEventConsumer struct {
	service      notifications.NotificationService
	createdTopic string
	logger       *zap.Logger
}

func NewProductEventConsumer(s notifications.NotificationService, createdTopic string, l *zap.Logger) *ProductEventConsumer {
	return &ProductEventConsumer{service: s, createdTopic: createdTopic, logger: l}
}

// productEvent is the union of the created and updated payloads.
type productEvent struct {
	domain.ProductUpdatedEvent
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}

func (c *ProductEventConsumer) HandleMessage(ctx context.Context, msg kafkago.Message) error {
	var event productEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Error("Error unmarshalling product message", zap.Error(err), zap.String("raw_message", string(msg.Value)))
		return kafka_infra.Poison(err)
	}

	defaultType := domain.EventTypeProductUpdated
	if msg.Topic == c.createdTopic {
		defaultType = domain.EventTypeProductCreated
	}
	meta := eventMeta(msg, defaultType)
	eventAt := event.UpdatedAt
	if meta.EventType == domain.EventTypeProductCreated || eventAt.IsZero() {
		eventAt = event.CreatedAt
	}
	if eventAt.IsZero() {
		eventAt = msg.Time
	}

	snapshot := domain.ProductSnapshot{
		ProductID:     event.ID,
		Name:          event.Name,
		Price:         event.Price,
		Category:      event.Category,
		StockQuantity: event.StockQuantity,
		LastEventAt:   eventAt.UTC(),
	}
	c.logger.Debug("Received product event",
		zap.Int64("product_id", event.ID),
		zap.String("event_type", meta.EventType),
		zap.String("event_id", meta.EventID))

	if err := c.service.HandleProductChanged(ctx, meta, snapshot); err != nil {
		return classify(err)
	}
	return nil
}
