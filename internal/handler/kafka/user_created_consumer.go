package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"shopflow/internal/app/notifications"
	"shopflow/internal/domain"
	kafka_infra "shopflow/internal/infrastructure/kafka"
)

type UserCreatedConsumer struct {
	service notifications.NotificationService
	logger  *zap.Logger
}

func NewUserCreatedConsumer(s notifications.NotificationService, l *zap.Logger) *UserCreatedConsumer {
	return &UserCreatedConsumer{service: s, logger: l}
}

func (c *UserCreatedConsumer) HandleMessage(ctx context.Context, msg kafkago.Message) error {
	var event domain.UserCreatedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Error("Error unmarshalling user-created message", zap.Error(err), zap.String("raw_message", string(msg.Value)))
		return kafka_infra.Poison(err)
	}

	meta := eventMeta(msg, domain.EventTypeUserCreated)
	c.logger.Info("Received user-created event",
		zap.Int64("user_id", event.ID),
		zap.String("event_id", meta.EventID))

	if err := c.service.HandleUserCreated(ctx, meta, event); err != nil {
		return classify(err)
	}
	return nil
}

// eventMeta falls back to the message coordinates when the producer did not
// set an event id, so a redelivery still maps to the same id.
func eventMeta(msg kafkago.Message, defaultType string) notifications.EventMeta {
	eventID := kafka_infra.HeaderValue(msg, kafka_infra.HeaderEventID)
	if eventID == "" {
		eventID = fmt.Sprintf("%s-%d-%d", msg.Topic, msg.Partition, msg.Offset)
	}
	eventType := kafka_infra.HeaderValue(msg, kafka_infra.HeaderEventType)
	if eventType == "" {
		eventType = defaultType
	}
	return notifications.EventMeta{
		EventID:   eventID,
		EventType: eventType,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	}
}

// classify marks errors that a retry cannot fix as poison.
func classify(err error) error {
	if errors.Is(err, domain.ErrValidation) {
		return kafka_infra.Poison(err)
	}
	return err
}
