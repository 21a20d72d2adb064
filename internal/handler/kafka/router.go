package kafka

import (
	"context"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	kafka_infra "shopflow/internal/infrastructure/kafka"
)

// NewTopicRouter dispatches each message to the handler registered for its
// topic. Messages from any other topic are poison.
func NewTopicRouter(handlers map[string]kafka_infra.MessageHandler) kafka_infra.MessageHandler {
	return func(ctx context.Context, msg kafkago.Message) error {
		h, ok := handlers[msg.Topic]
		if !ok {
			return kafka_infra.Poison(fmt.Errorf("no handler for topic %q", msg.Topic))
		}
		return h(ctx, msg)
	}
}
