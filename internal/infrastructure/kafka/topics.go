package kafka_infra

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type TopicSpec struct {
	Partitions        int
	ReplicationFactor int
}

// WithDLQ appends the dead letter topic for every entry of topics.
func WithDLQ(topics []string) []string {
	out := make([]string, 0, len(topics)*2)
	for _, t := range topics {
		out = append(out, t, t+DLQSuffix)
	}
	return out
}

func EnsureTopics(ctx context.Context, brokerURLs []string, topics []string, spec TopicSpec, logger *zap.Logger) error {
	if len(brokerURLs) == 0 {
		return errors.New("no kafka brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", brokerURLs[0])
	if err != nil {
		return fmt.Errorf("failed to dial kafka broker for admin operations: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to get kafka controller: %w", err)
	}
	controllerConn, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("failed to dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	for _, cfg := range topicConfigs(topics, spec) {
		err := controllerConn.CreateTopics(cfg)
		switch {
		case err == nil:
			logger.Info("Kafka topic created", zap.String("topic", cfg.Topic), zap.Int("partitions", cfg.NumPartitions))
		case errors.Is(err, kafka.TopicAlreadyExists):
			logger.Debug("Kafka topic already exists, skipping creation", zap.String("topic", cfg.Topic))
		default:
			return fmt.Errorf("failed to create Kafka topic %s: %w", cfg.Topic, err)
		}
	}
	logger.Info("Kafka topics ensured successfully.", zap.Strings("topics", topics))
	return nil
}

func topicConfigs(topics []string, spec TopicSpec) []kafka.TopicConfig {
	partitions := spec.Partitions
	if partitions < 1 {
		partitions = 1
	}
	replication := spec.ReplicationFactor
	if replication < 1 {
		replication = 1
	}

	seen := make(map[string]struct{}, len(topics))
	configs := make([]kafka.TopicConfig, 0, len(topics))
	for _, t := range topics {
		if _, dup := seen[t]; dup || t == "" {
			continue
		}
		seen[t] = struct{}{}
		configs = append(configs, kafka.TopicConfig{
			Topic:             t,
			NumPartitions:     partitions,
			ReplicationFactor: replication,
		})
	}
	return configs
}
