package outbox

import (
	"context"
	"database/sql"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"shopflow/internal/domain"
	"shopflow/internal/infrastructure/database"
	kafka_infra "shopflow/internal/infrastructure/kafka"
	"shopflow/internal/metrics"
	"shopflow/internal/repository/outbox_repo"
)

type Config struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
	BatchSize    int
	MaxAttempts  int
}

// Processor relays pending outbox rows to Kafka. A poll runs only while its
// transaction holds the relay advisory lock, so when several instances share
// one table a single relay publishes at a time and per-key order holds.
type Processor struct {
	db            *sql.DB
	outboxRepo    outbox_repo.OutboxRepository
	kafkaProducer kafka_infra.Producer
	cfg           Config
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

func NewProcessor(
	db *sql.DB,
	outboxRepo outbox_repo.OutboxRepository,
	kafkaProducer kafka_infra.Producer,
	cfg Config,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Processor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	return &Processor{
		db:            db,
		outboxRepo:    outboxRepo,
		kafkaProducer: kafkaProducer,
		cfg:           cfg,
		metrics:       m,
		logger:        logger,
	}
}

// Start polls until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	p.logger.Info("Starting outbox processor...", zap.Duration("poll_interval", p.cfg.PollInterval))
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox processor stopped.")
			return
		case <-ticker.C:
			if _, err := p.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("Outbox poll failed", zap.Error(err))
			}
		}
	}
}

// ProcessOnce relays one batch and returns how many rows were sent. When a
// message fails, later messages with the same key stay pending so per-key
// order is kept.
func (p *Processor) ProcessOnce(ctx context.Context) (int, error) {
	sent := 0
	err := database.WithTransaction(ctx, p.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		claimCtx, cancel := context.WithTimeout(ctx, p.cfg.PollTimeout)
		defer cancel()
		locked, err := p.outboxRepo.TryLockRelay(claimCtx, tx)
		if err != nil {
			return err
		}
		if !locked {
			p.logger.Debug("Outbox relay lock held by another instance, skipping poll.")
			return nil
		}
		messages, err := p.outboxRepo.ClaimPending(claimCtx, tx, p.cfg.BatchSize)
		cancel()
		if err != nil {
			return err
		}
		p.metrics.OutboxBatch(len(messages))
		if len(messages) == 0 {
			p.logger.Debug("No pending outbox messages found.")
			return nil
		}
		p.logger.Debug("Found pending outbox messages", zap.Int("count", len(messages)))

		blockedKeys := make(map[string]struct{})
		sentIDs := make([]string, 0, len(messages))
		for _, msg := range messages {
			blockKey := msg.Topic + "/" + msg.Key
			if _, blocked := blockedKeys[blockKey]; blocked {
				continue
			}

			if err := p.publish(ctx, msg); err != nil {
				blockedKeys[blockKey] = struct{}{}
				p.metrics.EventPublishFailed(msg.Topic)
				p.logger.Error("Failed to send outbox message to Kafka",
					zap.String("message_id", msg.ID),
					zap.String("topic", msg.Topic),
					zap.String("key", msg.Key),
					zap.Int("attempts", msg.Attempts+1),
					zap.Error(err))
				if recErr := p.outboxRepo.RecordFailure(ctx, tx, msg.ID, p.cfg.MaxAttempts); recErr != nil {
					return recErr
				}
				continue
			}
			p.metrics.EventPublished(msg.Topic)
			sentIDs = append(sentIDs, msg.ID)
		}

		if err := p.outboxRepo.MarkSent(ctx, tx, sentIDs, time.Now().UTC()); err != nil {
			return err
		}
		sent = len(sentIDs)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if sent > 0 {
		p.logger.Info("Outbox messages relayed", zap.Int("count", sent))
	}
	return sent, nil
}

func (p *Processor) publish(ctx context.Context, msg domain.OutboxMessage) error {
	return p.kafkaProducer.Produce(ctx, msg.Topic, msg.Key, msg.Payload,
		kafka.Header{Key: kafka_infra.HeaderEventID, Value: []byte(msg.ID)},
		kafka.Header{Key: kafka_infra.HeaderEventType, Value: []byte(msg.EventType)},
	)
}
