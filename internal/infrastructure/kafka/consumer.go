package kafka_infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shopflow/internal/metrics"
)

const DLQSuffix = ".dlq"

type MessageHandler func(ctx context.Context, msg kafka.Message) error

// ErrPoison marks a message that can never be handled, for example an
// undecodable payload. Such messages skip retries and go to the DLQ.
var ErrPoison = errors.New("poison message")

func Poison(err error) error {
	return fmt.Errorf("%w: %v", ErrPoison, err)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ConsumerConfig struct {
	Brokers      []string
	GroupID      string
	Topics       []string
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
}

// Consumer runs Workers group members against the same topics. An offset is
// committed only after the handler succeeded or the message was dead-lettered.
type Consumer struct {
	readers      []messageReader
	handler      MessageHandler
	dlq          Producer
	maxRetries   int
	retryBackoff time.Duration
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

func NewConsumer(cfg ConsumerConfig, handler MessageHandler, dlq Producer, m *metrics.Metrics, logger *zap.Logger) *Consumer {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	readers := make([]messageReader, 0, workers)
	for i := 0; i < workers; i++ {
		readerLogger := logger.With(zap.Int("worker", i))
		readers = append(readers, kafka.NewReader(kafka.ReaderConfig{
			Brokers:                cfg.Brokers,
			GroupID:                cfg.GroupID,
			GroupTopics:            cfg.Topics,
			MinBytes:               1,
			MaxBytes:               10e6,
			ReadBatchTimeout:       1 * time.Second,
			Logger:                 kafka.LoggerFunc(func(msg string, args ...interface{}) { readerLogger.Debug(fmt.Sprintf(msg, args...)) }),
			ErrorLogger:            kafka.LoggerFunc(func(msg string, args ...interface{}) { readerLogger.Error(fmt.Sprintf(msg, args...)) }),
			HeartbeatInterval:      3 * time.Second,
			PartitionWatchInterval: 5 * time.Second,
			StartOffset:            kafka.FirstOffset,
			MaxAttempts:            3,
		}))
	}

	logger.Info("Kafka consumer initialized",
		zap.Strings("topics", cfg.Topics),
		zap.String("group_id", cfg.GroupID),
		zap.Int("workers", workers),
	)
	return newConsumer(readers, handler, dlq, cfg.MaxRetries, cfg.RetryBackoff, m, logger)
}

func newConsumer(readers []messageReader, handler MessageHandler, dlq Producer, maxRetries int, backoff time.Duration, m *metrics.Metrics, logger *zap.Logger) *Consumer {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Consumer{
		readers:      readers,
		handler:      handler,
		dlq:          dlq,
		maxRetries:   maxRetries,
		retryBackoff: backoff,
		metrics:      m,
		logger:       logger,
	}
}

// Run blocks until ctx is cancelled. Each reader gets its own goroutine.
func (c *Consumer) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range c.readers {
		r := r
		worker := i
		g.Go(func() error {
			return c.consume(gctx, r, c.logger.With(zap.Int("worker", worker)))
		})
	}
	return g.Wait()
}

func (c *Consumer) Close() error {
	var errs []error
	for _, r := range c.readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to close Kafka readers: %w", errors.Join(errs...))
	}
	c.logger.Info("Kafka consumer closed.")
	return nil
}

func (c *Consumer) consume(ctx context.Context, r messageReader, logger *zap.Logger) error {
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, kafka.ErrGroupClosed) {
				logger.Info("Kafka consumer stopping")
				return nil
			}
			logger.Error("Failed to fetch message from Kafka", zap.Error(err))
			if sleepErr := sleepCtx(ctx, time.Second); sleepErr != nil {
				return nil
			}
			continue
		}

		logger.Debug("Received Kafka message",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.String("key", string(msg.Key)),
		)

		if err := c.process(ctx, msg, logger); err != nil {
			// Only cancellation gets here; leave the offset for the next owner.
			return nil
		}

		if err := r.CommitMessages(ctx, msg); err != nil {
			logger.Error("Failed to commit offset for Kafka message",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			continue
		}
		logger.Debug("Kafka message offset committed",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		)
	}
}

// process returns nil once msg is either handled or dead-lettered. It keeps
// trying to dead-letter until that succeeds or ctx is done.
func (c *Consumer) process(ctx context.Context, msg kafka.Message, logger *zap.Logger) error {
	handlerErr := c.handleWithRetry(ctx, msg, logger)
	if handlerErr == nil {
		c.metrics.EventConsumed(msg.Topic, metrics.OutcomeProcessed)
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	for {
		err := c.deadLetter(ctx, msg, handlerErr)
		if err == nil {
			c.metrics.EventConsumed(msg.Topic, metrics.OutcomeDeadLettered)
			logger.Warn("Kafka message moved to dead letter topic",
				zap.String("topic", msg.Topic),
				zap.String("dlq_topic", msg.Topic+DLQSuffix),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(handlerErr),
			)
			return nil
		}
		logger.Error("Failed to publish message to dead letter topic", zap.String("topic", msg.Topic), zap.Error(err))
		if sleepErr := sleepCtx(ctx, c.backoff(c.maxRetries)); sleepErr != nil {
			return sleepErr
		}
	}
}

func (c *Consumer) handleWithRetry(ctx context.Context, msg kafka.Message, logger *zap.Logger) error {
	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.metrics.EventConsumed(msg.Topic, metrics.OutcomeRetried)
			if sleepErr := sleepCtx(ctx, c.backoff(attempt-1)); sleepErr != nil {
				return sleepErr
			}
		}

		err = c.handler(ctx, msg)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrPoison) || ctx.Err() != nil {
			return err
		}
		logger.Warn("Error handling Kafka message",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", c.maxRetries+1),
			zap.Error(err),
		)
	}
	return err
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, cause error) error {
	headers := make([]kafka.Header, 0, len(msg.Headers)+3)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderError, Value: []byte(cause.Error())},
		kafka.Header{Key: "original-partition", Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: "original-offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
	)
	return c.dlq.Produce(ctx, msg.Topic+DLQSuffix, string(msg.Key), msg.Value, headers...)
}

func (c *Consumer) backoff(attempt int) time.Duration {
	if attempt > 6 {
		attempt = 6
	}
	return c.retryBackoff * time.Duration(1<<attempt)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
