package notifications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"shopflow/internal/domain"
	"shopflow/internal/idempotency"
	"shopflow/internal/infrastructure/database"
	"shopflow/internal/metrics"
	"shopflow/internal/repository/inbox_repo"
	"shopflow/internal/repository/notification_repo"
	"shopflow/internal/repository/snapshot_repo"
	"shopflow/internal/validation"
)

type DedupePolicy string

const (
	// DedupeInbox records every event id in the inbox table in the same
	// transaction as its effect.
	DedupeInbox DedupePolicy = "inbox"
	// DedupeRedis skips event ids a shared store has seen and marks them
	// after handling. Redeliveries that slip past the store are absorbed by
	// notification dedupe keys.
	DedupeRedis DedupePolicy = "redis"
	// DedupeNone handles every delivery. Replays create duplicates.
	DedupeNone DedupePolicy = "none"
)

type NotificationService interface {
	HandleUserCreated(ctx context.Context, meta EventMeta, event domain.UserCreatedEvent) error
	HandleProductChanged(ctx context.Context, meta EventMeta, snapshot domain.ProductSnapshot) error
	CreateOrderConfirmation(ctx context.Context, req *OrderConfirmationRequest) (*NotificationResponse, error)
	GetAllNotifications(ctx context.Context) ([]*NotificationResponse, error)
	GetNotificationsByUserID(ctx context.Context, userID int64) ([]*NotificationResponse, error)
	MarkAsRead(ctx context.Context, id int64) (*NotificationResponse, error)
}

type Options struct {
	Policy        DedupePolicy
	ConsumerGroup string
	// Store and TTL are used by DedupeRedis only.
	Store idempotency.Store
	TTL   time.Duration
}

type notificationService struct {
	db               *sql.DB
	notificationRepo notification_repo.NotificationRepository
	snapshotRepo     snapshot_repo.SnapshotRepository
	inboxRepo        inbox_repo.InboxRepository
	opts             Options
	metrics          *metrics.Metrics
	logger           *zap.Logger
}

func NewNotificationService(
	db *sql.DB,
	notificationRepo notification_repo.NotificationRepository,
	snapshotRepo snapshot_repo.SnapshotRepository,
	inboxRepo inbox_repo.InboxRepository,
	opts Options,
	m *metrics.Metrics,
	logger *zap.Logger,
) (NotificationService, error) {
	switch opts.Policy {
	case DedupeInbox, DedupeNone:
	case DedupeRedis:
		if opts.Store == nil {
			return nil, errors.New("redis dedupe policy requires an idempotency store")
		}
		if opts.TTL <= 0 {
			opts.TTL = idempotency.DefaultTTL
		}
	default:
		return nil, fmt.Errorf("unknown dedupe policy %q", opts.Policy)
	}
	return &notificationService{
		db:               db,
		notificationRepo: notificationRepo,
		snapshotRepo:     snapshotRepo,
		inboxRepo:        inboxRepo,
		opts:             opts,
		metrics:          m,
		logger:           logger,
	}, nil
}

func (s *notificationService) HandleUserCreated(ctx context.Context, meta EventMeta, event domain.UserCreatedEvent) error {
	if event.ID <= 0 {
		return domain.NewValidationError("user-created event without user id")
	}
	n := domain.NewWelcomeNotification(event)
	if s.opts.Policy != DedupeNone {
		n.DedupeKey = domain.WelcomeDedupeKey(event.ID)
	}

	return s.consume(ctx, meta, func(q domain.Querier) error {
		created, err := s.notificationRepo.Create(ctx, q, n)
		if err != nil {
			return err
		}
		if !created {
			s.logger.Info("Welcome notification already exists",
				zap.Int64("user_id", event.ID),
				zap.String("event_id", meta.EventID),
			)
			return nil
		}
		s.logger.Info("Welcome notification created",
			zap.Int64("notification_id", n.ID),
			zap.Int64("user_id", n.UserID),
			zap.String("event_id", meta.EventID),
		)
		return nil
	})
}

func (s *notificationService) HandleProductChanged(ctx context.Context, meta EventMeta, snapshot domain.ProductSnapshot) error {
	if snapshot.ProductID <= 0 {
		return domain.NewValidationError("product event without product id")
	}

	return s.consume(ctx, meta, func(q domain.Querier) error {
		applied, err := s.snapshotRepo.Upsert(ctx, q, &snapshot)
		if err != nil {
			return err
		}
		if !applied {
			s.logger.Debug("Stale product event ignored",
				zap.Int64("product_id", snapshot.ProductID),
				zap.Time("event_at", snapshot.LastEventAt),
				zap.String("event_id", meta.EventID),
			)
			return nil
		}
		s.logger.Info("Product snapshot updated", zap.Int64("product_id", snapshot.ProductID), zap.String("event_type", meta.EventType))
		return nil
	})
}

// consume runs apply for a delivery unless the configured policy has already
// seen its event id.
func (s *notificationService) consume(ctx context.Context, meta EventMeta, apply func(q domain.Querier) error) error {
	switch s.opts.Policy {
	case DedupeInbox:
		duplicate := false
		err := database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
			inserted, err := s.inboxRepo.TryInsert(ctx, tx, s.inboxMessage(meta))
			if err != nil {
				return err
			}
			if !inserted {
				duplicate = true
				return nil
			}
			return apply(tx)
		})
		if err != nil {
			return err
		}
		if duplicate {
			s.duplicate(meta)
		}
		return nil

	case DedupeRedis:
		seen, err := s.opts.Store.IsProcessed(ctx, meta.EventID)
		if err != nil {
			return fmt.Errorf("failed to check event %s: %w", meta.EventID, err)
		}
		if seen {
			s.duplicate(meta)
			return nil
		}
		if err := apply(s.db); err != nil {
			return err
		}
		if _, err := s.opts.Store.MarkProcessed(ctx, meta.EventID, s.opts.TTL); err != nil {
			s.logger.Warn("Failed to mark event as processed", zap.String("event_id", meta.EventID), zap.Error(err))
		}
		return nil

	default:
		return apply(s.db)
	}
}

func (s *notificationService) inboxMessage(meta EventMeta) *domain.InboxMessage {
	now := time.Now().UTC()
	return &domain.InboxMessage{
		EventID:       meta.EventID,
		EventType:     meta.EventType,
		Topic:         meta.Topic,
		Partition:     meta.Partition,
		Offset:        meta.Offset,
		ConsumerGroup: s.opts.ConsumerGroup,
		Status:        domain.InboxStatusProcessed,
		ReceivedAt:    now,
		ProcessedAt:   &now,
	}
}

func (s *notificationService) duplicate(meta EventMeta) {
	s.metrics.EventConsumed(meta.Topic, metrics.OutcomeDuplicate)
	s.logger.Info("Duplicate event skipped",
		zap.String("event_id", meta.EventID),
		zap.String("topic", meta.Topic),
		zap.Int("partition", meta.Partition),
		zap.Int64("offset", meta.Offset),
	)
}

func (s *notificationService) CreateOrderConfirmation(ctx context.Context, req *OrderConfirmationRequest) (*NotificationResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	n := domain.NewOrderConfirmationNotification(req.UserID, req.Username, req.Email, req.OrderDetails)
	if s.opts.Policy != DedupeNone {
		n.DedupeKey = domain.OrderConfirmationDedupeKey(req.UserID, req.OrderID)
	}

	created, err := s.notificationRepo.Create(ctx, s.db, n)
	if err != nil {
		s.logger.Error("Failed to create order confirmation", zap.Int64("order_id", req.OrderID), zap.Error(err))
		return nil, err
	}
	if !created {
		s.logger.Info("Order confirmation already sent", zap.Int64("order_id", req.OrderID), zap.Int64("user_id", req.UserID))
		existing, err := s.notificationRepo.GetByDedupeKey(ctx, n.DedupeKey)
		if err != nil {
			return nil, err
		}
		return mapNotificationToResponse(existing), nil
	}

	s.logger.Info("Order confirmation created",
		zap.Int64("notification_id", n.ID),
		zap.Int64("order_id", req.OrderID),
		zap.Int64("user_id", req.UserID),
	)
	return mapNotificationToResponse(n), nil
}

func (s *notificationService) GetAllNotifications(ctx context.Context) ([]*NotificationResponse, error) {
	list, err := s.notificationRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return mapNotificationsToResponse(list), nil
}

func (s *notificationService) GetNotificationsByUserID(ctx context.Context, userID int64) ([]*NotificationResponse, error) {
	list, err := s.notificationRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return mapNotificationsToResponse(list), nil
}

func (s *notificationService) MarkAsRead(ctx context.Context, id int64) (*NotificationResponse, error) {
	n, err := s.notificationRepo.MarkRead(ctx, id)
	if err != nil {
		return nil, err
	}
	return mapNotificationToResponse(n), nil
}
