package orders

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shopflow/internal/domain"
	"shopflow/internal/infrastructure/catalog"
	"shopflow/internal/infrastructure/database"
	"shopflow/internal/metrics"
	"shopflow/internal/repository/order_repo"
	"shopflow/internal/validation"
)

type OrderService interface {
	// CreateOrder prices every item against the catalog and stores the order
	// with its items atomically. A non-empty idempotencyKey that was used
	// before returns the order created with it.
	CreateOrder(ctx context.Context, req *CreateOrderRequest, idempotencyKey string) (*OrderResponse, error)
	GetOrder(ctx context.Context, orderID int64) (*OrderResponse, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]*OrderResponse, error)
	GetAllOrders(ctx context.Context) ([]*OrderResponse, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) (*OrderResponse, error)
	DeleteOrder(ctx context.Context, orderID int64) error
}

type Options struct {
	LookupTimeout        time.Duration
	MaxLookupConcurrency int
	TransitionValidator  domain.StatusTransitionValidator
}

type orderService struct {
	db        *sql.DB
	orderRepo order_repo.OrderRepository
	catalog   catalog.Client
	opts      Options
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewOrderService(
	db *sql.DB,
	orderRepo order_repo.OrderRepository,
	catalogClient catalog.Client,
	opts Options,
	m *metrics.Metrics,
	logger *zap.Logger,
) OrderService {
	if opts.MaxLookupConcurrency < 1 {
		opts.MaxLookupConcurrency = 8
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = 3 * time.Second
	}
	if opts.TransitionValidator == nil {
		opts.TransitionValidator = domain.AllowAnyTransition
	}
	return &orderService{
		db:        db,
		orderRepo: orderRepo,
		catalog:   catalogClient,
		opts:      opts,
		metrics:   m,
		logger:    logger,
	}
}

func (s *orderService) CreateOrder(ctx context.Context, req *CreateOrderRequest, idempotencyKey string) (*OrderResponse, error) {
	if err := validation.Struct(req); err != nil {
		s.logger.Warn("Invalid create order request", zap.Error(err))
		s.recordFailure(err)
		return nil, err
	}

	if len(idempotencyKey) > MaxIdempotencyKeyLength {
		err := domain.NewValidationError("idempotency key must be at most %d characters", MaxIdempotencyKeyLength)
		s.recordFailure(err)
		return nil, err
	}

	if idempotencyKey != "" {
		existing, err := s.orderRepo.GetByIdempotencyKey(ctx, req.UserID, idempotencyKey)
		if err == nil {
			return s.replay(existing, req)
		}
		if !errors.Is(err, domain.ErrOrderNotFound) {
			return nil, err
		}
	}

	lines, err := s.priceItems(ctx, req.Items)
	if err != nil {
		s.logger.Warn("Order creation aborted, price lookup failed", zap.Int64("user_id", req.UserID), zap.Error(err))
		s.recordFailure(err)
		return nil, err
	}

	order, err := domain.NewOrder(req.UserID, lines, idempotencyKey)
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}

	err = database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		return s.orderRepo.Create(ctx, tx, order)
	})
	if errors.Is(err, order_repo.ErrDuplicateIdempotencyKey) {
		existing, getErr := s.orderRepo.GetByIdempotencyKey(ctx, req.UserID, idempotencyKey)
		if getErr != nil {
			return nil, getErr
		}
		return s.replay(existing, req)
	}
	if err != nil {
		s.logger.Error("Failed to save order", zap.Int64("user_id", req.UserID), zap.Error(err))
		s.recordFailure(err)
		return nil, err
	}

	s.metrics.OrderCreated()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", order.UserID),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)),
		zap.Int("items", len(order.Items)),
	)
	return mapOrderToResponse(order), nil
}

// replay returns the order stored under a repeated idempotency key. A key
// reused with a different body is rejected.
func (s *orderService) replay(existing *domain.Order, req *CreateOrderRequest) (*OrderResponse, error) {
	if existing.UserID != req.UserID || !sameItems(existing, req.Items) {
		s.logger.Warn("Idempotency key reused for a different order",
			zap.Int64("order_id", existing.ID),
			zap.Int64("user_id", req.UserID))
		s.recordFailure(domain.ErrIdempotencyKeyReused)
		return nil, domain.ErrIdempotencyKeyReused
	}
	s.logger.Info("Returning order for repeated idempotency key", zap.Int64("order_id", existing.ID))
	return mapOrderToResponse(existing), nil
}

func sameItems(order *domain.Order, items []CreateOrderItemRequest) bool {
	if len(order.Items) != len(items) {
		return false
	}
	for i, item := range order.Items {
		if item.ProductID != items[i].ProductID || item.Quantity != items[i].Quantity {
			return false
		}
	}
	return true
}

// priceItems looks every product up concurrently. The first failure cancels
// the remaining lookups and is returned as an *domain.OrderCreationError.
func (s *orderService) priceItems(ctx context.Context, items []CreateOrderItemRequest) ([]domain.PricedLine, error) {
	lines := make([]domain.PricedLine, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(len(items), s.opts.MaxLookupConcurrency))

	for i, item := range items {
		g.Go(func() error {
			lookupCtx, cancel := context.WithTimeout(gctx, s.opts.LookupTimeout)
			defer cancel()

			start := time.Now()
			product, err := s.catalog.GetProduct(lookupCtx, item.ProductID)
			if err != nil {
				s.metrics.ObservePriceLookup("error", time.Since(start))
				if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrUpstreamUnavailable) {
					err = domain.NewUpstreamError("catalog lookup failed", err)
				}
				return &domain.OrderCreationError{ProductID: item.ProductID, Cause: err}
			}
			s.metrics.ObservePriceLookup("ok", time.Since(start))

			lines[i] = domain.PricedLine{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: product.Price.Round(2),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID int64) (*OrderResponse, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			s.logger.Debug("Order not found", zap.Int64("order_id", orderID))
		} else {
			s.logger.Error("Failed to get order from repository", zap.Int64("order_id", orderID), zap.Error(err))
		}
		return nil, err
	}
	return mapOrderToResponse(order), nil
}

func (s *orderService) GetOrdersByUserID(ctx context.Context, userID int64) ([]*OrderResponse, error) {
	orders, err := s.orderRepo.ListByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to get orders for user from repository", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	return mapOrdersToResponse(orders), nil
}

func (s *orderService) GetAllOrders(ctx context.Context) ([]*OrderResponse, error) {
	orders, err := s.orderRepo.ListAll(ctx)
	if err != nil {
		s.logger.Error("Failed to get all orders from repository", zap.Error(err))
		return nil, err
	}
	return mapOrdersToResponse(orders), nil
}

func (s *orderService) UpdateOrderStatus(ctx context.Context, orderID int64, status string) (*OrderResponse, error) {
	newStatus, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}

	txOpts := database.DefaultTxOptions()
	txOpts.MaxRetries = 2
	err = database.WithTransaction(ctx, s.db, txOpts, func(tx *sql.Tx) error {
		current, err := s.orderRepo.LockStatus(ctx, tx, orderID)
		if err != nil {
			return err
		}
		order := &domain.Order{ID: orderID, Status: current}
		if err := order.ChangeStatus(newStatus, s.opts.TransitionValidator); err != nil {
			return err
		}
		return s.orderRepo.UpdateStatus(ctx, tx, orderID, order.Status, order.UpdatedAt)
	})
	if err != nil {
		s.logger.Warn("Failed to update order status",
			zap.Int64("order_id", orderID),
			zap.String("status", string(newStatus)),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Order status updated", zap.Int64("order_id", orderID), zap.String("status", string(newStatus)))
	return s.GetOrder(ctx, orderID)
}

func (s *orderService) DeleteOrder(ctx context.Context, orderID int64) error {
	if err := s.orderRepo.Delete(ctx, orderID); err != nil {
		return err
	}
	s.logger.Info("Order deleted", zap.Int64("order_id", orderID))
	return nil
}

func (s *orderService) recordFailure(err error) {
	kind, ok := domain.KindOf(err)
	if !ok {
		kind = "INTERNAL"
	}
	s.metrics.OrderCreationFailed(string(kind))
}
