package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"shopflow/internal/domain"
	"shopflow/internal/infrastructure/database"
	"shopflow/internal/repository/order_repo"
)

const orderColumns = `id, user_id, status, total_amount, COALESCE(idempotency_key, ''), created_at, updated_at`

type pgOrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewOrderRepository(db *sql.DB, l *zap.Logger) order_repo.OrderRepository {
	return &pgOrderRepository{db: db, logger: l}
}

func (r *pgOrderRepository) Create(ctx context.Context, q domain.Querier, order *domain.Order) error {
	orderQuery := `
		INSERT INTO orders (user_id, status, total_amount, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	err := q.QueryRowContext(ctx, orderQuery,
		order.UserID,
		order.Status,
		order.TotalAmount,
		nullString(order.IdempotencyKey),
		order.CreatedAt,
		order.UpdatedAt,
	).Scan(&order.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return order_repo.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("tx failed to create order: %w", err)
	}
	r.logger.Debug("Order inserted in transaction", zap.Int64("order_id", order.ID))

	itemQuery := `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price, position)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		if err := q.QueryRowContext(ctx, itemQuery, order.ID, item.ProductID, item.Quantity, item.UnitPrice, i).Scan(&item.ID); err != nil {
			return fmt.Errorf("tx failed to create order item for product %d: %w", item.ProductID, err)
		}
	}
	return nil
}

func (r *pgOrderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *pgOrderRepository) GetByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 AND idempotency_key = $2`
	return r.getOne(ctx, query, userID, key)
}

func (r *pgOrderRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if err := r.attachItems(ctx, []*domain.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *pgOrderRepository) ListByUserID(ctx context.Context, userID int64) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, userID)
}

func (r *pgOrderRepository) ListAll(ctx context.Context) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query)
}

func (r *pgOrderRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query orders", zap.Error(err))
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems loads the items of every order with a single query.
func (r *pgOrderRepository) attachItems(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	byID := make(map[int64]*domain.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
		o.Items = []domain.OrderItem{}
	}

	query := `
		SELECT id, order_id, product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return fmt.Errorf("failed to scan order item row: %w", err)
		}
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}
	return nil
}

func (r *pgOrderRepository) LockStatus(ctx context.Context, q domain.Querier, id int64) (domain.OrderStatus, error) {
	var status domain.OrderStatus
	err := q.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrOrderNotFound
		}
		return "", fmt.Errorf("failed to lock order %d: %w", id, err)
	}
	return status, nil
}

func (r *pgOrderRepository) UpdateStatus(ctx context.Context, q domain.Querier, id int64, status domain.OrderStatus, updatedAt time.Time) error {
	res, err := q.ExecContext(ctx, `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`, id, status, updatedAt)
	if err != nil {
		r.logger.Error("Failed to update order status", zap.Int64("order_id", id), zap.Error(err))
		return fmt.Errorf("failed to update order %d: %w", id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrOrderNotFound
	}
	r.logger.Debug("Order status updated", zap.Int64("order_id", id), zap.String("new_status", string(status)))
	return nil
}

func (r *pgOrderRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete order", zap.Int64("order_id", id), zap.Error(err))
		return fmt.Errorf("failed to delete order %d: %w", id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	order := &domain.Order{}
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.Status,
		&order.TotalAmount,
		&order.IdempotencyKey,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
