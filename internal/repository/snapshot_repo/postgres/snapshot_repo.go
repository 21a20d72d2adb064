package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shopflow/internal/domain"
	"shopflow/internal/repository/snapshot_repo"
)

type pgSnapshotRepository struct {
	db *sql.DB
}

func NewSnapshotRepository(db *sql.DB) snapshot_repo.SnapshotRepository {
	return &pgSnapshotRepository{db: db}
}

// product-updated carries no category, so an empty category keeps the stored one.
func (r *pgSnapshotRepository) Upsert(ctx context.Context, q domain.Querier, s *domain.ProductSnapshot) (bool, error) {
	query := `
		INSERT INTO product_snapshots (product_id, name, price, category, stock_quantity, last_event_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (product_id) DO UPDATE
		SET name = EXCLUDED.name,
		    price = EXCLUDED.price,
		    category = CASE WHEN EXCLUDED.category = '' THEN product_snapshots.category ELSE EXCLUDED.category END,
		    stock_quantity = EXCLUDED.stock_quantity,
		    last_event_at = EXCLUDED.last_event_at
		WHERE product_snapshots.last_event_at <= EXCLUDED.last_event_at
	`
	res, err := q.ExecContext(ctx, query, s.ProductID, s.Name, s.Price, s.Category, s.StockQuantity, s.LastEventAt)
	if err != nil {
		return false, fmt.Errorf("failed to upsert product snapshot %d: %w", s.ProductID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected for product snapshot: %w", err)
	}
	if n > 0 || s.Category == "" {
		return n > 0, nil
	}
	return r.fillCategory(ctx, q, s)
}

// fillCategory sets the category of a snapshot first built from a
// product-updated event. It runs when the older product-created event
// arrives after that row was written.
func (r *pgSnapshotRepository) fillCategory(ctx context.Context, q domain.Querier, s *domain.ProductSnapshot) (bool, error) {
	query := `UPDATE product_snapshots SET category = $2 WHERE product_id = $1 AND category = ''`
	res, err := q.ExecContext(ctx, query, s.ProductID, s.Category)
	if err != nil {
		return false, fmt.Errorf("failed to fill category of product snapshot %d: %w", s.ProductID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected for product snapshot: %w", err)
	}
	return n > 0, nil
}

func (r *pgSnapshotRepository) GetByProductID(ctx context.Context, productID int64) (*domain.ProductSnapshot, error) {
	query := `
		SELECT product_id, name, price, category, stock_quantity, last_event_at
		FROM product_snapshots WHERE product_id = $1`
	s := &domain.ProductSnapshot{}
	err := r.db.QueryRowContext(ctx, query, productID).Scan(&s.ProductID, &s.Name, &s.Price, &s.Category, &s.StockQuantity, &s.LastEventAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product snapshot %d: %w", productID, err)
	}
	return s, nil
}
