package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"shopflow/internal/domain"
	"shopflow/internal/repository/product_repo"
)

const productColumns = `id, name, description, price, category, stock_quantity, active, image_url, created_at, updated_at`

type pgProductRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewProductRepository(db *sql.DB, l *zap.Logger) product_repo.ProductRepository {
	return &pgProductRepository{db: db, logger: l}
}

func (r *pgProductRepository) Create(ctx context.Context, q domain.Querier, p *domain.Product) error {
	query := `
		INSERT INTO products (name, description, price, category, stock_quantity, active, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	err := q.QueryRowContext(ctx, query,
		p.Name, p.Description, p.Price, p.Category, p.StockQuantity, p.Active, p.ImageURL, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	r.logger.Debug("Product inserted", zap.Int64("product_id", p.ID))
	return nil
}

func (r *pgProductRepository) Update(ctx context.Context, q domain.Querier, p *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, description = $3, price = $4, category = $5, stock_quantity = $6,
		    active = $7, image_url = $8, updated_at = $9
		WHERE id = $1
		RETURNING created_at`
	err := q.QueryRowContext(ctx, query,
		p.ID, p.Name, p.Description, p.Price, p.Category, p.StockQuantity, p.Active, p.ImageURL, p.UpdatedAt,
	).Scan(&p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrProductNotFound
		}
		return fmt.Errorf("failed to update product %d: %w", p.ID, err)
	}
	return nil
}

func (r *pgProductRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return p, nil
}

func (r *pgProductRepository) ListAll(ctx context.Context) ([]*domain.Product, error) {
	return r.list(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
}

func (r *pgProductRepository) ListActive(ctx context.Context) ([]*domain.Product, error) {
	return r.list(ctx, `SELECT `+productColumns+` FROM products WHERE active ORDER BY id`)
}

func (r *pgProductRepository) ListByCategory(ctx context.Context, category string) ([]*domain.Product, error) {
	return r.list(ctx, `SELECT `+productColumns+` FROM products WHERE category = $1 ORDER BY id`, category)
}

func (r *pgProductRepository) SearchByName(ctx context.Context, name string) ([]*domain.Product, error) {
	pattern := "%" + escapeLike(name) + "%"
	return r.list(ctx, `SELECT `+productColumns+` FROM products WHERE name ILIKE $1 ORDER BY id`, pattern)
}

func (r *pgProductRepository) UpdateStock(ctx context.Context, id int64, quantity int) (*domain.Product, error) {
	query := `
		UPDATE products SET stock_quantity = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + productColumns
	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id, quantity))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to update stock of product %d: %w", id, err)
	}
	return p, nil
}

func (r *pgProductRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *pgProductRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query products", zap.Error(err))
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := make([]*domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return products, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Category,
		&p.StockQuantity, &p.Active, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
