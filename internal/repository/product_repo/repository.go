package product_repo

import (
	"context"

	"shopflow/internal/domain"
)

type ProductRepository interface {
	Create(ctx context.Context, q domain.Querier, p *domain.Product) error
	Update(ctx context.Context, q domain.Querier, p *domain.Product) error
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	ListAll(ctx context.Context) ([]*domain.Product, error)
	ListActive(ctx context.Context) ([]*domain.Product, error)
	ListByCategory(ctx context.Context, category string) ([]*domain.Product, error)
	SearchByName(ctx context.Context, name string) ([]*domain.Product, error)
	UpdateStock(ctx context.Context, id int64, quantity int) (*domain.Product, error)
	Delete(ctx context.Context, id int64) error
}
