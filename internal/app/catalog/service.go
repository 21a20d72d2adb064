package catalog

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"go.uber.org/zap"

	"shopflow/internal/domain"
	"shopflow/internal/infrastructure/database"
	"shopflow/internal/outbox"
	"shopflow/internal/repository/outbox_repo"
	"shopflow/internal/repository/product_repo"
	"shopflow/internal/validation"
)

const aggregateProduct = "product"

type ProductService interface {
	CreateProduct(ctx context.Context, req *ProductRequest) (*ProductResponse, error)
	UpdateProduct(ctx context.Context, id int64, req *ProductRequest) (*ProductResponse, error)
	GetProduct(ctx context.Context, id int64) (*ProductResponse, error)
	GetAllProducts(ctx context.Context) ([]*ProductResponse, error)
	GetActiveProducts(ctx context.Context) ([]*ProductResponse, error)
	GetProductsByCategory(ctx context.Context, category string) ([]*ProductResponse, error)
	SearchProducts(ctx context.Context, name string) ([]*ProductResponse, error)
	// UpdateStock overwrites the stock quantity. It does not emit an event.
	UpdateStock(ctx context.Context, id int64, quantity int) (*ProductResponse, error)
	DeleteProduct(ctx context.Context, id int64) error
}

type Topics struct {
	ProductCreated string
	ProductUpdated string
}

type productService struct {
	db          *sql.DB
	productRepo product_repo.ProductRepository
	outboxRepo  outbox_repo.OutboxRepository
	topics      Topics
	logger      *zap.Logger
}

func NewProductService(
	db *sql.DB,
	productRepo product_repo.ProductRepository,
	outboxRepo outbox_repo.OutboxRepository,
	topics Topics,
	logger *zap.Logger,
) ProductService {
	return &productService{
		db:          db,
		productRepo: productRepo,
		outboxRepo:  outboxRepo,
		topics:      topics,
		logger:      logger,
	}
}

func (s *productService) CreateProduct(ctx context.Context, req *ProductRequest) (*ProductResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product := &domain.Product{CreatedAt: now, UpdatedAt: now}
	req.apply(product)
	if err := product.Validate(); err != nil {
		return nil, err
	}

	err := database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if err := s.productRepo.Create(ctx, tx, product); err != nil {
			return err
		}

		msg, err := outbox.NewMessage(aggregateProduct, strconv.FormatInt(product.ID, 10),
			domain.EventTypeProductCreated, s.topics.ProductCreated, domain.ProductCreatedEvent{
				ID:            product.ID,
				Name:          product.Name,
				Price:         product.Price,
				Category:      product.Category,
				StockQuantity: product.StockQuantity,
				CreatedAt:     product.CreatedAt,
			})
		if err != nil {
			return err
		}
		return s.outboxRepo.CreateMessageTx(ctx, tx, msg)
	})
	if err != nil {
		s.logger.Error("Failed to create product", zap.String("name", req.Name), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Product created", zap.Int64("product_id", product.ID))
	return mapProductToResponse(product), nil
}

func (s *productService) UpdateProduct(ctx context.Context, id int64, req *ProductRequest) (*ProductResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	product := &domain.Product{ID: id, UpdatedAt: time.Now().UTC()}
	req.apply(product)
	if err := product.Validate(); err != nil {
		return nil, err
	}

	err := database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if err := s.productRepo.Update(ctx, tx, product); err != nil {
			return err
		}

		msg, err := outbox.NewMessage(aggregateProduct, strconv.FormatInt(product.ID, 10),
			domain.EventTypeProductUpdated, s.topics.ProductUpdated, domain.ProductUpdatedEvent{
				ID:            product.ID,
				Name:          product.Name,
				Price:         product.Price,
				StockQuantity: product.StockQuantity,
				UpdatedAt:     product.UpdatedAt,
			})
		if err != nil {
			return err
		}
		return s.outboxRepo.CreateMessageTx(ctx, tx, msg)
	})
	if err != nil {
		s.logger.Warn("Failed to update product", zap.Int64("product_id", id), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Product updated", zap.Int64("product_id", id))
	return mapProductToResponse(product), nil
}

func (s *productService) GetProduct(ctx context.Context, id int64) (*ProductResponse, error) {
	p, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return mapProductToResponse(p), nil
}

func (s *productService) GetAllProducts(ctx context.Context) ([]*ProductResponse, error) {
	products, err := s.productRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return mapProductsToResponse(products), nil
}

func (s *productService) GetActiveProducts(ctx context.Context) ([]*ProductResponse, error) {
	products, err := s.productRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return mapProductsToResponse(products), nil
}

func (s *productService) GetProductsByCategory(ctx context.Context, category string) ([]*ProductResponse, error) {
	products, err := s.productRepo.ListByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	return mapProductsToResponse(products), nil
}

func (s *productService) SearchProducts(ctx context.Context, name string) ([]*ProductResponse, error) {
	products, err := s.productRepo.SearchByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return mapProductsToResponse(products), nil
}

func (s *productService) UpdateStock(ctx context.Context, id int64, quantity int) (*ProductResponse, error) {
	if quantity < 0 {
		return nil, domain.NewValidationError("stock quantity cannot be negative")
	}
	p, err := s.productRepo.UpdateStock(ctx, id, quantity)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Product stock updated", zap.Int64("product_id", id), zap.Int("stock_quantity", quantity))
	return mapProductToResponse(p), nil
}

func (s *productService) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.productRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Product deleted", zap.Int64("product_id", id))
	return nil
}
