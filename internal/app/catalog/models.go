package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"shopflow/internal/domain"
)

// ProductRequest is used for both create and full update. Active defaults
// to true when omitted.
type ProductRequest struct {
	Name          string          `json:"name" validate:"required,max=255"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Category      string          `json:"category" validate:"max=100"`
	StockQuantity int             `json:"stockQuantity" validate:"gte=0"`
	Active        *bool           `json:"active"`
	ImageURL      string          `json:"imageUrl"`
}

type ProductResponse struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Category      string          `json:"category"`
	StockQuantity int             `json:"stockQuantity"`
	Active        bool            `json:"active"`
	ImageURL      string          `json:"imageUrl"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func (r *ProductRequest) apply(p *domain.Product) {
	p.Name = r.Name
	p.Description = r.Description
	p.Price = r.Price
	p.Category = r.Category
	p.StockQuantity = r.StockQuantity
	p.ImageURL = r.ImageURL
	p.Active = true
	if r.Active != nil {
		p.Active = *r.Active
	}
}

func mapProductToResponse(p *domain.Product) *ProductResponse {
	return &ProductResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price,
		Category:      p.Category,
		StockQuantity: p.StockQuantity,
		Active:        p.Active,
		ImageURL:      p.ImageURL,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func mapProductsToResponse(products []*domain.Product) []*ProductResponse {
	out := make([]*ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, mapProductToResponse(p))
	}
	return out
}
