package products

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"shopflow/internal/app/catalog"
)

func RegisterRoutes(r chi.Router, s catalog.ProductService, l *zap.Logger) {
	handler := NewProductHandler(s, l.With(zap.String("component", "ProductHTTPHandler")))

	r.Route("/products", func(r chi.Router) {
		r.Post("/", handler.CreateProduct)
		r.Get("/", handler.GetAllProducts)
		r.Get("/active", handler.GetActiveProducts)
		r.Get("/search", handler.SearchProducts)
		r.Get("/category/{category}", handler.GetProductsByCategory)
		r.Get("/{productID}", handler.GetProduct)
		r.Put("/{productID}", handler.UpdateProduct)
		r.Patch("/{productID}/stock", handler.UpdateStock)
		r.Delete("/{productID}", handler.DeleteProduct)
	})
}
