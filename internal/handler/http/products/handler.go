package products

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"shopflow/internal/app/catalog"
	"shopflow/internal/domain"
	"shopflow/internal/handler/http/common"
)

type ProductHandler struct {
	service catalog.ProductService
	logger  *zap.Logger
}

func NewProductHandler(s catalog.ProductService, l *zap.Logger) *ProductHandler {
	return &ProductHandler{service: s, logger: l}
}

func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req catalog.ProductRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, h.logger, "CreateProduct", err)
		return
	}

	res, err := h.service.CreateProduct(r.Context(), &req)
	if err != nil {
		common.WriteError(w, h.logger, "CreateProduct", err)
		return
	}
	common.WriteJSON(w, http.StatusCreated, res)
}

func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := common.IDParam(r, "productID")
	if err != nil {
		common.WriteError(w, h.logger, "UpdateProduct", err)
		return
	}
	var req catalog.ProductRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, h.logger, "UpdateProduct", err)
		return
	}

	res, err := h.service.UpdateProduct(r.Context(), id, &req)
	if err != nil {
		common.WriteError(w, h.logger, "UpdateProduct", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, res)
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := common.IDParam(r, "productID")
	if err != nil {
		common.WriteError(w, h.logger, "GetProduct", err)
		return
	}

	res, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		common.WriteError(w, h.logger, "GetProduct", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, res)
}

func (h *ProductHandler) GetAllProducts(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetAllProducts(r.Context())
	if err != nil {
		common.WriteError(w, h.logger, "GetAllProducts", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, res)
}

func (h *ProductHandler) GetActiveProducts(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetActiveProducts(r.Context())
	if err != nil {
		common.WriteError(w, h.logger, "GetActiveProducts", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, res)
}

func (h *ProductHandler) GetProductsByCategory(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetProductsByCategory(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		common.WriteError(w, h.logger, "GetProductsByCategory", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, res)
}

func (h *ProductHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		common.WriteError(w, h.logger, "SearchProducts", domain.NewValidationError("name is required"))
		return
	}

	res, err := h.service.SearchProducts(r.Context(), name)
	if err != nil {
		common.WriteError(w, h.logger, "SearchProducts", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, res)
}

func (h *ProductHandler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	id, err := common.IDParam(r, "productID")
	if err != nil {
		common.WriteError(w, h.logger, "UpdateStock", err)
		return
	}
	quantity, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil {
		common.WriteError(w, h.logger, "UpdateStock", domain.NewValidationError("quantity must be an integer"))
		return
	}

	res, err := h.service.UpdateStock(r.Context(), id, quantity)
	if err != nil {
		common.WriteError(w, h.logger, "UpdateStock", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, res)
}

func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := common.IDParam(r, "productID")
	if err != nil {
		common.WriteError(w, h.logger, "DeleteProduct", err)
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		common.WriteError(w, h.logger, "DeleteProduct", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
