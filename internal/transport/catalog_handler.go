package transport

import (
	"net/http"

	"catalog-mirror/internal/domain"
	"catalog-mirror/internal/middleware"
	"catalog-mirror/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CatalogHandler serves products and categories and accepts cost edits.
type CatalogHandler struct {
	catalog service.CatalogService
	edits   service.EditService
	logger  *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalog service.CatalogService, edits service.EditService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		edits:   edits,
		logger:  logger,
	}
}

// RegisterRoutes registers catalog routes. mutating guards the cost edits.
func (h *CatalogHandler) RegisterRoutes(r chi.Router, mutating ...func(http.Handler) http.Handler) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{id}", h.GetProduct)
		r.Get("/category/{categoryID}", h.ListCategoryProducts)

		r.With(mutating...).Put("/{id}/cost", h.EditProductCost)
		r.With(mutating...).Put("/category/{categoryID}/cost", h.EditCategoryCost)
	})

	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.ListCategories)
		r.Get("/with-counts", h.ListCategoriesWithCounts)
		r.Get("/{id}", h.GetCategory)
	})
}

// ListProducts handles GET /products?category_id=
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	categoryID, err := queryID(r, "category_id")
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err, nil)
		return
	}

	h.listProducts(w, r, domain.ProductFilter{CategoryID: categoryID})
}

// ListCategoryProducts handles GET /products/category/{categoryID}
func (h *CatalogHandler) ListCategoryProducts(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := pathID(w, r, h.logger, "categoryID")
	if !ok {
		return
	}

	h.listProducts(w, r, domain.ProductFilter{CategoryID: &categoryID})
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request, filter domain.ProductFilter) {
	products, err := h.catalog.ListProducts(r.Context(), filter)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err, nil)
		return
	}

	middleware.RespondWithList(w, products, len(products))
}

// GetProduct handles GET /products/{id}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger, "id")
	if !ok {
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err, nil)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, product)
}

// EditProductCost handles PUT /products/{id}/cost
func (h *CatalogHandler) EditProductCost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger, "id")
	if !ok {
		return
	}
	cost, ok := decodeCost(w, r, h.logger)
	if !ok {
		return
	}

	entry, err := h.edits.EditSingleCost(r.Context(), id, cost)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err, nil)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, entry)
}

// EditCategoryCost handles PUT /products/category/{categoryID}/cost
func (h *CatalogHandler) EditCategoryCost(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := pathID(w, r, h.logger, "categoryID")
	if !ok {
		return
	}
	cost, ok := decodeCost(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.edits.EditCategoryCost(r.Context(), categoryID, cost)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err, nil)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, result)
}

// ListCategories handles GET /categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err, nil)
		return
	}

	middleware.RespondWithList(w, categories, len(categories))
}

// ListCategoriesWithCounts handles GET /categories/with-counts
func (h *CatalogHandler) ListCategoriesWithCounts(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategoriesWithCounts(r.Context())
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err, nil)
		return
	}

	middleware.RespondWithList(w, categories, len(categories))
}

// GetCategory handles GET /categories/{id}
func (h *CatalogHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger, "id")
	if !ok {
		return
	}

	category, err := h.catalog.GetCategory(r.Context(), id)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err, nil)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, category)
}
