package service

import (
	"context"

	"catalog-mirror/internal/domain"
	"catalog-mirror/internal/repository"
)

// CatalogService defines the read side of the catalog store and the ledger
type CatalogService interface {
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error)
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	ListCategoriesWithCounts(ctx context.Context) ([]*domain.CategoryWithCount, error)
	GetCategory(ctx context.Context, categoryID int64) (*domain.Category, error)
	ListChanges(ctx context.Context, filter domain.LedgerFilter) ([]*domain.LedgerEntry, error)
	ListPending(ctx context.Context) ([]*domain.LedgerEntry, error)
}

type catalogService struct {
	repos repository.Repositories
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(repos repository.Repositories) CatalogService {
	return &catalogService{repos: repos}
}

func (s *catalogService) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	return s.repos.Products.List(ctx, filter)
}

func (s *catalogService) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	return s.repos.Products.FindByExternalID(ctx, productID)
}

func (s *catalogService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return s.repos.Categories.List(ctx)
}

func (s *catalogService) ListCategoriesWithCounts(ctx context.Context) ([]*domain.CategoryWithCount, error) {
	return s.repos.Categories.ListWithProductCounts(ctx)
}

func (s *catalogService) GetCategory(ctx context.Context, categoryID int64) (*domain.Category, error) {
	return s.repos.Categories.FindByExternalID(ctx, categoryID)
}

func (s *catalogService) ListChanges(ctx context.Context, filter domain.LedgerFilter) ([]*domain.LedgerEntry, error) {
	return s.repos.Ledger.List(ctx, filter)
}

// ListPending returns what the next outbound sync would push, oldest first.
func (s *catalogService) ListPending(ctx context.Context) ([]*domain.LedgerEntry, error) {
	return s.repos.Ledger.List(ctx, domain.PendingFilter())
}
