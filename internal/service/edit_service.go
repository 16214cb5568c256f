package service

import (
	"context"
	"fmt"

	"catalog-mirror/internal/clock"
	"catalog-mirror/internal/domain"
	"catalog-mirror/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EditService defines the operator-facing cost edits. Every accepted edit
// writes the store and the ledger in one unit of work.
type EditService interface {
	EditSingleCost(ctx context.Context, productID int64, newCost decimal.Decimal) (*domain.LedgerEntry, error)
	EditCategoryCost(ctx context.Context, categoryID int64, newCost decimal.Decimal) (*domain.BulkEditResult, error)
}

type editService struct {
	uow    repository.UnitOfWork
	clock  clock.Clock
	logger *zap.Logger
}

// NewEditService creates a new instance of EditService
func NewEditService(uow repository.UnitOfWork, clk clock.Clock, logger *zap.Logger) EditService {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &editService{uow: uow, clock: clk, logger: logger}
}

// EditSingleCost sets one product's cost and records the change with the
// cost it replaced.
func (s *editService) EditSingleCost(ctx context.Context, productID int64, newCost decimal.Decimal) (*domain.LedgerEntry, error) {
	if err := domain.ValidateCost(newCost); err != nil {
		return nil, err
	}

	var entry *domain.LedgerEntry
	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		product, err := repos.Products.FindByExternalIDForUpdate(ctx, productID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if err := repos.Products.SetCost(ctx, productID, newCost, now); err != nil {
			return err
		}

		entry = &domain.LedgerEntry{
			ProductID:    product.ExternalID,
			ProductName:  product.Name,
			OldCost:      decimal.NewNullDecimal(product.Cost),
			NewCost:      newCost,
			Kind:         domain.ChangeKindManual,
			CategoryID:   product.CategoryID,
			CategoryName: product.CategoryName,
			CreatedAt:    now,
		}
		if _, err := repos.Ledger.Append(ctx, entry); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Product cost updated",
		zap.Int64("product_id", productID),
		zap.String("old_cost", entry.OldCost.Decimal.StringFixed(2)),
		zap.String("new_cost", newCost.StringFixed(2)),
		zap.Int64("ledger_id", entry.ID),
	)

	return entry, nil
}

// EditCategoryCost sets every product of a category to newCost, producing
// one ledger entry per product.
func (s *editService) EditCategoryCost(ctx context.Context, categoryID int64, newCost decimal.Decimal) (*domain.BulkEditResult, error) {
	if err := domain.ValidateCost(newCost); err != nil {
		return nil, err
	}

	result := &domain.BulkEditResult{CategoryID: categoryID, NewCost: newCost.StringFixed(2)}
	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		products, err := repos.Products.ListByCategoryForUpdate(ctx, categoryID)
		if err != nil {
			return err
		}
		if len(products) == 0 {
			return domain.NewNotFoundError("products in category", categoryID)
		}

		now := s.clock.Now()
		affected, err := repos.Products.SetCostForCategory(ctx, categoryID, newCost, now)
		if err != nil {
			return err
		}
		if affected != int64(len(products)) {
			return domain.NewStoreWriteError("update costs of", "category products",
				fmt.Errorf("updated %d rows, expected %d", affected, len(products)))
		}

		entries := make([]*domain.LedgerEntry, 0, len(products))
		for _, product := range products {
			entry := &domain.LedgerEntry{
				ProductID:    product.ExternalID,
				ProductName:  product.Name,
				OldCost:      decimal.NewNullDecimal(product.Cost),
				NewCost:      newCost,
				Kind:         domain.ChangeKindBulkCategory,
				CategoryID:   &categoryID,
				CategoryName: product.CategoryName,
				CreatedAt:    now,
			}
			if _, err := repos.Ledger.Append(ctx, entry); err != nil {
				return err
			}
			entries = append(entries, entry)
		}

		result.Affected = affected
		result.Entries = entries
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Category cost updated",
		zap.Int64("category_id", categoryID),
		zap.String("new_cost", result.NewCost),
		zap.Int64("affected", result.Affected),
	)

	return result, nil
}
