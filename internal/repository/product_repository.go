package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"catalog-mirror/internal/domain"

	"github.com/shopspring/decimal"
)

// ProductRepository defines the catalog store operations on products
type ProductRepository interface {
	Upsert(ctx context.Context, product *domain.Product) (domain.UpsertOutcome, error)
	SetCost(ctx context.Context, externalID int64, cost decimal.Decimal, at time.Time) error
	SetCostForCategory(ctx context.Context, categoryID int64, cost decimal.Decimal, at time.Time) (int64, error)
	FindByExternalID(ctx context.Context, externalID int64) (*domain.Product, error)
	FindByExternalIDForUpdate(ctx context.Context, externalID int64) (*domain.Product, error)
	List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error)
	ListByCategoryForUpdate(ctx context.Context, categoryID int64) ([]*domain.Product, error)
}

type productRepository struct {
	db DBTX
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db DBTX) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `external_id, code, name, category_external_id, category_name, cost, last_updated`

// Upsert inserts or fully replaces a product keyed by external id. The row,
// including last_updated, is left untouched when nothing differs.
func (r *productRepository) Upsert(ctx context.Context, product *domain.Product) (domain.UpsertOutcome, error) {
	if product.ExternalID <= 0 || strings.TrimSpace(product.Name) == "" {
		return domain.UpsertUnchanged, domain.NewStoreWriteError("upsert", "product",
			fmt.Errorf("external id and name are required (external_id=%d)", product.ExternalID))
	}

	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (external_id) DO UPDATE
		SET code = EXCLUDED.code,
		    name = EXCLUDED.name,
		    category_external_id = EXCLUDED.category_external_id,
		    category_name = EXCLUDED.category_name,
		    cost = EXCLUDED.cost,
		    last_updated = EXCLUDED.last_updated
		WHERE (products.code, products.name, products.category_external_id, products.category_name, products.cost)
		      IS DISTINCT FROM
		      (EXCLUDED.code, EXCLUDED.name, EXCLUDED.category_external_id, EXCLUDED.category_name, EXCLUDED.cost)
		RETURNING (xmax = 0) AS inserted
	`

	var inserted bool
	err := r.db.QueryRowContext(
		ctx,
		query,
		product.ExternalID,
		product.Code,
		product.Name,
		nullInt64(product.CategoryID),
		nullString(product.CategoryName),
		product.Cost,
		product.LastUpdated,
	).Scan(&inserted)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UpsertUnchanged, nil
		}
		return domain.UpsertUnchanged, writeError("upsert", "product", err)
	}

	if inserted {
		return domain.UpsertInserted, nil
	}
	return domain.UpsertUpdated, nil
}

// SetCost updates cost and timestamp only
func (r *productRepository) SetCost(ctx context.Context, externalID int64, cost decimal.Decimal, at time.Time) error {
	query := `UPDATE products SET cost = $2, last_updated = $3 WHERE external_id = $1`

	result, err := r.db.ExecContext(ctx, query, externalID, cost, at)
	if err != nil {
		return writeError("update cost of", "product", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.NewNotFoundError("product", externalID)
	}

	return nil
}

// SetCostForCategory updates every product of a category. Zero matches is not an error.
func (r *productRepository) SetCostForCategory(ctx context.Context, categoryID int64, cost decimal.Decimal, at time.Time) (int64, error) {
	query := `UPDATE products SET cost = $2, last_updated = $3 WHERE category_external_id = $1`

	result, err := r.db.ExecContext(ctx, query, categoryID, cost, at)
	if err != nil {
		return 0, writeError("update costs of", "category products", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

func (r *productRepository) FindByExternalID(ctx context.Context, externalID int64) (*domain.Product, error) {
	return r.findOne(ctx, `SELECT `+productColumns+` FROM products WHERE external_id = $1`, externalID)
}

// FindByExternalIDForUpdate locks the row until the enclosing transaction ends.
func (r *productRepository) FindByExternalIDForUpdate(ctx context.Context, externalID int64) (*domain.Product, error) {
	return r.findOne(ctx, `SELECT `+productColumns+` FROM products WHERE external_id = $1 FOR UPDATE`, externalID)
}

func (r *productRepository) findOne(ctx context.Context, query string, externalID int64) (*domain.Product, error) {
	product, err := scanProduct(r.db.QueryRowContext(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("product", externalID)
		}
		return nil, readError("product", err, "failed to find product by external ID")
	}
	return product, nil
}

// List retrieves products ordered by name, optionally restricted to one category
func (r *productRepository) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	args := []interface{}{}

	if filter.CategoryID != nil {
		query += ` WHERE category_external_id = $1`
		args = append(args, *filter.CategoryID)
	}

	query += ` ORDER BY name, external_id`

	return r.query(ctx, query, args...)
}

// ListByCategoryForUpdate reads and locks every product of a category.
func (r *productRepository) ListByCategoryForUpdate(ctx context.Context, categoryID int64) ([]*domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE category_external_id = $1
		ORDER BY name, external_id
		FOR UPDATE
	`
	return r.query(ctx, query, categoryID)
}

func (r *productRepository) query(ctx context.Context, query string, args ...interface{}) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, readError("product", err, "failed to list products")
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, readError("product", err, "error iterating products")
	}

	return products, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var (
		product      domain.Product
		categoryID   sql.NullInt64
		categoryName sql.NullString
	)

	err := row.Scan(
		&product.ExternalID,
		&product.Code,
		&product.Name,
		&categoryID,
		&categoryName,
		&product.Cost,
		&product.LastUpdated,
	)
	if err != nil {
		return nil, err
	}

	product.CategoryID = int64Ptr(categoryID)
	product.CategoryName = stringPtr(categoryName)
	product.LastUpdated = product.LastUpdated.UTC()
	return &product, nil
}
