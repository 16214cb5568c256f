package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"catalog-mirror/internal/domain"
)

// CategoryRepository defines the catalog store operations on categories
type CategoryRepository interface {
	Upsert(ctx context.Context, category *domain.Category) (domain.UpsertOutcome, error)
	FindByExternalID(ctx context.Context, externalID int64) (*domain.Category, error)
	List(ctx context.Context) ([]*domain.Category, error)
	ListWithProductCounts(ctx context.Context) ([]*domain.CategoryWithCount, error)
}

type categoryRepository struct {
	db DBTX
}

// NewCategoryRepository creates a new instance of CategoryRepository
func NewCategoryRepository(db DBTX) CategoryRepository {
	return &categoryRepository{db: db}
}

// Upsert inserts or fully replaces a category keyed by external id. The
// parent reference is stored as given, even if that parent is unknown.
func (r *categoryRepository) Upsert(ctx context.Context, category *domain.Category) (domain.UpsertOutcome, error) {
	if category.ExternalID <= 0 || strings.TrimSpace(category.Name) == "" {
		return domain.UpsertUnchanged, domain.NewStoreWriteError("upsert", "category",
			fmt.Errorf("external id and name are required (external_id=%d)", category.ExternalID))
	}

	query := `
		INSERT INTO categories (external_id, name, parent_external_id, last_updated)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (external_id) DO UPDATE
		SET name = EXCLUDED.name,
		    parent_external_id = EXCLUDED.parent_external_id,
		    last_updated = EXCLUDED.last_updated
		WHERE (categories.name, categories.parent_external_id)
		      IS DISTINCT FROM (EXCLUDED.name, EXCLUDED.parent_external_id)
		RETURNING (xmax = 0) AS inserted
	`

	var inserted bool
	err := r.db.QueryRowContext(
		ctx,
		query,
		category.ExternalID,
		category.Name,
		nullInt64(category.ParentID),
		category.LastUpdated,
	).Scan(&inserted)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UpsertUnchanged, nil
		}
		return domain.UpsertUnchanged, writeError("upsert", "category", err)
	}

	if inserted {
		return domain.UpsertInserted, nil
	}
	return domain.UpsertUpdated, nil
}

// FindByExternalID retrieves a category by its external id
func (r *categoryRepository) FindByExternalID(ctx context.Context, externalID int64) (*domain.Category, error) {
	query := `
		SELECT external_id, name, parent_external_id, last_updated
		FROM categories
		WHERE external_id = $1
	`

	category, err := scanCategory(r.db.QueryRowContext(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("category", externalID)
		}
		return nil, fmt.Errorf("failed to find category by external ID: %w", err)
	}

	return category, nil
}

// List retrieves all categories ordered by name
func (r *categoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	query := `
		SELECT external_id, name, parent_external_id, last_updated
		FROM categories
		ORDER BY name, external_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []*domain.Category{}
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, category)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

// ListWithProductCounts includes categories without products with a count of 0
func (r *categoryRepository) ListWithProductCounts(ctx context.Context) ([]*domain.CategoryWithCount, error) {
	query := `
		SELECT c.external_id, c.name, c.parent_external_id, c.last_updated, COUNT(p.id) AS product_count
		FROM categories c
		LEFT JOIN products p ON p.category_external_id = c.external_id
		GROUP BY c.id
		ORDER BY c.name, c.external_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories with counts: %w", err)
	}
	defer rows.Close()

	categories := []*domain.CategoryWithCount{}
	for rows.Next() {
		var (
			item     domain.CategoryWithCount
			parentID sql.NullInt64
		)
		err := rows.Scan(
			&item.ExternalID,
			&item.Name,
			&parentID,
			&item.LastUpdated,
			&item.ProductCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		item.ParentID = int64Ptr(parentID)
		item.LastUpdated = item.LastUpdated.UTC()
		categories = append(categories, &item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

func scanCategory(row rowScanner) (*domain.Category, error) {
	var (
		category domain.Category
		parentID sql.NullInt64
	)

	if err := row.Scan(&category.ExternalID, &category.Name, &parentID, &category.LastUpdated); err != nil {
		return nil, err
	}

	category.ParentID = int64Ptr(parentID)
	category.LastUpdated = category.LastUpdated.UTC()
	return &category, nil
}
