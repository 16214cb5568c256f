package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"catalog-mirror/internal/domain"

	"github.com/shopspring/decimal"
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func int64p(v int64) *int64    { return &v }
func stringp(v string) *string { return &v }

func seedProduct(t *testing.T, repos Repositories, id int64, name string, categoryID *int64, cost string) {
	t.Helper()
	_, err := repos.Products.Upsert(context.Background(), &domain.Product{
		ExternalID:  id,
		Code:        "P-" + name,
		Name:        name,
		CategoryID:  categoryID,
		Cost:        decimal.RequireFromString(cost),
		LastUpdated: baseTime,
	})
	if err != nil {
		t.Fatalf("Failed to seed product %d: %v", id, err)
	}
}

func TestProductUpsertIsIdempotent(t *testing.T) {
	resetTables(t)
	repos := NewRepositories(testDB)
	ctx := context.Background()

	product := &domain.Product{
		ExternalID:   42,
		Code:         "FLOUR-25",
		Name:         "Flour 25kg",
		CategoryID:   int64p(7),
		CategoryName: stringp("Dry goods"),
		Cost:         decimal.RequireFromString("7.00"),
		LastUpdated:  baseTime,
	}

	outcome, err := repos.Products.Upsert(ctx, product)
	if err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}
	if outcome != domain.UpsertInserted {
		t.Errorf("Expected inserted, got %s", outcome)
	}

	again := *product
	again.LastUpdated = baseTime.Add(time.Hour)
	outcome, err = repos.Products.Upsert(ctx, &again)
	if err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}
	if outcome != domain.UpsertUnchanged {
		t.Errorf("Expected unchanged, got %s", outcome)
	}

	stored, err := repos.Products.FindByExternalID(ctx, 42)
	if err != nil {
		t.Fatalf("Failed to read product: %v", err)
	}
	if !stored.LastUpdated.Equal(baseTime) {
		t.Errorf("last_updated moved on an unchanged upsert: %v", stored.LastUpdated)
	}

	again.Cost = decimal.RequireFromString("8.25")
	outcome, err = repos.Products.Upsert(ctx, &again)
	if err != nil {
		t.Fatalf("Third upsert failed: %v", err)
	}
	if outcome != domain.UpsertUpdated {
		t.Errorf("Expected updated, got %s", outcome)
	}

	stored, err = repos.Products.FindByExternalID(ctx, 42)
	if err != nil {
		t.Fatalf("Failed to read product: %v", err)
	}
	if !stored.Cost.Equal(decimal.RequireFromString("8.25")) {
		t.Errorf("Expected cost 8.25, got %s", stored.Cost)
	}
	if stored.CategoryName == nil || *stored.CategoryName != "Dry goods" {
		t.Errorf("Category name not preserved: %v", stored.CategoryName)
	}
}

func TestProductUpsertRejectsMissingName(t *testing.T) {
	resetTables(t)
	repos := NewRepositories(testDB)

	_, err := repos.Products.Upsert(context.Background(), &domain.Product{ExternalID: 1, Cost: decimal.Zero})
	if !errors.Is(err, domain.ErrStoreWrite) {
		t.Errorf("Expected store write error, got %v", err)
	}
}

func TestProductUpsertRejectsNegativeCost(t *testing.T) {
	resetTables(t)
	repos := NewRepositories(testDB)

	_, err := repos.Products.Upsert(context.Background(), &domain.Product{
		ExternalID:  1,
		Name:        "Broken",
		Cost:        decimal.RequireFromString("-1"),
		LastUpdated: baseTime,
	})
	if !errors.Is(err, domain.ErrStoreWrite) {
		t.Errorf("Expected store write error from the check constraint, got %v", err)
	}
}

func TestSetCostUnknownProduct(t *testing.T) {
	resetTables(t)
	repos := NewRepositories(testDB)

	err := repos.Products.SetCost(context.Background(), 999, decimal.RequireFromString("1.00"), baseTime)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestSetCostForCategory(t *testing.T) {
	resetTables(t)
	repos := NewRepositories(testDB)
	ctx := context.Background()

	seedProduct(t, repos, 1, "Basil", int64p(7), "10.00")
	seedProduct(t, repos, 2, "Oregano", int64p(7), "10.00")
	seedProduct(t, repos, 3, "Mozzarella", int64p(8), "4.00")

	at := baseTime.Add(time.Minute)
	affected, err := repos.Products.SetCostForCategory(ctx, 7, decimal.RequireFromString("12.50"), at)
	if err != nil {
		t.Fatalf("Bulk update failed: %v", err)
	}
	if affected != 2 {
		t.Errorf("Expected 2 rows, got %d", affected)
	}

	other, err := repos.Products.FindByExternalID(ctx, 3)
	if err != nil {
		t.Fatalf("Failed to read product: %v", err)
	}
	if !other.Cost.Equal(decimal.RequireFromString("4.00")) {
		t.Errorf("Product outside the category changed: %s", other.Cost)
	}

	affected, err = repos.Products.SetCostForCategory(ctx, 404, decimal.RequireFromString("1.00"), at)
	if err != nil {
		t.Fatalf("Empty bulk update failed: %v", err)
	}
	if affected != 0 {
		t.Errorf("Expected 0 rows for unknown category, got %d", affected)
	}
}

func TestProductListFiltersByCategory(t *testing.T) {
	resetTables(t)
	repos := NewRepositories(testDB)
	ctx := context.Background()

	seedProduct(t, repos, 1, "Basil", int64p(7), "1.00")
	seedProduct(t, repos, 2, "Anchovies", int64p(7), "2.00")
	seedProduct(t, repos, 3, "Yeast", nil, "3.00")

	all, err := repos.Products.List(ctx, domain.ProductFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 || all[0].Name != "Anchovies" {
		t.Errorf("Expected 3 products ordered by name, got %d", len(all))
	}

	filtered, err := repos.Products.List(ctx, domain.ProductFilter{CategoryID: int64p(7)})
	if err != nil {
		t.Fatalf("Filtered list failed: %v", err)
	}
	if len(filtered) != 2 {
		t.Errorf("Expected 2 products in category 7, got %d", len(filtered))
	}
}

func TestCategoryCountsIncludeEmptyAndOrphans(t *testing.T) {
	resetTables(t)
	repos := NewRepositories(testDB)
	ctx := context.Background()

	for _, c := range []*domain.Category{
		{ExternalID: 7, Name: "Herbs", LastUpdated: baseTime},
		{ExternalID: 8, Name: "Cheese", ParentID: int64p(100), LastUpdated: baseTime},
	} {
		if _, err := repos.Categories.Upsert(ctx, c); err != nil {
			t.Fatalf("Failed to upsert category: %v", err)
		}
	}

	seedProduct(t, repos, 1, "Basil", int64p(7), "1.00")
	seedProduct(t, repos, 2, "Orphan", int64p(55), "1.00")

	counts, err := repos.Categories.ListWithProductCounts(ctx)
	if err != nil {
		t.Fatalf("Failed to list counts: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("Expected 2 categories, got %d", len(counts))
	}

	got := map[int64]int64{}
	for _, c := range counts {
		got[c.ExternalID] = c.ProductCount
	}
	if got[7] != 1 || got[8] != 0 {
		t.Errorf("Unexpected counts: %v", got)
	}

	cheese, err := repos.Categories.FindByExternalID(ctx, 8)
	if err != nil {
		t.Fatalf("Failed to read category: %v", err)
	}
	if cheese.ParentID == nil || *cheese.ParentID != 100 {
		t.Errorf("Dangling parent reference not preserved: %v", cheese.ParentID)
	}
}

func TestCategoryUpsertUnchanged(t *testing.T) {
	resetTables(t)
	repos := NewRepositories(testDB)
	ctx := context.Background()

	category := &domain.Category{ExternalID: 7, Name: "Herbs", LastUpdated: baseTime}
	if _, err := repos.Categories.Upsert(ctx, category); err != nil {
		t.Fatalf("Failed to upsert category: %v", err)
	}

	outcome, err := repos.Categories.Upsert(ctx, category)
	if err != nil {
		t.Fatalf("Failed to upsert category again: %v", err)
	}
	if outcome != domain.UpsertUnchanged {
		t.Errorf("Expected unchanged, got %s", outcome)
	}
}

func TestLedgerOrderingAndMarkSynced(t *testing.T) {
	resetTables(t)
	repos := NewRepositories(testDB)
	ctx := context.Background()

	seedProduct(t, repos, 1, "Basil", int64p(7), "1.00")

	var ids []int64
	for i := 0; i < 3; i++ {
		entry := &domain.LedgerEntry{
			ProductID:   1,
			ProductName: "Basil",
			OldCost:     decimal.NewNullDecimal(decimal.NewFromInt(int64(i))),
			NewCost:     decimal.NewFromInt(int64(i + 1)),
			Kind:        domain.ChangeKindManual,
			CreatedAt:   baseTime.Add(time.Duration(i) * time.Second),
		}
		id, err := repos.Ledger.Append(ctx, entry)
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if entry.Status != domain.SyncStatusPending {
			t.Errorf("Appended entry is not pending: %s", entry.Status)
		}
		ids = append(ids, id)
	}

	newest, err := repos.Ledger.List(ctx, domain.LedgerFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(newest) != 3 || newest[0].ID != ids[2] {
		t.Errorf("Expected newest-first listing")
	}
	if !newest[0].CurrentCost.Valid {
		t.Errorf("Current cost should be joined in")
	}

	pending, err := repos.Ledger.List(ctx, domain.PendingFilter())
	if err != nil {
		t.Fatalf("Pending list failed: %v", err)
	}
	if len(pending) != 3 || pending[0].ID != ids[0] {
		t.Errorf("Expected oldest-first pending listing")
	}

	syncedAt := baseTime.Add(time.Hour)
	affected, err := repos.Ledger.MarkSynced(ctx, []int64{ids[0], ids[2], 9999}, syncedAt)
	if err != nil {
		t.Fatalf("MarkSynced failed: %v", err)
	}
	if affected != 2 {
		t.Errorf("Expected 2 transitions, got %d", affected)
	}

	affected, err = repos.Ledger.MarkSynced(ctx, []int64{ids[0]}, syncedAt.Add(time.Hour))
	if err != nil {
		t.Fatalf("Repeated MarkSynced failed: %v", err)
	}
	if affected != 0 {
		t.Errorf("Synced entries must not transition again, got %d", affected)
	}

	synced := domain.SyncStatusSynced
	done, err := repos.Ledger.List(ctx, domain.LedgerFilter{Status: &synced})
	if err != nil {
		t.Fatalf("Synced list failed: %v", err)
	}
	for _, e := range done {
		if e.SyncedAt == nil || !e.SyncedAt.Equal(syncedAt) {
			t.Errorf("Entry %d has unexpected synced_at %v", e.ID, e.SyncedAt)
		}
	}

	affected, err = repos.Ledger.MarkSynced(ctx, nil, syncedAt)
	if err != nil || affected != 0 {
		t.Errorf("Empty MarkSynced should be a no-op, got %d, %v", affected, err)
	}
}

func TestUnitOfWorkRollsBack(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	uow := NewUnitOfWork(testDB)

	seedProduct(t, NewRepositories(testDB), 1, "Basil", int64p(7), "1.00")

	boom := errors.New("boom")
	err := uow.Do(ctx, func(repos Repositories) error {
		if err := repos.Products.SetCost(ctx, 1, decimal.RequireFromString("5.00"), baseTime); err != nil {
			return err
		}
		if _, err := repos.Ledger.Append(ctx, &domain.LedgerEntry{
			ProductID:   1,
			ProductName: "Basil",
			NewCost:     decimal.RequireFromString("5.00"),
			Kind:        domain.ChangeKindManual,
			CreatedAt:   baseTime,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected the callback error, got %v", err)
	}

	repos := NewRepositories(testDB)
	product, err := repos.Products.FindByExternalID(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to read product: %v", err)
	}
	if !product.Cost.Equal(decimal.RequireFromString("1.00")) {
		t.Errorf("Cost change survived rollback: %s", product.Cost)
	}

	entries, err := repos.Ledger.List(ctx, domain.LedgerFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Ledger entry survived rollback")
	}
}
