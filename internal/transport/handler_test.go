package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"catalog-mirror/internal/clock"
	"catalog-mirror/internal/domain"
	"catalog-mirror/internal/reconcile"
	"catalog-mirror/internal/repository/memory"
	"catalog-mirror/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var handlerTime = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Count   *int            `json:"count"`
	Error   *struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

type stubEngine struct {
	pull     func(ctx context.Context) (*reconcile.PullReport, error)
	push     func(ctx context.Context) (*reconcile.PushReport, error)
	check    func(ctx context.Context) (*reconcile.ConnectionStatus, error)
	pullRuns []string
}

func (s *stubEngine) Pull(ctx context.Context) (*reconcile.PullReport, error) {
	s.pullRuns = append(s.pullRuns, "all")
	return s.pull(ctx)
}

func (s *stubEngine) PullCategories(ctx context.Context) (*reconcile.PullReport, error) {
	s.pullRuns = append(s.pullRuns, "categories")
	return s.pull(ctx)
}

func (s *stubEngine) PullProducts(ctx context.Context) (*reconcile.PullReport, error) {
	s.pullRuns = append(s.pullRuns, "products")
	return s.pull(ctx)
}

func (s *stubEngine) Push(ctx context.Context) (*reconcile.PushReport, error) {
	return s.push(ctx)
}

func (s *stubEngine) CheckConnection(ctx context.Context) (*reconcile.ConnectionStatus, error) {
	return s.check(ctx)
}

func int64p(v int64) *int64 { return &v }

func newRouter(store *memory.Store, engine SyncEngine) http.Handler {
	logger := zap.NewNop()
	catalog := service.NewCatalogService(store.Repositories())
	edits := service.NewEditService(store, clock.NewFake(handlerTime), logger)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		NewCatalogHandler(catalog, edits, logger).RegisterRoutes(r)
		NewLedgerHandler(catalog, logger).RegisterRoutes(r)
		NewSyncHandler(engine, logger).RegisterRoutes(r)
	})
	return r
}

func seedCatalog(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()
	repos := store.Repositories()

	for _, c := range []domain.Category{
		{ExternalID: 7, Name: "Herbs"},
		{ExternalID: 8, Name: "Spices"},
		{ExternalID: 9, Name: "Empty"},
	} {
		c := c
		_, err := repos.Categories.Upsert(ctx, &c)
		require.NoError(t, err)
	}

	for _, p := range []struct {
		id       int64
		category int64
		cost     string
	}{
		{1, 7, "10.00"}, {2, 7, "10.00"}, {3, 7, "15.00"}, {42, 8, "7.00"},
	} {
		_, err := repos.Products.Upsert(ctx, &domain.Product{
			ExternalID:  p.id,
			Name:        fmt.Sprintf("Product %d", p.id),
			CategoryID:  int64p(p.category),
			Cost:        decimal.RequireFromString(p.cost),
			LastUpdated: handlerTime.Add(-time.Hour),
		})
		require.NoError(t, err)
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestEditProductCostRecordsLedgerEntry(t *testing.T) {
	store := memory.New()
	seedCatalog(t, store)
	router := newRouter(store, &stubEngine{})

	status, env := do(t, router, http.MethodPut, "/api/products/42/cost", `{"new_cost":"9.99"}`)
	require.Equal(t, http.StatusOK, status)
	require.True(t, env.Success)

	var entry domain.LedgerEntry
	require.NoError(t, json.Unmarshal(env.Data, &entry))
	assert.Equal(t, int64(42), entry.ProductID)
	assert.True(t, entry.OldCost.Decimal.Equal(decimal.RequireFromString("7")))
	assert.True(t, entry.NewCost.Equal(decimal.RequireFromString("9.99")))
	assert.Equal(t, domain.SyncStatusPending, entry.Status)

	status, env = do(t, router, http.MethodGet, "/api/changes?synced=false", "")
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, env.Count)
	assert.Equal(t, 1, *env.Count)

	status, env = do(t, router, http.MethodGet, "/api/products/42", "")
	require.Equal(t, http.StatusOK, status)
	var product domain.Product
	require.NoError(t, json.Unmarshal(env.Data, &product))
	assert.True(t, product.Cost.Equal(decimal.RequireFromString("9.99")))
}

func TestEditProductCostAcceptsNumber(t *testing.T) {
	store := memory.New()
	seedCatalog(t, store)

	status, _ := do(t, newRouter(store, &stubEngine{}), http.MethodPut, "/api/products/42/cost", `{"new_cost":12.5}`)
	assert.Equal(t, http.StatusOK, status)
}

func TestEditProductCostRejectsNegative(t *testing.T) {
	store := memory.New()
	seedCatalog(t, store)
	router := newRouter(store, &stubEngine{})

	status, env := do(t, router, http.MethodPut, "/api/products/42/cost", `{"new_cost":"-1.00"}`)
	require.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(domain.KindValidation), env.Error.Code)
	assert.Contains(t, env.Error.Details, "validation_errors")

	_, env = do(t, router, http.MethodGet, "/api/changes", "")
	assert.Equal(t, 0, *env.Count)
}

func TestEditProductCostUpperBound(t *testing.T) {
	store := memory.New()
	seedCatalog(t, store)
	router := newRouter(store, &stubEngine{})

	status, _ := do(t, router, http.MethodPut, "/api/products/42/cost", `{"new_cost":"9999999999.99"}`)
	assert.Equal(t, http.StatusOK, status)

	status, env := do(t, router, http.MethodPut, "/api/products/42/cost", `{"new_cost":"10000000000"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(domain.KindValidation), env.Error.Code)

	status, _ = do(t, router, http.MethodPut, "/api/products/category/7/cost", `{"new_cost":10000000000}`)
	assert.Equal(t, http.StatusBadRequest, status)

	_, env = do(t, router, http.MethodGet, "/api/changes", "")
	assert.Equal(t, 1, *env.Count)
}

func TestEditProductCostErrors(t *testing.T) {
	store := memory.New()
	seedCatalog(t, store)
	router := newRouter(store, &stubEngine{})

	cases := []struct {
		path, body string
		status     int
		code       domain.Kind
	}{
		{"/api/products/999/cost", `{"new_cost":"1.00"}`, http.StatusNotFound, domain.KindNotFound},
		{"/api/products/abc/cost", `{"new_cost":"1.00"}`, http.StatusBadRequest, domain.KindValidation},
		{"/api/products/42/cost", `{"new_cost":`, http.StatusBadRequest, domain.KindValidation},
		{"/api/products/42/cost", `{}`, http.StatusBadRequest, domain.KindValidation},
		{"/api/products/category/9/cost", `{"new_cost":"1.00"}`, http.StatusNotFound, domain.KindNotFound},
	}

	for _, tc := range cases {
		status, env := do(t, router, http.MethodPut, tc.path, tc.body)
		assert.Equal(t, tc.status, status, tc.path+" "+tc.body)
		require.NotNil(t, env.Error, tc.path)
		assert.Equal(t, string(tc.code), env.Error.Code, tc.path+" "+tc.body)
	}
}

func TestEditCategoryCostFansOut(t *testing.T) {
	store := memory.New()
	seedCatalog(t, store)
	router := newRouter(store, &stubEngine{})

	status, env := do(t, router, http.MethodPut, "/api/products/category/7/cost", `{"new_cost":"12.50"}`)
	require.Equal(t, http.StatusOK, status)

	var result domain.BulkEditResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, int64(3), result.Affected)
	assert.Len(t, result.Entries, 3)

	_, env = do(t, router, http.MethodGet, "/api/changes?category_id=7", "")
	assert.Equal(t, 3, *env.Count)

	_, env = do(t, router, http.MethodGet, "/api/products/category/8", "")
	var products []domain.Product
	require.NoError(t, json.Unmarshal(env.Data, &products))
	require.Len(t, products, 1)
	assert.True(t, products[0].Cost.Equal(decimal.RequireFromString("7")))
}

func TestCategoryReads(t *testing.T) {
	store := memory.New()
	seedCatalog(t, store)
	router := newRouter(store, &stubEngine{})

	status, env := do(t, router, http.MethodGet, "/api/categories/with-counts", "")
	require.Equal(t, http.StatusOK, status)

	var counts []domain.CategoryWithCount
	require.NoError(t, json.Unmarshal(env.Data, &counts))
	byID := map[int64]int64{}
	for _, c := range counts {
		byID[c.ExternalID] = c.ProductCount
	}
	assert.Equal(t, map[int64]int64{7: 3, 8: 1, 9: 0}, byID)

	status, _ = do(t, router, http.MethodGet, "/api/categories/8", "")
	assert.Equal(t, http.StatusOK, status)

	status, env = do(t, router, http.MethodGet, "/api/categories/404", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, string(domain.KindNotFound), env.Error.Code)

	_, env = do(t, router, http.MethodGet, "/api/products?category_id=7", "")
	assert.Equal(t, 3, *env.Count)
}

func TestListChangesRejectsBadFilters(t *testing.T) {
	router := newRouter(memory.New(), &stubEngine{})

	for _, path := range []string{"/api/changes?synced=maybe", "/api/changes?category_id=-4", "/api/products?category_id=x"} {
		status, env := do(t, router, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, status, path)
		assert.Equal(t, string(domain.KindValidation), env.Error.Code, path)
	}
}

func TestPendingSyncListsOldestFirst(t *testing.T) {
	store := memory.New()
	seedCatalog(t, store)
	router := newRouter(store, &stubEngine{})

	do(t, router, http.MethodPut, "/api/products/1/cost", `{"new_cost":"1.00"}`)
	do(t, router, http.MethodPut, "/api/products/2/cost", `{"new_cost":"2.00"}`)

	_, env := do(t, router, http.MethodGet, "/api/changes/pending-sync", "")
	var entries []domain.LedgerEntry
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].ProductID)
	assert.Equal(t, int64(2), entries[1].ProductID)
}
