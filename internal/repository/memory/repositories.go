package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"catalog-mirror/internal/domain"

	"github.com/shopspring/decimal"
)

type productRepo struct{ b *binding }

func (r *productRepo) Upsert(_ context.Context, p *domain.Product) (domain.UpsertOutcome, error) {
	if p.ExternalID <= 0 || strings.TrimSpace(p.Name) == "" {
		return domain.UpsertUnchanged, domain.NewStoreWriteError("upsert", "product",
			fmt.Errorf("external id and name are required (external_id=%d)", p.ExternalID))
	}
	if p.Cost.IsNegative() {
		return domain.UpsertUnchanged, domain.NewStoreWriteError("upsert", "product",
			fmt.Errorf("cost must be non-negative"))
	}
	if err := r.b.store.upsertHook(p.ExternalID); err != nil {
		return domain.UpsertUnchanged, err
	}

	outcome := domain.UpsertUnchanged
	err := r.b.run(func(st *state) error {
		next := *p
		next.Cost = storedCost(p.Cost)

		current, ok := st.products[p.ExternalID]
		switch {
		case !ok:
			outcome = domain.UpsertInserted
		case current.Code != next.Code || current.Name != next.Name ||
			!sameInt64(current.CategoryID, next.CategoryID) ||
			!sameString(current.CategoryName, next.CategoryName) ||
			!current.Cost.Equal(next.Cost):
			outcome = domain.UpsertUpdated
		default:
			return nil
		}
		st.products[p.ExternalID] = next
		return nil
	})
	return outcome, err
}

func (r *productRepo) SetCost(_ context.Context, externalID int64, cost decimal.Decimal, at time.Time) error {
	return r.b.run(func(st *state) error {
		p, ok := st.products[externalID]
		if !ok {
			return domain.NewNotFoundError("product", externalID)
		}
		p.Cost = storedCost(cost)
		p.LastUpdated = at
		st.products[externalID] = p
		return nil
	})
}

func (r *productRepo) SetCostForCategory(_ context.Context, categoryID int64, cost decimal.Decimal, at time.Time) (int64, error) {
	var affected int64
	err := r.b.run(func(st *state) error {
		for id, p := range st.products {
			if p.CategoryID != nil && *p.CategoryID == categoryID {
				p.Cost = storedCost(cost)
				p.LastUpdated = at
				st.products[id] = p
				affected++
			}
		}
		return nil
	})
	return affected, err
}

func (r *productRepo) FindByExternalID(_ context.Context, externalID int64) (*domain.Product, error) {
	var out *domain.Product
	err := r.b.run(func(st *state) error {
		p, ok := st.products[externalID]
		if !ok {
			return domain.NewNotFoundError("product", externalID)
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *productRepo) FindByExternalIDForUpdate(ctx context.Context, externalID int64) (*domain.Product, error) {
	return r.FindByExternalID(ctx, externalID)
}

func (r *productRepo) List(_ context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	out := []*domain.Product{}
	err := r.b.run(func(st *state) error {
		for _, p := range st.products {
			if filter.CategoryID != nil && (p.CategoryID == nil || *p.CategoryID != *filter.CategoryID) {
				continue
			}
			p := p
			out = append(out, &p)
		}
		return nil
	})
	sortProducts(out)
	return out, err
}

func (r *productRepo) ListByCategoryForUpdate(ctx context.Context, categoryID int64) ([]*domain.Product, error) {
	return r.List(ctx, domain.ProductFilter{CategoryID: &categoryID})
}

type categoryRepo struct{ b *binding }

func (r *categoryRepo) Upsert(_ context.Context, c *domain.Category) (domain.UpsertOutcome, error) {
	if c.ExternalID <= 0 || strings.TrimSpace(c.Name) == "" {
		return domain.UpsertUnchanged, domain.NewStoreWriteError("upsert", "category",
			fmt.Errorf("external id and name are required (external_id=%d)", c.ExternalID))
	}

	outcome := domain.UpsertUnchanged
	err := r.b.run(func(st *state) error {
		current, ok := st.categories[c.ExternalID]
		switch {
		case !ok:
			outcome = domain.UpsertInserted
		case current.Name != c.Name || !sameInt64(current.ParentID, c.ParentID):
			outcome = domain.UpsertUpdated
		default:
			return nil
		}
		st.categories[c.ExternalID] = *c
		return nil
	})
	return outcome, err
}

func (r *categoryRepo) FindByExternalID(_ context.Context, externalID int64) (*domain.Category, error) {
	var out *domain.Category
	err := r.b.run(func(st *state) error {
		c, ok := st.categories[externalID]
		if !ok {
			return domain.NewNotFoundError("category", externalID)
		}
		out = &c
		return nil
	})
	return out, err
}

func (r *categoryRepo) List(_ context.Context) ([]*domain.Category, error) {
	out := []*domain.Category{}
	err := r.b.run(func(st *state) error {
		for _, c := range st.categories {
			c := c
			out = append(out, &c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ExternalID < out[j].ExternalID
	})
	return out, err
}

func (r *categoryRepo) ListWithProductCounts(ctx context.Context) ([]*domain.CategoryWithCount, error) {
	categories, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	counts := map[int64]int64{}
	err = r.b.run(func(st *state) error {
		for _, p := range st.products {
			if p.CategoryID != nil {
				counts[*p.CategoryID]++
			}
		}
		return nil
	})

	out := make([]*domain.CategoryWithCount, 0, len(categories))
	for _, c := range categories {
		out = append(out, &domain.CategoryWithCount{Category: *c, ProductCount: counts[c.ExternalID]})
	}
	return out, err
}

type ledgerRepo struct{ b *binding }

func (r *ledgerRepo) Append(_ context.Context, entry *domain.LedgerEntry) (int64, error) {
	if err := r.b.store.appendHook(); err != nil {
		return 0, err
	}

	var id int64
	err := r.b.run(func(st *state) error {
		id = st.nextLedgerID
		st.nextLedgerID++

		stored := *entry
		stored.ID = id
		stored.Status = domain.SyncStatusPending
		stored.SyncedAt = nil
		stored.NewCost = storedCost(entry.NewCost)
		stored.CurrentCost = decimal.NullDecimal{}
		st.ledger = append(st.ledger, stored)
		return nil
	})
	if err != nil {
		return 0, err
	}

	entry.ID = id
	entry.Status = domain.SyncStatusPending
	entry.SyncedAt = nil
	return id, nil
}

func (r *ledgerRepo) List(_ context.Context, filter domain.LedgerFilter) ([]*domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	err := r.b.run(func(st *state) error {
		for _, e := range st.ledger {
			if filter.Status != nil && e.Status != *filter.Status {
				continue
			}
			if filter.CategoryID != nil && (e.CategoryID == nil || *e.CategoryID != *filter.CategoryID) {
				continue
			}
			if p, ok := st.products[e.ProductID]; ok {
				e.CurrentCost = decimal.NewNullDecimal(p.Cost)
			}
			out = append(out, e)
		}
		return nil
	})

	sort.Slice(out, func(i, j int) bool {
		if filter.Order == domain.OldestFirst {
			return byCreated(out[i], out[j])
		}
		return byCreated(out[j], out[i])
	})

	entries := make([]*domain.LedgerEntry, len(out))
	for i := range out {
		entries[i] = &out[i]
	}
	return entries, err
}

func (r *ledgerRepo) MarkSynced(_ context.Context, ids []int64, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if err := r.b.store.markSyncedHook(); err != nil {
		return 0, err
	}

	wanted := make(map[int64]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	var affected int64
	err := r.b.run(func(st *state) error {
		for i := range st.ledger {
			e := &st.ledger[i]
			if wanted[e.ID] && e.Status == domain.SyncStatusPending {
				e.Status = domain.SyncStatusSynced
				e.SyncedAt = timePtr(at)
				affected++
			}
		}
		return nil
	})
	return affected, err
}
