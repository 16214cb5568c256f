package reconcile

import (
	"context"
	"fmt"
	"time"

	"catalog-mirror/internal/domain"
	"catalog-mirror/internal/remote"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UpsertCounts summarizes what a pull did to one kind of record.
type UpsertCounts struct {
	Fetched   int `json:"fetched"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

func (c *UpsertCounts) add(o domain.UpsertOutcome) {
	switch o {
	case domain.UpsertInserted:
		c.Inserted++
	case domain.UpsertUpdated:
		c.Updated++
	default:
		c.Unchanged++
	}
}

// Written is the number of records that reached the store.
func (c *UpsertCounts) Written() int {
	return c.Inserted + c.Updated + c.Unchanged
}

// PullReport describes one inbound run. On partial failure it holds the
// counts applied before the failing record.
type PullReport struct {
	RunID      uuid.UUID     `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Categories *UpsertCounts `json:"categories,omitempty"`
	Products   *UpsertCounts `json:"products,omitempty"`
}

// PullCategories replaces local categories with the remote ones.
func (e *Engine) PullCategories(ctx context.Context) (*PullReport, error) {
	return e.runPull(ctx, true, false)
}

// PullProducts replaces local products with the remote ones.
func (e *Engine) PullProducts(ctx context.Context) (*PullReport, error) {
	return e.runPull(ctx, false, true)
}

// Pull runs categories then products.
func (e *Engine) Pull(ctx context.Context) (*PullReport, error) {
	return e.runPull(ctx, true, true)
}

func (e *Engine) runPull(ctx context.Context, categories, products bool) (*PullReport, error) {
	if err := e.remote.CheckConfig(); err != nil {
		return nil, err
	}

	release, err := acquire(&e.pulling, "inbound")
	if err != nil {
		return nil, err
	}
	defer release()

	report := &PullReport{RunID: uuid.New(), StartedAt: e.clock.Now()}
	logger := e.logger.With(zap.String("run_id", report.RunID.String()))
	logger.Info("Inbound sync started", zap.Bool("categories", categories), zap.Bool("products", products))

	finish := func(err error) (*PullReport, error) {
		report.FinishedAt = e.clock.Now()
		if err != nil {
			logger.Error("Inbound sync failed", zap.Error(err), zap.Any("report", report))
			return report, err
		}
		logger.Info("Inbound sync completed", zap.Any("report", report))
		return report, nil
	}

	if categories {
		report.Categories = &UpsertCounts{}
		if err := e.pullCategories(ctx, report.Categories); err != nil {
			return finish(err)
		}
	}

	if products {
		report.Products = &UpsertCounts{}
		if err := e.pullProducts(ctx, report.Products); err != nil {
			return finish(err)
		}
	}

	return finish(nil)
}

func (e *Engine) pullCategories(ctx context.Context, counts *UpsertCounts) error {
	records, err := e.remote.FetchCategories(ctx)
	if err != nil {
		return err
	}
	counts.Fetched = len(records)

	now := e.clock.Now()
	for _, record := range records {
		outcome, err := e.repos.Categories.Upsert(ctx, record.Category(now))
		if err != nil {
			return fmt.Errorf("category %d: %w", record.ID, err)
		}
		counts.add(outcome)
	}
	return nil
}

// pullProducts reads every page before writing anything, so a remote
// failure leaves the store as it was.
func (e *Engine) pullProducts(ctx context.Context, counts *UpsertCounts) error {
	var records []remote.ProductRecord
	for offset := 0; ; offset += e.opts.PageSize {
		page, err := e.remote.FetchProducts(ctx, e.opts.PageSize, offset)
		if err != nil {
			return err
		}
		records = append(records, page...)
		if len(page) < e.opts.PageSize {
			break
		}
	}
	counts.Fetched = len(records)

	now := e.clock.Now()
	for _, record := range records {
		outcome, err := e.repos.Products.Upsert(ctx, record.Product(now))
		if err != nil {
			return fmt.Errorf("product %d: %w", record.ID, err)
		}
		counts.add(outcome)
	}
	return nil
}
