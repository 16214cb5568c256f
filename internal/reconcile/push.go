package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"catalog-mirror/internal/domain"
	"catalog-mirror/internal/repository"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// EntryFailure is one ledger entry that was not acknowledged by the remote.
type EntryFailure struct {
	EntryID   int64       `json:"entry_id"`
	ProductID int64       `json:"product_id"`
	Kind      domain.Kind `json:"kind"`
	Error     string      `json:"error"`
}

// PushReport describes one outbound run. Only Synced entries were marked;
// Failed and Skipped entries stay pending for the next run.
type PushReport struct {
	RunID      uuid.UUID      `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Attempted  int            `json:"attempted"`
	Synced     []int64        `json:"synced"`
	Failed     []EntryFailure `json:"failed"`
	// Skipped entries follow a failed entry of the same product and were not sent.
	Skipped []int64 `json:"skipped"`
	Marked  int64   `json:"marked"`
}

type pushOutcome struct {
	synced  []int64
	failed  []EntryFailure
	skipped []int64
	errs    []error
}

// Push sends every pending ledger entry to the remote and marks the
// acknowledged ones synced. Entries of one product go out oldest first and
// stop at the first failure; different products are pushed in parallel.
func (e *Engine) Push(ctx context.Context) (*PushReport, error) {
	if err := e.remote.CheckConfig(); err != nil {
		return nil, err
	}

	release, err := acquire(&e.pushing, "outbound")
	if err != nil {
		return nil, err
	}
	defer release()

	report := &PushReport{
		RunID:     uuid.New(),
		StartedAt: e.clock.Now(),
		Synced:    []int64{},
		Failed:    []EntryFailure{},
		Skipped:   []int64{},
	}
	logger := e.logger.With(zap.String("run_id", report.RunID.String()))

	pending, err := e.repos.Ledger.List(ctx, domain.PendingFilter())
	if err != nil {
		return nil, fmt.Errorf("failed to read pending changes: %w", err)
	}

	logger.Info("Outbound sync started", zap.Int("pending", len(pending)))

	var (
		mu  sync.Mutex
		out pushOutcome
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.PushConcurrency)

	for _, chain := range groupByProduct(pending) {
		chain := chain
		g.Go(func() error {
			result := e.pushChain(gctx, logger, chain)

			mu.Lock()
			out.synced = append(out.synced, result.synced...)
			out.failed = append(out.failed, result.failed...)
			out.skipped = append(out.skipped, result.skipped...)
			out.errs = append(out.errs, result.errs...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sortIDs(out.synced)
	sortIDs(out.skipped)
	sort.Slice(out.failed, func(i, j int) bool { return out.failed[i].EntryID < out.failed[j].EntryID })

	report.Attempted = len(out.synced) + len(out.failed)
	report.Synced = append(report.Synced, out.synced...)
	report.Failed = append(report.Failed, out.failed...)
	report.Skipped = append(report.Skipped, out.skipped...)

	if len(out.synced) > 0 {
		at := e.clock.Now()
		err := e.uow.Do(ctx, func(repos repository.Repositories) error {
			marked, err := repos.Ledger.MarkSynced(ctx, out.synced, at)
			report.Marked = marked
			return err
		})
		if err != nil {
			report.Marked = 0
			report.FinishedAt = e.clock.Now()
			logger.Error("Failed to mark pushed changes as synced", zap.Error(err), zap.Int64s("entry_ids", out.synced))
			return report, errors.Join(append([]error{err}, out.errs...)...)
		}
		if report.Marked != int64(len(out.synced)) {
			logger.Warn("Marked fewer entries than were pushed",
				zap.Int("pushed", len(out.synced)),
				zap.Int64("marked", report.Marked),
			)
		}
	}

	report.FinishedAt = e.clock.Now()

	if len(out.errs) > 0 {
		logger.Warn("Outbound sync finished with failures",
			zap.Int("synced", len(report.Synced)),
			zap.Int("failed", len(report.Failed)),
			zap.Int("skipped", len(report.Skipped)),
		)
		return report, errors.Join(out.errs...)
	}

	logger.Info("Outbound sync completed", zap.Int("synced", len(report.Synced)))
	return report, nil
}

func (e *Engine) pushChain(ctx context.Context, logger *zap.Logger, chain []*domain.LedgerEntry) pushOutcome {
	var out pushOutcome
	for i, entry := range chain {
		if err := e.pushEntry(ctx, entry); err != nil {
			logger.Warn("Failed to push change",
				zap.Int64("entry_id", entry.ID),
				zap.Int64("product_id", entry.ProductID),
				zap.Error(err),
			)
			out.failed = append(out.failed, EntryFailure{
				EntryID:   entry.ID,
				ProductID: entry.ProductID,
				Kind:      domain.KindOf(err),
				Error:     err.Error(),
			})
			out.errs = append(out.errs, fmt.Errorf("entry %d (product %d): %w", entry.ID, entry.ProductID, err))
			for _, rest := range chain[i+1:] {
				out.skipped = append(out.skipped, rest.ID)
			}
			return out
		}
		out.synced = append(out.synced, entry.ID)
	}
	return out
}

// pushEntry retries temporary remote failures with exponential backoff.
func (e *Engine) pushEntry(ctx context.Context, entry *domain.LedgerEntry) error {
	backoff := retry.WithMaxRetries(uint64(e.opts.MaxRetries), retry.NewExponential(e.opts.RetryBase))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := e.remote.PushCost(ctx, entry.ProductID, entry.NewCost)
		var remoteErr *domain.RemoteError
		if errors.As(err, &remoteErr) && remoteErr.Temporary {
			return retry.RetryableError(err)
		}
		return err
	})
}

// groupByProduct keeps the oldest-first order inside each product and
// orders products by their oldest pending entry.
func groupByProduct(entries []*domain.LedgerEntry) [][]*domain.LedgerEntry {
	index := map[int64]int{}
	var chains [][]*domain.LedgerEntry
	for _, entry := range entries {
		i, ok := index[entry.ProductID]
		if !ok {
			i = len(chains)
			index[entry.ProductID] = i
			chains = append(chains, nil)
		}
		chains[i] = append(chains[i], entry)
	}
	return chains
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
