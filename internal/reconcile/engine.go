// Package reconcile moves catalog data between the remote system-of-record
// and the local store: pulls overwrite local rows with remote ones, pushes
// send pending ledger entries back.
package reconcile

import (
	"context"
	"sync/atomic"
	"time"

	"catalog-mirror/internal/clock"
	"catalog-mirror/internal/domain"
	"catalog-mirror/internal/remote"
	"catalog-mirror/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RemoteCatalog is the part of the remote client the engine depends on.
type RemoteCatalog interface {
	CheckConfig() error
	FetchCategories(ctx context.Context) ([]remote.CategoryRecord, error)
	FetchProducts(ctx context.Context, limit, offset int) ([]remote.ProductRecord, error)
	PushCost(ctx context.Context, productID int64, cost decimal.Decimal) error
	CountCategories(ctx context.Context) (int64, error)
}

// Options tunes paging, push fan-out and retries.
type Options struct {
	PageSize        int
	PushConcurrency int
	MaxRetries      int
	RetryBase       time.Duration
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = 1000
	}
	if o.PushConcurrency <= 0 {
		o.PushConcurrency = 8
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 200 * time.Millisecond
	}
	return o
}

// Engine runs inbound and outbound syncs. Runs of the same flow never
// overlap within a process; a second caller gets ErrSyncInProgress.
type Engine struct {
	remote RemoteCatalog
	repos  repository.Repositories
	uow    repository.UnitOfWork
	clock  clock.Clock
	logger *zap.Logger
	opts   Options

	pulling atomic.Bool
	pushing atomic.Bool
}

// NewEngine wires an engine. repos is used for single-statement writes and
// reads, uow for marking pushed entries.
func NewEngine(rc RemoteCatalog, repos repository.Repositories, uow repository.UnitOfWork, clk clock.Clock, logger *zap.Logger, opts Options) *Engine {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		remote: rc,
		repos:  repos,
		uow:    uow,
		clock:  clk,
		logger: logger,
		opts:   opts.withDefaults(),
	}
}

// ConnectionStatus is the result of a reachability probe.
type ConnectionStatus struct {
	Connected  bool  `json:"connected"`
	Categories int64 `json:"categories"`
}

// CheckConnection performs one authenticated call against the remote.
func (e *Engine) CheckConnection(ctx context.Context) (*ConnectionStatus, error) {
	n, err := e.remote.CountCategories(ctx)
	if err != nil {
		e.logger.Warn("Remote connection check failed", zap.Error(err))
		return &ConnectionStatus{Connected: false}, err
	}
	return &ConnectionStatus{Connected: true, Categories: n}, nil
}

func acquire(flag *atomic.Bool, flow string) (func(), error) {
	if !flag.CompareAndSwap(false, true) {
		return nil, &syncInProgressError{flow: flow}
	}
	return func() { flag.Store(false) }, nil
}

type syncInProgressError struct {
	flow string
}

func (e *syncInProgressError) Error() string {
	return e.flow + " sync already in progress"
}

func (e *syncInProgressError) Is(target error) bool { return target == domain.ErrSyncInProgress }
