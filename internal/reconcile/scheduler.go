package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"catalog-mirror/internal/domain"

	"go.uber.org/zap"
)

// Scheduler runs pulls and pushes on independent tickers until stopped.
type Scheduler struct {
	engine       *Engine
	pullInterval time.Duration
	pushInterval time.Duration
	logger       *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler. A zero interval disables that flow.
func NewScheduler(engine *Engine, pullInterval, pushInterval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		engine:       engine,
		pullInterval: pullInterval,
		pushInterval: pushInterval,
		logger:       logger,
	}
}

// Start launches the tickers in the background.
func (s *Scheduler) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel

	if s.pullInterval > 0 {
		s.wg.Add(1)
		go s.loop(ctx, "inbound", s.pullInterval, func(ctx context.Context) error {
			_, err := s.engine.Pull(ctx)
			return err
		})
	}

	if s.pushInterval > 0 {
		s.wg.Add(1)
		go s.loop(ctx, "outbound", s.pushInterval, func(ctx context.Context) error {
			_, err := s.engine.Push(ctx)
			return err
		})
	}

	s.logger.Info("Sync scheduler started",
		zap.Duration("pull_interval", s.pullInterval),
		zap.Duration("push_interval", s.pushInterval),
	)
}

// Stop cancels the tickers and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, flow string, interval time.Duration, run func(context.Context) error) {
	defer s.wg.Done()

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			err := run(ctx)
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrSyncInProgress):
				s.logger.Debug("Scheduled sync skipped, previous run still active", zap.String("flow", flow))
			case errors.Is(err, domain.ErrConfig):
				s.logger.Warn("Scheduled sync skipped, remote not configured", zap.String("flow", flow), zap.Error(err))
			default:
				s.logger.Error("Scheduled sync failed", zap.String("flow", flow), zap.Error(err))
			}
		}
	}
}
