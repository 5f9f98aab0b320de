package usecase

import (
	"context"
	"log/slog"
	"time"

	"FinanceFlow/internal/logging"
	"FinanceFlow/internal/ports"
)

// Scheduler wires the interval driver with the working-set refresh.
type Scheduler struct {
	driver ports.Scheduler
	cache  *WorkingSetCache
	logger *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring refreshes.
func NewScheduler(driver ports.Scheduler, cache *WorkingSetCache, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, cache: cache, logger: logging.OrNop(logger)}
}

// Start registers the refresh job with the provided driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.cache == nil {
		return nil
	}

	job := func(trigger time.Time) {
		set, err := s.cache.Refresh(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "scheduled refresh failed", "trigger", trigger, "error", err)
			return
		}
		s.logger.DebugContext(ctx, "scheduled refresh done", "trigger", trigger, "items", len(set.Items))
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
