package marketdata

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RefreshTask is one named refresh operation driven by the scheduler.
type RefreshTask struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler refreshes market data on a fixed interval independent of
// request traffic, so the caches stay warm through quiet periods.
type Scheduler struct {
	interval time.Duration
	tasks    []RefreshTask
	logger   *zap.Logger
}

// NewScheduler constructs a Scheduler over the provided tasks.
func NewScheduler(interval time.Duration, logger *zap.Logger, tasks ...RefreshTask) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		interval: interval,
		tasks:    tasks,
		logger:   logger,
	}
}

// Start runs the refresh loop until ctx is cancelled. The first pass runs
// immediately so a cold deployment warms up without waiting one interval.
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 || len(s.tasks) == 0 {
		return
	}

	go func() {
		s.runAll(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runAll(ctx)
			}
		}
	}()
}

func (s *Scheduler) runAll(ctx context.Context) {
	for _, task := range s.tasks {
		if ctx.Err() != nil {
			return
		}
		start := time.Now()
		if err := task.Run(ctx); err != nil {
			s.logger.Warn("scheduled market data refresh failed",
				zap.String("task", task.Name),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err),
			)
			continue
		}
		s.logger.Info("scheduled market data refresh completed",
			zap.String("task", task.Name),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
