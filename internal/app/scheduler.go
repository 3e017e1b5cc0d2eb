package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// OrphanSweeper rejects pending requests whose slots are gone.
type OrphanSweeper interface {
	SweepOrphans(ctx context.Context) (int64, error)
}

// Scheduler runs background maintenance tasks.
type Scheduler struct {
	sweeper  OrphanSweeper
	interval time.Duration
	logger   *zap.Logger
}

// NewScheduler creates a scheduler sweeping every interval
func NewScheduler(sweeper OrphanSweeper, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Starting background scheduler", zap.Duration("sweep_interval", s.interval))

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			s.logger.Info("Background scheduler stopped")
			return nil
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	n, err := s.sweeper.SweepOrphans(ctx)
	if err != nil {
		s.logger.Error("Failed to sweep orphaned requests", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("Orphan sweep completed", zap.Int64("rejected", n))
	}
}
