package service

import (
	"context"
	"time"

	"fleetshare/pkg/config"
	"fleetshare/pkg/logger"
)

// Sweeper expires overdue checkpoints on a fixed interval. Lazy expiry on
// read keeps API responses correct between sweeps; the sweeper settles
// tokens nobody ever looks at again.
type Sweeper struct {
	service  CheckpointService
	interval time.Duration
	log      *logger.Logger
}

func NewSweeper(service CheckpointService, cfg *config.Config) *Sweeper {
	return &Sweeper{
		service:  service,
		interval: cfg.CheckpointSweepEvery,
		log:      cfg.Log,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info("Checkpoint sweeper started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Checkpoint sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.service.ExpireDue(ctx); err != nil {
				s.log.Error("Checkpoint sweep failed", "error", err)
			}
		}
	}
}
