package game

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler fires phase deadlines and reaps stale games. Phase timers
// live in memory, so it runs inside the API process rather than as a
// separate worker.
type Scheduler struct {
	mgr  *Manager
	log  *slog.Logger
	tick time.Duration
	reap time.Duration
}

func NewScheduler(mgr *Manager, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		mgr:  mgr,
		log:  logger,
		tick: time.Second,
		reap: time.Minute,
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	reaper := time.NewTicker(s.reap)
	defer reaper.Stop()

	s.log.Info("scheduler started", "tick_every", s.tick.String())
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler shutdown")
			return
		case now := <-ticker.C:
			if fired := s.mgr.FireDue(ctx, now); fired > 0 {
				s.log.Info("phase deadlines fired", "games", fired)
			}
		case now := <-reaper.C:
			if n := s.mgr.Reap(now); n > 0 {
				s.log.Info("stale games reaped", "games", n)
			}
		}
	}
}
