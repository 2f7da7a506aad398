package ratelimit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eternisai/voice-server/internal/logger"
	"github.com/robfig/cron/v3"
)

// Sweeper evicts expired clients from a Limiter on a cron schedule.
type Sweeper struct {
	limiter *Limiter
	cron    *cron.Cron
	logger  *logger.Logger
	// onSweep is called with the number of tracked clients after each sweep.
	onSweep func(remaining int)
}

// NewSweeper schedules limiter sweeps. Schedule accepts the robfig/cron syntax
// including descriptors such as "@every 5m".
func NewSweeper(limiter *Limiter, schedule string, logger *logger.Logger, onSweep func(remaining int)) (*Sweeper, error) {
	s := &Sweeper{
		limiter: limiter,
		cron:    cron.New(),
		logger:  logger.WithComponent("ratelimit-sweeper"),
		onSweep: onSweep,
	}

	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	return s, nil
}

func (s *Sweeper) sweep() {
	removed := s.limiter.Sweep()
	remaining := s.limiter.Len()

	if removed > 0 {
		s.logger.Debug("evicted expired rate limit records",
			slog.Int("removed", removed),
			slog.Int("remaining", remaining))
	}

	if s.onSweep != nil {
		s.onSweep(remaining)
	}
}

// Start runs the schedule in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish or ctx to expire.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
