package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"invoria/internal/services"
	"invoria/pkg/logger"
)

const defaultSweepSpec = "@every 1h"

// Sweeper periodically transitions overdue invites to the expired status so
// expiry is observable even when nobody validates the token.
type Sweeper struct {
	invites  *services.InviteService
	cron     *cron.Cron
	schedule string
	log      *zap.Logger
}

// Option customises the Sweeper.
type Option func(*Sweeper)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Sweeper) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithSchedule overrides the cron expression for the expiry sweep.
func WithSchedule(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.schedule = spec
		}
	}
}

// NewSweeper constructs a Sweeper with an hourly default schedule.
func NewSweeper(invites *services.InviteService, opts ...Option) *Sweeper {
	sweeper := &Sweeper{
		invites:  invites,
		cron:     cron.New(),
		schedule: defaultSweepSpec,
		log:      logger.WithModule("maintenance"),
	}
	for _, opt := range opts {
		opt(sweeper)
	}
	return sweeper
}

// Start registers the sweep job and launches the scheduler.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.RunOnce(context.Background())
	}); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler and returns a context that completes once running
// jobs have drained.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce performs a single expiry sweep immediately.
func (s *Sweeper) RunOnce(ctx context.Context) {
	start := time.Now()
	count, err := s.invites.SweepExpired(ctx)
	if err != nil {
		s.log.Error("invite expiry sweep failed", zap.Error(err))
		return
	}
	if count > 0 {
		s.log.Info("invite expiry sweep complete",
			zap.Int64("expired", count),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
