package worker

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Scheduler runs the precompute job on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	job       *PrecomputeJob
	interval  time.Duration
	logger    zerolog.Logger
}

// NewScheduler creates a scheduler for job. Intervals under a minute are
// raised to one minute.
func NewScheduler(job *PrecomputeJob, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval < time.Minute {
		interval = time.Minute
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	return &Scheduler{
		scheduler: s,
		job:       job,
		interval:  interval,
		logger:    logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start schedules the job and starts the scheduler. The first run starts
// immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.job == nil {
		return errors.New("scheduler: no job configured")
	}

	_, err := s.scheduler.Every(s.interval).Do(func() {
		if ctx.Err() != nil {
			return
		}
		s.logger.Debug().Msg("running scheduled precompute")
		s.job.Run(ctx)
	})
	if err != nil {
		return err
	}

	s.logger.Info().Dur("interval", s.interval).Msg("scheduler started")
	s.scheduler.StartAsync()
	return nil
}

// Running reports whether the scheduler is active.
func (s *Scheduler) Running() bool {
	return s.scheduler.IsRunning()
}

// Stop stops the scheduler. Runs in progress are not interrupted.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
