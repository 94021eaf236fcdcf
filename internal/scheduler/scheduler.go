// Package scheduler runs the periodic sweeps. Every job is wrapped with
// panic recovery and structured logging; one failing sweep never takes the
// process down.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/NUS-Fintech-Society/BC2425-Token-Scanner/internal/telemetry"
)

// Job is one periodic sweep.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler drives registered jobs on their intervals.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
}

// New creates a stopped scheduler. Jobs run against the given context; when
// it is cancelled, running sweeps are expected to wind down.
func New(ctx context.Context) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		ctx:  ctx,
	}
}

// Register adds a job. The wrapper isolates panics and records failures.
func (s *Scheduler) Register(job Job) error {
	if job.Interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name)
	}

	spec := fmt.Sprintf("@every %ds", int(job.Interval.Seconds()))
	_, err := s.cron.AddFunc(spec, func() {
		defer func() {
			if r := recover(); r != nil {
				telemetry.SweepItemFailures.WithLabelValues(job.Name).Inc()
				log.Error().Str("job", job.Name).Interface("panic", r).
					Msg("Sweep panicked")
			}
		}()

		start := time.Now()
		if err := job.Run(s.ctx); err != nil {
			log.Warn().Str("job", job.Name).Err(err).
				Dur("elapsed", time.Since(start)).Msg("Sweep failed")
			return
		}
		log.Debug().Str("job", job.Name).
			Dur("elapsed", time.Since(start)).Msg("Sweep complete")
	})
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", job.Name, err)
	}

	log.Info().Str("job", job.Name).Dur("interval", job.Interval).Msg("Job registered")
	return nil
}

// Start begins running jobs on their schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
