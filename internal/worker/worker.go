package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"connectoralert/internal/logger"
	"connectoralert/internal/metrics"
)

// ErrPanic is returned by a run whose task panicked.
var ErrPanic = errors.New("task panicked")

// Task is one unit of periodic work.
type Task interface {
	Run(ctx context.Context) error
}

// TaskFunc adapts a function to Task.
type TaskFunc func(ctx context.Context) error

func (f TaskFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Config holds scheduler configuration
type Config struct {
	// Name labels logs and metrics.
	Name     string
	Task     Task
	Interval time.Duration
}

// Scheduler runs a task with a fixed delay between the end of one run and
// the start of the next. Runs never overlap, and a failing or panicking run
// does not stop the schedule.
type Scheduler struct {
	name     string
	task     Task
	interval time.Duration

	running atomic.Bool

	// Metrics
	runs     atomic.Uint64
	failures atomic.Uint64
	panics   atomic.Uint64
	lastRun  atomic.Int64
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg Config) (*Scheduler, error) {
	if cfg.Task == nil {
		return nil, errors.New("task is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", cfg.Interval)
	}
	if cfg.Name == "" {
		cfg.Name = "task"
	}

	return &Scheduler{
		name:     cfg.Name,
		task:     cfg.Task,
		interval: cfg.Interval,
	}, nil
}

// Run executes the task immediately, then again interval after each run
// completes, until ctx is cancelled. It returns nil on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("scheduler is already running")
	}
	defer s.running.Store(false)

	log := logger.WithComponent("scheduler").With().Str("task", s.name).Logger()
	log.Info().
		Dur("interval", s.interval).
		Msg("starting scheduler")
	defer log.Info().Msg("scheduler stopped")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-timer.C:
			if err := s.runOnce(ctx); err != nil {
				log.Debug().Err(err).Msg("run failed")
			}
			timer.Reset(s.interval)
		}
	}
}

// runOnce executes the task, converting a panic into ErrPanic.
func (s *Scheduler) runOnce(ctx context.Context) (err error) {
	start := time.Now()
	s.runs.Add(1)
	s.lastRun.Store(start.UnixNano())

	defer func() {
		if r := recover(); r != nil {
			log := logger.WithComponent("scheduler")
			log.Error().
				Str("task", s.name).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("task panic recovered")
			metrics.PanicsRecovered.WithLabelValues("scheduler").Inc()
			s.panics.Add(1)
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
		if err != nil {
			s.failures.Add(1)
		}
		metrics.SchedulerRunDuration.WithLabelValues(s.name).Observe(time.Since(start).Seconds())
	}()

	return s.task.Run(ctx)
}

// Stats returns scheduler statistics
func (s *Scheduler) Stats() Stats {
	st := Stats{
		Runs:     s.runs.Load(),
		Failures: s.failures.Load(),
		Panics:   s.panics.Load(),
	}
	if ns := s.lastRun.Load(); ns != 0 {
		st.LastRun = time.Unix(0, ns).UTC()
	}
	return st
}

// Stats holds scheduler metrics
type Stats struct {
	Runs     uint64    `json:"runs"`
	Failures uint64    `json:"failures"`
	Panics   uint64    `json:"panics"`
	LastRun  time.Time `json:"last_run"`
}
