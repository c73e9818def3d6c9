package monitoring

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// JobFunc is a scheduled job.
type JobFunc func(ctx context.Context) error

// Scheduler runs named jobs on cron schedules. A job still running when
// its next tick arrives is skipped.
//
// Schedules use standard five-field cron syntax or descriptors:
//   - "@every 5m"   - every five minutes
//   - "0 3 * * *"   - daily at 3 AM
//   - "0 */6 * * *" - every 6 hours
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	mu      sync.Mutex
	entries map[string]cron.EntryID
	running bool
}

// NewScheduler creates an idle scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  logger.With("component", "monitoring.scheduler"),
		entries: make(map[string]cron.EntryID),
	}
}

// AddJob registers fn under name. An empty schedule disables the job.
// Jobs run with ctx, which should outlive the scheduler.
func (s *Scheduler) AddJob(ctx context.Context, name, schedule string, fn JobFunc) error {
	if schedule == "" {
		s.logger.Info("job schedule not configured, skipping", "job", name)
		return nil
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q for job %s: %w", schedule, name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.entries[name]; dup {
		return fmt.Errorf("job %s already scheduled", name)
	}

	id, err := s.cron.AddFunc(schedule, func() { s.run(ctx, name, fn) })
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}
	s.entries[name] = id
	s.logger.Info("job scheduled", "job", name, "schedule", schedule)
	return nil
}

func (s *Scheduler) run(ctx context.Context, name string, fn JobFunc) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := fn(ctx); err != nil {
		s.logger.Error("scheduled job failed",
			"job", name,
			"error", err,
		)
		return
	}
	s.logger.Debug("scheduled job completed",
		"job", name,
		"duration", time.Since(start),
	)
}

// RunNow runs the named job synchronously.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not found", name)
	}
	s.cron.Entry(id).Job.Run()
	return nil
}

// Start starts the scheduler. It stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || len(s.entries) == 0 {
		return
	}
	s.cron.Start()
	s.running = true
	s.logger.Info("scheduler started", "jobs", len(s.entries))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		done := s.cron.Stop()
		<-done.Done()
		s.running = false
		s.logger.Info("scheduler stopped")
	}
}

// IsRunning reports whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next run time of the named job.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	running := s.running
	s.mu.Unlock()
	if !ok || !running {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}
