package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/entitlekit/pkg/logger"
	"github.com/dmitrymomot/entitlekit/pkg/metrics"
)

// DefaultCheckInterval is how often the scheduler looks for due jobs.
const DefaultCheckInterval = 30 * time.Second

// Func is the body of a periodic job. now is the time the run started.
type Func func(ctx context.Context, now time.Time) error

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithCheckInterval sets how often due jobs are looked up.
func WithCheckInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMetrics records job runs.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// Scheduler runs registered jobs in-process on their schedules.
// A job never overlaps with itself; a run that is still in progress when the
// job becomes due again is skipped.
type Scheduler struct {
	mu       sync.Mutex
	jobs     map[string]*job
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	wg       sync.WaitGroup
}

type job struct {
	name     string
	schedule Schedule
	fn       Func
	next     time.Time
	running  bool
}

// NewScheduler creates an empty scheduler.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs:     make(map[string]*job),
		interval: DefaultCheckInterval,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("scheduler"))
	return s
}

// Add registers a periodic job. Its first run is the schedule's next
// occurrence after registration.
func (s *Scheduler) Add(name string, schedule Schedule, fn Func) error {
	if name == "" || schedule == nil || fn == nil {
		return ErrInvalidJob
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyRegistered, name)
	}

	j := &job{name: name, schedule: schedule, fn: fn, next: schedule.Next(s.now())}
	s.jobs[name] = j

	s.logger.Info("registered periodic job",
		logger.Job(name),
		slog.String("schedule", schedule.String()),
		slog.Time("next_run", j.next))
	return nil
}

// Remove unregisters a job. A run in progress is not interrupted.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, name)
}

// List returns the registered job names in sorted order.
func (s *Scheduler) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NextRun returns the next scheduled run of a job.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[name]
	if !ok {
		return time.Time{}, false
	}
	return j.next, true
}

// Start checks for due jobs until ctx is cancelled, then waits for running
// jobs to return. Jobs receive a context that is not cancelled on shutdown
// so that a tenant page is never left half processed.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	count := len(s.jobs)
	s.mu.Unlock()
	if count == 0 {
		return ErrNoJobs
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.check(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler shutting down")
			s.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

// RunNow runs a job synchronously, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.run(ctx, j, s.now())
}

func (s *Scheduler) check(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.jobs {
		if now.Before(j.next) {
			continue
		}
		j.next = j.schedule.Next(now)

		if j.running {
			s.logger.Warn("skipping periodic job, previous run still in progress", logger.Job(j.name))
			s.metrics.JobRun(j.name, "skipped")
			continue
		}
		j.running = true

		s.wg.Add(1)
		go func(j *job) {
			defer s.wg.Done()
			_ = s.run(context.WithoutCancel(ctx), j, now)

			s.mu.Lock()
			j.running = false
			s.mu.Unlock()
		}(j)
	}
}

func (s *Scheduler) run(ctx context.Context, j *job, now time.Time) (err error) {
	start := time.Now()
	log := s.logger.With(logger.Job(j.name))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.name, r)
		}
		if err != nil {
			s.metrics.JobRun(j.name, "failed")
			log.ErrorContext(ctx, "periodic job failed", logger.Error(err), logger.Duration(time.Since(start)))
			return
		}
		s.metrics.JobRun(j.name, "succeeded")
		log.InfoContext(ctx, "periodic job finished", logger.Duration(time.Since(start)))
	}()

	return j.fn(ctx, now)
}
