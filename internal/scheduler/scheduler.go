// Package scheduler runs registered jobs on interval and calendar cadences.
//
// The dispatch loop is owned by this package rather than delegated to a
// cron runner: overlap prevention, misfire accounting and cooperative
// shutdown are the interesting behavior here, and they need direct control
// over job state. Calendar expressions are still parsed with robfig/cron.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"coinfetch/internal/observability/logging"
	"coinfetch/internal/observability/tracing"
)

var (
	// ErrUnknownJob is returned by RunOnce for an unregistered job id.
	ErrUnknownJob = errors.New("unknown job")

	// ErrJobRunning is returned by RunOnce when the job is mid-execution.
	ErrJobRunning = errors.New("job is already running")

	// ErrAlreadyStarted is returned by Start when the loop is active.
	ErrAlreadyStarted = errors.New("scheduler already started")
)

// Handler is a job body. It should honor ctx cancellation at its own
// blocking points; the scheduler never forcibly kills a running handler.
type Handler func(ctx context.Context)

// Config holds scheduler tuning.
type Config struct {
	// Workers bounds concurrent job executions. Default: 2.
	Workers int

	// Tick is the dispatch loop resolution. Default: 1 second.
	Tick time.Duration

	// ShutdownGrace is the hard upper bound Stop waits for running jobs.
	// Default: 30 seconds.
	ShutdownGrace time.Duration
}

// job is the per-job state machine: Idle <-> Running.
type job struct {
	id         string
	name       string
	cadence    Cadence
	handler    Handler
	running    bool
	nextFireAt time.Time
	runs       uint64
	misfires   uint64
}

// JobStatus is a snapshot of one job's state.
type JobStatus struct {
	ID         string
	Name       string
	Cadence    string
	Running    bool
	NextFireAt time.Time
	Runs       uint64
	Misfires   uint64
}

// Scheduler dispatches jobs on their cadences with at most one concurrent
// execution per job. Safe for concurrent use.
type Scheduler struct {
	cfg Config

	mu      sync.Mutex
	jobs    map[string]*job
	order   []string
	started bool
	stopped bool
	stopCh  chan struct{}

	workers *semaphore.Weighted
	wg      sync.WaitGroup

	now func() time.Time
}

// New creates a scheduler, applying defaults for zero-valued config.
func New(cfg Config) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 30 * time.Second
	}
	return &Scheduler{
		cfg:     cfg,
		jobs:    make(map[string]*job),
		stopCh:  make(chan struct{}),
		workers: semaphore.NewWeighted(int64(cfg.Workers)),
		now:     time.Now,
	}
}

// AddJob registers a job. Re-registering an id replaces the prior
// definition and reschedules its next activation.
func (s *Scheduler) AddJob(id, name string, cadence Cadence, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; !exists {
		s.order = append(s.order, id)
	}
	s.jobs[id] = &job{
		id:         id,
		name:       name,
		cadence:    cadence,
		handler:    handler,
		nextFireAt: cadence.Next(s.now()),
	}
	slog.Info("registered job",
		slog.String("job_id", id),
		slog.String("name", name),
		slog.String("cadence", cadence.String()))
}

// Start runs the dispatch loop, blocking until Stop is called or ctx is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	slog.Info("scheduler started", slog.Int("workers", s.cfg.Workers))
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return nil
		case <-ctx.Done():
			s.Stop()
			return ctx.Err()
		case <-ticker.C:
			s.dispatchDue(ctx)
		}
	}
}

// dispatchDue fires every job whose activation time has passed. A due job
// that is still running is a misfire: counted, logged, and rescheduled
// without launching a second execution. A due job blocked only by pool
// exhaustion stays due and is retried next tick.
func (s *Scheduler) dispatchDue(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		j := s.jobs[id]
		if now.Before(j.nextFireAt) {
			continue
		}

		if j.running {
			j.misfires++
			j.nextFireAt = j.cadence.Next(now)
			slog.Warn("job misfire: previous run still in progress",
				slog.String("job_id", j.id),
				slog.Uint64("misfires", j.misfires),
				slog.Time("next_fire_at", j.nextFireAt))
			continue
		}

		if !s.workers.TryAcquire(1) {
			continue
		}

		j.running = true
		j.nextFireAt = j.cadence.Next(now)
		s.wg.Add(1)
		go func(j *job) {
			defer s.wg.Done()
			defer s.workers.Release(1)
			s.execute(ctx, j)
		}(j)
	}
}

// execute runs one handler invocation with panic isolation and marks the
// job idle afterwards.
func (s *Scheduler) execute(ctx context.Context, j *job) {
	runID := uuid.NewString()
	logger := logging.WithJob(slog.Default(), j.id, runID)
	ctx = logging.WithLogger(ctx, logger)

	ctx, span := tracing.GetTracer().Start(ctx, fmt.Sprintf("job.%s", j.id))
	defer span.End()

	start := s.now()
	logger.Info("job started")

	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
		s.mu.Lock()
		j.running = false
		j.runs++
		s.mu.Unlock()
		logger.Info("job finished", slog.Duration("duration", s.now().Sub(start)))
	}()

	j.handler(ctx)
}

// Stop halts dispatch and waits for in-flight jobs to finish naturally,
// up to the shutdown grace period. Safe to call multiple times and from
// signal handling paths.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stopCh)
	s.mu.Unlock()

	slog.Info("scheduler stopping, waiting for running jobs")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("scheduler stopped")
	case <-time.After(s.cfg.ShutdownGrace):
		slog.Warn("shutdown grace period expired with jobs still running",
			slog.Duration("grace", s.cfg.ShutdownGrace))
	}
}

// RunOnce executes a job synchronously, outside its cadence. It still
// honors the at-most-one-concurrent invariant against scheduled firings.
func (s *Scheduler) RunOnce(ctx context.Context, id string) error {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	if j.running {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobRunning, id)
	}
	j.running = true
	s.mu.Unlock()

	s.execute(ctx, j)
	return nil
}

// Jobs returns a snapshot of every registered job, in registration order.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.order))
	for _, id := range s.order {
		j := s.jobs[id]
		out = append(out, JobStatus{
			ID:         j.id,
			Name:       j.name,
			Cadence:    j.cadence.String(),
			Running:    j.running,
			NextFireAt: j.nextFireAt,
			Runs:       j.runs,
			Misfires:   j.misfires,
		})
	}
	return out
}
