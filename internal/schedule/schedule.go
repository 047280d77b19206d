// Package schedule fires the daily sweep at a wall-clock time and makes sure
// at most one sweep runs at a time, whether it was started by the clock or
// by an explicit trigger.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mesh-intelligence/cakeday/internal/metrics"
	"github.com/mesh-intelligence/cakeday/pkg/types"
)

// Job is the work run on each fire.
type Job func(ctx context.Context) error

// State describes whether a job is in flight.
type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Scheduler runs a Job once a day. Fires missed while the process was down
// are not caught up.
type Scheduler struct {
	cron    *cron.Cron
	sched   cron.Schedule
	loc     *time.Location
	job     Job
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex // guards stopped and wg.Add
	stopped bool
	running atomic.Bool
	wg      sync.WaitGroup

	// base is cancelled when Stop gives up waiting; in-flight jobs see it.
	base   context.Context
	cancel context.CancelFunc
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocation sets the zone the daily time is read in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock overrides time.Now for Next.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics counts skipped triggers on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// New returns a stopped Scheduler that runs job every day at at ("HH:MM").
// A bad time yields an error wrapping types.ErrSchedulerFault.
func New(at string, job Job, opts ...Option) (*Scheduler, error) {
	if job == nil {
		return nil, fmt.Errorf("%w: nil job", types.ErrSchedulerFault)
	}
	hour, minute, err := types.ParseClock(at)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrSchedulerFault, err)
	}

	s := &Scheduler{
		loc:    time.Local,
		job:    job,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	spec := fmt.Sprintf("%d %d * * *", minute, hour)
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %q: %w", types.ErrSchedulerFault, spec, err)
	}
	s.sched = sched
	s.base, s.cancel = context.WithCancel(context.Background())
	s.cron = cron.New(cron.WithLocation(s.loc))
	s.cron.Schedule(sched, cron.FuncJob(func() {
		s.Trigger(s.base)
	}))
	return s, nil
}

// Start begins firing on schedule.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "next", s.Next())
}

// Next returns the next scheduled fire time.
func (s *Scheduler) Next() time.Time {
	return s.sched.Next(s.now().In(s.loc))
}

// State reports whether a job is in flight.
func (s *Scheduler) State() State {
	if s.running.Load() {
		return Running
	}
	return Idle
}

// Trigger starts the job now in its own goroutine unless one is already in
// flight or the scheduler is stopped. It reports whether the job started.
// The job inherits ctx's values but not its cancellation, so a trigger from
// a short-lived request still completes; Stop is what cancels it.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("sweep already running, trigger skipped")
		s.metrics.SweepSkipped()
		return false
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(s.base, cancel)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		defer cancel()
		defer stop()

		if err := s.job(jobCtx); err != nil {
			s.logger.Error("sweep failed", "error", err)
		}
	}()
	return true
}

// Stop halts the schedule and waits for an in-flight job. If ctx ends
// first, the job's context is cancelled and ctx's error is returned.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cron.Stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		s.logger.Warn("abandoning in-flight sweep")
		return ctx.Err()
	}
}
