// Package scheduler fires registered jobs on their triggers, never running two
// firings of the same job at once, and isolates every firing's failure.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"travelsync-service/internal/domain/entity"
	"travelsync-service/internal/domain/repository"
	"travelsync-service/pkg/logger"
	"travelsync-service/pkg/metrics"
)

var (
	// ErrJobRunning is returned when a trigger arrives while the job is running
	ErrJobRunning = errors.New("job is already running")
	// ErrUnknownJob is returned for a name that was never registered
	ErrUnknownJob = errors.New("unknown job")
	// ErrAlreadyStarted is returned by Start and Register once the scheduler runs
	ErrAlreadyStarted = errors.New("scheduler already started")
)

// DefaultLeaseTTL bounds how long a crashed instance can block a job elsewhere
const DefaultLeaseTTL = 30 * time.Minute

// JobFunc is one firing of a job
type JobFunc func(ctx context.Context) (entity.JobSummary, error)

// State of a job
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateFailed  State = "failed"
)

// Lease guards a job across service instances
type Lease interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// JobStatus is a snapshot of one registered job
type JobStatus struct {
	Name         string            `json:"name"`
	Trigger      string            `json:"trigger"`
	State        State             `json:"state"`
	NextRun      *time.Time        `json:"next_run,omitempty"`
	LastStarted  *time.Time        `json:"last_started,omitempty"`
	LastFinished *time.Time        `json:"last_finished,omitempty"`
	LastError    string            `json:"last_error,omitempty"`
	LastSummary  entity.JobSummary `json:"last_summary"`
	Runs         int               `json:"runs"`
	Skipped      int               `json:"skipped"`
}

type job struct {
	name    string
	trigger Trigger
	fn      JobFunc
	running atomic.Bool

	mu     sync.Mutex
	status JobStatus
}

func (j *job) snapshot() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithLease makes every firing hold a cross-instance lease for at most ttl
func WithLease(lease Lease, ttl time.Duration) Option {
	return func(s *Scheduler) {
		s.lease = lease
		if ttl > 0 {
			s.leaseTTL = ttl
		}
	}
}

// Scheduler runs each registered job in its own goroutine
type Scheduler struct {
	runLog  repository.RunLogRepository
	metrics *metrics.Metrics
	logger  logger.Logger

	lease    Lease
	leaseTTL time.Duration

	mu      sync.Mutex
	jobs    map[string]*job
	order   []string
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup
}

// New creates a scheduler that writes one run-log entry per firing
func New(runLog repository.RunLogRepository, m *metrics.Metrics, logger logger.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		runLog:   runLog,
		metrics:  m,
		logger:   logger,
		leaseTTL: DefaultLeaseTTL,
		jobs:     make(map[string]*job),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a job. Jobs must be registered before Start.
func (s *Scheduler) Register(name string, trigger Trigger, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}
	s.jobs[name] = &job{
		name:    name,
		trigger: trigger,
		fn:      fn,
		status:  JobStatus{Name: name, Trigger: trigger.String(), State: StateIdle},
	}
	s.order = append(s.order, name)
	return nil
}

// Start launches one timer loop per job. Cancelling ctx has the same effect as Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	for _, name := range s.order {
		j := s.jobs[name]
		s.wg.Add(1)
		go s.loop(s.ctx, j)
		s.logger.Info("Job scheduled", "job", name, "trigger", j.trigger.String())
	}
	return nil
}

// Stop cancels all timers and waits for in-flight firings to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// Trigger runs the job now and waits for it. It returns ErrJobRunning when a
// firing is already in progress.
func (s *Scheduler) Trigger(ctx context.Context, name string) (entity.JobSummary, error) {
	j, err := s.job(name)
	if err != nil {
		return entity.JobSummary{}, err
	}
	if !s.claim(j) {
		return entity.JobSummary{}, ErrJobRunning
	}
	return s.execute(ctx, j)
}

// TriggerAsync starts the job in the background on the scheduler's context
func (s *Scheduler) TriggerAsync(name string) error {
	j, err := s.job(name)
	if err != nil {
		return err
	}
	if !s.claim(j) {
		return ErrJobRunning
	}

	ctx := s.runContext()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.execute(ctx, j)
	}()
	return nil
}

// Status returns a snapshot of every job in registration order
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	jobs := make([]*job, 0, len(s.order))
	for _, name := range s.order {
		jobs = append(jobs, s.jobs[name])
	}
	s.mu.Unlock()

	out := make([]JobStatus, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.snapshot())
	}
	return out
}

// StatusOf returns the snapshot of one job
func (s *Scheduler) StatusOf(name string) (JobStatus, error) {
	j, err := s.job(name)
	if err != nil {
		return JobStatus{}, err
	}
	return j.snapshot(), nil
}

func (s *Scheduler) job(name string) (*job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return j, nil
}

func (s *Scheduler) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	defer s.wg.Done()

	for {
		next := j.trigger.Next(time.Now())
		j.mu.Lock()
		j.status.NextRun = &next
		j.mu.Unlock()

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if !s.claim(j) {
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_, _ = s.execute(ctx, j)
		}()
	}
}

// claim marks the job running, or records a skipped trigger
func (s *Scheduler) claim(j *job) bool {
	if j.running.CompareAndSwap(false, true) {
		return true
	}
	s.skipped(j)
	return false
}

func (s *Scheduler) skipped(j *job) {
	j.mu.Lock()
	j.status.Skipped++
	j.mu.Unlock()
	s.metrics.ObserveOverlap(j.name)
	s.metrics.ObserveJob(j.name, metrics.OutcomeSkipped, 0)
	s.logger.Warn("Job still running, trigger skipped", "job", j.name)
}

// execute runs a claimed job and releases the claim when done
func (s *Scheduler) execute(ctx context.Context, j *job) (entity.JobSummary, error) {
	defer j.running.Store(false)

	if s.lease != nil {
		release, ok, err := s.lease.Acquire(ctx, j.name, s.leaseTTL)
		switch {
		case err != nil:
			s.logger.Warn("Lease unavailable, running without it", "job", j.name, "error", err)
		case !ok:
			s.skipped(j)
			return entity.JobSummary{}, ErrJobRunning
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					s.logger.Warn("Failed to release lease", "job", j.name, "error", err)
				}
			}()
		}
	}

	started := time.Now().UTC()
	j.mu.Lock()
	j.status.State = StateRunning
	j.status.LastStarted = &started
	j.mu.Unlock()
	s.logger.Info("Job started", "job", j.name)

	summary, err := s.run(ctx, j)
	finished := time.Now().UTC()

	j.mu.Lock()
	j.status.Runs++
	j.status.LastFinished = &finished
	j.status.LastSummary = summary
	if err != nil {
		j.status.State = StateFailed
		j.status.LastError = err.Error()
	} else {
		j.status.State = StateIdle
		j.status.LastError = ""
	}
	j.mu.Unlock()

	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
		s.logger.Error("Job failed", "job", j.name, "error", err, "duration", finished.Sub(started))
	} else {
		s.logger.Info("Job finished",
			"job", j.name,
			"duration", finished.Sub(started),
			"processed", summary.Processed,
			"created", summary.Created,
			"updated", summary.Updated,
			"skipped", summary.Skipped,
			"errored", summary.Errored)
	}
	s.metrics.ObserveJob(j.name, outcome, finished.Sub(started).Seconds())

	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	entry := entity.NewRunLogEntry(j.name, nil, started, finished, summary, err)
	if appendErr := s.runLog.Append(logCtx, entry); appendErr != nil {
		s.logger.Error("Failed to write run log", "job", j.name, "error", appendErr)
	}
	return summary, err
}

// run calls the job function, turning a panic into an error
func (s *Scheduler) run(ctx context.Context, j *job) (summary entity.JobSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.name, r)
			s.logger.Error("Job panicked", "job", j.name, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	return j.fn(ctx)
}
