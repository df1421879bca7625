package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/shopsync/internal/domain/integration"
	"github.com/erp/shopsync/internal/infrastructure/config"
)

// JobStatus represents the outcome of one scheduled pass
type JobStatus string

const (
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
	// JobStatusSkipped means the pass did not run: disabled or already in progress
	JobStatusSkipped JobStatus = "SKIPPED"
)

// Job records one invocation of the sync pass
type Job struct {
	ID          uuid.UUID
	Trigger     string
	Status      JobStatus
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// Duration returns how long the job ran, or 0 while running
func (j *Job) Duration() time.Duration {
	if j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(j.StartedAt)
}

func (j *Job) finish(status JobStatus, err error) {
	now := time.Now()
	j.Status = status
	j.CompletedAt = &now
	if err != nil {
		j.Error = err.Error()
	}
}

// Trigger names
const (
	TriggerInterval = "interval"
	TriggerStartup  = "startup"
)

// SyncFunc runs one sync pass
type SyncFunc func(ctx context.Context) error

// Scheduler runs the sync pass on a fixed interval. Each pass gets its own
// context bounded by the job timeout and cancelled on Stop.
type Scheduler struct {
	config config.SchedulerConfig
	run    SyncFunc
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastJob   *Job
}

// NewScheduler validates cfg and creates a scheduler
func NewScheduler(cfg config.SchedulerConfig, run SyncFunc, logger *zap.Logger) (*Scheduler, error) {
	if run == nil {
		return nil, fmt.Errorf("%w: sync func is required", ErrInvalidConfig)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if cfg.JobTimeout <= 0 {
		return nil, fmt.Errorf("%w: job timeout must be positive", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		config: cfg,
		run:    run,
		logger: logger.Named("scheduler"),
	}, nil
}

// Start launches the interval loop. With RunOnStart a pass runs immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Sync scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("job_timeout", s.config.JobTimeout),
		zap.Bool("run_on_start", s.config.RunOnStart),
	)
	return nil
}

// Stop cancels any in-flight pass and waits for the loop to exit or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the loop is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// LastJob returns a copy of the most recent job, or nil
func (s *Scheduler) LastJob() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastJob == nil {
		return nil
	}
	j := *s.lastJob
	return &j
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	if s.config.RunOnStart {
		s.execute(ctx, TriggerStartup)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.execute(ctx, TriggerInterval)
		}
	}
}

// execute runs one pass and records it as the last job
func (s *Scheduler) execute(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	job := &Job{
		ID:        uuid.New(),
		Trigger:   trigger,
		Status:    JobStatusRunning,
		StartedAt: time.Now(),
	}
	s.mu.Lock()
	s.lastJob = job
	s.mu.Unlock()

	log := s.logger.With(zap.String("job_id", job.ID.String()), zap.String("trigger", trigger))
	log.Info("Sync pass starting")

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()
	err := s.run(jobCtx)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err == nil:
		job.finish(JobStatusSuccess, nil)
		log.Info("Sync pass completed", zap.Duration("duration", job.Duration()))
	case errors.Is(err, integration.ErrIntegrationDisabled), errors.Is(err, integration.ErrSyncAlreadyRunning):
		job.finish(JobStatusSkipped, err)
		log.Info("Sync pass skipped", zap.Error(err))
	default:
		job.finish(JobStatusFailed, err)
		log.Error("Sync pass failed", zap.Duration("duration", job.Duration()), zap.Error(err))
	}
}
