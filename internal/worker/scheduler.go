package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/healthdesk/admin-api/pkg/logger"
	"github.com/healthdesk/admin-api/pkg/metrics"
)

// Job is a unit of periodic maintenance work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs jobs on cron schedules. A job still running when its next
// tick arrives is skipped.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewScheduler(timeout time.Duration, log *logger.Logger, m *metrics.Metrics) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.New("jobs")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		// *logger.Logger satisfies cron.Logger.
		cron:    cron.New(cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log))),
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
		logger:  log,
		metrics: m,
	}
}

// Add registers job under schedule, e.g. "@every 5m" or "0 3 * * *".
func (s *Scheduler) Add(schedule string, job Job) error {
	if _, err := s.cron.AddFunc(schedule, func() { s.RunNow(job) }); err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", schedule, job.Name(), err)
	}
	s.logger.Info("Scheduled job", "job", job.Name(), "schedule", schedule)
	return nil
}

// RunNow executes job once in the caller's goroutine.
func (s *Scheduler) RunNow(job Job) error {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	err := job.Run(ctx)
	if err != nil {
		s.metrics.JobRuns.WithLabelValues(job.Name(), "error").Inc()
		s.logger.Error(err, "Job failed", "job", job.Name(), "duration", time.Since(start).String())
		return err
	}
	s.metrics.JobRuns.WithLabelValues(job.Name(), "success").Inc()
	s.logger.Debug("Job finished", "job", job.Name(), "duration", time.Since(start).String())
	return nil
}

func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
