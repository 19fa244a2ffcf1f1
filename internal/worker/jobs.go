package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/healthdesk/admin-api/pkg/logger"
)

// Expirer closes suspensions whose end date has passed.
type Expirer interface {
	ExpireDue(ctx context.Context, now time.Time, limit int) (int, error)
}

type ExpiryJob struct {
	svc       Expirer
	batchSize int
	logger    *logger.Logger
	now       func() time.Time
}

func NewExpiryJob(svc Expirer, batchSize int, log *logger.Logger) *ExpiryJob {
	if batchSize <= 0 {
		batchSize = 100
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ExpiryJob{svc: svc, batchSize: batchSize, logger: log, now: func() time.Time { return time.Now().UTC() }}
}

func (j *ExpiryJob) Name() string { return "expire_suspensions" }

// Run drains due suspensions batch by batch so a backlog clears in one tick.
func (j *ExpiryJob) Run(ctx context.Context) error {
	now := j.now()
	total := 0
	for {
		n, err := j.svc.ExpireDue(ctx, now, j.batchSize)
		total += n
		if err != nil {
			return fmt.Errorf("expired %d before failing: %w", total, err)
		}
		if n < j.batchSize {
			break
		}
	}
	if total > 0 {
		j.logger.Info("Expired suspensions", "count", total)
	}
	return nil
}

// ActivityCleaner removes activity logs older than a retention window.
type ActivityCleaner interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

type ActivityCleanupJob struct {
	svc           ActivityCleaner
	retentionDays int
	logger        *logger.Logger
}

func NewActivityCleanupJob(svc ActivityCleaner, retentionDays int, log *logger.Logger) *ActivityCleanupJob {
	if log == nil {
		log = logger.Nop()
	}
	return &ActivityCleanupJob{svc: svc, retentionDays: retentionDays, logger: log}
}

func (j *ActivityCleanupJob) Name() string { return "activity_cleanup" }

func (j *ActivityCleanupJob) Run(ctx context.Context) error {
	if j.retentionDays <= 0 {
		return nil
	}
	rows, err := j.svc.Cleanup(ctx, time.Duration(j.retentionDays)*24*time.Hour)
	if err != nil {
		return fmt.Errorf("failed to cleanup activity logs: %w", err)
	}
	j.logger.Info("Cleaned up activity logs", "rows", rows, "retention_days", j.retentionDays)
	return nil
}

// OutboxPurger deletes published events.
type OutboxPurger interface {
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}

type OutboxCleanupJob struct {
	repo          OutboxPurger
	retentionDays int
	logger        *logger.Logger
	now           func() time.Time
}

func NewOutboxCleanupJob(repo OutboxPurger, retentionDays int, log *logger.Logger) *OutboxCleanupJob {
	if log == nil {
		log = logger.Nop()
	}
	return &OutboxCleanupJob{repo: repo, retentionDays: retentionDays, logger: log, now: func() time.Time { return time.Now().UTC() }}
}

func (j *OutboxCleanupJob) Name() string { return "outbox_cleanup" }

func (j *OutboxCleanupJob) Run(ctx context.Context) error {
	if j.retentionDays <= 0 {
		return nil
	}
	cutoff := j.now().AddDate(0, 0, -j.retentionDays)
	rows, err := j.repo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup outbox events: %w", err)
	}
	j.logger.Info("Cleaned up outbox events", "rows", rows, "cutoff", cutoff)
	return nil
}
