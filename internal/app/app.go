// Package app wires configuration into the concrete stores, brokers and
// background workers shared by the binaries under cmd/.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/healthdesk/admin-api/internal/config"
	"github.com/healthdesk/admin-api/internal/email"
	"github.com/healthdesk/admin-api/internal/repository"
	"github.com/healthdesk/admin-api/internal/repository/memory"
	"github.com/healthdesk/admin-api/internal/repository/mongo"
	"github.com/healthdesk/admin-api/internal/repository/postgres"
	"github.com/healthdesk/admin-api/internal/service/activity"
	"github.com/healthdesk/admin-api/internal/service/notification"
	"github.com/healthdesk/admin-api/internal/service/suspension"
	internalworker "github.com/healthdesk/admin-api/internal/worker"
	"github.com/healthdesk/admin-api/pkg/logger"
	"github.com/healthdesk/admin-api/pkg/messaging"
	"github.com/healthdesk/admin-api/pkg/messaging/redis"
	"github.com/healthdesk/admin-api/pkg/metrics"
	"github.com/healthdesk/admin-api/pkg/worker"
)

func NewLogger(cfg config.LogConfig) *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		JSON:       cfg.JSON,
	})
}

// OpenStore connects the backend selected by storage.driver.
func OpenStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (repository.Store, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		store := postgres.NewStore(db)
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		log.Info("Connected to postgres", "host", cfg.Database.Host, "database", cfg.Database.Name)
		return store, nil
	case "mongo":
		store, err := mongo.Connect(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		log.Info("Connected to mongo", "database", cfg.Mongo.Database)
		return store, nil
	case "memory":
		log.Info("Using in-memory storage; data is lost on exit")
		return memory.NewStore(), nil
	}
	return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
}

// NewBroker returns a Redis broker when redis.url is set and an in-process
// broker otherwise.
func NewBroker(cfg *config.Config, log *logger.Logger) (messaging.MessageBroker, error) {
	if cfg.Redis.URL == "" {
		log.Info("No redis.url configured; using in-process broker")
		return messaging.NewBrokerAdapter(messaging.NewMemoryBroker(), log), nil
	}
	broker, err := redis.NewRedisBroker(cfg.ToBrokerConfig(), log)
	if err != nil {
		return nil, err
	}
	return messaging.NewBrokerAdapter(broker, log), nil
}

func NewPolicy(cfg config.SuspensionConfig) (suspension.Policy, error) {
	policy := suspension.Policy{
		WarningThreshold:  cfg.WarningThreshold,
		DeletionThreshold: cfg.DeletionThreshold,
	}
	if err := policy.Validate(); err != nil {
		return suspension.Policy{}, err
	}
	return policy, nil
}

// Background holds the outbox processor, the notification subscriber and
// the scheduled jobs.
type Background struct {
	Processor *worker.OutboxProcessor
	Scheduler *internalworker.Scheduler
	broker    messaging.MessageBroker
	notifier  *notification.Service
	topic     string
	log       *logger.Logger
}

func NewBackground(
	cfg *config.Config,
	store repository.Store,
	broker messaging.MessageBroker,
	suspensions *suspension.Service,
	activitySvc *activity.Service,
	m *metrics.Metrics,
	log *logger.Logger,
) (*Background, error) {
	topic := cfg.Redis.Channel
	processor, err := worker.NewOutboxProcessor(store.Outbox(), broker, cfg.Outbox.ToWorkerConfig(topic), log, m)
	if err != nil {
		return nil, err
	}

	scheduler := internalworker.NewScheduler(time.Minute, log, m)
	jobs := []struct {
		schedule string
		job      internalworker.Job
	}{
		{cfg.Jobs.ExpirySchedule, internalworker.NewExpiryJob(suspensions, cfg.Suspension.ExpiryBatchSize, log)},
		{cfg.Jobs.ActivityCleanup, internalworker.NewActivityCleanupJob(activitySvc, cfg.Jobs.ActivityRetentionDays, log)},
		{cfg.Jobs.ActivityCleanup, internalworker.NewOutboxCleanupJob(store.Outbox(), cfg.Jobs.OutboxRetentionDays, log)},
	}
	for _, j := range jobs {
		if err := scheduler.Add(j.schedule, j.job); err != nil {
			return nil, err
		}
	}

	return &Background{
		Processor: processor,
		Scheduler: scheduler,
		broker:    broker,
		notifier:  notification.NewService(email.NewService(cfg.SMTP, log), m, log),
		topic:     topic,
		log:       log,
	}, nil
}

// Start subscribes the notifier, then runs the processor and scheduler
// until ctx is cancelled.
func (b *Background) Start(ctx context.Context) error {
	if err := b.notifier.Run(ctx, b.broker, b.topic); err != nil {
		return err
	}
	b.Scheduler.Start()
	go b.Processor.Start(ctx)
	return nil
}

func (b *Background) Stop(ctx context.Context) {
	if err := b.Scheduler.Stop(ctx); err != nil {
		b.log.Warn(err, "Scheduled jobs did not stop in time")
	}
}
