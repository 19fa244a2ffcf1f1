package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/healthdesk/admin-api/internal/model"
)

// OutboxRepository is the subset of the outbox store used by pkg/worker.
type OutboxRepository interface {
	GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}
