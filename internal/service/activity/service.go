package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/healthdesk/admin-api/internal/model"
	"github.com/healthdesk/admin-api/internal/repository"
)

const anonymousName = "Anonymous Admin"

// Entry describes one admin action.
type Entry struct {
	Actor      model.Actor
	Action     model.ActivityAction
	Details    string
	EntityType string
	EntityID   uuid.UUID
	Metadata   map[string]interface{}
}

// Logger is the side-effect sink mutating services report to.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

type Service struct {
	repo repository.ActivityRepository
	now  func() time.Time
}

func NewService(repo repository.ActivityRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

var _ Logger = (*Service)(nil)

func (s *Service) Log(ctx context.Context, entry Entry) error {
	log := &model.ActivityLog{
		ID:         uuid.New(),
		ActorID:    entry.Actor.ID,
		ActorName:  entry.Actor.Name,
		ActorRole:  entry.Actor.Role,
		Action:     entry.Action,
		Details:    entry.Details,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Metadata:   model.JSONMap(entry.Metadata),
		IPAddress:  entry.Actor.IPAddress,
		UserAgent:  entry.Actor.UserAgent,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.Create(ctx, log); err != nil {
		return fmt.Errorf("failed to write activity log: %w", err)
	}
	return nil
}

// List returns logs visible to viewer. Super admins see everything; other
// admins see their own entries in full and everyone else's anonymized.
func (s *Service) List(ctx context.Context, filter *model.ActivityFilter, viewer model.Actor) ([]*model.ActivityLog, int64, error) {
	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activity logs: %w", err)
	}
	if viewer.Role == model.RoleSuperAdmin {
		return logs, total, nil
	}
	for _, log := range logs {
		if log.ActorID != viewer.ID {
			redact(log)
		}
	}
	return logs, total, nil
}

func redact(log *model.ActivityLog) {
	log.ActorID = uuid.Nil
	log.ActorName = anonymousName
	log.IPAddress = ""
	log.UserAgent = ""
	log.Metadata = nil
	log.Anonymized = true
}

// Cleanup removes logs older than the retention window.
func (s *Service) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.Cleanup(ctx, s.now().Add(-retention))
}
