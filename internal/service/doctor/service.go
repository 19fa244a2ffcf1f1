package doctor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/healthdesk/admin-api/internal/model"
	"github.com/healthdesk/admin-api/internal/repository"
	"github.com/healthdesk/admin-api/internal/service/activity"
	apperrors "github.com/healthdesk/admin-api/pkg/errors"
	"github.com/healthdesk/admin-api/pkg/logger"
	"github.com/healthdesk/admin-api/pkg/metrics"
	"github.com/healthdesk/admin-api/pkg/validator"
)

type DoctorServicer interface {
	Register(ctx context.Context, req *RegisterRequest, actor model.Actor) (*model.Doctor, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
	List(ctx context.Context, filter *model.DoctorFilter) ([]*model.Doctor, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.DoctorStatus, actor model.Actor) (*model.Doctor, error)
}

type RegisterRequest struct {
	Name            string   `json:"name" validate:"required,trimmed_nonempty,max=200"`
	Email           string   `json:"email" validate:"required,email"`
	Phone           string   `json:"phone" validate:"omitempty,max=32"`
	Specializations []string `json:"specializations" validate:"dive,required"`
}

type Service struct {
	store    repository.Store
	activity activity.Logger
	metrics  *metrics.Metrics
	log      *logger.Logger
	validate validator.Validator
}

func NewService(store repository.Store, activityLog activity.Logger, m *metrics.Metrics, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:    store,
		activity: activityLog,
		metrics:  m,
		log:      log,
		validate: validator.Default(),
	}
}

var _ DoctorServicer = (*Service)(nil)

// Register creates a pending doctor. Blacklisted and taken emails conflict.
func (s *Service) Register(ctx context.Context, req *RegisterRequest, actor model.Actor) (*model.Doctor, error) {
	if req == nil {
		return nil, apperrors.Validation("request body is required")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validate.Validate(req); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	blacklisted, err := s.store.Blacklist().IsBlacklisted(ctx, req.Email)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if blacklisted {
		return nil, apperrors.Conflict("email is blacklisted", nil)
	}

	now := time.Now().UTC()
	specs := req.Specializations
	if specs == nil {
		specs = []string{}
	}
	doctor := &model.Doctor{
		Base:            model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		Status:          model.DoctorStatusPending,
		Specializations: specs,
	}
	if err := s.store.Doctors().Create(ctx, doctor); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("email already registered", err)
		}
		return nil, apperrors.Internal(err)
	}

	s.logActivity(ctx, activity.Entry{
		Actor:      actor,
		Action:     model.ActionRegisterDoctor,
		Details:    fmt.Sprintf("Registered doctor %s (%s)", doctor.Name, doctor.Email),
		EntityType: model.EntityDoctor,
		EntityID:   doctor.ID,
	})
	return doctor, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	doctor, err := s.store.Doctors().Get(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return doctor, nil
}

func (s *Service) List(ctx context.Context, filter *model.DoctorFilter) ([]*model.Doctor, int64, error) {
	if filter == nil {
		filter = &model.DoctorFilter{}
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, apperrors.Validation(fmt.Sprintf("unknown status %q", filter.Status))
	}
	doctors, total, err := s.store.Doctors().List(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.Internal(err)
	}
	return doctors, total, nil
}

// UpdateStatus applies an admin status change. Suspension goes through the
// suspension workflow so that a record is always created with it.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status model.DoctorStatus, actor model.Actor) (*model.Doctor, error) {
	if !status.Valid() {
		return nil, apperrors.Validation(fmt.Sprintf("unknown status %q", status))
	}
	if status == model.DoctorStatusSuspended {
		return nil, apperrors.Validation("use the suspend endpoint to suspend a doctor")
	}

	var (
		prev    model.DoctorStatus
		updated *model.Doctor
	)
	err := s.store.WithDoctorLock(ctx, id, func(tx repository.DoctorTx) error {
		doctor, err := tx.FindDoctor(ctx, id)
		if err != nil {
			return err
		}
		prev = doctor.Status
		if !doctor.Status.CanTransitionTo(status) {
			return apperrors.Conflict(fmt.Sprintf("cannot change status from %s to %s", doctor.Status, status), nil)
		}
		updated, err = tx.UpdateDoctorStatus(ctx, id, status)
		return err
	})
	if err != nil {
		return nil, mapErr(err)
	}

	s.logActivity(ctx, activity.Entry{
		Actor:      actor,
		Action:     model.ActionUpdateDoctorStatus,
		Details:    fmt.Sprintf("Changed status of %s from %s to %s", updated.Name, prev, status),
		EntityType: model.EntityDoctor,
		EntityID:   id,
		Metadata:   map[string]interface{}{"from": string(prev), "to": string(status)},
	})
	return updated, nil
}

func (s *Service) logActivity(ctx context.Context, entry activity.Entry) {
	activity.Record(ctx, s.activity, entry, s.metrics, s.log)
}

func mapErr(err error) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("doctor", err)
	}
	return apperrors.Internal(err)
}
