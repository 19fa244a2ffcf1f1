package suspension

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

type SuspensionServicer interface {
	GetSuspensionCount(ctx context.Context, doctorID uuid.UUID) (*CountSummary, error)
	SuspendDoctor(ctx context.Context, doctorID uuid.UUID, req *SuspendRequest, actor model.Actor) (*SuspendResult, error)
	ListSuspensions(ctx context.Context, doctorID uuid.UUID) ([]*model.Suspension, error)
	LiftSuspension(ctx context.Context, suspensionID uuid.UUID, actor model.Actor, note string) (*CloseResult, error)
	ExpireDue(ctx context.Context, now time.Time, limit int) (int, error)
	SubmitAppeal(ctx context.Context, suspensionID uuid.UUID, notes string, actor model.Actor) (*model.Suspension, error)
	ReviewAppeal(ctx context.Context, suspensionID uuid.UUID, req *ReviewRequest, actor model.Actor) (*CloseResult, error)
}

// SuspendRequest is the input of SuspendDoctor. Type defaults to temporary
// and Severity to moderate. A nil or non-positive Duration is indefinite.
type SuspendRequest struct {
	Type     model.SuspensionType `json:"type" validate:"omitempty,oneof=temporary permanent investigation"`
	Severity model.Severity       `json:"severity" validate:"omitempty,oneof=minor moderate major critical"`
	Reasons  []string             `json:"reasons"`
	Category string               `json:"category" validate:"omitempty,oneof=misconduct compliance patient_safety documentation other"`
	Duration *int                 `json:"duration"`
	Impact   model.Impact         `json:"impact"`
}

type SuspendResult struct {
	Deleted         bool              `json:"deleted"`
	Message         string            `json:"message,omitempty"`
	Doctor          *model.Doctor     `json:"doctor,omitempty"`
	Suspension      *model.Suspension `json:"suspension,omitempty"`
	SuspensionCount int               `json:"suspension_count"`
	Warning         string            `json:"warning,omitempty"`
	Decision        Decision          `json:"-"`
}

// CloseResult reports a suspension leaving the active state and whether the
// doctor was reinstated as a consequence.
type CloseResult struct {
	Suspension *model.Suspension `json:"suspension"`
	Doctor     *model.Doctor     `json:"doctor,omitempty"`
	Reinstated bool              `json:"reinstated"`
}

type ReviewRequest struct {
	Decision model.AppealStatus `json:"decision" validate:"required,oneof=under_review approved rejected"`
	Notes    string             `json:"notes"`
}

var ErrNoReasons = apperrors.Validation("at least one suspension reason is required")

type Service struct {
	store    repository.Store
	policy   Policy
	activity activity.Logger
	metrics  *metrics.Metrics
	log      *logger.Logger
	validate validator.Validator
	now      func() time.Time
}

func NewService(store repository.Store, policy Policy, activityLog activity.Logger, m *metrics.Metrics, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:    store,
		policy:   policy,
		activity: activityLog,
		metrics:  m,
		log:      log,
		validate: validator.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var _ SuspensionServicer = (*Service)(nil)

func (s *Service) Policy() Policy { return s.policy }

func (s *Service) GetSuspensionCount(ctx context.Context, doctorID uuid.UUID) (*CountSummary, error) {
	doctor, err := s.store.Doctors().Get(ctx, doctorID)
	if err != nil {
		return nil, wrapErr(err, "doctor")
	}
	count, err := s.store.Suspensions().Count(ctx, doctorID)
	if err != nil {
		return nil, wrapErr(err, "suspension")
	}
	summary := s.policy.Summary(doctor.ID, doctor.Name, count)
	return &summary, nil
}

func (s *Service) ListSuspensions(ctx context.Context, doctorID uuid.UUID) ([]*model.Suspension, error) {
	if _, err := s.store.Doctors().Get(ctx, doctorID); err != nil {
		return nil, wrapErr(err, "doctor")
	}
	recs, err := s.store.Suspensions().ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, wrapErr(err, "suspension")
	}
	return recs, nil
}

// SuspendDoctor counts, decides and acts while holding the doctor lock, so
// concurrent requests for one doctor escalate at most once.
func (s *Service) SuspendDoctor(ctx context.Context, doctorID uuid.UUID, req *SuspendRequest, actor model.Actor) (*SuspendResult, error) {
	if req == nil {
		return nil, ErrNoReasons
	}
	if err := s.validate.Validate(req); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	rec, err := s.newRecord(doctorID, req, actor)
	if err != nil {
		return nil, err
	}

	var (
		result *SuspendResult
		doctor *model.Doctor
	)
	err = s.store.WithDoctorLock(ctx, doctorID, func(tx repository.DoctorTx) error {
		result = nil
		var err error
		doctor, err = tx.FindDoctor(ctx, doctorID)
		if err != nil {
			return err
		}
		prior, err := tx.CountSuspensions(ctx, doctorID)
		if err != nil {
			return err
		}

		// The callback may run more than once, so each attempt gets its own copy.
		attempt := *rec
		decision := s.policy.Decide(prior)
		if decision == DecisionDelete {
			result, err = s.deleteDoctor(ctx, tx, doctor, prior, &attempt, actor)
			return err
		}
		result, err = s.suspend(ctx, tx, doctor, prior, decision, &attempt)
		return err
	})
	if err != nil {
		return nil, wrapErr(err, "doctor")
	}

	s.metrics.SuspensionsIssued.WithLabelValues(result.Decision.String()).Inc()

	details := fmt.Sprintf("Suspended doctor %s (%s)", doctor.Name, doctor.Email)
	if result.Deleted {
		details = fmt.Sprintf("Suspension %d for doctor %s (%s) triggered deletion", result.SuspensionCount, doctor.Name, doctor.Email)
	}
	s.logActivity(ctx, activity.Entry{
		Actor:      actor,
		Action:     model.ActionSuspendDoctor,
		Details:    details,
		EntityType: model.EntityDoctor,
		EntityID:   doctorID,
		Metadata: map[string]interface{}{
			"doctorId":        doctorID.String(),
			"adminId":         actor.ID.String(),
			"suspensionId":    rec.ID.String(),
			"suspensionCount": result.SuspensionCount,
			"decision":        result.Decision.String(),
		},
	})

	if result.Deleted {
		s.metrics.DoctorsAutoDeleted.Inc()
		s.logActivity(ctx, activity.Entry{
			Actor:      actor,
			Action:     model.ActionAutoDeleteDoctor,
			Details:    result.Message,
			EntityType: model.EntityDoctor,
			EntityID:   doctorID,
			Metadata: map[string]interface{}{
				"doctorId":        doctorID.String(),
				"email":           doctor.Email,
				"suspensionCount": result.SuspensionCount,
			},
		})
		s.log.Info("doctor auto-deleted", "doctor_id", doctorID.String(), "suspension_count", result.SuspensionCount)
	}

	return result, nil
}

func (s *Service) suspend(ctx context.Context, tx repository.DoctorTx, doctor *model.Doctor, prior int, decision Decision, rec *model.Suspension) (*SuspendResult, error) {
	if !doctor.Status.CanTransitionTo(model.DoctorStatusSuspended) {
		return nil, apperrors.Conflict(fmt.Sprintf("doctor in status %s cannot be suspended", doctor.Status), nil)
	}
	updated, err := tx.UpdateDoctorStatus(ctx, doctor.ID, model.DoctorStatusSuspended)
	if err != nil {
		return nil, err
	}
	if err := tx.CreateSuspension(ctx, rec); err != nil {
		return nil, err
	}

	count := prior + 1
	result := &SuspendResult{
		Doctor:          updated,
		Suspension:      rec,
		SuspensionCount: count,
		Decision:        decision,
	}
	if decision == DecisionSuspendWithWarning {
		result.Warning = s.policy.Warning(count)
	}

	if err := enqueue(ctx, tx, model.EventDoctorSuspended, updated, count, result.Warning, rec); err != nil {
		return nil, err
	}
	return result, nil
}

// deleteDoctor removes the doctor and every suspension record. The terminal
// record is kept on the blacklist entry.
func (s *Service) deleteDoctor(ctx context.Context, tx repository.DoctorTx, doctor *model.Doctor, prior int, rec *model.Suspension, actor model.Actor) (*SuspendResult, error) {
	rec.Type = model.SuspensionTypePermanent
	rec.Status = model.SuspensionStatusRevoked
	rec.Period.EndDate = nil
	rec.Period.Duration = nil

	if _, err := tx.DeleteSuspensions(ctx, doctor.ID); err != nil {
		return nil, err
	}
	if err := tx.DeleteDoctor(ctx, doctor.ID); err != nil {
		return nil, err
	}

	count := prior + 1
	message := fmt.Sprintf("Doctor %s reached %d suspensions and was permanently deleted", doctor.Name, count)
	entry := &model.BlacklistEntry{
		ID:              uuid.New(),
		Email:           strings.ToLower(doctor.Email),
		DoctorID:        doctor.ID,
		DoctorName:      doctor.Name,
		Reason:          message,
		SuspensionCount: count,
		FinalSuspension: rec,
		BlacklistedBy:   actor.ID,
		CreatedAt:       s.now(),
	}
	if err := tx.CreateBlacklistEntry(ctx, entry); err != nil {
		return nil, err
	}
	if err := enqueue(ctx, tx, model.EventDoctorAutoDeleted, doctor, count, message, rec); err != nil {
		return nil, err
	}

	return &SuspendResult{
		Deleted:         true,
		Message:         message,
		SuspensionCount: count,
		Decision:        DecisionDelete,
	}, nil
}

func (s *Service) newRecord(doctorID uuid.UUID, req *SuspendRequest, actor model.Actor) (*model.Suspension, error) {
	severity := req.Severity
	if severity == "" {
		severity = model.SeverityModerate
	}
	category := req.Category
	if category == "" {
		category = model.ReasonCategoryOther
	}

	reasons := make([]model.SuspensionReason, 0, len(req.Reasons))
	for _, r := range req.Reasons {
		if r = strings.TrimSpace(r); r != "" {
			reasons = append(reasons, model.SuspensionReason{Category: category, Description: r, Severity: severity})
		}
	}
	if len(reasons) == 0 {
		return nil, ErrNoReasons
	}

	typ := req.Type
	if typ == "" {
		typ = model.SuspensionTypeTemporary
	}

	now := s.now()
	period := model.SuspensionPeriod{StartDate: now}
	if req.Duration != nil && *req.Duration > 0 && typ != model.SuspensionTypePermanent {
		days := *req.Duration
		end := now.AddDate(0, 0, days)
		period.Duration = &days
		period.EndDate = &end
	}

	return &model.Suspension{
		ID:            uuid.New(),
		DoctorID:      doctorID,
		Type:          typ,
		Status:        model.SuspensionStatusActive,
		Severity:      severity,
		Reasons:       reasons,
		Period:        period,
		Impact:        req.Impact.Normalize(),
		SuspendedBy:   actor.ID,
		ReviewedBy:    []uuid.UUID{},
		AppealStatus:  model.AppealStatusNone,
		Notifications: model.DefaultNotificationFlags(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// LiftSuspension ends an active suspension early.
func (s *Service) LiftSuspension(ctx context.Context, suspensionID uuid.UUID, actor model.Actor, note string) (*CloseResult, error) {
	rec, err := s.store.Suspensions().Get(ctx, suspensionID)
	if err != nil {
		return nil, wrapErr(err, "suspension")
	}

	var result *CloseResult
	err = s.store.WithDoctorLock(ctx, rec.DoctorID, func(tx repository.DoctorTx) error {
		current, err := tx.GetSuspension(ctx, suspensionID)
		if err != nil {
			return err
		}
		if !current.IsActive() {
			return apperrors.Conflict(fmt.Sprintf("suspension is already %s", current.Status), nil)
		}
		current.LiftNote = strings.TrimSpace(note)
		addReviewer(current, actor.ID)
		result, err = s.close(ctx, tx, current, model.SuspensionStatusLifted)
		return err
	})
	if err != nil {
		return nil, wrapErr(err, "suspension")
	}

	s.metrics.SuspensionsLifted.WithLabelValues(string(model.SuspensionStatusLifted)).Inc()
	s.logActivity(ctx, activity.Entry{
		Actor:      actor,
		Action:     model.ActionLiftSuspension,
		Details:    fmt.Sprintf("Lifted suspension %s", suspensionID),
		EntityType: model.EntitySuspension,
		EntityID:   suspensionID,
		Metadata: map[string]interface{}{
			"doctorId":   rec.DoctorID.String(),
			"reinstated": result.Reinstated,
		},
	})
	return result, nil
}

// ExpireDue closes up to limit finite suspensions whose end date is at or
// before now. It keeps going past individual failures and returns them joined.
func (s *Service) ExpireDue(ctx context.Context, now time.Time, limit int) (int, error) {
	due, err := s.store.Suspensions().ListExpired(ctx, now, limit)
	if err != nil {
		return 0, wrapErr(err, "suspension")
	}

	var (
		expired int
		errs    []error
	)
	for _, rec := range due {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		var result *CloseResult
		err := s.store.WithDoctorLock(ctx, rec.DoctorID, func(tx repository.DoctorTx) error {
			result = nil
			current, err := tx.GetSuspension(ctx, rec.ID)
			if err != nil {
				return err
			}
			// Lifted or deleted since it was listed.
			if !current.Expired(now) {
				return nil
			}
			result, err = s.close(ctx, tx, current, model.SuspensionStatusExpired)
			return err
		})
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			s.log.Error(err, "failed to expire suspension", "suspension_id", rec.ID.String())
			errs = append(errs, fmt.Errorf("suspension %s: %w", rec.ID, err))
			continue
		}
		if result == nil {
			continue
		}

		expired++
		s.metrics.SuspensionsLifted.WithLabelValues(string(model.SuspensionStatusExpired)).Inc()
		s.logActivity(ctx, activity.Entry{
			Actor:      model.SystemActor,
			Action:     model.ActionExpireSuspension,
			Details:    fmt.Sprintf("Suspension %s reached its end date", rec.ID),
			EntityType: model.EntitySuspension,
			EntityID:   rec.ID,
			Metadata: map[string]interface{}{
				"doctorId":   rec.DoctorID.String(),
				"reinstated": result.Reinstated,
			},
		})
	}
	return expired, errors.Join(errs...)
}

// close moves rec to a terminal status and reinstates the doctor once no
// active suspension remains.
func (s *Service) close(ctx context.Context, tx repository.DoctorTx, rec *model.Suspension, status model.SuspensionStatus) (*CloseResult, error) {
	rec.Status = status
	rec.UpdatedAt = s.now()
	if err := tx.UpdateSuspension(ctx, rec); err != nil {
		return nil, err
	}

	result := &CloseResult{Suspension: rec}
	active, err := tx.CountActiveSuspensions(ctx, rec.DoctorID)
	if err != nil {
		return nil, err
	}

	doctor, err := tx.FindDoctor(ctx, rec.DoctorID)
	if err != nil {
		return nil, err
	}
	if active == 0 && doctor.Status == model.DoctorStatusSuspended {
		if doctor, err = tx.UpdateDoctorStatus(ctx, doctor.ID, model.DoctorStatusApproved); err != nil {
			return nil, err
		}
		result.Reinstated = true
	}
	result.Doctor = doctor

	count, err := tx.CountSuspensions(ctx, rec.DoctorID)
	if err != nil {
		return nil, err
	}
	if err := enqueue(ctx, tx, model.EventSuspensionLifted, doctor, count, "", rec); err != nil {
		return nil, err
	}
	return result, nil
}

var appealTransitions = map[model.AppealStatus][]model.AppealStatus{
	model.AppealStatusSubmitted:   {model.AppealStatusUnderReview, model.AppealStatusApproved, model.AppealStatusRejected},
	model.AppealStatusUnderReview: {model.AppealStatusApproved, model.AppealStatusRejected},
}

func canMoveAppeal(from, to model.AppealStatus) bool {
	for _, next := range appealTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s *Service) SubmitAppeal(ctx context.Context, suspensionID uuid.UUID, notes string, actor model.Actor) (*model.Suspension, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, apperrors.Validation("appeal notes are required")
	}
	rec, err := s.store.Suspensions().Get(ctx, suspensionID)
	if err != nil {
		return nil, wrapErr(err, "suspension")
	}

	var updated *model.Suspension
	err = s.store.WithDoctorLock(ctx, rec.DoctorID, func(tx repository.DoctorTx) error {
		current, err := tx.GetSuspension(ctx, suspensionID)
		if err != nil {
			return err
		}
		if !current.IsActive() {
			return apperrors.Conflict(fmt.Sprintf("cannot appeal a %s suspension", current.Status), nil)
		}
		if current.AppealStatus != model.AppealStatusNone {
			return apperrors.Conflict(fmt.Sprintf("appeal already %s", current.AppealStatus), nil)
		}
		current.AppealStatus = model.AppealStatusSubmitted
		current.AppealNotes = notes
		current.UpdatedAt = s.now()
		if err := tx.UpdateSuspension(ctx, current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, wrapErr(err, "suspension")
	}

	s.logActivity(ctx, activity.Entry{
		Actor:      actor,
		Action:     model.ActionSubmitAppeal,
		Details:    fmt.Sprintf("Appeal submitted for suspension %s", suspensionID),
		EntityType: model.EntitySuspension,
		EntityID:   suspensionID,
		Metadata:   map[string]interface{}{"doctorId": rec.DoctorID.String()},
	})
	return updated, nil
}

// ReviewAppeal advances an appeal. An approved appeal lifts the suspension;
// while under review the record itself is marked under_review.
func (s *Service) ReviewAppeal(ctx context.Context, suspensionID uuid.UUID, req *ReviewRequest, actor model.Actor) (*CloseResult, error) {
	if req == nil {
		return nil, apperrors.Validation("review decision is required")
	}
	if err := s.validate.Validate(req); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	rec, err := s.store.Suspensions().Get(ctx, suspensionID)
	if err != nil {
		return nil, wrapErr(err, "suspension")
	}

	var result *CloseResult
	err = s.store.WithDoctorLock(ctx, rec.DoctorID, func(tx repository.DoctorTx) error {
		current, err := tx.GetSuspension(ctx, suspensionID)
		if err != nil {
			return err
		}
		if !current.IsActive() {
			return apperrors.Conflict(fmt.Sprintf("suspension is already %s", current.Status), nil)
		}
		if !canMoveAppeal(current.AppealStatus, req.Decision) {
			return apperrors.Conflict(fmt.Sprintf("appeal cannot move from %s to %s", current.AppealStatus, req.Decision), nil)
		}

		current.AppealStatus = req.Decision
		if notes := strings.TrimSpace(req.Notes); notes != "" {
			current.AppealNotes = notes
		}
		addReviewer(current, actor.ID)

		switch req.Decision {
		case model.AppealStatusApproved:
			result, err = s.close(ctx, tx, current, model.SuspensionStatusLifted)
			return err
		case model.AppealStatusUnderReview:
			current.Status = model.SuspensionStatusUnderReview
		case model.AppealStatusRejected:
			current.Status = model.SuspensionStatusActive
		}
		current.UpdatedAt = s.now()
		if err := tx.UpdateSuspension(ctx, current); err != nil {
			return err
		}
		result = &CloseResult{Suspension: current}
		return nil
	})
	if err != nil {
		return nil, wrapErr(err, "suspension")
	}

	if req.Decision == model.AppealStatusApproved {
		s.metrics.SuspensionsLifted.WithLabelValues("appeal_approved").Inc()
	}
	s.logActivity(ctx, activity.Entry{
		Actor:      actor,
		Action:     model.ActionReviewAppeal,
		Details:    fmt.Sprintf("Appeal for suspension %s marked %s", suspensionID, req.Decision),
		EntityType: model.EntitySuspension,
		EntityID:   suspensionID,
		Metadata: map[string]interface{}{
			"doctorId": rec.DoctorID.String(),
			"decision": string(req.Decision),
		},
	})
	return result, nil
}

func addReviewer(rec *model.Suspension, id uuid.UUID) {
	for _, existing := range rec.ReviewedBy {
		if existing == id {
			return
		}
	}
	rec.ReviewedBy = append(rec.ReviewedBy, id)
}

func enqueue(ctx context.Context, tx repository.DoctorTx, eventType string, doctor *model.Doctor, count int, warning string, rec *model.Suspension) error {
	evt, err := model.NewOutboxEvent(eventType, doctor.ID, model.SuspensionEventPayload{
		DoctorID:        doctor.ID,
		DoctorName:      doctor.Name,
		DoctorEmail:     doctor.Email,
		SuspensionCount: count,
		Warning:         warning,
		Suspension:      rec,
	})
	if err != nil {
		return fmt.Errorf("failed to build %s event: %w", eventType, err)
	}
	return tx.EnqueueEvent(ctx, evt)
}

func (s *Service) logActivity(ctx context.Context, entry activity.Entry) {
	activity.Record(ctx, s.activity, entry, s.metrics, s.log)
}

func wrapErr(err error, resource string) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(resource, err)
	}
	return apperrors.Internal(err)
}
