package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/healthdesk/admin-api/internal/model"
)

const suspensionColumns = `id, doctor_id, type, status, severity, reasons,
	start_date, end_date, duration_days, impact, suspended_by, reviewed_by,
	appeal_status, appeal_notes, lift_note, notifications, created_at, updated_at`

// suspensionRow flattens model.Suspension into columns; nested values are
// stored as JSONB.
type suspensionRow struct {
	ID            uuid.UUID  `db:"id"`
	DoctorID      uuid.UUID  `db:"doctor_id"`
	Type          string     `db:"type"`
	Status        string     `db:"status"`
	Severity      string     `db:"severity"`
	Reasons       []byte     `db:"reasons"`
	StartDate     time.Time  `db:"start_date"`
	EndDate       *time.Time `db:"end_date"`
	DurationDays  *int       `db:"duration_days"`
	Impact        []byte     `db:"impact"`
	SuspendedBy   uuid.UUID  `db:"suspended_by"`
	ReviewedBy    []byte     `db:"reviewed_by"`
	AppealStatus  string     `db:"appeal_status"`
	AppealNotes   string     `db:"appeal_notes"`
	LiftNote      string     `db:"lift_note"`
	Notifications []byte     `db:"notifications"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

func toSuspensionRow(s *model.Suspension) (*suspensionRow, error) {
	reasons, err := json.Marshal(s.Reasons)
	if err != nil {
		return nil, err
	}
	impact, err := json.Marshal(s.Impact)
	if err != nil {
		return nil, err
	}
	reviewedBy := s.ReviewedBy
	if reviewedBy == nil {
		reviewedBy = []uuid.UUID{}
	}
	reviewed, err := json.Marshal(reviewedBy)
	if err != nil {
		return nil, err
	}
	notifications, err := json.Marshal(s.Notifications)
	if err != nil {
		return nil, err
	}

	return &suspensionRow{
		ID:            s.ID,
		DoctorID:      s.DoctorID,
		Type:          string(s.Type),
		Status:        string(s.Status),
		Severity:      string(s.Severity),
		Reasons:       reasons,
		StartDate:     s.Period.StartDate,
		EndDate:       s.Period.EndDate,
		DurationDays:  s.Period.Duration,
		Impact:        impact,
		SuspendedBy:   s.SuspendedBy,
		ReviewedBy:    reviewed,
		AppealStatus:  string(s.AppealStatus),
		AppealNotes:   s.AppealNotes,
		LiftNote:      s.LiftNote,
		Notifications: notifications,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}, nil
}

func (r *suspensionRow) toModel() (*model.Suspension, error) {
	s := &model.Suspension{
		ID:           r.ID,
		DoctorID:     r.DoctorID,
		Type:         model.SuspensionType(r.Type),
		Status:       model.SuspensionStatus(r.Status),
		Severity:     model.Severity(r.Severity),
		SuspendedBy:  r.SuspendedBy,
		AppealStatus: model.AppealStatus(r.AppealStatus),
		AppealNotes:  r.AppealNotes,
		LiftNote:     r.LiftNote,
		Period: model.SuspensionPeriod{
			StartDate: r.StartDate,
			EndDate:   r.EndDate,
			Duration:  r.DurationDays,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if err := json.Unmarshal(r.Reasons, &s.Reasons); err != nil {
		return nil, fmt.Errorf("failed to decode reasons: %w", err)
	}
	if err := json.Unmarshal(r.Impact, &s.Impact); err != nil {
		return nil, fmt.Errorf("failed to decode impact: %w", err)
	}
	if err := json.Unmarshal(r.ReviewedBy, &s.ReviewedBy); err != nil {
		return nil, fmt.Errorf("failed to decode reviewed_by: %w", err)
	}
	if err := json.Unmarshal(r.Notifications, &s.Notifications); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	return s, nil
}

func rowsToSuspensions(rows []suspensionRow) ([]*model.Suspension, error) {
	out := make([]*model.Suspension, 0, len(rows))
	for i := range rows {
		s, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

type suspensionRepository struct {
	BaseRepository
}

func (r *suspensionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Suspension, error) {
	return getSuspension(ctx, r.db, id)
}

func (r *suspensionRepository) Count(ctx context.Context, doctorID uuid.UUID) (int, error) {
	return countSuspensions(ctx, r.db, doctorID, false)
}

func (r *suspensionRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Suspension, error) {
	var rows []suspensionRow
	query := `SELECT ` + suspensionColumns + ` FROM suspensions WHERE doctor_id = $1 ORDER BY created_at ASC, id ASC`
	if err := r.db.SelectContext(ctx, &rows, query, doctorID); err != nil {
		return nil, fmt.Errorf("failed to list suspensions: %w", err)
	}
	return rowsToSuspensions(rows)
}

func (r *suspensionRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*model.Suspension, error) {
	var rows []suspensionRow
	query := `
		SELECT ` + suspensionColumns + `
		FROM suspensions
		WHERE status IN ('active', 'under_review')
		AND end_date IS NOT NULL
		AND end_date <= $1
		ORDER BY end_date ASC
		LIMIT $2
	`
	if err := r.db.SelectContext(ctx, &rows, query, now, limit); err != nil {
		return nil, fmt.Errorf("failed to list expired suspensions: %w", err)
	}
	return rowsToSuspensions(rows)
}

func getSuspension(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*model.Suspension, error) {
	var row suspensionRow
	query := `SELECT ` + suspensionColumns + ` FROM suspensions WHERE id = $1`
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		return nil, mapError(err)
	}
	return row.toModel()
}

func countSuspensions(ctx context.Context, q sqlx.QueryerContext, doctorID uuid.UUID, activeOnly bool) (int, error) {
	query := `SELECT COUNT(*) FROM suspensions WHERE doctor_id = $1`
	if activeOnly {
		query += ` AND status IN ('active', 'under_review')`
	}
	var n int
	if err := sqlx.GetContext(ctx, q, &n, query, doctorID); err != nil {
		return 0, fmt.Errorf("failed to count suspensions: %w", err)
	}
	return n, nil
}

func insertSuspension(ctx context.Context, e sqlx.ExtContext, s *model.Suspension) error {
	row, err := toSuspensionRow(s)
	if err != nil {
		return fmt.Errorf("failed to encode suspension: %w", err)
	}
	query := `
		INSERT INTO suspensions (` + suspensionColumns + `)
		VALUES (:id, :doctor_id, :type, :status, :severity, :reasons,
			:start_date, :end_date, :duration_days, :impact, :suspended_by, :reviewed_by,
			:appeal_status, :appeal_notes, :lift_note, :notifications, :created_at, :updated_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, e, query, row); err != nil {
		return fmt.Errorf("failed to create suspension: %w", mapError(err))
	}
	return nil
}

func updateSuspension(ctx context.Context, e sqlx.ExtContext, s *model.Suspension) error {
	row, err := toSuspensionRow(s)
	if err != nil {
		return fmt.Errorf("failed to encode suspension: %w", err)
	}
	query := `
		UPDATE suspensions SET
			status = :status,
			end_date = :end_date,
			reviewed_by = :reviewed_by,
			appeal_status = :appeal_status,
			appeal_notes = :appeal_notes,
			lift_note = :lift_note,
			notifications = :notifications,
			updated_at = :updated_at
		WHERE id = :id
	`
	res, err := sqlx.NamedExecContext(ctx, e, query, row)
	if err != nil {
		return fmt.Errorf("failed to update suspension: %w", err)
	}
	return requireAffected(res)
}
