package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/healthdesk/admin-api/internal/model"
)

const doctorColumns = `id, name, email, phone, status, specializations,
	positive_reviews, neutral_reviews, negative_reviews, average_rating,
	lock_version, created_at, updated_at`

type doctorRepository struct {
	BaseRepository
}

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	query := `
		INSERT INTO doctors (` + doctorColumns + `)
		VALUES (:id, :name, :email, :phone, :status, :specializations,
			:positive_reviews, :neutral_reviews, :negative_reviews, :average_rating,
			:lock_version, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, doctor); err != nil {
		return fmt.Errorf("failed to create doctor: %w", mapError(err))
	}
	return nil
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	return getDoctor(ctx, r.db, id)
}

func (r *doctorRepository) GetByEmail(ctx context.Context, email string) (*model.Doctor, error) {
	var doctor model.Doctor
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE lower(email) = lower($1)`
	if err := r.db.GetContext(ctx, &doctor, query, email); err != nil {
		return nil, mapError(err)
	}
	return &doctor, nil
}

func (r *doctorRepository) List(ctx context.Context, filter *model.DoctorFilter) ([]*model.Doctor, int64, error) {
	if filter == nil {
		filter = &model.DoctorFilter{}
	}

	var (
		conds []string
		args  []interface{}
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conds = append(conds, fmt.Sprintf("(lower(name) LIKE $%d OR lower(email) LIKE $%d)", len(args), len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM doctors`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count doctors: %w", err)
	}

	offset := filter.Pagination.Normalize()
	args = append(args, filter.PageSize, offset)
	query := fmt.Sprintf(`SELECT %s FROM doctors%s ORDER BY created_at ASC LIMIT $%d OFFSET $%d`,
		doctorColumns, where, len(args)-1, len(args))

	doctors := []*model.Doctor{}
	if err := r.db.SelectContext(ctx, &doctors, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, total, nil
}

func getDoctor(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*model.Doctor, error) {
	var doctor model.Doctor
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE id = $1`
	if err := sqlx.GetContext(ctx, q, &doctor, query, id); err != nil {
		return nil, mapError(err)
	}
	return &doctor, nil
}

// doctorTx implements repository.DoctorTx on an open transaction.
type doctorTx struct {
	tx *sqlx.Tx
}

func (t *doctorTx) FindDoctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	return getDoctor(ctx, t.tx, id)
}

func (t *doctorTx) UpdateDoctorStatus(ctx context.Context, id uuid.UUID, status model.DoctorStatus) (*model.Doctor, error) {
	var doctor model.Doctor
	query := `
		UPDATE doctors
		SET status = $1, lock_version = lock_version + 1, updated_at = $2
		WHERE id = $3
		RETURNING ` + doctorColumns
	if err := t.tx.GetContext(ctx, &doctor, query, status, time.Now().UTC(), id); err != nil {
		return nil, mapError(err)
	}
	return &doctor, nil
}

func (t *doctorTx) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete doctor: %w", err)
	}
	return requireAffected(res)
}

func (t *doctorTx) CountSuspensions(ctx context.Context, doctorID uuid.UUID) (int, error) {
	return countSuspensions(ctx, t.tx, doctorID, false)
}

func (t *doctorTx) CountActiveSuspensions(ctx context.Context, doctorID uuid.UUID) (int, error) {
	return countSuspensions(ctx, t.tx, doctorID, true)
}

func (t *doctorTx) GetSuspension(ctx context.Context, id uuid.UUID) (*model.Suspension, error) {
	return getSuspension(ctx, t.tx, id)
}

func (t *doctorTx) CreateSuspension(ctx context.Context, s *model.Suspension) error {
	return insertSuspension(ctx, t.tx, s)
}

func (t *doctorTx) UpdateSuspension(ctx context.Context, s *model.Suspension) error {
	return updateSuspension(ctx, t.tx, s)
}

func (t *doctorTx) DeleteSuspensions(ctx context.Context, doctorID uuid.UUID) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM suspensions WHERE doctor_id = $1`, doctorID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete suspensions: %w", err)
	}
	return res.RowsAffected()
}

func (t *doctorTx) CreateBlacklistEntry(ctx context.Context, entry *model.BlacklistEntry) error {
	return insertBlacklistEntry(ctx, t.tx, entry)
}

func (t *doctorTx) EnqueueEvent(ctx context.Context, event *model.OutboxEvent) error {
	return insertOutboxEvent(ctx, t.tx, event)
}
