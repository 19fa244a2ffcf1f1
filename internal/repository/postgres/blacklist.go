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

type blacklistRow struct {
	ID              uuid.UUID `db:"id"`
	Email           string    `db:"email"`
	DoctorID        uuid.UUID `db:"doctor_id"`
	DoctorName      string    `db:"doctor_name"`
	Reason          string    `db:"reason"`
	SuspensionCount int       `db:"suspension_count"`
	FinalSuspension []byte    `db:"final_suspension"`
	BlacklistedBy   uuid.UUID `db:"blacklisted_by"`
	CreatedAt       time.Time `db:"created_at"`
}

type blacklistRepository struct {
	BaseRepository
}

func (r *blacklistRepository) IsBlacklisted(ctx context.Context, email string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM blacklist WHERE lower(email) = lower($1))`
	if err := r.db.GetContext(ctx, &exists, query, email); err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return exists, nil
}

func (r *blacklistRepository) List(ctx context.Context, page model.Pagination) ([]*model.BlacklistEntry, int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM blacklist`); err != nil {
		return nil, 0, fmt.Errorf("failed to count blacklist: %w", err)
	}

	offset := page.Normalize()
	var rows []blacklistRow
	query := `
		SELECT id, email, doctor_id, doctor_name, reason, suspension_count,
			final_suspension, blacklisted_by, created_at
		FROM blacklist
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	if err := r.db.SelectContext(ctx, &rows, query, page.PageSize, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list blacklist: %w", err)
	}

	entries := make([]*model.BlacklistEntry, 0, len(rows))
	for _, row := range rows {
		entry := &model.BlacklistEntry{
			ID:              row.ID,
			Email:           row.Email,
			DoctorID:        row.DoctorID,
			DoctorName:      row.DoctorName,
			Reason:          row.Reason,
			SuspensionCount: row.SuspensionCount,
			BlacklistedBy:   row.BlacklistedBy,
			CreatedAt:       row.CreatedAt,
		}
		if len(row.FinalSuspension) > 0 {
			if err := json.Unmarshal(row.FinalSuspension, &entry.FinalSuspension); err != nil {
				return nil, 0, fmt.Errorf("failed to decode final suspension: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, total, nil
}

func insertBlacklistEntry(ctx context.Context, e sqlx.ExecerContext, entry *model.BlacklistEntry) error {
	var final []byte
	if entry.FinalSuspension != nil {
		var err error
		if final, err = json.Marshal(entry.FinalSuspension); err != nil {
			return fmt.Errorf("failed to encode final suspension: %w", err)
		}
	}

	query := `
		INSERT INTO blacklist (
			id, email, doctor_id, doctor_name, reason, suspension_count,
			final_suspension, blacklisted_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := e.ExecContext(ctx, query,
		entry.ID,
		entry.Email,
		entry.DoctorID,
		entry.DoctorName,
		entry.Reason,
		entry.SuspensionCount,
		final,
		entry.BlacklistedBy,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create blacklist entry: %w", err)
	}
	return nil
}
