package postgres

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS doctors (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		specializations TEXT[] NOT NULL DEFAULT '{}',
		positive_reviews INTEGER NOT NULL DEFAULT 0,
		neutral_reviews INTEGER NOT NULL DEFAULT 0,
		negative_reviews INTEGER NOT NULL DEFAULT 0,
		average_rating DOUBLE PRECISION NOT NULL DEFAULT 0,
		lock_version BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS doctors_email_key ON doctors (lower(email))`,
	`CREATE TABLE IF NOT EXISTS suspensions (
		id UUID PRIMARY KEY,
		doctor_id UUID NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		severity TEXT NOT NULL,
		reasons JSONB NOT NULL,
		start_date TIMESTAMPTZ NOT NULL,
		end_date TIMESTAMPTZ,
		duration_days INTEGER,
		impact JSONB NOT NULL,
		suspended_by UUID NOT NULL,
		reviewed_by JSONB NOT NULL DEFAULT '[]',
		appeal_status TEXT NOT NULL,
		appeal_notes TEXT NOT NULL DEFAULT '',
		lift_note TEXT NOT NULL DEFAULT '',
		notifications JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS suspensions_doctor_idx ON suspensions (doctor_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS suspensions_expiry_idx ON suspensions (end_date) WHERE status IN ('active', 'under_review')`,
	`CREATE TABLE IF NOT EXISTS blacklist (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL,
		doctor_id UUID NOT NULL,
		doctor_name TEXT NOT NULL,
		reason TEXT NOT NULL,
		suspension_count INTEGER NOT NULL,
		final_suspension JSONB,
		blacklisted_by UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS blacklist_email_idx ON blacklist (lower(email))`,
	`CREATE TABLE IF NOT EXISTS activity_logs (
		id UUID PRIMARY KEY,
		actor_id UUID NOT NULL,
		actor_name TEXT NOT NULL,
		actor_role TEXT NOT NULL,
		action TEXT NOT NULL,
		details TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id UUID NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}',
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS activity_logs_created_idx ON activity_logs (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id UUID PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_id UUID NOT NULL,
		payload JSONB NOT NULL,
		status TEXT NOT NULL,
		error_message TEXT,
		retry_count INTEGER NOT NULL DEFAULT 0,
		retry_at TIMESTAMPTZ,
		processed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS outbox_events_pending_idx ON outbox_events (created_at) WHERE status IN ('pending', 'retry')`,
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", i, err)
		}
	}
	return nil
}
