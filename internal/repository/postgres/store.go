package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/healthdesk/admin-api/internal/repository"
)

// Store is the PostgreSQL backend.
type Store struct {
	BaseRepository
	doctors     *doctorRepository
	suspensions *suspensionRepository
	blacklist   *blacklistRepository
	activity    *activityRepository
	outbox      *outboxRepository
}

var _ repository.Store = (*Store)(nil)

func NewStore(db *sqlx.DB) *Store {
	base := NewBaseRepository(db)
	return &Store{
		BaseRepository: base,
		doctors:        &doctorRepository{base},
		suspensions:    &suspensionRepository{base},
		blacklist:      &blacklistRepository{base},
		activity:       &activityRepository{base},
		outbox:         &outboxRepository{base},
	}
}

// WithDoctorLock runs fn in one transaction holding a row lock on the doctor.
// A concurrent caller blocks on the lock and, if the doctor was deleted in the
// meantime, finds no row.
func (s *Store) WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(tx repository.DoctorTx) error) error {
	return s.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT id FROM doctors WHERE id = $1 FOR UPDATE`, doctorID); err != nil {
			return fmt.Errorf("failed to lock doctor: %w", err)
		}
		return fn(&doctorTx{tx: tx})
	})
}

func (s *Store) Doctors() repository.DoctorRepository         { return s.doctors }
func (s *Store) Suspensions() repository.SuspensionRepository { return s.suspensions }
func (s *Store) Blacklist() repository.BlacklistRepository    { return s.blacklist }
func (s *Store) Activity() repository.ActivityRepository      { return s.activity }
func (s *Store) Outbox() repository.OutboxRepository          { return s.outbox }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}
