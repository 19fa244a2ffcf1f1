package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/healthdesk/admin-api/internal/model"
)

var (
	// ErrNotFound is returned by every store when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique key (doctor email) is taken.
	ErrDuplicate = errors.New("duplicate record")
)

// All repository interfaces in one file
type (
	// DoctorTx is the view of the store available while a doctor is locked.
	// Every write made through it commits or rolls back as one unit.
	DoctorTx interface {
		FindDoctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		UpdateDoctorStatus(ctx context.Context, id uuid.UUID, status model.DoctorStatus) (*model.Doctor, error)
		DeleteDoctor(ctx context.Context, id uuid.UUID) error

		CountSuspensions(ctx context.Context, doctorID uuid.UUID) (int, error)
		CountActiveSuspensions(ctx context.Context, doctorID uuid.UUID) (int, error)
		GetSuspension(ctx context.Context, id uuid.UUID) (*model.Suspension, error)
		CreateSuspension(ctx context.Context, s *model.Suspension) error
		UpdateSuspension(ctx context.Context, s *model.Suspension) error
		DeleteSuspensions(ctx context.Context, doctorID uuid.UUID) (int64, error)

		CreateBlacklistEntry(ctx context.Context, entry *model.BlacklistEntry) error
		EnqueueEvent(ctx context.Context, event *model.OutboxEvent) error
	}

	// Store is the storage backend. WithDoctorLock serializes fn against
	// every other WithDoctorLock call for the same doctor.
	Store interface {
		WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(tx DoctorTx) error) error

		Doctors() DoctorRepository
		Suspensions() SuspensionRepository
		Blacklist() BlacklistRepository
		Activity() ActivityRepository
		Outbox() OutboxRepository

		Ping(ctx context.Context) error
		Close(ctx context.Context) error
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		GetByEmail(ctx context.Context, email string) (*model.Doctor, error)
		List(ctx context.Context, filter *model.DoctorFilter) ([]*model.Doctor, int64, error)
	}

	SuspensionRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Suspension, error)
		Count(ctx context.Context, doctorID uuid.UUID) (int, error)
		ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Suspension, error)
		ListExpired(ctx context.Context, now time.Time, limit int) ([]*model.Suspension, error)
	}

	BlacklistRepository interface {
		IsBlacklisted(ctx context.Context, email string) (bool, error)
		List(ctx context.Context, page model.Pagination) ([]*model.BlacklistEntry, int64, error)
	}

	ActivityRepository interface {
		Create(ctx context.Context, log *model.ActivityLog) error
		List(ctx context.Context, filter *model.ActivityFilter) ([]*model.ActivityLog, int64, error)
		Cleanup(ctx context.Context, before time.Time) (int64, error)
	}

	OutboxRepository interface {
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
