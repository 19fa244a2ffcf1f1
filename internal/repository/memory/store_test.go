package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthdesk/admin-api/internal/model"
	"github.com/healthdesk/admin-api/internal/repository"
)

func seedDoctor(t *testing.T, s *Store) *model.Doctor {
	t.Helper()
	d := &model.Doctor{
		Base:   model.Base{ID: uuid.New(), CreatedAt: time.Now(), UpdatedAt: time.Now()},
		Name:   "Dr. Rivera",
		Email:  uuid.NewString() + "@clinic.test",
		Status: model.DoctorStatusApproved,
	}
	require.NoError(t, s.Doctors().Create(context.Background(), d))
	return d
}

func TestWithDoctorLockRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	d := seedDoctor(t, s)

	boom := errors.New("boom")
	err := s.WithDoctorLock(ctx, d.ID, func(tx repository.DoctorTx) error {
		_, err := tx.UpdateDoctorStatus(ctx, d.ID, model.DoctorStatusSuspended)
		require.NoError(t, err)
		require.NoError(t, tx.CreateSuspension(ctx, &model.Suspension{ID: uuid.New(), DoctorID: d.ID, Status: model.SuspensionStatusActive}))
		evt, err := model.NewOutboxEvent(model.EventDoctorSuspended, d.ID, map[string]string{"id": d.ID.String()})
		require.NoError(t, err)
		require.NoError(t, tx.EnqueueEvent(ctx, evt))
		require.NoError(t, tx.DeleteDoctor(ctx, d.ID))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Doctors().Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DoctorStatusApproved, got.Status)

	count, err := s.Suspensions().Count(ctx, d.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, s.OutboxEvents())
}

func TestWithDoctorLockHidesUncommittedWrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	d := seedDoctor(t, s)
	recID := uuid.New()

	err := s.WithDoctorLock(ctx, d.ID, func(tx repository.DoctorTx) error {
		updated, err := tx.UpdateDoctorStatus(ctx, d.ID, model.DoctorStatusSuspended)
		require.NoError(t, err)
		assert.Equal(t, model.DoctorStatusSuspended, updated.Status)
		require.NoError(t, tx.CreateSuspension(ctx, &model.Suspension{ID: recID, DoctorID: d.ID, Status: model.SuspensionStatusActive}))

		inTx, err := tx.FindDoctor(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, model.DoctorStatusSuspended, inTx.Status)
		n, err := tx.CountSuspensions(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		outside, err := s.Doctors().Get(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, model.DoctorStatusApproved, outside.Status)
		count, err := s.Suspensions().Count(ctx, d.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
		_, err = s.Suspensions().Get(ctx, recID)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		return nil
	})
	require.NoError(t, err)

	got, err := s.Doctors().Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DoctorStatusSuspended, got.Status)
	recs, err := s.Suspensions().ListByDoctor(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, recID, recs[0].ID)
}

func TestWithDoctorLockDeletePath(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	d := seedDoctor(t, s)
	for i := 0; i < 2; i++ {
		require.NoError(t, s.WithDoctorLock(ctx, d.ID, func(tx repository.DoctorTx) error {
			return tx.CreateSuspension(ctx, &model.Suspension{ID: uuid.New(), DoctorID: d.ID, Status: model.SuspensionStatusActive})
		}))
	}

	err := s.WithDoctorLock(ctx, d.ID, func(tx repository.DoctorTx) error {
		n, err := tx.DeleteSuspensions(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		left, err := tx.CountSuspensions(ctx, d.ID)
		require.NoError(t, err)
		assert.Zero(t, left)
		require.NoError(t, tx.DeleteDoctor(ctx, d.ID))
		_, err = tx.FindDoctor(ctx, d.ID)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		return tx.CreateBlacklistEntry(ctx, &model.BlacklistEntry{ID: uuid.New(), Email: d.Email, DoctorID: d.ID})
	})
	require.NoError(t, err)

	_, err = s.Doctors().Get(ctx, d.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	count, err := s.Suspensions().Count(ctx, d.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
	listed, err := s.Blacklist().IsBlacklisted(ctx, d.Email)
	require.NoError(t, err)
	assert.True(t, listed)
}

func TestWithDoctorLockPanicLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	d := seedDoctor(t, s)

	assert.Panics(t, func() {
		_ = s.WithDoctorLock(ctx, d.ID, func(tx repository.DoctorTx) error {
			_, _ = tx.UpdateDoctorStatus(ctx, d.ID, model.DoctorStatusSuspended)
			panic("boom")
		})
	})

	got, err := s.Doctors().Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DoctorStatusApproved, got.Status)
	assert.Empty(t, s.locks.locks)
}

func TestWithDoctorLockSerializesSameDoctor(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	d := seedDoctor(t, s)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.WithDoctorLock(ctx, d.ID, func(tx repository.DoctorTx) error {
				n, err := tx.CountSuspensions(ctx, d.ID)
				if err != nil {
					return err
				}
				// Only the first caller may create a record.
				if n > 0 {
					return nil
				}
				return tx.CreateSuspension(ctx, &model.Suspension{ID: uuid.New(), DoctorID: d.ID, Status: model.SuspensionStatusActive})
			})
		}()
	}
	wg.Wait()

	count, err := s.Suspensions().Count(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Empty(t, s.locks.locks)
}

func TestListByDoctorKeepsCreationOrder(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	d := seedDoctor(t, s)

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		id := uuid.New()
		ids = append(ids, id)
		require.NoError(t, s.WithDoctorLock(ctx, d.ID, func(tx repository.DoctorTx) error {
			return tx.CreateSuspension(ctx, &model.Suspension{ID: id, DoctorID: d.ID})
		}))
	}

	recs, err := s.Suspensions().ListByDoctor(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, recs, 5)
	for i, rec := range recs {
		assert.Equal(t, ids[i], rec.ID)
	}
}

func TestDoctorEmailIsUnique(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	d := seedDoctor(t, s)

	dup := &model.Doctor{Base: model.Base{ID: uuid.New()}, Email: d.Email}
	assert.ErrorIs(t, s.Doctors().Create(ctx, dup), repository.ErrDuplicate)
}

func TestListExpiredSkipsIndefiniteAndClosed(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	d := seedDoctor(t, s)

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	recs := []*model.Suspension{
		{ID: uuid.New(), DoctorID: d.ID, Status: model.SuspensionStatusActive, Period: model.SuspensionPeriod{EndDate: &past}},
		{ID: uuid.New(), DoctorID: d.ID, Status: model.SuspensionStatusActive, Period: model.SuspensionPeriod{EndDate: &future}},
		{ID: uuid.New(), DoctorID: d.ID, Status: model.SuspensionStatusActive},
		{ID: uuid.New(), DoctorID: d.ID, Status: model.SuspensionStatusLifted, Period: model.SuspensionPeriod{EndDate: &past}},
	}
	require.NoError(t, s.WithDoctorLock(ctx, d.ID, func(tx repository.DoctorTx) error {
		for _, rec := range recs {
			if err := tx.CreateSuspension(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	}))

	expired, err := s.Suspensions().ListExpired(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, recs[0].ID, expired[0].ID)
}

func TestOutboxLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	d := seedDoctor(t, s)

	evt, err := model.NewOutboxEvent(model.EventDoctorSuspended, d.ID, map[string]string{})
	require.NoError(t, err)
	require.NoError(t, s.WithDoctorLock(ctx, d.ID, func(tx repository.DoctorTx) error {
		return tx.EnqueueEvent(ctx, evt)
	}))

	pending, err := s.Outbox().GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.Outbox().MarkRetry(ctx, evt.ID, "broker down", time.Now().Add(time.Hour)))
	pending, err = s.Outbox().GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, s.Outbox().MarkProcessed(ctx, evt.ID))
	removed, err := s.Outbox().DeleteProcessedBefore(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}
