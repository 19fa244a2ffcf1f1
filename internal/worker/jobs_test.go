package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/healthdesk/admin-api/pkg/metrics"
)

type mockExpirer struct {
	mock.Mock
}

func (m *mockExpirer) ExpireDue(ctx context.Context, now time.Time, limit int) (int, error) {
	args := m.Called(ctx, now, limit)
	return args.Int(0), args.Error(1)
}

type mockCleaner struct {
	mock.Mock
}

func (m *mockCleaner) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	args := m.Called(ctx, retention)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCleaner) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func TestExpiryJobDrainsBacklog(t *testing.T) {
	exp := &mockExpirer{}
	exp.On("ExpireDue", mock.Anything, mock.Anything, 2).Return(2, nil).Twice()
	exp.On("ExpireDue", mock.Anything, mock.Anything, 2).Return(1, nil).Once()

	require.NoError(t, NewExpiryJob(exp, 2, nil).Run(context.Background()))
	exp.AssertNumberOfCalls(t, "ExpireDue", 3)
}

func TestExpiryJobReportsFailure(t *testing.T) {
	exp := &mockExpirer{}
	exp.On("ExpireDue", mock.Anything, mock.Anything, 100).Return(1, errors.New("lock timeout"))

	err := NewExpiryJob(exp, 0, nil).Run(context.Background())
	assert.ErrorContains(t, err, "lock timeout")
}

func TestCleanupJobs(t *testing.T) {
	cleaner := &mockCleaner{}
	cleaner.On("Cleanup", mock.Anything, 30*24*time.Hour).Return(int64(4), nil).Once()
	require.NoError(t, NewActivityCleanupJob(cleaner, 30, nil).Run(context.Background()))

	fixed := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	job := NewOutboxCleanupJob(cleaner, 7, nil)
	job.now = func() time.Time { return fixed }
	cleaner.On("DeleteProcessedBefore", mock.Anything, fixed.AddDate(0, 0, -7)).Return(int64(2), nil).Once()
	require.NoError(t, job.Run(context.Background()))

	// Zero retention keeps everything.
	require.NoError(t, NewOutboxCleanupJob(cleaner, 0, nil).Run(context.Background()))
	cleaner.AssertExpectations(t)
}

func TestSchedulerRecordsRuns(t *testing.T) {
	m := metrics.New("test")
	s := NewScheduler(time.Second, nil, m)

	exp := &mockExpirer{}
	exp.On("ExpireDue", mock.Anything, mock.Anything, 10).Return(0, nil).Once()
	exp.On("ExpireDue", mock.Anything, mock.Anything, 10).Return(0, errors.New("db down")).Once()
	job := NewExpiryJob(exp, 10, nil)

	require.NoError(t, s.Add("@every 1h", job))
	assert.Equal(t, 1, s.Entries())
	assert.Error(t, s.Add("not a schedule", job))

	require.NoError(t, s.RunNow(job))
	assert.Error(t, s.RunNow(job))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.JobRuns.WithLabelValues("expire_suspensions", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.JobRuns.WithLabelValues("expire_suspensions", "error")))

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
