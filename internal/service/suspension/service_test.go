package suspension

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/healthdesk/admin-api/internal/model"
	"github.com/healthdesk/admin-api/internal/repository"
	"github.com/healthdesk/admin-api/internal/repository/memory"
	"github.com/healthdesk/admin-api/internal/service/activity"
	apperrors "github.com/healthdesk/admin-api/pkg/errors"
	"github.com/healthdesk/admin-api/pkg/metrics"
)

var admin = model.Actor{ID: uuid.New(), Name: "Priya", Role: model.RoleAdmin}

type mockActivity struct {
	mock.Mock
}

func (m *mockActivity) Log(ctx context.Context, entry activity.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

type fixture struct {
	svc      *Service
	store    *memory.Store
	activity *activity.Service
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	act := activity.NewService(store.Activity())
	m := metrics.New("test")
	return &fixture{
		svc:      NewService(store, DefaultPolicy(), act, m, nil),
		store:    store,
		activity: act,
		metrics:  m,
	}
}

func (f *fixture) doctor(t *testing.T) *model.Doctor {
	t.Helper()
	now := time.Now().UTC()
	d := &model.Doctor{
		Base:   model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Name:   "Dr. Adeyemi",
		Email:  uuid.NewString() + "@clinic.test",
		Status: model.DoctorStatusApproved,
	}
	require.NoError(t, f.store.Doctors().Create(context.Background(), d))
	return d
}

// seed inserts n suspension records directly, bypassing the policy.
func (f *fixture) seed(t *testing.T, doctorID uuid.UUID, n int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.WithDoctorLock(ctx, doctorID, func(tx repository.DoctorTx) error {
		for i := 0; i < n; i++ {
			rec := &model.Suspension{ID: uuid.New(), DoctorID: doctorID, Status: model.SuspensionStatusLifted, ReviewedBy: []uuid.UUID{}}
			if err := tx.CreateSuspension(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	}))
}

func reasons(r ...string) *SuspendRequest {
	return &SuspendRequest{Reasons: r}
}

func TestSuspendBelowThresholdAddsOneRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.doctor(t)

	for i := 0; i < 5; i++ {
		res, err := f.svc.SuspendDoctor(ctx, d.ID, reasons("no-show"), admin)
		require.NoError(t, err)
		assert.False(t, res.Deleted)
		assert.Equal(t, model.DoctorStatusSuspended, res.Doctor.Status)
		assert.Equal(t, i+1, res.SuspensionCount)

		count, err := f.store.Suspensions().Count(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, i+1, count)
	}
}

func TestFirstSuspensionScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.doctor(t)

	days := 30
	res, err := f.svc.SuspendDoctor(ctx, d.ID, &SuspendRequest{Reasons: []string{"late filings"}, Duration: &days}, admin)
	require.NoError(t, err)

	assert.Equal(t, model.DoctorStatusSuspended, res.Doctor.Status)
	rec := res.Suspension
	require.NotNil(t, rec.Period.Duration)
	assert.Equal(t, 30, *rec.Period.Duration)
	require.NotNil(t, rec.Period.EndDate)
	assert.Equal(t, rec.Period.StartDate.AddDate(0, 0, 30), *rec.Period.EndDate)

	assert.Equal(t, model.SuspensionTypeTemporary, rec.Type)
	assert.Equal(t, model.SeverityModerate, rec.Severity)
	assert.Equal(t, model.SuspensionStatusActive, rec.Status)
	assert.Equal(t, model.AppealStatusNone, rec.AppealStatus)
	assert.Equal(t, admin.ID, rec.SuspendedBy)
	assert.Empty(t, rec.ReviewedBy)
	assert.Equal(t, model.DefaultNotificationFlags(), rec.Notifications)
	assert.Equal(t, []model.SuspensionReason{{Category: model.ReasonCategoryOther, Description: "late filings", Severity: model.SeverityModerate}}, rec.Reasons)

	summary, err := f.svc.GetSuspensionCount(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SuspensionCount)
}

func TestIndefiniteDuration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.doctor(t)

	zero := 0
	for _, req := range []*SuspendRequest{
		{Reasons: []string{"a"}},
		{Reasons: []string{"b"}, Duration: &zero},
		{Reasons: []string{"c"}, Duration: intPtr(10), Type: model.SuspensionTypePermanent},
	} {
		res, err := f.svc.SuspendDoctor(ctx, d.ID, req, admin)
		require.NoError(t, err)
		assert.Nil(t, res.Suspension.Period.EndDate)
		assert.Nil(t, res.Suspension.Period.Duration)
	}
}

func intPtr(v int) *int { return &v }

func TestSixthSuspensionDeletesDoctor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.doctor(t)
	f.seed(t, d.ID, 5)

	res, err := f.svc.SuspendDoctor(ctx, d.ID, reasons("repeat violation"), admin)
	require.NoError(t, err)
	assert.True(t, res.Deleted)
	assert.NotEmpty(t, res.Message)
	assert.Nil(t, res.Doctor)
	assert.Equal(t, 6, res.SuspensionCount)

	_, err = f.store.Doctors().Get(ctx, d.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	count, err := f.store.Suspensions().Count(ctx, d.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = f.svc.GetSuspensionCount(ctx, d.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	listed, err := f.store.Blacklist().IsBlacklisted(ctx, d.Email)
	require.NoError(t, err)
	assert.True(t, listed)

	entries, _, err := f.store.Blacklist().List(ctx, model.Pagination{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	final := entries[0].FinalSuspension
	require.NotNil(t, final)
	assert.Equal(t, model.SuspensionTypePermanent, final.Type)
	assert.Equal(t, model.SuspensionStatusRevoked, final.Status)
	assert.Equal(t, "repeat violation", final.Reasons[0].Description)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.DoctorsAutoDeleted))
}

func TestDeletePathLogsBothActions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.doctor(t)
	f.seed(t, d.ID, 5)

	_, err := f.svc.SuspendDoctor(ctx, d.ID, reasons("repeat violation"), admin)
	require.NoError(t, err)

	logs, _, err := f.activity.List(ctx, &model.ActivityFilter{}, model.Actor{Role: model.RoleSuperAdmin})
	require.NoError(t, err)
	var actions []model.ActivityAction
	for _, l := range logs {
		actions = append(actions, l.Action)
	}
	assert.ElementsMatch(t, []model.ActivityAction{model.ActionSuspendDoctor, model.ActionAutoDeleteDoctor}, actions)

	events := f.store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventDoctorAutoDeleted, events[0].EventType)
}

func TestWarningOnFifthSuspension(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.doctor(t)
	f.seed(t, d.ID, 4)

	res, err := f.svc.SuspendDoctor(ctx, d.ID, reasons("late"), admin)
	require.NoError(t, err)
	assert.Equal(t, DecisionSuspendWithWarning, res.Decision)
	assert.NotEmpty(t, res.Warning)

	summary, err := f.svc.GetSuspensionCount(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, summary.IsAtWarningThreshold)
	assert.False(t, summary.NextSuspensionWillDelete)
}

func TestSuspensionCountFlags(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, n := range []int{0, 4, 5, 6} {
		d := f.doctor(t)
		f.seed(t, d.ID, n)

		summary, err := f.svc.GetSuspensionCount(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, n, summary.SuspensionCount)
		assert.Equal(t, d.Name, summary.DoctorName)
		assert.Equal(t, n >= 5, summary.IsAtWarningThreshold, "n=%d", n)
		assert.Equal(t, n >= 6, summary.NextSuspensionWillDelete, "n=%d", n)
	}
}

func TestEmptyReasonsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.doctor(t)

	for _, req := range []*SuspendRequest{nil, reasons(), reasons("", "   ", "\t\n")} {
		_, err := f.svc.SuspendDoctor(ctx, d.ID, req, admin)
		assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	}

	count, err := f.store.Suspensions().Count(ctx, d.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	got, err := f.store.Doctors().Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DoctorStatusApproved, got.Status)
}

func TestReasonsAreTrimmed(t *testing.T) {
	f := newFixture(t)
	d := f.doctor(t)

	res, err := f.svc.SuspendDoctor(context.Background(), d.ID, reasons("  late  ", " ", "rude"), admin)
	require.NoError(t, err)
	require.Len(t, res.Suspension.Reasons, 2)
	assert.Equal(t, "late", res.Suspension.Reasons[0].Description)
	assert.Equal(t, "rude", res.Suspension.Reasons[1].Description)
}

func TestInvalidEnumsRejected(t *testing.T) {
	f := newFixture(t)
	d := f.doctor(t)

	_, err := f.svc.SuspendDoctor(context.Background(), d.ID, &SuspendRequest{Reasons: []string{"x"}, Type: "forever"}, admin)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestSystemAccessImpliesAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.doctor(t)

	req := &SuspendRequest{Reasons: []string{"breach"}, Impact: model.Impact{SystemAccess: true}}
	res, err := f.svc.SuspendDoctor(ctx, d.ID, req, admin)
	require.NoError(t, err)

	stored, err := f.store.Suspensions().Get(ctx, res.Suspension.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Impact{PatientAccess: true, Scheduling: true, Prescriptions: true, SystemAccess: true}, stored.Impact)

	req = &SuspendRequest{Reasons: []string{"late"}, Impact: model.Impact{Scheduling: true}}
	res, err = f.svc.SuspendDoctor(ctx, d.ID, req, admin)
	require.NoError(t, err)
	assert.Equal(t, model.Impact{Scheduling: true}, res.Suspension.Impact)
}

func TestUnknownDoctor(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SuspendDoctor(context.Background(), uuid.New(), reasons("x"), admin)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	_, err = f.svc.ListSuspensions(context.Background(), uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestConcurrentSuspensionsEscalateOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.doctor(t)

	const callers = 10
	var (
		wg                          sync.WaitGroup
		mu                          sync.Mutex
		suspended, deleted, missing int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.SuspendDoctor(ctx, d.ID, reasons("concurrent"), admin)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil && apperrors.Is(err, apperrors.ErrNotFound):
				missing++
			case err != nil:
				t.Errorf("unexpected error: %v", err)
			case res.Deleted:
				deleted++
			default:
				suspended++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, suspended)
	assert.Equal(t, 1, deleted)
	assert.Equal(t, callers-6, missing)

	entries, total, err := f.store.Blacklist().List(ctx, model.Pagination{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, entries, 1)
}

func TestActivityFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	m := metrics.New("test")
	act := &mockActivity{}
	act.On("Log", mock.Anything, mock.MatchedBy(func(e activity.Entry) bool {
		return e.Action == model.ActionSuspendDoctor && e.Actor.ID == admin.ID
	})).Return(errors.New("activity store down")).Once()

	svc := NewService(store, DefaultPolicy(), act, m, nil)
	d := &model.Doctor{Base: model.Base{ID: uuid.New()}, Name: "Dr. Sato", Email: "sato@clinic.test", Status: model.DoctorStatusApproved}
	require.NoError(t, store.Doctors().Create(ctx, d))

	res, err := svc.SuspendDoctor(ctx, d.ID, reasons("late"), admin)
	require.NoError(t, err)
	assert.Equal(t, model.DoctorStatusSuspended, res.Doctor.Status)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActivityLogFailures))
	act.AssertExpectations(t)
}

type panickingActivity struct{}

func (panickingActivity) Log(context.Context, activity.Entry) error { panic("boom") }

func TestActivityPanicIsSwallowed(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	m := metrics.New("test")
	svc := NewService(store, DefaultPolicy(), panickingActivity{}, m, nil)

	d := &model.Doctor{Base: model.Base{ID: uuid.New()}, Name: "Dr. Sato", Email: "sato@clinic.test", Status: model.DoctorStatusApproved}
	require.NoError(t, store.Doctors().Create(ctx, d))

	_, err := svc.SuspendDoctor(ctx, d.ID, reasons("late"), admin)
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActivityLogFailures))
}

func TestSuspendEnqueuesEvent(t *testing.T) {
	f := newFixture(t)
	d := f.doctor(t)

	_, err := f.svc.SuspendDoctor(context.Background(), d.ID, reasons("late"), admin)
	require.NoError(t, err)

	events := f.store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventDoctorSuspended, events[0].EventType)
	assert.Equal(t, d.ID, events[0].AggregateID)
	assert.Equal(t, model.OutboxStatusPending, events[0].Status)
}

func TestListSuspensionsInCreationOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.doctor(t)

	var ids []uuid.UUID
	for _, r := range []string{"first", "second", "third"} {
		res, err := f.svc.SuspendDoctor(ctx, d.ID, reasons(r), admin)
		require.NoError(t, err)
		ids = append(ids, res.Suspension.ID)
	}

	recs, err := f.svc.ListSuspensions(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	for i, rec := range recs {
		assert.Equal(t, ids[i], rec.ID)
	}
}

func TestLiftSuspension(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.doctor(t)

	first, err := f.svc.SuspendDoctor(ctx, d.ID, reasons("one"), admin)
	require.NoError(t, err)
	second, err := f.svc.SuspendDoctor(ctx, d.ID, reasons("two"), admin)
	require.NoError(t, err)

	res, err := f.svc.LiftSuspension(ctx, first.Suspension.ID, admin, "resolved")
	require.NoError(t, err)
	assert.False(t, res.Reinstated)
	assert.Equal(t, model.SuspensionStatusLifted, res.Suspension.Status)
	assert.Equal(t, "resolved", res.Suspension.LiftNote)
	assert.Contains(t, res.Suspension.ReviewedBy, admin.ID)

	res, err = f.svc.LiftSuspension(ctx, second.Suspension.ID, admin, "")
	require.NoError(t, err)
	assert.True(t, res.Reinstated)
	assert.Equal(t, model.DoctorStatusApproved, res.Doctor.Status)

	_, err = f.svc.LiftSuspension(ctx, second.Suspension.ID, admin, "")
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	_, err = f.svc.LiftSuspension(ctx, uuid.New(), admin, "")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	// Lifted records still count towards escalation.
	count, err := f.store.Suspensions().Count(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestExpireDue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.doctor(t)

	finite, err := f.svc.SuspendDoctor(ctx, d.ID, &SuspendRequest{Reasons: []string{"late"}, Duration: intPtr(1)}, admin)
	require.NoError(t, err)

	other := f.doctor(t)
	_, err = f.svc.SuspendDoctor(ctx, other.ID, reasons("indefinite"), admin)
	require.NoError(t, err)

	n, err := f.svc.ExpireDue(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.svc.ExpireDue(ctx, time.Now().UTC().Add(48*time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, err := f.store.Suspensions().Get(ctx, finite.Suspension.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SuspensionStatusExpired, rec.Status)

	doc, err := f.store.Doctors().Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DoctorStatusApproved, doc.Status)

	doc, err = f.store.Doctors().Get(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DoctorStatusSuspended, doc.Status)
}

func TestAppealFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.doctor(t)

	res, err := f.svc.SuspendDoctor(ctx, d.ID, reasons("late"), admin)
	require.NoError(t, err)
	id := res.Suspension.ID

	_, err = f.svc.ReviewAppeal(ctx, id, &ReviewRequest{Decision: model.AppealStatusApproved}, admin)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict), "no appeal submitted yet")

	_, err = f.svc.SubmitAppeal(ctx, id, "   ", admin)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	rec, err := f.svc.SubmitAppeal(ctx, id, "I was on leave", admin)
	require.NoError(t, err)
	assert.Equal(t, model.AppealStatusSubmitted, rec.AppealStatus)

	_, err = f.svc.SubmitAppeal(ctx, id, "again", admin)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	reviewer := model.Actor{ID: uuid.New(), Name: "Lee", Role: model.RoleSuperAdmin}
	out, err := f.svc.ReviewAppeal(ctx, id, &ReviewRequest{Decision: model.AppealStatusUnderReview}, reviewer)
	require.NoError(t, err)
	assert.Equal(t, model.SuspensionStatusUnderReview, out.Suspension.Status)
	assert.Equal(t, []uuid.UUID{reviewer.ID}, out.Suspension.ReviewedBy)

	out, err = f.svc.ReviewAppeal(ctx, id, &ReviewRequest{Decision: model.AppealStatusApproved, Notes: "leave confirmed"}, reviewer)
	require.NoError(t, err)
	assert.Equal(t, model.SuspensionStatusLifted, out.Suspension.Status)
	assert.Equal(t, model.AppealStatusApproved, out.Suspension.AppealStatus)
	assert.True(t, out.Reinstated)
	assert.Equal(t, []uuid.UUID{reviewer.ID}, out.Suspension.ReviewedBy)

	_, err = f.svc.ReviewAppeal(ctx, id, &ReviewRequest{Decision: "maybe"}, reviewer)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestRejectedAppealKeepsSuspension(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.doctor(t)

	res, err := f.svc.SuspendDoctor(ctx, d.ID, reasons("late"), admin)
	require.NoError(t, err)
	_, err = f.svc.SubmitAppeal(ctx, res.Suspension.ID, "please", admin)
	require.NoError(t, err)

	out, err := f.svc.ReviewAppeal(ctx, res.Suspension.ID, &ReviewRequest{Decision: model.AppealStatusRejected}, admin)
	require.NoError(t, err)
	assert.Equal(t, model.SuspensionStatusActive, out.Suspension.Status)
	assert.Equal(t, model.AppealStatusRejected, out.Suspension.AppealStatus)

	doc, err := f.store.Doctors().Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DoctorStatusSuspended, doc.Status)
}
