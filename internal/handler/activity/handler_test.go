package activity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/healthdesk/admin-api/internal/handler"
	"github.com/healthdesk/admin-api/internal/model"
)

type mockLister struct {
	mock.Mock
}

func (m *mockLister) List(ctx context.Context, filter *model.ActivityFilter, viewer model.Actor) ([]*model.ActivityLog, int64, error) {
	args := m.Called(ctx, filter, viewer)
	return args.Get(0).([]*model.ActivityLog), args.Get(1).(int64), args.Error(2)
}

func TestListActivityPassesFilterAndViewer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	viewer := model.Actor{ID: uuid.New(), Name: "Yaw", Role: model.RoleModerator}
	entity := uuid.New()

	lister := &mockLister{}
	lister.On("List", mock.Anything, mock.MatchedBy(func(f *model.ActivityFilter) bool {
		return f.Action == model.ActionSuspendDoctor &&
			f.EntityID != nil && *f.EntityID == entity &&
			f.Since != nil && f.Since.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) &&
			f.Page == 2
	}), mock.MatchedBy(func(a model.Actor) bool { return a.ID == viewer.ID })).
		Return([]*model.ActivityLog{{ID: uuid.New(), ActorName: "Anonymous Admin", Anonymized: true}}, int64(21), nil)

	r := gin.New()
	r.Use(func(c *gin.Context) { handler.SetActor(c, viewer) })
	NewHandler(lister).RegisterRoutes(&r.RouterGroup)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/activity-logs?action=SUSPEND_DOCTOR&entity_id="+entity.String()+"&since=2026-01-02T03:04:05Z&page=2", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data handler.ListData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(21), resp.Data.Meta.Total)
	assert.Contains(t, w.Body.String(), "Anonymous Admin")
	lister.AssertExpectations(t)
}

func TestListActivityRejectsBadQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { handler.SetActor(c, model.Actor{ID: uuid.New(), Role: model.RoleAdmin}) })
	NewHandler(&mockLister{}).RegisterRoutes(&r.RouterGroup)

	for _, q := range []string{"actor_id=nope", "entity_id=nope", "since=yesterday"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/activity-logs?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}
