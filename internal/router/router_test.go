package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/healthdesk/admin-api/internal/handler"
	activityHandler "github.com/healthdesk/admin-api/internal/handler/activity"
	blacklistHandler "github.com/healthdesk/admin-api/internal/handler/blacklist"
	doctorHandler "github.com/healthdesk/admin-api/internal/handler/doctor"
	suspensionHandler "github.com/healthdesk/admin-api/internal/handler/suspension"
	"github.com/healthdesk/admin-api/internal/middleware"
	"github.com/healthdesk/admin-api/internal/model"
	"github.com/healthdesk/admin-api/internal/repository/memory"
	activityService "github.com/healthdesk/admin-api/internal/service/activity"
	doctorService "github.com/healthdesk/admin-api/internal/service/doctor"
	suspensionService "github.com/healthdesk/admin-api/internal/service/suspension"
	"github.com/healthdesk/admin-api/pkg/auth"
	"github.com/healthdesk/admin-api/pkg/metrics"
)

func newTestRouter(t *testing.T, limit rate.Limit) (*Router, auth.JWTService) {
	t.Helper()
	store := memory.NewStore()
	reg := prometheus.NewRegistry()
	activitySvc := activityService.NewService(store.Activity())
	jwtSvc := auth.NewJWTService("router-secret", "admin-api", time.Hour)

	r := NewRouter(
		middleware.NewAuthMiddleware(jwtSvc),
		Handlers{
			Doctor:     doctorHandler.NewHandler(doctorService.NewService(store, activitySvc, nil, nil)),
			Suspension: suspensionHandler.NewHandler(suspensionService.NewService(store, suspensionService.DefaultPolicy(), activitySvc, metrics.NewMetrics("test", reg), nil)),
			Activity:   activityHandler.NewHandler(activitySvc),
			Blacklist:  blacklistHandler.NewHandler(store.Blacklist()),
		},
		handler.NewHandler(store, reg),
		RouterConfig{
			RateLimit:     limit,
			RateBurst:     2,
			CORSConfig:    middleware.DefaultCORSConfig(),
			MetricsPrefix: "test_http",
			Registerer:    reg,
		},
	)
	r.Setup()
	return r, jwtSvc
}

func token(t *testing.T, svc auth.JWTService, role model.AdminRole) string {
	t.Helper()
	tok, err := svc.GenerateAccessToken(model.Actor{ID: uuid.New(), Name: "Abena", Role: role})
	require.NoError(t, err)
	return "Bearer " + tok
}

func request(r *Router, method, path, authHeader string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.Engine().ServeHTTP(w, req)
	return w
}

func TestHealthIsPublic(t *testing.T) {
	r, _ := newTestRouter(t, 0)

	w := request(r, http.MethodGet, "/api/v1/health/live", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = request(r, http.MethodGet, "/api/v1/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(r, http.MethodGet, "/api/v1/health/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_http_requests_total")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r, jwtSvc := newTestRouter(t, 0)

	w := request(r, http.MethodGet, "/api/v1/doctors", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = request(r, http.MethodGet, "/api/v1/doctors", token(t, jwtSvc, model.RoleModerator), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBlacklistRestrictedToAdmins(t *testing.T) {
	r, jwtSvc := newTestRouter(t, 0)

	w := request(r, http.MethodGet, "/api/v1/blacklist", token(t, jwtSvc, model.RoleModerator), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = request(r, http.MethodGet, "/api/v1/blacklist", token(t, jwtSvc, model.RoleAdmin), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSuspendEndToEnd(t *testing.T) {
	r, jwtSvc := newTestRouter(t, 0)
	authHeader := token(t, jwtSvc, model.RoleAdmin)

	w := request(r, http.MethodPost, "/api/v1/doctors", authHeader, []byte(`{"name":"Dr. Owusu","email":"owusu@clinic.test"}`))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Data model.Doctor `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = request(r, http.MethodPost, "/api/v1/doctors/"+created.Data.ID.String()+"/suspend", authHeader,
		[]byte(`{"reasons":["unsigned prescriptions"],"severity":"major"}`))
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = request(r, http.MethodGet, "/api/v1/activity-logs?action=SUSPEND_DOCTOR", authHeader, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "SUSPEND_DOCTOR")
}

func TestRateLimit(t *testing.T) {
	r, _ := newTestRouter(t, rate.Every(time.Hour))

	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/api/v1/health/live", "", nil).Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/api/v1/health/live", "", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, request(r, http.MethodGet, "/api/v1/health/live", "", nil).Code)
}
