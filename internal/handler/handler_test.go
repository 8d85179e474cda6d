package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"SafeStack/internal/models"
	"SafeStack/internal/pipeline"
	"SafeStack/pkg/errors"
	"SafeStack/pkg/middleware"
	"SafeStack/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeAnalyzer struct {
	videoURLs []string
	frames    []pipeline.FrameRequest
	summary   *pipeline.Summary
	frameRes  *pipeline.FrameResult
	amended   *models.Policy
	err       error
}

func (f *fakeAnalyzer) RunFullAnalysis(_ context.Context, url string) (*pipeline.Summary, error) {
	f.videoURLs = append(f.videoURLs, url)
	return f.summary, f.err
}

func (f *fakeAnalyzer) AnalyzeFrame(_ context.Context, req pipeline.FrameRequest) (*pipeline.FrameResult, error) {
	f.frames = append(f.frames, req)
	return f.frameRes, f.err
}

func (f *fakeAnalyzer) AmendPolicy(_ context.Context, _ uint, _ string) (*models.Policy, error) {
	return f.amended, f.err
}

type countingCatalog struct{ n int }

func (c *countingCatalog) Invalidate(context.Context) { c.n++ }

type env struct {
	db       *gorm.DB
	engine   *gin.Engine
	analyzer *fakeAnalyzer
	catalog  *countingCatalog
	signals  *util.Signals
}

func newEnv(t *testing.T, mutate ...func(*Options)) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := util.InitDatabase("sqlite", "file::memory:")
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	e := &env{
		db:       db,
		analyzer: &fakeAnalyzer{},
		catalog:  &countingCatalog{},
		signals:  util.NewSignals(),
	}
	opts := Options{
		DatabaseLabel: "memory",
		Analyzer:      e.analyzer,
		Catalog:       e.catalog,
		Signals:       e.signals,
	}
	for _, m := range mutate {
		m(&opts)
	}
	e.engine = gin.New()
	NewHandlers(db, opts).Register(e.engine)
	return e
}

func (e *env) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func detail(t *testing.T, w *httptest.ResponseRecorder) string {
	return decode[map[string]string](t, w)["detail"]
}

func TestHealthAndStats(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","database":"memory"}`, w.Body.String())

	_, err := models.CreatePolicy(e.db, "Hard Hat Required", 3, "")
	require.NoError(t, err)
	w = e.do(http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[models.Stats](t, w)
	assert.Equal(t, int64(1), st.Policies)
	assert.Equal(t, int64(0), st.AlertsByLevel[3])
}

func TestUserEndpoints(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodPost, "/users", gin.H{"email": "lee@example.com", "name": "Lee"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = e.do(http.MethodPost, "/users", gin.H{"email": "lee@example.com", "name": "Lee"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "User already exists", detail(t, w))

	w = e.do(http.MethodPost, "/users", gin.H{"email": "x@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodGet, "/users/lee@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Lee", decode[models.User](t, w).Name)

	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/users", nil).Code)
	assert.Equal(t, http.StatusNoContent, e.do(http.MethodDelete, "/users/lee@example.com", nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodDelete, "/users/lee@example.com", nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/users/lee@example.com", nil).Code)
}

func TestPolicyEndpointsInvalidateCatalog(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodPost, "/policies", gin.H{"title": "Hi-Vis Vest", "level": 2, "description": "wear a vest"})
	require.Equal(t, http.StatusCreated, w.Code)
	vest := decode[models.Policy](t, w)
	w = e.do(http.MethodPost, "/policies", gin.H{"title": "Hard Hat Required", "level": 3})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 2, e.catalog.n)

	w = e.do(http.MethodPost, "/policies", gin.H{"title": "Hi-Vis Vest", "level": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/policies", gin.H{"title": "No Level"}).Code)
	assert.Equal(t, 2, e.catalog.n)

	w = e.do(http.MethodGet, "/policies", nil)
	list := decode[[]models.Policy](t, w)
	require.Len(t, list, 2)
	assert.Equal(t, "Hard Hat Required", list[0].Title)

	w = e.do(http.MethodGet, "/policies?level=2", nil)
	assert.Len(t, decode[[]models.Policy](t, w), 1)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/policies?level=high", nil).Code)

	assert.Equal(t, http.StatusNoContent, e.do(http.MethodDelete, "/policies/"+itoa(vest.ID), nil).Code)
	assert.Equal(t, 3, e.catalog.n)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/policies/"+itoa(vest.ID), nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodDelete, "/policies/"+itoa(vest.ID), nil).Code)
	assert.Equal(t, 3, e.catalog.n)
}

func TestAlertEndpoints(t *testing.T) {
	e := newEnv(t)
	var created, deleted []any
	e.signals.Connect(models.SigAlertCreated, func(sender any, _ ...any) { created = append(created, sender) })
	e.signals.Connect(models.SigAlertDeleted, func(sender any, _ ...any) { deleted = append(deleted, sender) })

	hat, err := models.CreatePolicy(e.db, "Hard Hat Required", 3, "")
	require.NoError(t, err)
	vest, err := models.CreatePolicy(e.db, "Hi-Vis Vest", 2, "")
	require.NoError(t, err)
	_, err = models.CreateUser(e.db, "lee@example.com", "Lee")
	require.NoError(t, err)

	w := e.do(http.MethodPost, "/alerts", gin.H{"policy_id": 999, "explanation": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Policy not found", detail(t, w))

	w = e.do(http.MethodPost, "/alerts", gin.H{"policy_id": hat.ID, "explanation": "x", "user_email": "ghost@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "User not found", detail(t, w))
	assert.Empty(t, created)

	w = e.do(http.MethodPost, "/alerts", gin.H{
		"policy_id":   hat.ID,
		"explanation": "no helmet at gate",
		"image_urls":  []string{"https://cdn.example.com/images/a.png"},
		"user_email":  "lee@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	alert := decode[models.AlertView](t, w)
	assert.Equal(t, "Hard Hat Required", alert.PolicyTitle)
	assert.Equal(t, 3, alert.PolicyLevel)
	assert.Equal(t, []string{"https://cdn.example.com/images/a.png"}, alert.ImageURLs)
	require.Len(t, created, 1)

	w = e.do(http.MethodPost, "/alerts", gin.H{"policy_id": vest.ID, "explanation": "no vest"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = e.do(http.MethodGet, "/alerts?min_level=3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]models.AlertView](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, alert.ID, list[0].ID)

	w = e.do(http.MethodGet, "/alerts?user_email=lee@example.com", nil)
	assert.Len(t, decode[[]models.AlertView](t, w), 1)
	w = e.do(http.MethodGet, "/alerts?limit=1", nil)
	assert.Len(t, decode[[]models.AlertView](t, w), 1)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/alerts?policy_id=abc", nil).Code)

	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/alerts/"+itoa(alert.ID), nil).Code)
	assert.Equal(t, http.StatusNoContent, e.do(http.MethodDelete, "/alerts/"+itoa(alert.ID), nil).Code)
	assert.Equal(t, []any{alert.ID}, deleted)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/alerts/"+itoa(alert.ID), nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodDelete, "/alerts/"+itoa(alert.ID), nil).Code)
}

func TestVideoEndpoints(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodPost, "/videos", gin.H{"url": "https://cdn.example.com/site.mp4"})
	require.Equal(t, http.StatusCreated, w.Code)
	video := decode[models.Video](t, w)

	w = e.do(http.MethodGet, "/videos?limit=5", nil)
	assert.Len(t, decode[[]models.Video](t, w), 1)
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/videos/"+itoa(video.ID), nil).Code)
	assert.Equal(t, http.StatusNoContent, e.do(http.MethodDelete, "/videos/"+itoa(video.ID), nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/videos/"+itoa(video.ID), nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/videos/abc", nil).Code)
}

func TestAnalyzeVideoFull(t *testing.T) {
	e := newEnv(t)
	e.analyzer.summary = &pipeline.Summary{VideoID: 1, VideoURL: "https://cdn.example.com/a.mp4", Alerts: []pipeline.AlertSummary{}}

	w := e.do(http.MethodPost, "/analyze-video-full", gin.H{"video_url": " https://cdn.example.com/a.mp4 "})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"video_id":1,"video_url":"https://cdn.example.com/a.mp4","violations_found":0,"alerts_created":0,"alerts":[]}`, w.Body.String())
	assert.Equal(t, []string{"https://cdn.example.com/a.mp4"}, e.analyzer.videoURLs)

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/analyze-video-full", gin.H{}).Code)

	e.analyzer.err = errors.Wrap(errors.WithCode(errors.CodeDownload, "status 404"), "download video")
	w = e.do(http.MethodPost, "/analyze-video-full", gin.H{"video_url": "https://cdn.example.com/missing.mp4"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "download video: status 404", detail(t, w))

	e.analyzer.err = errors.WrapCode(errors.New("quota exceeded"), errors.CodeAnalysis, "analyze video")
	w = e.do(http.MethodPost, "/analyze-video-full", gin.H{"video_url": "https://cdn.example.com/a.mp4"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAnalyzeVideoIdempotencyKey(t *testing.T) {
	e := newEnv(t)
	e.analyzer.summary = &pipeline.Summary{Alerts: []pipeline.AlertSummary{}}
	body := gin.H{"video_url": "https://cdn.example.com/a.mp4"}

	assert.Equal(t, http.StatusOK, e.do(http.MethodPost, "/analyze-video-full", body, "Idempotency-Key", "run-1").Code)
	w := e.do(http.MethodPost, "/analyze-video-full", body, "Idempotency-Key", "run-1")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodPost, "/analyze-video-full", body).Code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodPost, "/analyze-video-full", body).Code)
	assert.Len(t, e.analyzer.videoURLs, 3)
}

func TestAnalyzeFrame(t *testing.T) {
	e := newEnv(t)
	e.analyzer.frameRes = &pipeline.FrameResult{Violations: []pipeline.FrameViolation{}}
	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0}

	w := e.do(http.MethodPost, "/analyze-frame", gin.H{
		"frame_base64": "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg),
		"camera_id":    "cam-7",
		"camera_name":  "Gate",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"violations":[],"alerts_created":0}`, w.Body.String())
	require.Len(t, e.analyzer.frames, 1)
	assert.Equal(t, jpeg, e.analyzer.frames[0].Frame)
	assert.Equal(t, "cam-7", e.analyzer.frames[0].CameraID)
	assert.Equal(t, "Gate", e.analyzer.frames[0].CameraName)

	w = e.do(http.MethodPost, "/analyze-frame", gin.H{"frame_base64": "%%%", "camera_id": "cam-7"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(http.MethodPost, "/analyze-frame", gin.H{"frame_base64": "AAAA"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, e.analyzer.frames, 1)
}

func TestAnalyzeFrameRateLimited(t *testing.T) {
	e := newEnv(t, func(o *Options) {
		o.Limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:          "100-M",
			PerRouteRates: map[string]string{"/analyze-frame": "1-M"},
		}, nil)
	})
	e.analyzer.frameRes = &pipeline.FrameResult{Violations: []pipeline.FrameViolation{}}
	body := gin.H{"frame_base64": "AAAA", "camera_id": "cam-1"}

	assert.Equal(t, http.StatusOK, e.do(http.MethodPost, "/analyze-frame", body).Code)
	w := e.do(http.MethodPost, "/analyze-frame", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Len(t, e.analyzer.frames, 1)

	w = e.do(http.MethodGet, "/system/rate-limiter/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1-M", decode[middleware.RateLimiterConfig](t, w).PerRouteRates["/analyze-frame"])

	w = e.do(http.MethodPost, "/system/rate-limiter/config", gin.H{"rate": "100-M"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodPost, "/analyze-frame", body).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/system/rate-limiter/config", gin.H{}).Code)
}

func TestAmendPolicy(t *testing.T) {
	e := newEnv(t)
	e.analyzer.amended = &models.Policy{ID: 1, Title: "Hard Hat Required", Level: 3, Description: "updated"}
	w := e.do(http.MethodPost, "/amend-policy", gin.H{"alert_id": 4, "feedback": "the worker was in the office"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "updated", decode[models.Policy](t, w).Description)

	e.analyzer.err = errors.WithCode(errors.CodeNotFound, "alert 4 not found")
	w = e.do(http.MethodPost, "/amend-policy", gin.H{"alert_id": 4, "feedback": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/amend-policy", gin.H{"alert_id": 4}).Code)
}

func TestDisabledOptionalSurfaces(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusServiceUnavailable, e.do(http.MethodGet, "/alerts/search?q=helmet", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, e.do(http.MethodGet, "/alerts/stream", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, e.do(http.MethodGet, "/system/rate-limiter/config", nil).Code)
}
