package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"schedule-designgen/internal/cache"
	apperrors "schedule-designgen/internal/common/errors"
	"schedule-designgen/internal/common/logger"
	"schedule-designgen/internal/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type MockJobService struct {
	mock.Mock
}

func (m *MockJobService) AddJob(job *scheduler.Job) error {
	args := m.Called(job)
	return args.Error(0)
}

func (m *MockJobService) RemoveJob(key string) bool {
	args := m.Called(key)
	return args.Bool(0)
}

func (m *MockJobService) IsJobPending(key string) bool {
	args := m.Called(key)
	return args.Bool(0)
}

func (m *MockJobService) Snapshot() scheduler.Snapshot {
	args := m.Called()
	return args.Get(0).(scheduler.Snapshot)
}

type staticOverrides struct {
	keys map[string]bool
}

func (o staticOverrides) DeleteOverride(ctx context.Context, key string) error { return nil }

func (o staticOverrides) HasOverride(ctx context.Context, key string) (bool, error) {
	return o.keys[key], nil
}

func createTestServer(t *testing.T, jobs JobService, store cache.Store, overrides cache.OverrideStore) *httptest.Server {
	mux := http.NewServeMux()
	NewHandler(jobs, store, overrides, logger.NewTestLogger(t)).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func validBody() string {
	return `{
  "key": "mindbody:2026-10-19:weekly",
  "template": {"id": "weekly", "sourceUrl": "https://cdn.example.com/weekly.psd", "layersUrl": "https://cdn.example.com/weekly.json"},
  "scheduleData": {"studio_name": "Sunrise Yoga", "classes": [{"name": "Flow"}]},
  "rangeStart": "2026-10-19",
  "forceRefresh": true,
  "timeoutMs": 45000
}`
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// ==========================
// Submit Tests
// ==========================

func TestSubmitJob_Accepted(t *testing.T) {
	jobs := new(MockJobService)
	jobs.On("AddJob", mock.MatchedBy(func(j *scheduler.Job) bool {
		return j.Key == "mindbody:2026-10-19:weekly" &&
			j.Template.ID == "weekly" &&
			j.ForceRefresh &&
			j.Timeout == 45*time.Second &&
			j.RangeStart.Equal(time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)) &&
			j.ScheduleData["studio_name"] == "Sunrise Yoga"
	})).Return(nil)
	srv := createTestServer(t, jobs, cache.NewMemoryStore(), nil)

	resp := do(t, http.MethodPost, srv.URL+"/jobs", validBody())
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var got SubmitResponse
	decode(t, resp, &got)
	assert.Equal(t, SubmitResponse{Key: "mindbody:2026-10-19:weekly", Status: "QUEUED"}, got)
	jobs.AssertExpectations(t)
}

func TestSubmitJob_Rejected(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "not json", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "missing key", body: `{"template": {"id": "w", "sourceUrl": "https://a/b", "layersUrl": "https://a/c"}, "scheduleData": {}}`, wantStatus: http.StatusBadRequest},
		{name: "missing template url", body: `{"key": "k", "template": {"id": "w", "sourceUrl": "https://a/b"}, "scheduleData": {}}`, wantStatus: http.StatusBadRequest},
		{name: "relative url", body: `{"key": "k", "template": {"id": "w", "sourceUrl": "b.psd", "layersUrl": "https://a/c"}, "scheduleData": {}}`, wantStatus: http.StatusBadRequest},
		{name: "bad range start", body: `{"key": "k", "template": {"id": "w", "sourceUrl": "https://a/b", "layersUrl": "https://a/c"}, "scheduleData": {}, "rangeStart": "next week"}`, wantStatus: http.StatusBadRequest},
		{name: "negative timeout", body: `{"key": "k", "template": {"id": "w", "sourceUrl": "https://a/b", "layersUrl": "https://a/c"}, "scheduleData": {}, "timeoutMs": -5}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := new(MockJobService)
			srv := createTestServer(t, jobs, cache.NewMemoryStore(), nil)

			resp := do(t, http.MethodPost, srv.URL+"/jobs", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var got struct {
				Error apperrors.StandardError `json:"error"`
			}
			decode(t, resp, &got)
			assert.Equal(t, apperrors.ErrCodeInvalidJob, got.Error.Code)
			jobs.AssertNotCalled(t, "AddJob", mock.Anything)
		})
	}
}

func TestSubmitJob_SchedulerErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   apperrors.ErrorCode
	}{
		{name: "duplicate", err: apperrors.NewJobPendingError("k"), wantStatus: http.StatusConflict, wantCode: apperrors.ErrCodeJobPending},
		{name: "invalid", err: apperrors.NewInvalidJobError("template id is required"), wantStatus: http.StatusBadRequest, wantCode: apperrors.ErrCodeInvalidJob},
		{name: "stopped", err: scheduler.ErrStopped, wantStatus: http.StatusServiceUnavailable, wantCode: apperrors.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := new(MockJobService)
			jobs.On("AddJob", mock.Anything).Return(tt.err)
			srv := createTestServer(t, jobs, cache.NewMemoryStore(), nil)

			resp := do(t, http.MethodPost, srv.URL+"/jobs", validBody())
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var got struct {
				Error apperrors.StandardError `json:"error"`
			}
			decode(t, resp, &got)
			assert.Equal(t, tt.wantCode, got.Error.Code)
		})
	}
}

// ==========================
// Job Query Tests
// ==========================

func TestListJobs(t *testing.T) {
	jobs := new(MockJobService)
	jobs.On("Snapshot").Return(scheduler.Snapshot{
		Active: []scheduler.JobInfo{{Key: "k1", State: scheduler.StateActive}},
		Queued: []scheduler.JobInfo{{Key: "k2", State: scheduler.StateQueued}},
	})
	srv := createTestServer(t, jobs, cache.NewMemoryStore(), nil)

	resp := do(t, http.MethodGet, srv.URL+"/jobs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got scheduler.Snapshot
	decode(t, resp, &got)
	require.Len(t, got.Active, 1)
	assert.Equal(t, "k1", got.Active[0].Key)
	require.Len(t, got.Queued, 1)
	assert.Equal(t, scheduler.StateQueued, got.Queued[0].State)
}

func TestPending(t *testing.T) {
	jobs := new(MockJobService)
	jobs.On("IsJobPending", "mindbody:2026-10-19").Return(true)
	srv := createTestServer(t, jobs, cache.NewMemoryStore(), nil)

	resp := do(t, http.MethodGet, srv.URL+"/jobs/pending?key=mindbody:2026-10-19", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got PendingResponse
	decode(t, resp, &got)
	assert.True(t, got.Pending)

	resp = do(t, http.MethodGet, srv.URL+"/jobs/pending", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRemoveJob(t *testing.T) {
	jobs := new(MockJobService)
	jobs.On("RemoveJob", "mindbody:2026-10-19:weekly").Return(true)
	jobs.On("RemoveJob", "missing").Return(false)
	srv := createTestServer(t, jobs, cache.NewMemoryStore(), nil)

	resp := do(t, http.MethodDelete, srv.URL+"/jobs/mindbody:2026-10-19:weekly", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var got RemoveResponse
	decode(t, resp, &got)
	assert.True(t, got.Removed)

	resp = do(t, http.MethodDelete, srv.URL+"/jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	jobs.AssertExpectations(t)
}

// ==========================
// Artifact Tests
// ==========================

func TestGetArtifact(t *testing.T) {
	store := cache.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), &cache.Artifact{
		Meta: cache.Meta{
			Key:        "k1",
			TemplateID: "weekly",
			Hash:       "abc",
			Tags:       []cache.Tag{{X: 0.5, Y: 0.25, Label: "@anna"}},
		},
		RasterBytes:   []byte("\x89PNG\r\n\x1a\nrest"),
		DocumentBytes: []byte("8BPS"),
	}))
	srv := createTestServer(t, new(MockJobService), store, staticOverrides{keys: map[string]bool{"k1": true}})

	t.Run("metadata", func(t *testing.T) {
		resp := do(t, http.MethodGet, srv.URL+"/artifacts/k1", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got ArtifactResponse
		decode(t, resp, &got)
		assert.Equal(t, "abc", got.Hash)
		assert.True(t, got.HasOverride)
		assert.Equal(t, 12, got.RasterSize)
		assert.Equal(t, 4, got.DocumentSize)
		assert.Equal(t, []cache.Tag{{X: 0.5, Y: 0.25, Label: "@anna"}}, got.Tags)
	})

	t.Run("raster bytes", func(t *testing.T) {
		resp := do(t, http.MethodGet, srv.URL+"/artifacts/k1/raster", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	})

	t.Run("missing", func(t *testing.T) {
		resp := do(t, http.MethodGet, srv.URL+"/artifacts/nope", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
