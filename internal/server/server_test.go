package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cyderes/canvas-notion-sync/internal/apperrors"
	"github.com/cyderes/canvas-notion-sync/internal/config"
	"github.com/cyderes/canvas-notion-sync/internal/models"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) SaveRun(ctx context.Context, report models.SyncReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockStorage) GetRuns(ctx context.Context, limit int) ([]models.SyncReport, error) {
	args := m.Called(ctx, limit)
	runs, _ := args.Get(0).([]models.SyncReport)
	return runs, args.Error(1)
}

func (m *MockStorage) GetRunByID(ctx context.Context, id string) (*models.SyncReport, error) {
	args := m.Called(ctx, id)
	run, _ := args.Get(0).(*models.SyncReport)
	return run, args.Error(1)
}

func (m *MockStorage) GetLatestRun(ctx context.Context) (*models.SyncReport, error) {
	args := m.Called(ctx)
	run, _ := args.Get(0).(*models.SyncReport)
	return run, args.Error(1)
}

func (m *MockStorage) Close() error {
	return m.Called().Error(0)
}

func newTestServer(store *MockStorage) http.Handler {
	return NewServer(config.ServerConfig{Port: 0}, store, zerolog.Nop()).Routes()
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func sampleRun(id string) *models.SyncReport {
	started := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return &models.SyncReport{
		ID:         id,
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Status:     models.RunSuccess,
		Created:    2,
		Updated:    1,
	}
}

func TestHandleHealth(t *testing.T) {
	rec := get(t, newTestServer(new(MockStorage)), "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestHandleRuns(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantLimit int
	}{
		{"default limit", "/runs", 10},
		{"explicit limit", "/runs?limit=3", 3},
		{"invalid limit falls back", "/runs?limit=abc", 10},
		{"negative limit falls back", "/runs?limit=-1", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockStorage)
			store.On("GetRuns", mock.Anything, tt.wantLimit).Return([]models.SyncReport{*sampleRun("run-1")}, nil)

			rec := get(t, newTestServer(store), tt.query)

			assert.Equal(t, http.StatusOK, rec.Code)
			var body struct {
				Runs  []models.SyncReport `json:"runs"`
				Count int                 `json:"count"`
				Limit int                 `json:"limit"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, 1, body.Count)
			assert.Equal(t, tt.wantLimit, body.Limit)
			assert.Equal(t, "run-1", body.Runs[0].ID)
			store.AssertExpectations(t)
		})
	}
}

func TestHandleRuns_Empty(t *testing.T) {
	store := new(MockStorage)
	store.On("GetRuns", mock.Anything, 10).Return([]models.SyncReport{}, nil)

	rec := get(t, newTestServer(store), "/runs")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"runs":[]`)
}

func TestHandleRuns_StorageError(t *testing.T) {
	store := new(MockStorage)
	store.On("GetRuns", mock.Anything, 10).Return(nil, assert.AnError)

	rec := get(t, newTestServer(store), "/runs")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to retrieve runs")
}

func TestHandleLatestRun(t *testing.T) {
	store := new(MockStorage)
	store.On("GetLatestRun", mock.Anything).Return(sampleRun("run-9"), nil).Once()
	store.On("GetLatestRun", mock.Anything).Return(nil, apperrors.ErrRunNotFound).Once()
	handler := newTestServer(store)

	rec := get(t, handler, "/runs/latest")
	assert.Equal(t, http.StatusOK, rec.Code)
	var run models.SyncReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "run-9", run.ID)
	assert.Equal(t, models.RunSuccess, run.Status)

	rec = get(t, handler, "/runs/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleRunByID(t *testing.T) {
	store := new(MockStorage)
	store.On("GetRunByID", mock.Anything, "run-1").Return(sampleRun("run-1"), nil)
	store.On("GetRunByID", mock.Anything, "missing").Return(nil, apperrors.ErrRunNotFound)
	handler := newTestServer(store)

	rec := get(t, handler, "/runs/run-1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"run-1"`)

	rec = get(t, handler, "/runs/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), apperrors.ErrRunNotFound.Error())
	store.AssertExpectations(t)
}
