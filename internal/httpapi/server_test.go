// ABOUTME: Tests for the HTTP trigger API using httptest recorders.
// ABOUTME: Covers job triggers, event intake, read endpoints, health and metrics.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/bloom/internal/events"
	"github.com/harperreed/bloom/internal/fitbit"
	"github.com/harperreed/bloom/internal/jobs"
	"github.com/harperreed/bloom/internal/logging"
	"github.com/harperreed/bloom/internal/models"
	"github.com/harperreed/bloom/internal/storage"
)

var clock = time.Date(2025, 6, 2, 9, 0, 0, 0, time.FixedZone("KST", 9*60*60))

type fixture struct {
	store   *storage.DB
	pub     *events.Recorder
	handler http.Handler
	user    *models.User
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "bloom.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	u := models.NewUser("FB1").WithTokens("a", "r", clock.Add(time.Hour))
	require.NoError(t, db.CreateUser(context.Background(), u))

	pub := &events.Recorder{}
	runner := jobs.NewRunner(db, fitbit.NewClient("http://127.0.0.1:1", time.Second), pub, jobs.Options{
		Location: clock.Location(),
		Logger:   logging.Discard(),
		Now:      func() time.Time { return clock },
	})
	srv := NewServer(runner, db, logging.Discard(), nil)
	return &fixture{store: db, pub: pub, handler: srv.Handler(), user: u}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) addStillSamples(t *testing.T) {
	t.Helper()
	for i := 1; i <= 3; i++ {
		s := models.NewIntradaySample(f.user.ID, clock.Add(-time.Duration(i)*time.Hour))
		s.HeartRate = 70
		require.NoError(t, f.store.CreateIntradaySample(context.Background(), s))
	}
}

func TestHealthz(t *testing.T) {
	f := setup(t)

	rec := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	f := setup(t)
	f.do(t, http.MethodGet, "/healthz", "")

	rec := f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bloom_http_requests_total")
}

func TestRunJobSingleUser(t *testing.T) {
	f := setup(t)
	f.addStillSamples(t)

	rec := f.do(t, http.MethodPost, "/jobs/detect-anomalies", `{"fitbit_user_id":"FB1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, jobs.DetectAnomalies, resp.Job)
	require.Len(t, resp.Results, 1)
	assert.True(t, resp.Results[0].Success)
	assert.Len(t, f.pub.OfType(events.TypeAnomalyDetected), 1)
}

func TestRunJobFailureStatus(t *testing.T) {
	f := setup(t)

	tests := []struct {
		body string
		want int
	}{
		{`{"fitbit_user_id":"ghost"}`, http.StatusNotFound},
		{`{"fitbit_user_id":"FB1"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		rec := f.do(t, http.MethodPost, "/jobs/detect-anomalies", tt.body)
		assert.Equal(t, tt.want, rec.Code, tt.body)
	}

	rec := f.do(t, http.MethodPost, "/jobs/collect-activity", `{"fitbit_user_id":"FB1"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRunJobBatch(t *testing.T) {
	f := setup(t)
	f.addStillSamples(t)

	rec := f.do(t, http.MethodPost, "/jobs/detect-anomalies", `{"all":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)

	rec = f.do(t, http.MethodPost, "/jobs/detect-anomalies", `{"fitbit_user_ids":["FB1","ghost"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, jobs.KindNotFound, resp.Results[1].Kind)
}

func TestRunJobBadRequests(t *testing.T) {
	f := setup(t)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/jobs/make-coffee", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/jobs/collect-sleep", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/jobs/collect-sleep", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/jobs/collect-sleep", `{"fitbit_user_id":"FB1","date":"June 2"}`).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(t, http.MethodGet, "/jobs/collect-sleep", "").Code)
}

func TestAcceptEvent(t *testing.T) {
	f := setup(t)
	f.addStillSamples(t)

	e := events.New(events.TypeDetectAnomalies, "scheduler", events.Detail{FitbitUserID: "FB1"}, clock)
	body, err := json.Marshal(e)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Len(t, f.pub.OfType(events.TypeAnomalyDetected), 1)

	rec = f.do(t, http.MethodPost, "/events", `{"type":"Report Data Ready","detail":{"fitbit_user_id":"FB1"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/events", `{"type":"Detect Anomalies","detail":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAverages(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.NoError(t, f.store.SavePeriodAverages(ctx, models.FamilyShortTerm, []*models.PeriodAverage{
		models.NewPeriodAverage(f.user.ID, "2025-06-01", models.Period1D, models.Averages{Steps: 4000}),
		models.NewPeriodAverage(f.user.ID, "2025-06-01", models.Period7D, models.Averages{Steps: 4500}),
	}))

	rec := f.do(t, http.MethodGet, "/users/FB1/averages?period=7D", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, 4500.0, rows[0]["avg_steps"])

	rec = f.do(t, http.MethodGet, "/users/"+f.user.ID.String()[:8]+"/averages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	assert.Len(t, rows, 2)

	rec = f.do(t, http.MethodGet, "/users/FB1/averages?family=long", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/users/FB1/averages?family=weekly", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/users/FB1/averages?period=2D", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/users/FB1/averages?limit=-1", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/users/zzzz/averages", "").Code)
}

func TestListAnomalies(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.store.CreateAnomalyEvent(context.Background(),
		models.NewAnomalyEvent(f.user.ID, "no_movement", "still", clock)))

	rec := f.do(t, http.MethodGet, "/users/FB1/anomalies?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []models.AnomalyEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "no_movement", rows[0].TriggerType)
}

func TestRecoversFromPanics(t *testing.T) {
	srv := NewServer(nil, nil, logging.Discard(), nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/FB1/anomalies", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
