// ABOUTME: Tests for the job runner against SQLite, a fake wearable API and a recording publisher.
// ABOUTME: Covers each job, failure classification, and per-user isolation in batch runs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/bloom/internal/aggregate"
	"github.com/harperreed/bloom/internal/events"
	"github.com/harperreed/bloom/internal/fitbit"
	"github.com/harperreed/bloom/internal/logging"
	"github.com/harperreed/bloom/internal/models"
	"github.com/harperreed/bloom/internal/storage"
)

var kst = time.FixedZone("KST", 9*60*60)

// clock is 2025-06-02 09:00 in the job time zone.
var clock = time.Date(2025, 6, 2, 9, 0, 0, 0, kst)

type harness struct {
	store  *storage.DB
	pub    *events.Recorder
	runner *Runner
	routes map[string]string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "bloom.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	h := &harness{store: db, pub: &events.Recorder{}, routes: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := h.routes[r.URL.Path]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	h.runner = NewRunner(db, fitbit.NewClient(srv.URL, 5*time.Second), h.pub, Options{
		Location: kst,
		Logger:   logging.Discard(),
		Now:      func() time.Time { return clock },
	})
	return h
}

func (h *harness) addUser(t *testing.T, fitbitID string) *models.User {
	t.Helper()
	u := models.NewUser(fitbitID).WithTokens("access-"+fitbitID, "refresh", clock.Add(time.Hour))
	require.NoError(t, h.store.CreateUser(context.Background(), u))
	return u
}

func intradayPath(res, date, from, to string) string {
	return fmt.Sprintf("/1/user/-/activities/%s/date/%s/1d/1min/time/%s/%s.json", res, date, from, to)
}

func intradayBody(res, dataset string) string {
	return `{"activities-` + res + `-intraday":{"dataset":` + dataset + `}}`
}

func (h *harness) serveIntraday(heart string) {
	h.routes["/1/user/-/devices.json"] = `[
		{"id":"d1","deviceVersion":"Charge 6","batteryLevel":70,"lastSyncTime":"2025-06-02T08:10:00.000"},
		{"id":"d2","deviceVersion":"Sense","batteryLevel":40,"lastSyncTime":"2025-06-02T08:30:00.000"}
	]`
	h.routes[intradayPath("heart", "2025-06-02", "08:15", "08:30")] = intradayBody("heart", heart)
	h.routes[intradayPath("steps", "2025-06-02", "08:15", "08:30")] = intradayBody("steps", `[{"time":"08:15:00","value":3},{"time":"08:16:00","value":2}]`)
	h.routes[intradayPath("distance", "2025-06-02", "08:15", "08:30")] = intradayBody("distance", `[{"time":"08:15:00","value":0.002}]`)
	h.routes[intradayPath("calories", "2025-06-02", "08:15", "08:30")] = intradayBody("calories", `[{"time":"08:15:00","value":1},{"time":"08:16:00","value":2}]`)
}

func (h *harness) serveSleep() {
	h.routes["/1.2/user/-/sleep/date/2025-06-02.json"] = `{"sleep":[
		{"logId":1,"startTime":"2025-06-01T23:00:00.000","endTime":"2025-06-02T07:00:00.000",
		 "isMainSleep":true,"efficiency":92,"minutesAsleep":420,"minutesAwake":60,"timeInBed":480,
		 "duration":28800000,
		 "levels":{"summary":{"deep":{"minutes":90},"light":{"minutes":240},"rem":{"minutes":90},"wake":{"count":8,"minutes":60}}}},
		{"logId":2,"startTime":"2025-06-02T13:00:00.000","endTime":"2025-06-02T13:40:00.000",
		 "isMainSleep":false,"minutesAsleep":35,"minutesAwake":5}
	]}`
}

func (h *harness) serveDaily() {
	h.routes["/1/user/-/activities/date/2025-06-01.json"] = `{"summary":{
		"steps":8000,"caloriesOut":2300,"activityCalories":900,"caloriesBMR":1400,"marginalCalories":500,
		"restingHeartRate":65,"sedentaryMinutes":500,"lightlyActiveMinutes":200,"fairlyActiveMinutes":30,"veryActiveMinutes":30,
		"distances":[{"activity":"total","distance":6.1}],
		"heartRateZones":[{"minutes":1200,"caloriesOut":1500},{"minutes":60,"caloriesOut":400},{"minutes":20,"caloriesOut":200},{"minutes":5,"caloriesOut":60}]
	}}`
	h.routes["/1/user/-/hrv/date/2025-06-01.json"] = `{"hrv":[{"value":{"dailyRmssd":40,"deepRmssd":45}}]}`
	h.routes["/1/user/-/br/date/2025-06-01.json"] = `{"br":[{"value":{"breathingRate":15}}]}`
	h.routes["/1/user/-/temp/skin/date/2025-06-01.json"] = `{"tempSkin":[{"value":{"nightlyRelative":0.1}}]}`
	h.routes["/1/user/-/activities/heart/date/2025-06-01/1d.json"] = `{"activities-heart":[{"value":{"restingHeartRate":65}}]}`
	h.routes["/1.2/user/-/sleep/date/2025-06-01.json"] = `{"sleep":[{"isMainSleep":true,"levels":{"summary":{"deep":{"minutes":90}}}}]}`
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, KindNone},
		{fmt.Errorf("find user: %w", storage.ErrNotFound), KindNotFound},
		{&fitbit.APIError{Status: 500}, KindUpstreamUnavailable},
		{fmt.Errorf("x: %w", storage.ErrConflict), KindPersistenceConflict},
		{persist("save", errors.New("disk full")), KindPersistenceConflict},
		{fmt.Errorf("%w: sleep", aggregate.ErrDataAbsent), KindDataAbsent},
		{ErrInsufficientData, KindDataAbsent},
		{errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), fmt.Sprint(tt.err))
	}
}

func TestParseName(t *testing.T) {
	for _, n := range Names() {
		got, err := ParseName(string(n))
		require.NoError(t, err)
		assert.Equal(t, n, got)
	}
	_, err := ParseName("collect-everything")
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	today, err := ParseDate("", clock, kst)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, kst), today)

	late := time.Date(2025, 6, 2, 16, 0, 0, 0, time.UTC)
	next, err := ParseDate("", late, kst)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-03", next.Format(models.DateLayout))

	_, err = ParseDate("06/02/2025", clock, kst)
	assert.Error(t, err)
}

func TestLoadLocationFallsBack(t *testing.T) {
	loc := LoadLocation("Not/AZone")
	_, offset := time.Date(2025, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 9*60*60, offset)
}

func TestCollectIntraday(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := h.addUser(t, "FB1")
	h.serveIntraday(`[{"time":"08:15:00","value":70},{"time":"08:16:00","value":71}]`)

	res := h.runner.Run(ctx, CollectIntraday, "FB1", "")
	require.True(t, res.Success, res.Error)

	devices, err := h.store.ListDevices(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, devices, 2)

	samples, err := h.store.ListIntradaySamples(ctx, storage.IntradayQuery{UserID: u.ID})
	require.NoError(t, err)
	require.Len(t, samples, 1)
	s := samples[0]
	assert.True(t, s.RecordedAt.Equal(time.Date(2025, 6, 2, 8, 30, 0, 0, kst)))
	assert.Equal(t, 5.0, s.Steps)
	assert.Equal(t, 0.002, s.DistanceKm)
	assert.Equal(t, 3.0, s.Calories())
	assert.Equal(t, 71.0, s.HeartRate, "70.5 rounds half up")

	published := h.pub.OfType(events.TypeDetectAnomalies)
	require.Len(t, published, 1)
	assert.Equal(t, "FB1", published[0].Detail.FitbitUserID)
}

func TestCollectIntradayEmptySeriesIsUpstreamFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := h.addUser(t, "FB1")
	h.serveIntraday(`[]`)

	res := h.runner.Run(ctx, CollectIntraday, "FB1", "")
	assert.False(t, res.Success)
	assert.Equal(t, KindUpstreamUnavailable, res.Kind)
	assert.Contains(t, res.Error, "empty heart series")

	samples, err := h.store.ListIntradaySamples(ctx, storage.IntradayQuery{UserID: u.ID})
	require.NoError(t, err)
	assert.Empty(t, samples)
	assert.Empty(t, h.pub.Events())
}

func TestExpiredTokenIsUpstreamFailure(t *testing.T) {
	h := newHarness(t)
	u := models.NewUser("FB2").WithTokens("a", "r", clock.Add(-time.Minute))
	require.NoError(t, h.store.CreateUser(context.Background(), u))

	res := h.runner.Run(context.Background(), CollectActivity, "FB2", "")
	assert.Equal(t, KindUpstreamUnavailable, res.Kind)
}

func TestUnknownUserIsNotFound(t *testing.T) {
	h := newHarness(t)

	res := h.runner.Run(context.Background(), ShortTermAverages, "nobody", "")
	assert.False(t, res.Success)
	assert.Equal(t, KindNotFound, res.Kind)
}

func TestCollectSleepDatesMainSleepTheNightBefore(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := h.addUser(t, "FB1")
	h.serveSleep()

	res := h.runner.Run(ctx, CollectSleep, "FB1", "2025-06-02")
	require.True(t, res.Success, res.Error)

	main, err := h.store.FindMainSleep(ctx, u.ID, "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, 1.5, main.DeepSleepHours)
	assert.Equal(t, 4.0, main.LightSleepHours)
	assert.Equal(t, 8, main.AwakeCount)
	assert.Equal(t, 60.0, main.AwakeDuration)
	assert.Equal(t, 0.0, main.Quality)
	assert.True(t, main.StartTime.Equal(time.Date(2025, 6, 1, 23, 0, 0, 0, kst)))

	records, err := h.store.ListSleepRecords(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Len(t, h.pub.OfType(events.TypeMainSleepDetected), 1)

	// A second pass finds the same sessions and announces nothing new.
	res = h.runner.Run(ctx, CollectSleep, "FB1", "2025-06-02")
	require.True(t, res.Success, res.Error)
	records, err = h.store.ListSleepRecords(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Len(t, h.pub.OfType(events.TypeMainSleepDetected), 1)
}

func TestDailyPipelineProducesShortTermAverages(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := h.addUser(t, "FB1")
	h.serveSleep()
	h.serveDaily()

	for _, job := range []Name{CollectSleep, CollectActivity, CollectHealthMetrics} {
		res := h.runner.Run(ctx, job, "FB1", "2025-06-02")
		require.True(t, res.Success, "%s: %s", job, res.Error)
	}

	health, err := h.store.FindHealthMetrics(ctx, u.ID, "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, 1.0, health.StressScore)
	assert.Equal(t, 33.0, health.HRVContribution)

	activity, err := h.store.FindActivitySummary(ctx, u.ID, "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, 6.1, activity.TotalDistance)
	assert.Equal(t, 20.0, activity.CardioMinutes)

	// One prior daily point inside both windows, one outside the 7D window.
	require.NoError(t, h.store.SavePeriodAverages(ctx, models.FamilyShortTerm, []*models.PeriodAverage{
		models.NewPeriodAverage(u.ID, "2025-05-30", models.Period1D, models.Averages{Steps: 2000}),
	}))
	require.NoError(t, h.store.SavePeriodAverages(ctx, models.FamilyShortTerm, []*models.PeriodAverage{
		models.NewPeriodAverage(u.ID, "2025-05-20", models.Period1D, models.Averages{Steps: 5000}),
	}))

	res := h.runner.Run(ctx, ShortTermAverages, "FB1", "2025-06-02")
	require.True(t, res.Success, res.Error)

	rows, err := h.store.ListPeriodAverages(ctx, storage.AverageQuery{
		Family: models.FamilyShortTerm, UserID: u.ID, From: "2025-06-02", To: "2025-06-02",
	})
	require.NoError(t, err)
	byPeriod := map[models.PeriodType]*models.PeriodAverage{}
	for _, r := range rows {
		byPeriod[r.PeriodType] = r
	}
	require.Len(t, byPeriod, 3)

	assert.Equal(t, 8000.0, byPeriod[models.Period1D].Steps)
	assert.Equal(t, 900.0, byPeriod[models.Period1D].CaloriesTotal)
	assert.Equal(t, 7.0, byPeriod[models.Period1D].TotalSleepHours)
	assert.Equal(t, 1.0, byPeriod[models.Period1D].StressScore)
	assert.Equal(t, 5000.0, byPeriod[models.Period7D].Steps)
	assert.Equal(t, 5000.0, byPeriod[models.Period30D].Steps)

	ready := h.pub.OfType(events.TypeReportDataReady)
	require.Len(t, ready, 1)
	assert.Equal(t, "2025-06-02", ready[0].Detail.Date)
}

func TestShortTermAveragesMissingInputIsDataAbsent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := h.addUser(t, "FB1")
	require.NoError(t, h.store.CreateActivitySummary(ctx, models.NewActivitySummary(u.ID, "2025-06-01")))

	res := h.runner.Run(ctx, ShortTermAverages, "FB1", "2025-06-02")
	assert.Equal(t, KindDataAbsent, res.Kind)
	assert.Contains(t, res.Error, "main sleep")

	rows, err := h.store.ListPeriodAverages(ctx, storage.AverageQuery{Family: models.FamilyShortTerm, UserID: u.ID})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Empty(t, h.pub.Events())
}

func TestShortTermAveragesTwiceIsConflict(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addUser(t, "FB1")
	h.serveSleep()
	h.serveDaily()
	for _, job := range []Name{CollectSleep, CollectActivity, CollectHealthMetrics, ShortTermAverages} {
		require.True(t, h.runner.Run(ctx, job, "FB1", "2025-06-02").Success)
	}

	res := h.runner.Run(ctx, ShortTermAverages, "FB1", "2025-06-02")
	assert.Equal(t, KindPersistenceConflict, res.Kind)
	assert.Len(t, h.pub.OfType(events.TypeReportDataReady), 1)
}

func TestLongTermAverages(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := h.addUser(t, "FB1")

	require.NoError(t, h.store.SavePeriodAverages(ctx, models.FamilyShortTerm, []*models.PeriodAverage{
		models.NewPeriodAverage(u.ID, "2025-06-01", models.Period30D, models.Averages{Steps: 9000}),
	}))
	for date, steps := range map[string]float64{"2025-05-01": 6000, "2025-01-01": 3000, "2024-07-01": 1000} {
		require.NoError(t, h.store.SavePeriodAverages(ctx, models.FamilyLongTerm, []*models.PeriodAverage{
			models.NewPeriodAverage(u.ID, date, models.Period30D, models.Averages{Steps: steps}),
		}))
	}

	res := h.runner.Run(ctx, LongTermAverages, "FB1", "2025-06-15")
	require.True(t, res.Success, res.Error)

	got := map[models.PeriodType]float64{}
	for _, p := range models.FamilyPeriods[models.FamilyLongTerm] {
		row, err := h.store.FindPeriodAverage(ctx, models.FamilyLongTerm, u.ID, "2025-06-01", p)
		require.NoError(t, err)
		got[p] = row.Steps
	}
	assert.Equal(t, map[models.PeriodType]float64{
		models.Period30D:  9000,
		models.Period90D:  7500,
		models.Period180D: 6000,
		models.Period360D: 4750,
	}, got)
}

func TestHandleEventLongTermWithEpochMonthStart(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := h.addUser(t, "FB1")
	require.NoError(t, h.store.SavePeriodAverages(ctx, models.FamilyShortTerm, []*models.PeriodAverage{
		models.NewPeriodAverage(u.ID, "2025-06-01", models.Period30D, models.Averages{Steps: 9000}),
	}))

	e, err := events.Decode([]byte(`{"type":"Calculate Long Term Average","detail":{"fitbit_user_id":"FB1","monthStartDate":1748736000000}}`))
	require.NoError(t, err)
	require.NoError(t, h.runner.HandleEvent(ctx, e))

	row, err := h.store.FindPeriodAverage(ctx, models.FamilyLongTerm, u.ID, "2025-06-01", models.Period360D)
	require.NoError(t, err)
	assert.Equal(t, 9000.0, row.Steps)
}

func TestLongTermAveragesWithoutMonthlyPointIsDataAbsent(t *testing.T) {
	h := newHarness(t)
	h.addUser(t, "FB1")

	res := h.runner.Run(context.Background(), LongTermAverages, "FB1", "2025-06-01")
	assert.Equal(t, KindDataAbsent, res.Kind)
}

func addSamples(t *testing.T, h *harness, u *models.User, steps, heartRate float64, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		s := models.NewIntradaySample(u.ID, clock.Add(-time.Duration(i+1)*30*time.Minute))
		s.Steps = steps
		s.HeartRate = heartRate
		require.NoError(t, h.store.CreateIntradaySample(context.Background(), s))
	}
}

func TestDetectAnomaliesNoMovement(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := h.addUser(t, "FB1")
	addSamples(t, h, u, 0, 70, 6)

	res := h.runner.Run(ctx, DetectAnomalies, "FB1", "")
	require.True(t, res.Success, res.Error)

	stored, err := h.store.ListAnomalyEvents(ctx, storage.AnomalyQuery{UserID: &u.ID})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "no_movement", stored[0].TriggerType)
	assert.Equal(t, models.AnalysisThreshold, stored[0].AnalysisType)

	alerts := h.pub.OfType(events.TypeAnomalyDetected)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0].Detail.Message, "No movement")
}

func TestDetectAnomaliesNormalWindow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := h.addUser(t, "FB1")
	addSamples(t, h, u, 200, 90, 4)

	res := h.runner.Run(ctx, DetectAnomalies, "FB1", "")
	require.True(t, res.Success, res.Error)

	stored, err := h.store.ListAnomalyEvents(ctx, storage.AnomalyQuery{UserID: &u.ID})
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Empty(t, h.pub.Events())
}

func TestDetectAnomaliesWithoutSamplesIsInsufficientData(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := h.addUser(t, "FB1")
	old := models.NewIntradaySample(u.ID, clock.Add(-7*time.Hour))
	require.NoError(t, h.store.CreateIntradaySample(ctx, old))

	res := h.runner.Run(ctx, DetectAnomalies, "FB1", "")
	assert.False(t, res.Success)
	assert.Equal(t, KindDataAbsent, res.Kind)
	assert.Contains(t, res.Error, "insufficient data")
}

func TestPublishFailureDoesNotFailJob(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := h.addUser(t, "FB1")
	addSamples(t, h, u, 2, 40, 2)
	h.pub.Err = errors.New("broker down")

	res := h.runner.Run(ctx, DetectAnomalies, "FB1", "")
	require.True(t, res.Success, res.Error)

	stored, err := h.store.ListAnomalyEvents(ctx, storage.AnomalyQuery{UserID: &u.ID})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "no_movement", stored[0].TriggerType)
}

func TestRunForUsersIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.addUser(t, "A")
	h.addUser(t, "B")
	addSamples(t, h, a, 100, 80, 3)

	results := h.runner.RunForUsers(ctx, DetectAnomalies, []string{"B", "missing", "A"}, "")
	require.Len(t, results, 3)

	assert.Equal(t, "A", results[0].FitbitUserID)
	assert.True(t, results[0].Success)
	assert.Equal(t, "B", results[1].FitbitUserID)
	assert.Equal(t, KindDataAbsent, results[1].Kind)
	assert.Equal(t, "missing", results[2].FitbitUserID)
	assert.Equal(t, KindNotFound, results[2].Kind)
}

func TestRunForUsersConcurrentWritersShareSQLite(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	ids := make([]string, 64)
	for i := range ids {
		ids[i] = fmt.Sprintf("U%02d", i)
		addSamples(t, h, h.addUser(t, ids[i]), 0, 70, 3)
	}

	runner := NewRunner(h.store, nil, h.pub, Options{
		Location:    kst,
		Logger:      logging.Discard(),
		Now:         func() time.Time { return clock },
		Concurrency: 16,
	})
	for round := 0; round < 5; round++ {
		for _, res := range runner.RunForUsers(ctx, DetectAnomalies, ids, "") {
			require.True(t, res.Success, "round %d %s: %s", round, res.FitbitUserID, res.Error)
		}
	}

	stored, err := h.store.ListAnomalyEvents(ctx, storage.AnomalyQuery{})
	require.NoError(t, err)
	assert.Len(t, stored, 64*5)
	assert.Len(t, h.pub.OfType(events.TypeAnomalyDetected), 64*5)
}

func TestRunAllUsesEligibleUsers(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addUser(t, "A")
	inactive := models.NewUser("Z").WithTokens("a", "r", clock.Add(time.Hour))
	inactive.Status = "inactive"
	require.NoError(t, h.store.CreateUser(ctx, inactive))

	results, err := h.runner.RunAll(ctx, DetectAnomalies, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].FitbitUserID)
}

func TestHandleEvent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	u := h.addUser(t, "FB1")
	addSamples(t, h, u, 0, 70, 2)

	err := h.runner.HandleEvent(ctx, events.New(events.TypeDetectAnomalies, "", events.Detail{FitbitUserID: "FB1"}, clock))
	require.NoError(t, err)
	assert.Len(t, h.pub.OfType(events.TypeAnomalyDetected), 1)

	err = h.runner.HandleEvent(ctx, events.New(events.TypeAnomalyDetected, "", events.Detail{FitbitUserID: "FB1"}, clock))
	assert.ErrorIs(t, err, events.ErrUnroutable)

	err = h.runner.HandleEvent(ctx, events.New(events.TypeJobRequested, "", events.Detail{FitbitUserID: "FB1", Job: "nope"}, clock))
	assert.Error(t, err)

	err = h.runner.HandleEvent(ctx, events.New(events.TypeJobRequested, "", events.Detail{FitbitUserID: "ghost", Job: string(LongTermAverages)}, clock))
	assert.Error(t, err)
}
