// ABOUTME: Tests for ranged averaging, the daily mapping and window ranges.
// ABOUTME: Includes the sparse-history weighting case kept for parity.
package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/bloom/internal/models"
)

func steps(v float64) models.Averages {
	return models.Averages{Steps: v, HRV: v / 100}
}

func TestRangedNoPriorsIsIdentity(t *testing.T) {
	next := models.Averages{Steps: 8000, HRV: 35, TotalScore: 72.5}
	assert.Equal(t, next, Ranged(nil, next))
}

func TestRangedMeanOfPriorsAndNext(t *testing.T) {
	tests := []struct {
		name   string
		priors []float64
		next   float64
		want   float64
	}{
		{"one prior", []float64{1000}, 3000, 2000},
		{"three priors", []float64{1000, 2000, 3000}, 6000, 3000},
		{"zero priors count", []float64{0, 0}, 900, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var priors []models.Averages
			for _, v := range tt.priors {
				priors = append(priors, steps(v))
			}
			got := Ranged(priors, steps(tt.next))
			assert.InDelta(t, tt.want, got.Steps, 1e-9)
			assert.InDelta(t, tt.want/100, got.HRV, 1e-9)
		})
	}
}

func TestRangedSixPriorsForHalfYear(t *testing.T) {
	priors := make([]models.Averages, 6)
	for i := range priors {
		priors[i] = steps(7000)
	}
	got := Ranged(priors, steps(14000))

	// 6 priors + 1 new = 7 in the denominator.
	assert.InDelta(t, 8000, got.Steps, 1e-9)
}

func TestRangedSparseHistoryUnderweights(t *testing.T) {
	// A 30D window with only two priors is still averaged over three points,
	// not scaled to thirty. Kept for parity with existing stored history.
	priors := []models.Averages{steps(6000), steps(6000)}
	got := Ranged(priors, steps(12000))

	assert.InDelta(t, 8000, got.Steps, 1e-9)
}

func TestRangedEveryFieldAveraged(t *testing.T) {
	var a, b models.Averages
	for _, f := range a.Fields() {
		*f = 2
	}
	for _, f := range b.Fields() {
		*f = 4
	}
	got := Ranged([]models.Averages{a}, b)
	for i, f := range got.Fields() {
		assert.Equal(t, 3.0, *f, models.AverageColumns[i])
	}
}

func fixtureDay() (*models.ActivitySummary, *models.SleepRecord, *models.HealthMetrics) {
	act := &models.ActivitySummary{
		TotalSteps:            7000,
		TotalDistance:         5.2,
		TotalActivityCalories: 2200,
		RestingHeartRate:      62,
		SedentaryMinutes:      500,
		LightlyActiveMinutes:  120,
		FairlyActiveMinutes:   20,
		VeryActiveMinutes:     30,
	}
	sl := &models.SleepRecord{
		MinutesAsleep:   420,
		MinutesAwake:    60,
		DeepSleepHours:  1.5,
		LightSleepHours: 4,
		RemSleepHours:   1.5,
		Efficiency:      90,
		IsMainSleep:     true,
	}
	hm := &models.HealthMetrics{
		DailyHRV:        20,
		SleepHRV:        24,
		BreathingRate:   15,
		SkinTemperature: 0.1,
		StressScore:     20,
	}
	return act, sl, hm
}

func TestDailyMapping(t *testing.T) {
	act, sl, hm := fixtureDay()

	got, err := Daily(act, sl, hm)
	require.NoError(t, err)

	assert.Equal(t, 7000.0, got.Steps)
	assert.Equal(t, 2200.0, got.CaloriesTotal)
	assert.Equal(t, 5.2, got.DistanceKm)
	assert.Equal(t, 62.0, got.HeartRate)
	assert.Equal(t, 62.0, got.RestingHeartRate)
	assert.Equal(t, 62.0, got.RHR)
	assert.Equal(t, 670.0, got.ActivityDuration)
	assert.Equal(t, 7.0, got.TotalSleepHours)
	assert.Equal(t, 1.0, got.AwakeHours)
	assert.Equal(t, 24.0, got.SleepHeartRate)
	assert.Equal(t, 20.0, got.HRV)
	assert.Equal(t, 15.0, got.RespiratoryRate)

	assert.Equal(t, 30.0, got.ActivityScore)
	assert.Equal(t, 25.0, got.SleepScore)
	assert.Equal(t, 40.0, got.MetricsScore)
	assert.Equal(t, 95.0, got.TotalScore)
}

func TestDailyMissingInput(t *testing.T) {
	act, sl, hm := fixtureDay()

	_, err := Daily(nil, sl, hm)
	assert.ErrorIs(t, err, ErrDataAbsent)
	_, err = Daily(act, nil, hm)
	assert.ErrorIs(t, err, ErrDataAbsent)
	_, err = Daily(act, sl, nil)
	assert.ErrorIs(t, err, ErrDataAbsent)
}

func TestShortTermWindows(t *testing.T) {
	today := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	got := ShortTermWindows(today)

	require.Len(t, got, 3)
	assert.Equal(t, Window{Period: models.Period1D}, got[0])
	assert.Equal(t, Window{Period: models.Period7D, HasPriors: true, From: "2025-02-23", To: "2025-02-28"}, got[1])
	assert.Equal(t, Window{Period: models.Period30D, HasPriors: true, From: "2025-01-31", To: "2025-02-28"}, got[2])
}

func TestLongTermWindows(t *testing.T) {
	got := LongTermWindows(time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC))

	require.Len(t, got, 4)
	assert.Equal(t, Window{Period: models.Period30D}, got[0])
	assert.Equal(t, "2024-12-01", got[1].From)
	assert.Equal(t, "2024-09-01", got[2].From)
	assert.Equal(t, "2024-03-01", got[3].From)
	for _, w := range got[1:] {
		assert.True(t, w.HasPriors)
		assert.Equal(t, "2025-02-01", w.To)
	}
}

func TestMonthStartKeepsLocation(t *testing.T) {
	loc := time.FixedZone("KST", 9*3600)
	got := MonthStart(time.Date(2025, 7, 31, 23, 59, 0, 0, loc))

	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, loc), got)
}
