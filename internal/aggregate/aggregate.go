// ABOUTME: Rolling-window averaging over PeriodAverage rows.
// ABOUTME: Ranged mean of priors plus one new point, and the per-day raw-to-average mapping.
package aggregate

import (
	"errors"
	"fmt"

	"github.com/harperreed/bloom/internal/models"
	"github.com/harperreed/bloom/internal/score"
)

// ErrDataAbsent is returned when a required input row for a day is missing.
var ErrDataAbsent = errors.New("required data absent")

// Ranged returns the per-field mean of priors and next, dividing by len(priors)+1.
// Window membership is not checked; the caller selects priors. Sparse history is
// averaged as-is, so a window with few priors is weighted toward next.
func Ranged(priors []models.Averages, next models.Averages) models.Averages {
	var out models.Averages
	sums := out.Fields()

	for i := range priors {
		for j, v := range priors[i].Fields() {
			*sums[j] += *v
		}
	}
	for j, v := range next.Fields() {
		*sums[j] += *v
	}

	n := float64(len(priors) + 1)
	for _, v := range sums {
		*v /= n
	}
	return out
}

// Daily maps one day's activity, main sleep and health rows onto an Averages value
// and fills in the composite health scores.
func Daily(activity *models.ActivitySummary, sleep *models.SleepRecord, health *models.HealthMetrics) (models.Averages, error) {
	switch {
	case activity == nil:
		return models.Averages{}, fmt.Errorf("%w: activity summary", ErrDataAbsent)
	case sleep == nil:
		return models.Averages{}, fmt.Errorf("%w: main sleep", ErrDataAbsent)
	case health == nil:
		return models.Averages{}, fmt.Errorf("%w: health metrics", ErrDataAbsent)
	}

	a := models.Averages{
		Steps:                activity.TotalSteps,
		CaloriesTotal:        activity.TotalActivityCalories,
		DistanceKm:           activity.TotalDistance,
		HeartRate:            activity.RestingHeartRate,
		RestingHeartRate:     activity.RestingHeartRate,
		SedentaryMinutes:     activity.SedentaryMinutes,
		LightlyActiveMinutes: activity.LightlyActiveMinutes,
		FairlyActiveMinutes:  activity.FairlyActiveMinutes,
		VeryActiveMinutes:    activity.VeryActiveMinutes,
		ActivityDuration: activity.SedentaryMinutes + activity.LightlyActiveMinutes +
			activity.FairlyActiveMinutes + activity.VeryActiveMinutes,

		TotalSleepHours: sleep.MinutesAsleep / 60,
		DeepSleepHours:  sleep.DeepSleepHours,
		LightSleepHours: sleep.LightSleepHours,
		RemSleepHours:   sleep.RemSleepHours,
		AwakeHours:      sleep.MinutesAwake / 60,

		// Sleep heart rate carries the nightly HRV reading; no sleeping-HR series is collected.
		SleepHeartRate:  health.SleepHRV,
		HRV:             health.DailyHRV,
		RHR:             activity.RestingHeartRate,
		RespiratoryRate: health.BreathingRate,
		SkinTemperature: health.SkinTemperature,
		StressScore:     health.StressScore,
	}

	hs := score.Health(
		score.Activity{
			Steps:             a.Steps,
			CaloriesTotal:     a.CaloriesTotal,
			VeryActiveMinutes: a.VeryActiveMinutes,
			SedentaryMinutes:  a.SedentaryMinutes,
		},
		score.Sleep{
			TotalSleepHours: a.TotalSleepHours,
			DeepSleepHours:  a.DeepSleepHours,
			AwakeHours:      a.AwakeHours,
			Quality:         sleep.Quality,
			Efficiency:      sleep.Efficiency,
		},
		score.Metrics{
			HRV:             a.HRV,
			RHR:             a.RHR,
			RespiratoryRate: a.RespiratoryRate,
			SkinTemperature: a.SkinTemperature,
			StressScore:     a.StressScore,
		},
	)
	a.ActivityScore = hs.Activity
	a.SleepScore = hs.Sleep
	a.MetricsScore = hs.Metrics
	a.TotalScore = hs.Total

	return a, nil
}
