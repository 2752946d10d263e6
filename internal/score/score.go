// ABOUTME: Composite health score and daily stress score arithmetic.
// ABOUTME: Pure functions over fixed reference constants; no I/O.
package score

import "math"

// Health score reference values.
const (
	StepGoal          = 7000.0
	CalorieGoal       = 2200.0
	SleepMinMinutes   = 420.0
	HRVFloor          = 20.0
	RHRCeiling        = 70.0
	StressCeiling     = 30.0
	SedentaryCeiling  = 600.0
	VeryActiveGoal    = 30.0
	DeepSleepGoalHrs  = 1.5
	EfficiencyGoal    = 90.0
	AwakeLimitHours   = 2.0
	BreathingRateLow  = 12.0
	BreathingRateHigh = 20.0
	SkinTempBand      = 0.3
)

// Activity holds the activity inputs of the health score.
type Activity struct {
	Steps             float64
	CaloriesTotal     float64
	VeryActiveMinutes float64
	SedentaryMinutes  float64
}

// Sleep holds the sleep inputs of the health score.
type Sleep struct {
	TotalSleepHours float64
	DeepSleepHours  float64
	AwakeHours      float64
	Quality         float64
	Efficiency      float64
}

// Metrics holds the recovery inputs of the health score.
type Metrics struct {
	HRV             float64
	RHR             float64
	RespiratoryRate float64
	SkinTemperature float64
	StressScore     float64
}

// HealthScore is the composite score: activity ≤30, sleep ≤30, metrics ≤40.
type HealthScore struct {
	Activity float64 `json:"activity_score"`
	Sleep    float64 `json:"sleep_score"`
	Metrics  float64 `json:"metrics_score"`
	Total    float64 `json:"total_score"`
}

// ratio returns min(v/goal, 1) scaled to weight.
func ratio(v, goal, weight float64) float64 {
	return math.Min(v/goal, 1) * weight
}

// Health computes the composite health score.
// Sleep quality is added to the sleep score as-is and the total is not clamped.
func Health(a Activity, s Sleep, m Metrics) HealthScore {
	sedentary := 0.0
	if a.SedentaryMinutes < SedentaryCeiling {
		sedentary = 5
	}
	activity := ratio(a.Steps, StepGoal, 10) +
		ratio(a.CaloriesTotal, CalorieGoal, 10) +
		ratio(a.VeryActiveMinutes, VeryActiveGoal, 5) +
		sedentary

	awake := 2.0
	if s.AwakeHours <= AwakeLimitHours {
		awake = 5
	}
	sleep := ratio(s.TotalSleepHours*60, SleepMinMinutes, 10) +
		ratio(s.DeepSleepHours, DeepSleepGoalHrs, 5) +
		s.Quality +
		ratio(s.Efficiency, EfficiencyGoal, 5) +
		awake

	rhr := 5.0
	if m.RHR <= RHRCeiling {
		rhr = 10
	}
	breath := 2.0
	if m.RespiratoryRate >= BreathingRateLow && m.RespiratoryRate <= BreathingRateHigh {
		breath = 5
	}
	temp := 2.0
	if math.Abs(m.SkinTemperature) <= SkinTempBand {
		temp = 5
	}
	stress := 5.0
	if m.StressScore <= StressCeiling {
		stress = 10
	}
	metrics := ratio(m.HRV, HRVFloor, 10) + rhr + breath + temp + stress

	return HealthScore{
		Activity: activity,
		Sleep:    sleep,
		Metrics:  metrics,
		Total:    activity + sleep + metrics,
	}
}

// Stress baselines.
const (
	BaseHRV              = 40.0
	BaseRHR              = 65.0
	BaseDeepSleepMinutes = 90.0
	ContributionCap      = 33.0
)

// StressScore is the daily stress figure and its three rounded contributions.
type StressScore struct {
	Stress            float64 `json:"stress_score"`
	HRVContribution   float64 `json:"hrv_contribution"`
	RHRContribution   float64 `json:"rhr_contribution"`
	SleepContribution float64 `json:"sleep_contribution"`
}

func clampContribution(v float64) float64 {
	return math.Min(math.Max(v, 0), ContributionCap)
}

// Round rounds half up, matching the upstream platform's rounding of .5 values.
func Round(v float64) float64 {
	return math.Floor(v + 0.5)
}

// Stress computes the stress score from daily HRV, resting heart rate and deep sleep minutes.
// The stress figure rounds 100 minus the unrounded contribution sum; the contributions are
// rounded independently, so they need not add up to 100 minus the stress figure.
// A zero resting heart rate divides to +Inf and clamps to the cap.
func Stress(hrv, restingHeartRate, deepSleepMinutes float64) StressScore {
	hrvScore := clampContribution(hrv / BaseHRV * ContributionCap)
	rhrScore := clampContribution(BaseRHR / restingHeartRate * ContributionCap)
	sleepScore := clampContribution(deepSleepMinutes / BaseDeepSleepMinutes * ContributionCap)

	total := hrvScore + rhrScore + sleepScore

	return StressScore{
		Stress:            Round(100 - total),
		HRVContribution:   Round(hrvScore),
		RHRContribution:   Round(rhrScore),
		SleepContribution: Round(sleepScore),
	}
}
