// ABOUTME: PeriodAverage model and PeriodType enum for rolling window summaries.
// ABOUTME: Averages holds the 25 numeric fields shared by every window.
package models

import (
	"time"

	"github.com/google/uuid"
)

// PeriodType is the fixed trailing window a PeriodAverage summarizes.
type PeriodType string

const (
	Period1D   PeriodType = "1D"
	Period7D   PeriodType = "7D"
	Period30D  PeriodType = "30D"
	Period90D  PeriodType = "90D"
	Period180D PeriodType = "180D"
	Period360D PeriodType = "360D"
)

// PeriodDays maps period types to their nominal length in days.
var PeriodDays = map[PeriodType]int{
	Period1D:   1,
	Period7D:   7,
	Period30D:  30,
	Period90D:  90,
	Period180D: 180,
	Period360D: 360,
}

// Family separates the short-term (daily) and long-term (monthly) hierarchies.
// Both contain a 30D window, so each family is stored in its own table.
type Family string

const (
	FamilyShortTerm Family = "short"
	FamilyLongTerm  Family = "long"
)

// FamilyPeriods lists the windows each family produces, in save order.
var FamilyPeriods = map[Family][]PeriodType{
	FamilyShortTerm: {Period1D, Period7D, Period30D},
	FamilyLongTerm:  {Period30D, Period90D, Period180D, Period360D},
}

// IsValidPeriodType checks if a string is a valid period type.
func IsValidPeriodType(s string) bool {
	_, ok := PeriodDays[PeriodType(s)]
	return ok
}

// IsValidFamily checks if a string names a known family.
func IsValidFamily(s string) bool {
	_, ok := FamilyPeriods[Family(s)]
	return ok
}

// Averages is the set of averaged metric and score fields.
type Averages struct {
	// Activity
	Steps                float64 `json:"avg_steps" yaml:"avg_steps"`
	CaloriesTotal        float64 `json:"avg_calories_total" yaml:"avg_calories_total"`
	DistanceKm           float64 `json:"avg_distance_km" yaml:"avg_distance_km"`
	HeartRate            float64 `json:"avg_heart_rate" yaml:"avg_heart_rate"`
	RestingHeartRate     float64 `json:"avg_resting_heart_rate" yaml:"avg_resting_heart_rate"`
	SedentaryMinutes     float64 `json:"avg_sedentary_minutes" yaml:"avg_sedentary_minutes"`
	LightlyActiveMinutes float64 `json:"avg_lightly_active_minutes" yaml:"avg_lightly_active_minutes"`
	FairlyActiveMinutes  float64 `json:"avg_fairly_active_minutes" yaml:"avg_fairly_active_minutes"`
	VeryActiveMinutes    float64 `json:"avg_very_active_minutes" yaml:"avg_very_active_minutes"`
	ActivityDuration     float64 `json:"avg_activity_duration" yaml:"avg_activity_duration"`

	// Sleep
	TotalSleepHours float64 `json:"avg_total_sleep_hours" yaml:"avg_total_sleep_hours"`
	DeepSleepHours  float64 `json:"avg_deep_sleep_hours" yaml:"avg_deep_sleep_hours"`
	LightSleepHours float64 `json:"avg_light_sleep_hours" yaml:"avg_light_sleep_hours"`
	RemSleepHours   float64 `json:"avg_rem_sleep_hours" yaml:"avg_rem_sleep_hours"`
	AwakeHours      float64 `json:"avg_awake_hours" yaml:"avg_awake_hours"`

	// Health metrics
	SleepHeartRate  float64 `json:"avg_sleep_heart_rate" yaml:"avg_sleep_heart_rate"`
	HRV             float64 `json:"avg_hrv" yaml:"avg_hrv"`
	RHR             float64 `json:"avg_rhr" yaml:"avg_rhr"`
	RespiratoryRate float64 `json:"avg_respiratory_rate" yaml:"avg_respiratory_rate"`
	SkinTemperature float64 `json:"avg_skin_temperature" yaml:"avg_skin_temperature"`
	StressScore     float64 `json:"avg_stress_score" yaml:"avg_stress_score"`

	// Scores
	ActivityScore float64 `json:"avg_activity_score" yaml:"avg_activity_score"`
	SleepScore    float64 `json:"avg_sleep_score" yaml:"avg_sleep_score"`
	MetricsScore  float64 `json:"avg_metrics_score" yaml:"avg_metrics_score"`
	TotalScore    float64 `json:"avg_total_score" yaml:"avg_total_score"`
}

// AverageFieldCount is the number of numeric fields in Averages.
const AverageFieldCount = 25

// Fields returns pointers to every numeric field in declaration order.
// Storage and aggregation iterate this list instead of naming fields.
func (a *Averages) Fields() []*float64 {
	return []*float64{
		&a.Steps, &a.CaloriesTotal, &a.DistanceKm, &a.HeartRate, &a.RestingHeartRate,
		&a.SedentaryMinutes, &a.LightlyActiveMinutes, &a.FairlyActiveMinutes,
		&a.VeryActiveMinutes, &a.ActivityDuration,
		&a.TotalSleepHours, &a.DeepSleepHours, &a.LightSleepHours, &a.RemSleepHours, &a.AwakeHours,
		&a.SleepHeartRate, &a.HRV, &a.RHR, &a.RespiratoryRate, &a.SkinTemperature, &a.StressScore,
		&a.ActivityScore, &a.SleepScore, &a.MetricsScore, &a.TotalScore,
	}
}

// AverageColumns are the column names matching Averages.Fields order.
var AverageColumns = []string{
	"avg_steps", "avg_calories_total", "avg_distance_km", "avg_heart_rate", "avg_resting_heart_rate",
	"avg_sedentary_minutes", "avg_lightly_active_minutes", "avg_fairly_active_minutes",
	"avg_very_active_minutes", "avg_activity_duration",
	"avg_total_sleep_hours", "avg_deep_sleep_hours", "avg_light_sleep_hours", "avg_rem_sleep_hours", "avg_awake_hours",
	"avg_sleep_heart_rate", "avg_hrv", "avg_rhr", "avg_respiratory_rate", "avg_skin_temperature", "avg_stress_score",
	"avg_activity_score", "avg_sleep_score", "avg_metrics_score", "avg_total_score",
}

// PeriodAverage is one window summary for a user on a date.
type PeriodAverage struct {
	ID         uuid.UUID  `json:"id" yaml:"id"`
	UserID     uuid.UUID  `json:"user_id" yaml:"user_id"`
	RecordedAt string     `json:"recorded_at" yaml:"recorded_at"`
	PeriodType PeriodType `json:"period_type" yaml:"period_type"`
	Averages   `yaml:",inline"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
}

// NewPeriodAverage creates a PeriodAverage with generated UUID.
func NewPeriodAverage(userID uuid.UUID, recordedAt string, period PeriodType, avg Averages) *PeriodAverage {
	return &PeriodAverage{
		ID:         uuid.New(),
		UserID:     userID,
		RecordedAt: recordedAt,
		PeriodType: period,
		Averages:   avg,
		CreatedAt:  time.Now(),
	}
}
