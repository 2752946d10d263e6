// ABOUTME: Raw metric records written by ingestion jobs and read by aggregation.
// ABOUTME: Intraday samples, daily activity summaries, sleep records, daily health metrics.
package models

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the layout of calendar dates stored alongside records.
const DateLayout = "2006-01-02"

// IntradaySample is a sub-daily reading summed over a short collection window.
type IntradaySample struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	RecordedAt    time.Time
	Steps         float64
	DistanceKm    float64
	CaloriesTotal *float64
	HeartRate     float64
	CreatedAt     time.Time
}

// NewIntradaySample creates an IntradaySample with generated UUID.
func NewIntradaySample(userID uuid.UUID, recordedAt time.Time) *IntradaySample {
	return &IntradaySample{
		ID:         uuid.New(),
		UserID:     userID,
		RecordedAt: recordedAt,
		CreatedAt:  time.Now(),
	}
}

// Calories returns the calorie reading, treating a missing value as zero.
func (s *IntradaySample) Calories() float64 {
	if s.CaloriesTotal == nil {
		return 0
	}
	return *s.CaloriesTotal
}

// ActivitySummary is one day of activity totals for a user.
type ActivitySummary struct {
	ID                    uuid.UUID
	UserID                uuid.UUID
	Date                  string
	TotalSteps            float64
	TotalDistance         float64
	TotalCaloriesOut      float64
	TotalActivityCalories float64
	CaloriesBMR           float64
	MarginalCalories      float64
	RestingHeartRate      float64
	SedentaryMinutes      float64
	LightlyActiveMinutes  float64
	FairlyActiveMinutes   float64
	VeryActiveMinutes     float64
	OutOfRangeMinutes     float64
	FatBurnMinutes        float64
	CardioMinutes         float64
	PeakMinutes           float64
	OutOfRangeCalories    float64
	FatBurnCalories       float64
	CardioCalories        float64
	PeakCalories          float64
	CreatedAt             time.Time
}

// NewActivitySummary creates an ActivitySummary with generated UUID.
func NewActivitySummary(userID uuid.UUID, date string) *ActivitySummary {
	return &ActivitySummary{
		ID:        uuid.New(),
		UserID:    userID,
		Date:      date,
		CreatedAt: time.Now(),
	}
}

// SleepRecord is a single sleep session. StartTime/EndTime form its natural key.
type SleepRecord struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	Date              string
	LogID             int64
	StartTime         time.Time
	EndTime           time.Time
	TotalSleepMinutes float64
	DeepSleepHours    float64
	LightSleepHours   float64
	RemSleepHours     float64
	MinutesAwake      float64
	AwakeCount        int
	AwakeDuration     float64
	TimeInBed         float64
	MinutesAsleep     float64
	Efficiency        float64
	Duration          int64
	Quality           float64
	IsMainSleep       bool
	CreatedAt         time.Time
}

// NewSleepRecord creates a SleepRecord with generated UUID.
func NewSleepRecord(userID uuid.UUID, date string, start, end time.Time) *SleepRecord {
	return &SleepRecord{
		ID:        uuid.New(),
		UserID:    userID,
		Date:      date,
		StartTime: start,
		EndTime:   end,
		CreatedAt: time.Now(),
	}
}

// HealthMetrics is one day of recovery metrics plus the derived stress score.
type HealthMetrics struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	Date              string
	DailyHRV          float64
	SleepHRV          float64
	BreathingRate     float64
	SkinTemperature   float64
	StressScore       float64
	HRVContribution   float64
	RHRContribution   float64
	SleepContribution float64
	CreatedAt         time.Time
}

// NewHealthMetrics creates a HealthMetrics row with generated UUID.
func NewHealthMetrics(userID uuid.UUID, date string) *HealthMetrics {
	return &HealthMetrics{
		ID:        uuid.New(),
		UserID:    userID,
		Date:      date,
		CreatedAt: time.Now(),
	}
}
