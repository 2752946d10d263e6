// ABOUTME: Threshold rules over a window of intraday samples.
// ABOUTME: Flags sustained inactivity and out-of-range heart rate.
package anomaly

import "github.com/harperreed/bloom/internal/models"

// Threshold values applied to each sample.
const (
	RestingStepsMax    = 5.0
	RestingCaloriesMax = 15.0
	HeartRateLow       = 50.0
	HeartRateHigh      = 120.0
)

// Trigger reasons.
const (
	ReasonNone              = "none"
	ReasonInsufficientData  = "insufficient_data"
	ReasonNoMovement        = "no_movement"
	ReasonAbnormalHeartRate = "abnormal_heart_rate"
)

// User-facing detail messages stored with a triggered event.
const (
	DetailNoMovement        = "No movement detected in the last 6 hours.\nThis may indicate a fall or a health problem."
	DetailAbnormalHeartRate = "Abnormal heart rate detected.\nDo you want to respond?"
)

// Result is the outcome of one detection run.
type Result struct {
	Triggered         bool
	Reason            string
	Detail            string
	NoMovement        bool
	AbnormalHeartRate bool
	// Offending is the index of the first abnormal heart rate sample, or -1.
	Offending int
}

// IsResting reports whether a sample counts as resting.
func IsResting(s models.IntradaySample) bool {
	return s.Steps <= RestingStepsMax && s.Calories() <= RestingCaloriesMax
}

// AbnormalHeartRate reports whether a sample's heart rate is out of range for its state.
// Resting samples are bounded on both sides, active samples only from below.
func AbnormalHeartRate(s models.IntradaySample) bool {
	if IsResting(s) {
		return s.HeartRate < HeartRateLow || s.HeartRate > HeartRateHigh
	}
	return s.HeartRate < HeartRateLow
}

// Detect applies the threshold rules to samples. An empty window is never triggered.
// When both rules fire the reason is no movement.
func Detect(samples []models.IntradaySample) Result {
	if len(samples) == 0 {
		return Result{Reason: ReasonInsufficientData, Offending: -1}
	}

	r := Result{NoMovement: true, Offending: -1}
	for i := range samples {
		if samples[i].Steps > RestingStepsMax {
			r.NoMovement = false
		}
		if r.Offending < 0 && AbnormalHeartRate(samples[i]) {
			r.AbnormalHeartRate = true
			r.Offending = i
		}
	}

	switch {
	case r.NoMovement:
		r.Triggered = true
		r.Reason = ReasonNoMovement
		r.Detail = DetailNoMovement
	case r.AbnormalHeartRate:
		r.Triggered = true
		r.Reason = ReasonAbnormalHeartRate
		r.Detail = DetailAbnormalHeartRate
	default:
		r.Reason = ReasonNone
	}
	return r
}
