// ABOUTME: Tests for the intraday threshold rules.
// ABOUTME: Table-driven over resting/active heart-rate bounds and movement.
package anomaly

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harperreed/bloom/internal/models"
)

func sample(steps, calories, hr float64) models.IntradaySample {
	c := calories
	return models.IntradaySample{Steps: steps, CaloriesTotal: &c, HeartRate: hr}
}

func TestDetectEmptyIsInsufficient(t *testing.T) {
	got := Detect(nil)

	assert.False(t, got.Triggered)
	assert.Equal(t, ReasonInsufficientData, got.Reason)
}

func TestDetectAllZeroStepsIsNoMovement(t *testing.T) {
	got := Detect([]models.IntradaySample{sample(0, 5, 70), sample(0, 5, 72)})

	assert.True(t, got.Triggered)
	assert.True(t, got.NoMovement)
	assert.False(t, got.AbnormalHeartRate)
	assert.Equal(t, ReasonNoMovement, got.Reason)
	assert.Equal(t, DetailNoMovement, got.Detail)
}

func TestDetectHeartRateRules(t *testing.T) {
	tests := []struct {
		name     string
		samples  []models.IntradaySample
		want     bool
		wantWhy  string
		offender int
	}{
		{
			name:     "resting hr 45 among active samples",
			samples:  []models.IntradaySample{sample(200, 30, 80), sample(3, 10, 45)},
			want:     true,
			wantWhy:  ReasonAbnormalHeartRate,
			offender: 1,
		},
		{
			name:     "resting hr 55 is normal",
			samples:  []models.IntradaySample{sample(200, 30, 80), sample(3, 10, 55)},
			want:     false,
			wantWhy:  ReasonNone,
			offender: -1,
		},
		{
			name:     "resting hr above 120",
			samples:  []models.IntradaySample{sample(200, 30, 80), sample(0, 0, 121)},
			want:     true,
			wantWhy:  ReasonAbnormalHeartRate,
			offender: 1,
		},
		{
			name:     "active hr 150 is normal",
			samples:  []models.IntradaySample{sample(900, 60, 150)},
			want:     false,
			wantWhy:  ReasonNone,
			offender: -1,
		},
		{
			name:     "active hr 48 is abnormal",
			samples:  []models.IntradaySample{sample(900, 60, 48)},
			want:     true,
			wantWhy:  ReasonAbnormalHeartRate,
			offender: 0,
		},
		{
			name:     "low steps with high calories counts as active",
			samples:  []models.IntradaySample{sample(900, 60, 80), sample(2, 40, 130)},
			want:     false,
			wantWhy:  ReasonNone,
			offender: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(tt.samples)
			assert.Equal(t, tt.want, got.Triggered)
			assert.Equal(t, tt.wantWhy, got.Reason)
			assert.Equal(t, tt.offender, got.Offending)
		})
	}
}

func TestDetectNoMovementWinsOverHeartRate(t *testing.T) {
	got := Detect([]models.IntradaySample{sample(0, 0, 45)})

	assert.True(t, got.NoMovement)
	assert.True(t, got.AbnormalHeartRate)
	assert.Equal(t, ReasonNoMovement, got.Reason)
}

func TestMissingCaloriesTreatedAsZero(t *testing.T) {
	s := models.IntradaySample{Steps: 2, HeartRate: 60}
	assert.True(t, IsResting(s))
}
