// ABOUTME: AnomalyEvent model for threshold alerts raised from intraday samples.
// ABOUTME: Append-only; one row per triggered detection run.
package models

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisThreshold is the only analysis type currently produced.
const AnalysisThreshold = "threshold"

// AnomalyEvent records a triggered anomaly for a user.
type AnomalyEvent struct {
	ID           uuid.UUID `json:"id" yaml:"id"`
	UserID       uuid.UUID `json:"user_id" yaml:"user_id"`
	AnalysisType string    `json:"analysis_type" yaml:"analysis_type"`
	TriggerType  string    `json:"trigger_type" yaml:"trigger_type"`
	Detail       string    `json:"detail" yaml:"detail"`
	TriggeredAt  time.Time `json:"triggered_at" yaml:"triggered_at"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
}

// NewAnomalyEvent creates a threshold AnomalyEvent with generated UUID.
func NewAnomalyEvent(userID uuid.UUID, triggerType, detail string, at time.Time) *AnomalyEvent {
	return &AnomalyEvent{
		ID:           uuid.New(),
		UserID:       userID,
		AnalysisType: AnalysisThreshold,
		TriggerType:  triggerType,
		Detail:       detail,
		TriggeredAt:  at,
		CreatedAt:    time.Now(),
	}
}
