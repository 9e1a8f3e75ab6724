// Package events defines analysis domain events shared across contexts.
package events

import "time"

// AnalysisCompleted is published after an analysis report is stored,
// whether or not every reactor's fit converged.
type AnalysisCompleted struct {
	AnalysisID   string    `json:"analysis_id"`
	RecordingID  string    `json:"recording_id"`
	TenantID     string    `json:"tenant_id"`
	SampleName   string    `json:"sample_name"`
	ReactorCount int       `json:"reactor_count"`
	FittedCount  int       `json:"fitted_count"`
	MinRSquared  float64   `json:"min_r_squared"`
	OccurredAt   time.Time `json:"occurred_at"`
}
