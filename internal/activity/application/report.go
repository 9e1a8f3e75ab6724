package application

import (
	"time"

	activity "catalysis-cloud/internal/activity/domain"
)

// ReactorResult is one reactor's processed series plus its fit outcome.
// A failed fit keeps the raw samples available for display; Fit is nil
// and FitError carries the reason.
type ReactorResult struct {
	ReactorID int                       `json:"reactor_id"`
	Intercept float64                   `json:"intercept"`
	Samples   []activity.ActivitySample `json:"samples"`
	Fit       *activity.FitResult       `json:"fit,omitempty"`
	FitError  string                    `json:"fit_error,omitempty"`
	TXValues  []activity.TXValue        `json:"tx_values,omitempty"`
}

// Fitted reports whether this reactor's fit converged.
func (r ReactorResult) Fitted() bool {
	return r.Fit != nil
}

// AnalysisReport is the stored outcome of one analysis run.
type AnalysisReport struct {
	ID            string          `json:"id"`
	TenantID      string          `json:"tenant_id"`
	RecordingID   string          `json:"recording_id"`
	SampleName    string          `json:"sample_name"`
	ProtocolName  string          `json:"protocol_name"`
	Model         activity.Model  `json:"model"`
	AutoIntercept bool            `json:"auto_intercept"`
	Targets       []float64       `json:"targets"`
	DetectedSteps int             `json:"detected_steps"`
	TotalSteps    int             `json:"total_steps"`
	Warning       string          `json:"warning,omitempty"`
	Reactors      []ReactorResult `json:"reactors"`
	CreatedAt     time.Time       `json:"created_at"`
}

// FittedCount returns how many reactors converged.
func (r AnalysisReport) FittedCount() int {
	count := 0
	for _, reactor := range r.Reactors {
		if reactor.Fitted() {
			count++
		}
	}
	return count
}

// MinRSquared returns the lowest R² across fitted reactors, or 0 when
// nothing fitted.
func (r AnalysisReport) MinRSquared() float64 {
	min := 0.0
	first := true
	for _, reactor := range r.Reactors {
		if !reactor.Fitted() {
			continue
		}
		if first || reactor.Fit.RSquared < min {
			min = reactor.Fit.RSquared
			first = false
		}
	}
	return min
}
