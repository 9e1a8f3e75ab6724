package activity

import "errors"

var (
	// ErrEmptySteps is returned when a protocol has no temperature steps.
	ErrEmptySteps = errors.New("activity: empty step list")
	// ErrInvalidHoldTime is returned when a step hold time is not positive.
	ErrInvalidHoldTime = errors.New("activity: invalid hold time")
	// ErrInvalidRampTime is returned when the ramp time is negative.
	ErrInvalidRampTime = errors.New("activity: invalid ramp time")
	// ErrInvalidAnalysisTime is returned when the analysis window is not positive.
	ErrInvalidAnalysisTime = errors.New("activity: invalid analysis time")
	// ErrInvalidMode is returned when the protocol mode is unsupported.
	ErrInvalidMode = errors.New("activity: invalid mode")
	// ErrInvalidReactorID is returned when a step reactor id is out of range.
	ErrInvalidReactorID = errors.New("activity: invalid reactor id")
	// ErrEmptySeries is returned when the raw time series has no samples.
	ErrEmptySeries = errors.New("activity: empty time series")
	// ErrTimeNotSorted is returned when sample times decrease.
	ErrTimeNotSorted = errors.New("activity: time series not sorted")
	// ErrNoSamples is returned when no step window matched any sample.
	ErrNoSamples = errors.New("activity: no step produced samples")
	// ErrTooFewPoints is returned when there are not enough points to fit.
	ErrTooFewPoints = errors.New("activity: not enough points to fit")
	// ErrDegenerateData is returned when conversions have no variance.
	ErrDegenerateData = errors.New("activity: conversions have no variance")
	// ErrFitDiverged is returned when the fit does not converge.
	ErrFitDiverged = errors.New("activity: fit did not converge")
	// ErrTargetOutOfRange is returned for TX targets outside the model range.
	ErrTargetOutOfRange = errors.New("activity: target conversion out of range")
	// ErrNonPositiveGrowth guards TX inversion on degenerate fits.
	ErrNonPositiveGrowth = errors.New("activity: non-positive growth rate")
)
