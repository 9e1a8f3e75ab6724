package recording

import (
	"errors"
	"time"

	activity "catalysis-cloud/internal/activity/domain"
)

var (
	// ErrEmptyID is returned when the recording id is empty.
	ErrEmptyID = errors.New("recording: empty id")
	// ErrNoSamples is returned when a recording carries no samples.
	ErrNoSamples = errors.New("recording: no samples")
	// ErrNotSorted is returned when sample times decrease.
	ErrNotSorted = errors.New("recording: samples not sorted by time")
	// ErrNotFound is returned when a recording cannot be found.
	ErrNotFound = errors.New("recording: not found")
)

// Sample is one (time, intensity) pair of an absorbance trace.
type Sample struct {
	Time      float64 // seconds from recorder start
	Intensity float64
}

// Recording is a complete captured FT-IR absorbance trace.
type Recording struct {
	ID         string
	TenantID   string
	SampleName string
	Source     string
	Samples    []Sample
	CreatedAt  time.Time
}

// Validate checks recording invariants.
func (r Recording) Validate() error {
	if r.ID == "" {
		return ErrEmptyID
	}
	if len(r.Samples) == 0 {
		return ErrNoSamples
	}
	for i := 1; i < len(r.Samples); i++ {
		if r.Samples[i].Time < r.Samples[i-1].Time {
			return ErrNotSorted
		}
	}
	return nil
}

// Duration is the time span covered by the recording.
func (r Recording) Duration() float64 {
	if len(r.Samples) == 0 {
		return 0
	}
	return r.Samples[len(r.Samples)-1].Time - r.Samples[0].Time
}

// Points converts samples into the analysis core's representation.
func (r Recording) Points() []activity.Point {
	points := make([]activity.Point, len(r.Samples))
	for i, s := range r.Samples {
		points[i] = activity.Point{Time: s.Time, Intensity: s.Intensity}
	}
	return points
}
