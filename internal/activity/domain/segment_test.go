package activity

import (
	"errors"
	"math"
	"testing"
	"time"
)

// evenSeries produces samples every stepSec seconds across the duration,
// all with the given intensity.
func evenSeries(start, duration, stepSec, intensity float64) []Point {
	var out []Point
	for t := start; t <= start+duration; t += stepSec {
		out = append(out, Point{Time: t, Intensity: intensity})
	}
	return out
}

func fourStepProtocol() Protocol {
	return Protocol{
		Steps: []TemperatureStep{
			{Temperature: 500, HoldTime: 20 * time.Minute, ReactorID: 1},
			{Temperature: 450, HoldTime: 20 * time.Minute, ReactorID: 1},
			{Temperature: 450, HoldTime: 20 * time.Minute, ReactorID: 2},
			{Temperature: 400, HoldTime: 20 * time.Minute, ReactorID: 1},
		},
		RampTime:     10 * time.Minute,
		AnalysisTime: 10 * time.Minute,
		Mode:         ModeSemiAuto,
		NumReactors:  2,
	}
}

func TestSegmentStepsAnalysisWindowBounds(t *testing.T) {
	p := DefaultProtocol()
	p.Steps = p.Steps[:1]
	series := evenSeries(0, 1500, 10, 0.1)

	windows, err := SegmentSteps(p, series)
	if err != nil {
		t.Fatalf("segment error: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(windows))
	}
	// 20 min hold with 10 min analysis: window spans [t0+600, t0+1200].
	w := windows[0]
	if w.TimeStart != 600 || w.TimeEnd != 1200 {
		t.Fatalf("expected window [600,1200], got [%v,%v]", w.TimeStart, w.TimeEnd)
	}
	// Inclusive both ends: samples at 600 and 1200 count.
	if w.SampleCount != 61 {
		t.Fatalf("expected 61 samples in window, got %d", w.SampleCount)
	}
}

func TestSegmentStepsSameTemperatureRampSkip(t *testing.T) {
	p := fourStepProtocol()
	// Long flat recording so every window matches.
	series := evenSeries(0, 4*3600, 5, 0.2)

	windows, err := SegmentSteps(p, series)
	if err != nil {
		t.Fatalf("segment error: %v", err)
	}
	if len(windows) != 4 {
		t.Fatalf("expected 4 windows, got %d", len(windows))
	}

	hold := (20 * time.Minute).Seconds()
	ramp := (10 * time.Minute).Seconds()
	analysis := (10 * time.Minute).Seconds()

	// Step 0 starts at 0; step 1 after hold+ramp; step 2 after another
	// hold with no ramp (450 -> 450); step 3 after hold+ramp again.
	starts := []float64{
		0,
		hold + ramp,
		hold + ramp + hold,
		hold + ramp + hold + hold + ramp,
	}
	for i, w := range windows {
		wantStart := starts[i] + (hold - analysis)
		if math.Abs(w.TimeStart-wantStart) > 1e-9 {
			t.Fatalf("step %d: expected window start %v, got %v", i, wantStart, w.TimeStart)
		}
	}
}

func TestSegmentStepsNonZeroOrigin(t *testing.T) {
	p := DefaultProtocol()
	p.Steps = p.Steps[:2]
	series := evenSeries(5000, 4000, 10, 0.3)

	windows, err := SegmentSteps(p, series)
	if err != nil {
		t.Fatalf("segment error: %v", err)
	}
	if len(windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(windows))
	}
	if windows[0].TimeStart != 5600 {
		t.Fatalf("expected first window to honor recording origin, got start %v", windows[0].TimeStart)
	}
}

func TestSegmentStepsShortHoldUsesWholeHold(t *testing.T) {
	p := DefaultProtocol()
	p.Steps = []TemperatureStep{{Temperature: 500, HoldTime: 5 * time.Minute, ReactorID: 1}}
	series := evenSeries(0, 600, 10, 0.1)

	windows, err := SegmentSteps(p, series)
	if err != nil {
		t.Fatalf("segment error: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(windows))
	}
	if windows[0].TimeStart != 0 || windows[0].TimeEnd != 300 {
		t.Fatalf("expected window [0,300] for 5 min hold, got [%v,%v]", windows[0].TimeStart, windows[0].TimeEnd)
	}
}

func TestSegmentStepsShortRecordingDropsLaterSteps(t *testing.T) {
	p := DefaultProtocol() // 8 steps, ~230 min required
	series := evenSeries(0, 3000, 10, 0.1)

	windows, err := SegmentSteps(p, series)
	if err != nil {
		t.Fatalf("segment error: %v", err)
	}
	if len(windows) >= len(p.Steps) {
		t.Fatalf("expected missing steps on short recording, got %d of %d", len(windows), len(p.Steps))
	}
	if len(windows) == 0 {
		t.Fatalf("expected at least the first step to match")
	}
}

func TestSegmentStepsInputValidation(t *testing.T) {
	p := DefaultProtocol()
	if _, err := SegmentSteps(p, nil); !errors.Is(err, ErrEmptySeries) {
		t.Fatalf("expected ErrEmptySeries, got %v", err)
	}
	unsorted := []Point{{Time: 10, Intensity: 1}, {Time: 5, Intensity: 1}}
	if _, err := SegmentSteps(p, unsorted); !errors.Is(err, ErrTimeNotSorted) {
		t.Fatalf("expected ErrTimeNotSorted, got %v", err)
	}
	bad := p
	bad.Steps = nil
	if _, err := SegmentSteps(bad, evenSeries(0, 100, 10, 1)); !errors.Is(err, ErrEmptySteps) {
		t.Fatalf("expected ErrEmptySteps, got %v", err)
	}
}

func TestSegmentStepsMeanIntensity(t *testing.T) {
	p := DefaultProtocol()
	p.Steps = p.Steps[:1]
	// Lead-in sample at 0 pins the origin, so the analysis window for the
	// first step is [600, 1200].
	series := []Point{
		{Time: 0, Intensity: 9},
		{Time: 500, Intensity: 9}, // before window
		{Time: 600, Intensity: 1},
		{Time: 900, Intensity: 2},
		{Time: 1200, Intensity: 3},
		{Time: 1300, Intensity: 9}, // after window
	}
	windows, err := SegmentSteps(p, series)
	if err != nil {
		t.Fatalf("segment error: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(windows))
	}
	if windows[0].MeanIntensity != 2 {
		t.Fatalf("expected mean 2, got %v", windows[0].MeanIntensity)
	}
	if windows[0].SampleCount != 3 {
		t.Fatalf("expected 3 samples, got %d", windows[0].SampleCount)
	}
}
