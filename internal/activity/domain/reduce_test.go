package activity

import (
	"errors"
	"math"
	"testing"
)

func TestAutoInterceptMapsMaxIntensityToZero(t *testing.T) {
	intensities := []float64{0.1, 0.05, 0.08}
	slope := -1000.0
	intercept := AutoIntercept(slope, intensities)
	applied := Curve{Slope: slope, Intercept: intercept}
	if got := applied.Convert(0.1); got != 0 {
		t.Fatalf("expected max intensity to yield exactly 0%% conversion, got %v", got)
	}
	if got := applied.Convert(0.05); got <= 0 {
		t.Fatalf("expected lower intensity to yield positive conversion, got %v", got)
	}
}

func TestCurveConvertNoClamping(t *testing.T) {
	c := Curve{Slope: -995.32, Intercept: 101.36}
	if got := c.Convert(-0.05); got <= 100 {
		t.Fatalf("expected unclamped conversion above 100, got %v", got)
	}
}

func TestReduceStandardMode(t *testing.T) {
	windows := []StepWindow{
		{StepIndex: 0, Temperature: 500, ReactorID: 1, MeanIntensity: 0.01, SampleCount: 50},
		{StepIndex: 1, Temperature: 450, ReactorID: 1, MeanIntensity: 0.05, SampleCount: 50},
		{StepIndex: 2, Temperature: 400, ReactorID: 1, MeanIntensity: 0.10, SampleCount: 50},
	}
	series, err := Reduce(windows, Curve{Slope: -1000}, true)
	if err != nil {
		t.Fatalf("reduce error: %v", err)
	}
	if len(series) != 1 {
		t.Fatalf("expected one reactor group, got %d", len(series))
	}
	r := series[0]
	if r.ReactorID != 1 {
		t.Fatalf("expected reactor 1, got %d", r.ReactorID)
	}
	// Max intensity (0.10, the coolest step) maps to 0% conversion.
	if got := r.Samples[2].Conversion; got != 0 {
		t.Fatalf("expected 0%% at max intensity, got %v", got)
	}
	// Hotter steps burn more benzene: lower intensity, higher conversion.
	if !(r.Samples[0].Conversion > r.Samples[1].Conversion) {
		t.Fatalf("expected conversion to increase with temperature: %v vs %v",
			r.Samples[0].Conversion, r.Samples[1].Conversion)
	}
	// Step order preserved, not temperature-sorted.
	if r.Samples[0].Temperature != 500 || r.Samples[2].Temperature != 400 {
		t.Fatalf("expected protocol step order, got %v", r.Temperatures())
	}
}

func TestReducePerReactorIntercept(t *testing.T) {
	windows := []StepWindow{
		{StepIndex: 0, Temperature: 450, ReactorID: 1, MeanIntensity: 0.10, SampleCount: 10},
		{StepIndex: 1, Temperature: 450, ReactorID: 2, MeanIntensity: 0.20, SampleCount: 10},
		{StepIndex: 2, Temperature: 400, ReactorID: 1, MeanIntensity: 0.12, SampleCount: 10},
		{StepIndex: 3, Temperature: 400, ReactorID: 2, MeanIntensity: 0.25, SampleCount: 10},
	}
	series, err := Reduce(windows, Curve{Slope: -1000}, true)
	if err != nil {
		t.Fatalf("reduce error: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("expected two reactor groups, got %d", len(series))
	}
	if series[0].ReactorID != 1 || series[1].ReactorID != 2 {
		t.Fatalf("expected reactors ordered by id, got %d and %d", series[0].ReactorID, series[1].ReactorID)
	}
	// Each reactor normalizes against its own max intensity.
	if got := series[0].Samples[1].Conversion; got != 0 {
		t.Fatalf("reactor 1: expected 0%% at its max intensity, got %v", got)
	}
	if got := series[1].Samples[1].Conversion; got != 0 {
		t.Fatalf("reactor 2: expected 0%% at its max intensity, got %v", got)
	}
	if series[0].Intercept == series[1].Intercept {
		t.Fatalf("expected distinct derived intercepts per reactor")
	}
}

func TestReduceFixedIntercept(t *testing.T) {
	windows := []StepWindow{
		{StepIndex: 0, Temperature: 500, ReactorID: 1, MeanIntensity: 0.05, SampleCount: 10},
	}
	cal := Curve{Slope: -995.32, Intercept: 101.36}
	series, err := Reduce(windows, cal, false)
	if err != nil {
		t.Fatalf("reduce error: %v", err)
	}
	want := cal.Convert(0.05)
	if got := series[0].Samples[0].Conversion; math.Abs(got-want) > 1e-12 {
		t.Fatalf("expected configured intercept to apply, want %v got %v", want, got)
	}
	if series[0].Intercept != 101.36 {
		t.Fatalf("expected stored intercept untouched, got %v", series[0].Intercept)
	}
}

func TestReduceEmptyWindows(t *testing.T) {
	if _, err := Reduce(nil, Curve{Slope: -1000}, true); !errors.Is(err, ErrNoSamples) {
		t.Fatalf("expected ErrNoSamples, got %v", err)
	}
}
