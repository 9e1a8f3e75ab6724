package activity

import "sort"

// ActivitySample is one measured (temperature, conversion) point.
type ActivitySample struct {
	StepIndex     int
	Temperature   float64
	MeanIntensity float64
	Conversion    float64
	DataPoints    int
}

// ReactorSeries holds one reactor's activity samples in protocol step
// order. Intercept records the calibration intercept actually applied,
// which differs from the configured one when auto-intercept is active.
type ReactorSeries struct {
	ReactorID int
	Intercept float64
	Samples   []ActivitySample
}

// Temperatures returns the sample temperatures in step order.
func (s ReactorSeries) Temperatures() []float64 {
	out := make([]float64, len(s.Samples))
	for i, sample := range s.Samples {
		out[i] = sample.Temperature
	}
	return out
}

// Conversions returns the sample conversions in step order.
func (s ReactorSeries) Conversions() []float64 {
	out := make([]float64, len(s.Samples))
	for i, sample := range s.Samples {
		out[i] = sample.Conversion
	}
	return out
}

// Reduce turns segmented step windows into per-reactor activity series.
// Samples keep protocol step order within each reactor; descending
// protocols therefore produce temperature-descending series and the
// fitter must not assume monotonic ordering.
//
// With autoIntercept the intercept is recomputed per reactor group so the
// group's highest mean intensity maps to 0% conversion. The configured
// curve is never mutated; the derived intercept is reported on the series.
func Reduce(windows []StepWindow, cal Curve, autoIntercept bool) ([]ReactorSeries, error) {
	if len(windows) == 0 {
		return nil, ErrNoSamples
	}

	grouped := make(map[int][]StepWindow)
	for _, w := range windows {
		grouped[w.ReactorID] = append(grouped[w.ReactorID], w)
	}

	reactorIDs := make([]int, 0, len(grouped))
	for id := range grouped {
		reactorIDs = append(reactorIDs, id)
	}
	sort.Ints(reactorIDs)

	result := make([]ReactorSeries, 0, len(reactorIDs))
	for _, id := range reactorIDs {
		group := grouped[id]

		intercept := cal.Intercept
		if autoIntercept {
			means := make([]float64, len(group))
			for i, w := range group {
				means[i] = w.MeanIntensity
			}
			intercept = AutoIntercept(cal.Slope, means)
		}
		applied := Curve{Slope: cal.Slope, Intercept: intercept}

		samples := make([]ActivitySample, 0, len(group))
		for _, w := range group {
			samples = append(samples, ActivitySample{
				StepIndex:     w.StepIndex,
				Temperature:   w.Temperature,
				MeanIntensity: w.MeanIntensity,
				Conversion:    applied.Convert(w.MeanIntensity),
				DataPoints:    w.SampleCount,
			})
		}

		result = append(result, ReactorSeries{ReactorID: id, Intercept: intercept, Samples: samples})
	}

	return result, nil
}
