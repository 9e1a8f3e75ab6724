package activity

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"
)

func constrainedSamples(b, c float64, temps []float64) []float64 {
	out := make([]float64, len(temps))
	for i, t := range temps {
		out[i] = 100 / (1 + math.Exp(-b*(t-c)))
	}
	return out
}

func TestFitRecoversKnownParameters(t *testing.T) {
	temps := []float64{150, 200, 250, 300, 350, 400, 450, 500}
	trueB, trueC := 0.045, 320.0
	convs := constrainedSamples(trueB, trueC, temps)

	fit, err := Fit(ModelConstrained, temps, convs)
	if err != nil {
		t.Fatalf("fit error: %v", err)
	}
	if rel := math.Abs(fit.B-trueB) / trueB; rel > 1e-3 {
		t.Fatalf("growth rate off by %v relative: got %v want %v", rel, fit.B, trueB)
	}
	if rel := math.Abs(fit.C-trueC) / trueC; rel > 1e-3 {
		t.Fatalf("inflection off by %v relative: got %v want %v", rel, fit.C, trueC)
	}
	if fit.RSquared <= 0.999 {
		t.Fatalf("expected R2 > 0.999, got %v", fit.RSquared)
	}
	if fit.A != 100 || fit.D != 0 {
		t.Fatalf("constrained asymptotes must be fixed, got a=%v d=%v", fit.A, fit.D)
	}
}

func TestFitDescendingTemperatureOrder(t *testing.T) {
	// Descending protocols hand the fitter temperature-descending series.
	temps := []float64{500, 450, 400, 350, 300, 250, 200, 150}
	convs := constrainedSamples(0.06, 310, temps)

	fit, err := Fit(ModelConstrained, temps, convs)
	if err != nil {
		t.Fatalf("fit error: %v", err)
	}
	if math.Abs(fit.C-310) > 0.5 {
		t.Fatalf("expected inflection near 310, got %v", fit.C)
	}
}

func TestFitWithNoise(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	temps := []float64{500, 450, 400, 350, 300, 250, 200, 150}
	convs := constrainedSamples(0.05, 330, temps)
	for i := range convs {
		convs[i] += rng.NormFloat64() * 1.5
	}

	fit, err := Fit(ModelConstrained, temps, convs)
	if err != nil {
		t.Fatalf("fit error: %v", err)
	}
	if fit.RSquared <= 0.95 {
		t.Fatalf("expected R2 > 0.95 on noisy sigmoid data, got %v", fit.RSquared)
	}
	if math.Abs(fit.C-330) > 10 {
		t.Fatalf("expected inflection near 330, got %v", fit.C)
	}
}

func TestFitUnconstrainedLegacyModel(t *testing.T) {
	temps := []float64{150, 200, 250, 300, 350, 400, 450, 500, 550, 600}
	a, b, c, d := 95.0, 0.04, 340.0, 3.0
	convs := make([]float64, len(temps))
	for i, temp := range temps {
		convs[i] = d + (a-d)/(1+math.Exp(-b*(temp-c)))
	}

	fit, err := Fit(ModelUnconstrained, temps, convs)
	if err != nil {
		t.Fatalf("fit error: %v", err)
	}
	if math.Abs(fit.A-a) > 0.5 || math.Abs(fit.D-d) > 0.5 {
		t.Fatalf("expected asymptotes near (%v,%v), got (%v,%v)", a, d, fit.A, fit.D)
	}
	if math.Abs(fit.C-c) > 1 {
		t.Fatalf("expected inflection near %v, got %v", c, fit.C)
	}
	if fit.RSquared <= 0.999 {
		t.Fatalf("expected R2 > 0.999, got %v", fit.RSquared)
	}
}

func TestFitConstantConversionsFails(t *testing.T) {
	temps := []float64{150, 200, 250, 300}
	convs := []float64{40, 40, 40, 40}
	if _, err := Fit(ModelConstrained, temps, convs); !errors.Is(err, ErrDegenerateData) {
		t.Fatalf("expected ErrDegenerateData, got %v", err)
	}
}

func TestFitTooFewPoints(t *testing.T) {
	if _, err := Fit(ModelConstrained, []float64{300}, []float64{50}); !errors.Is(err, ErrTooFewPoints) {
		t.Fatalf("expected ErrTooFewPoints, got %v", err)
	}
	if _, err := Fit(ModelUnconstrained, []float64{300, 350, 400}, []float64{10, 50, 90}); !errors.Is(err, ErrTooFewPoints) {
		t.Fatalf("expected ErrTooFewPoints, got %v", err)
	}
}

func TestInverseTXRoundTrip(t *testing.T) {
	fit := FitResult{Model: ModelConstrained, A: 100, B: 0.05, C: 320, D: 0}
	for _, temp := range []float64{200, 250, 300, 320, 350, 420} {
		conv := fit.Evaluate(temp)
		back, err := fit.InverseTX(conv)
		if err != nil {
			t.Fatalf("inverse at T=%v (conv=%v): %v", temp, conv, err)
		}
		if math.Abs(back-temp) > 1e-6 {
			t.Fatalf("round trip mismatch at T=%v: got %v", temp, back)
		}
	}
}

func TestInverseTXDomainGuards(t *testing.T) {
	fit := FitResult{Model: ModelConstrained, A: 100, B: 0.05, C: 320, D: 0}
	for _, target := range []float64{0, 100, -5, 105} {
		if _, err := fit.InverseTX(target); !errors.Is(err, ErrTargetOutOfRange) {
			t.Fatalf("target %v: expected ErrTargetOutOfRange, got %v", target, err)
		}
	}

	degenerate := FitResult{Model: ModelConstrained, A: 100, B: 0, C: 320, D: 0}
	if _, err := degenerate.InverseTX(50); !errors.Is(err, ErrNonPositiveGrowth) {
		t.Fatalf("expected ErrNonPositiveGrowth, got %v", err)
	}
}

func TestInverseTXUnconstrainedRange(t *testing.T) {
	fit := FitResult{Model: ModelUnconstrained, A: 90, B: 0.05, C: 320, D: 5}
	if _, err := fit.InverseTX(95); !errors.Is(err, ErrTargetOutOfRange) {
		t.Fatalf("expected out of range above upper asymptote, got %v", err)
	}
	if _, err := fit.InverseTX(3); !errors.Is(err, ErrTargetOutOfRange) {
		t.Fatalf("expected out of range below lower asymptote, got %v", err)
	}
	if _, err := fit.InverseTX(50); err != nil {
		t.Fatalf("expected mid-range target to invert, got %v", err)
	}
}

func TestT50MatchesInflection(t *testing.T) {
	fit := FitResult{Model: ModelConstrained, A: 100, B: 0.08, C: 287.5, D: 0}
	t50, err := fit.InverseTX(50)
	if err != nil {
		t.Fatalf("inverse error: %v", err)
	}
	if math.Abs(t50-287.5) > 1e-9 {
		t.Fatalf("T50 must equal the inflection temperature, got %v", t50)
	}
}

func TestTXLabel(t *testing.T) {
	cases := map[float64]string{
		20:   "T20",
		50:   "T50",
		50.4: "T50.4",
		99.9: "T99.9",
	}
	for target, want := range cases {
		if got := TXLabel(target); got != want {
			t.Fatalf("TXLabel(%v) = %q, want %q", target, got, want)
		}
	}
}

func TestTXValuesDeduplicatesAndSorts(t *testing.T) {
	fit := FitResult{Model: ModelConstrained, A: 100, B: 0.05, C: 320, D: 0}
	values := TXValues(fit, []float64{80, 20, 50, 20, 105})
	if len(values) != 4 {
		t.Fatalf("expected 4 unique targets, got %d", len(values))
	}
	if values[0].Target != 20 || values[3].Target != 105 {
		t.Fatalf("expected ascending targets, got %v..%v", values[0].Target, values[3].Target)
	}
	for _, v := range values[:3] {
		if !v.OK {
			t.Fatalf("target %v: expected a temperature", v.Target)
		}
	}
	if values[3].OK {
		t.Fatalf("target 105 must be marked not calculable")
	}
	// T20 < T50 < T80 for a monotone increasing curve.
	if !(values[0].Temperature < values[1].Temperature && values[1].Temperature < values[2].Temperature) {
		t.Fatalf("expected TX temperatures ordered with targets: %v", values)
	}
}

func TestCurveDefaultsAndRange(t *testing.T) {
	fit := FitResult{Model: ModelConstrained, A: 100, B: 0.05, C: 320, D: 0}
	minT, maxT := CurveRange([]float64{150, 500})
	if minT != 130 || maxT != 520 {
		t.Fatalf("expected padded range [130,520], got [%v,%v]", minT, maxT)
	}
	temps, convs := fit.Curve(minT, maxT, 0)
	if len(temps) != 300 || len(convs) != 300 {
		t.Fatalf("expected 300 default points, got %d", len(temps))
	}
	if temps[0] != minT || temps[len(temps)-1] != maxT {
		t.Fatalf("expected endpoints [%v,%v], got [%v,%v]", minT, maxT, temps[0], temps[len(temps)-1])
	}
	for i := 1; i < len(convs); i++ {
		if convs[i] < convs[i-1] {
			t.Fatalf("fitted curve must be monotone increasing at index %d", i)
		}
	}
}

func TestEndToEndPipelineDescendingProtocol(t *testing.T) {
	p := DefaultProtocol() // 500 -> 150 by 50, 20 min holds, ramp 10, analysis 10
	slope := -995.32
	trueB, trueC := 0.05, 330.0

	// Synthesize the raw trace: 100 evenly spaced samples per hold, with
	// intensity encoding the true sigmoid conversion through the inverse
	// calibration plus a little noise. The coolest step sits at ~0%
	// conversion, so its intensity is the maximum and auto-intercept
	// recovers the synthetic baseline.
	rng := rand.New(rand.NewSource(7))
	baseline := 0.2
	var series []Point
	cursor := 0.0
	for i, step := range p.Steps {
		hold := step.HoldTime.Seconds()
		conv := 100 / (1 + math.Exp(-trueB*(step.Temperature-trueC)))
		intensity := baseline + conv/slope // slope < 0: hotter steps absorb less
		for k := 0; k < 100; k++ {
			tt := cursor + hold*float64(k)/99
			series = append(series, Point{
				Time:      tt,
				Intensity: intensity + rng.NormFloat64()*1e-4,
			})
		}
		cursor += hold + p.RampAfter(i).Seconds()
	}

	windows, err := SegmentSteps(p, series)
	if err != nil {
		t.Fatalf("segment error: %v", err)
	}
	if len(windows) != 8 {
		t.Fatalf("expected 8 windows, got %d", len(windows))
	}

	reduced, err := Reduce(windows, Curve{Slope: slope}, true)
	if err != nil {
		t.Fatalf("reduce error: %v", err)
	}
	if len(reduced) != 1 {
		t.Fatalf("expected one reactor, got %d", len(reduced))
	}
	samples := reduced[0].Samples
	if len(samples) != 8 {
		t.Fatalf("expected 8 activity samples, got %d", len(samples))
	}

	// Negative slope: higher intensity means lower conversion, so the
	// hottest step (least intensity) carries the highest conversion.
	if !(samples[0].Conversion > samples[len(samples)-1].Conversion) {
		t.Fatalf("expected conversion to drop toward cooler steps: first=%v last=%v",
			samples[0].Conversion, samples[len(samples)-1].Conversion)
	}

	fit, err := Fit(ModelConstrained, reduced[0].Temperatures(), reduced[0].Conversions())
	if err != nil {
		t.Fatalf("fit error: %v", err)
	}
	if fit.RSquared <= 0.95 {
		t.Fatalf("expected R2 > 0.95, got %v", fit.RSquared)
	}
}

func TestFitIterationBudgetTerminates(t *testing.T) {
	// Pathological alternating data must terminate quickly either way.
	temps := []float64{100, 200, 300, 400, 500, 600}
	convs := []float64{90, 5, 95, 2, 98, 1}
	done := make(chan struct{})
	go func() {
		_, _ = Fit(ModelConstrained, temps, convs)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("fit did not terminate within budget")
	}
}
