package activity

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Model selects the sigmoid variant used for fitting.
type Model string

const (
	// ModelConstrained is the canonical two-parameter logistic with fixed
	// asymptotes 0% and 100%: conversion = 100 / (1 + exp(-b(T-c))).
	ModelConstrained Model = "constrained"
	// ModelUnconstrained is the legacy four-parameter variant
	// d + (a-d) / (1 + exp(-b(T-c))), kept for old stored parameter sets.
	ModelUnconstrained Model = "unconstrained"
)

const (
	minGrowthRate     = 1e-6
	maxFitIterations  = 500
	curvePointsNumber = 300

	initialGrowthRate       = 0.05
	legacyInitialGrowthRate = 0.02
)

// FitResult holds fitted sigmoid parameters. For ModelConstrained A is
// pinned to 100 and D to 0.
type FitResult struct {
	Model      Model
	A          float64 // upper asymptote
	B          float64 // growth rate
	C          float64 // inflection temperature (T50 for the constrained model)
	D          float64 // lower asymptote
	RSquared   float64
	Iterations int
}

// Evaluate computes the fitted conversion at temperature t.
func (f FitResult) Evaluate(t float64) float64 {
	return f.D + (f.A-f.D)/(1+math.Exp(-f.B*(t-f.C)))
}

// Curve samples the fitted model over [minT, maxT] for plotting or export.
// Non-positive n falls back to 300 points.
func (f FitResult) Curve(minT, maxT float64, n int) ([]float64, []float64) {
	if n < 2 {
		n = curvePointsNumber
	}
	temps := make([]float64, n)
	convs := make([]float64, n)
	step := (maxT - minT) / float64(n-1)
	for i := 0; i < n; i++ {
		t := minT + float64(i)*step
		temps[i] = t
		convs[i] = f.Evaluate(t)
	}
	return temps, convs
}

// InverseTX returns the temperature at which the fitted curve reaches the
// target conversion percentage. The open asymptotes never reach the
// limits, so targets at or beyond them cannot be calculated.
func (f FitResult) InverseTX(target float64) (float64, error) {
	if f.B <= 0 {
		return 0, ErrNonPositiveGrowth
	}
	if target <= f.D || target >= f.A {
		return 0, ErrTargetOutOfRange
	}
	return f.C - math.Log((f.A-f.D)/(target-f.D)-1)/f.B, nil
}

// CurveRange is the default plotting range around the observed data.
func CurveRange(temperatures []float64) (float64, float64) {
	if len(temperatures) == 0 {
		return 0, 0
	}
	min, max := temperatures[0], temperatures[0]
	for _, t := range temperatures[1:] {
		if t < min {
			min = t
		}
		if t > max {
			max = t
		}
	}
	return min - 20, max + 20
}

// TXLabel derives the lookup key for a target percentage. Integer targets
// keep the historical T50 form; fractional targets carry one decimal so
// 50 and 50.4 cannot collide.
func TXLabel(target float64) string {
	if target == math.Trunc(target) {
		return fmt.Sprintf("T%d", int(target))
	}
	return "T" + strconv.FormatFloat(target, 'f', 1, 64)
}

// TXValue is one inverse-TX lookup outcome.
type TXValue struct {
	Target      float64
	Label       string
	Temperature float64
	OK          bool
}

// TXValues computes inverse-TX temperatures for the given targets,
// deduplicated and sorted ascending. Out-of-domain targets yield OK=false
// rather than failing the whole lookup.
func TXValues(fit FitResult, targets []float64) []TXValue {
	seen := make(map[float64]struct{}, len(targets))
	unique := make([]float64, 0, len(targets))
	for _, t := range targets {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		unique = append(unique, t)
	}
	sort.Float64s(unique)

	out := make([]TXValue, 0, len(unique))
	for _, target := range unique {
		value := TXValue{Target: target, Label: TXLabel(target)}
		if temp, err := fit.InverseTX(target); err == nil {
			value.Temperature = temp
			value.OK = true
		}
		out = append(out, value)
	}
	return out
}

// Fit performs a nonlinear least-squares sigmoid fit. The constrained
// model keeps the growth rate bounded away from zero so the fitted curve
// stays monotonically increasing with temperature. Non-convergence and
// degenerate inputs are reported as errors; no partial result is produced.
func Fit(model Model, temperatures, conversions []float64) (FitResult, error) {
	if len(temperatures) != len(conversions) {
		return FitResult{}, fmt.Errorf("activity: %d temperatures vs %d conversions", len(temperatures), len(conversions))
	}
	n := len(temperatures)
	params := 2
	if model == ModelUnconstrained {
		params = 4
	} else if model != ModelConstrained {
		return FitResult{}, fmt.Errorf("activity: unknown fit model %q", model)
	}
	if n < params {
		return FitResult{}, ErrTooFewPoints
	}

	mean := 0.0
	for _, y := range conversions {
		mean += y
	}
	mean /= float64(n)
	ssTot := 0.0
	for _, y := range conversions {
		ssTot += (y - mean) * (y - mean)
	}
	if ssTot == 0 {
		return FitResult{}, ErrDegenerateData
	}

	theta := initialGuess(model, temperatures, conversions)
	theta, iterations, err := levenbergMarquardt(model, temperatures, conversions, theta)
	if err != nil {
		return FitResult{}, err
	}

	fit := resultFromParams(model, theta)
	fit.Iterations = iterations
	ssRes := 0.0
	for i, t := range temperatures {
		r := conversions[i] - fit.Evaluate(t)
		ssRes += r * r
	}
	fit.RSquared = 1 - ssRes/ssTot
	return fit, nil
}

func initialGuess(model Model, temperatures, conversions []float64) []float64 {
	switch model {
	case ModelUnconstrained:
		a := conversions[0]
		d := conversions[0]
		for _, y := range conversions[1:] {
			if y > a {
				a = y
			}
			if y < d {
				d = y
			}
		}
		c := nearestTemperature(temperatures, conversions, (a+d)/2)
		return []float64{a, legacyInitialGrowthRate, c, d}
	default:
		c := nearestTemperature(temperatures, conversions, 50)
		return []float64{initialGrowthRate, c}
	}
}

func nearestTemperature(temperatures, conversions []float64, level float64) float64 {
	best := 0
	bestDist := math.Abs(conversions[0] - level)
	for i, y := range conversions {
		if d := math.Abs(y - level); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return temperatures[best]
}

func resultFromParams(model Model, theta []float64) FitResult {
	if model == ModelUnconstrained {
		return FitResult{Model: model, A: theta[0], B: theta[1], C: theta[2], D: theta[3]}
	}
	return FitResult{Model: model, A: 100, B: theta[0], C: theta[1], D: 0}
}

func clampParams(model Model, theta []float64) {
	// The growth rate carries a lower bound in both models.
	idx := 0
	if model == ModelUnconstrained {
		idx = 1
	}
	if theta[idx] < minGrowthRate {
		theta[idx] = minGrowthRate
	}
}

// levenbergMarquardt minimizes the sum of squared residuals by damped
// normal equations. The damping factor shrinks on accepted steps and
// grows on rejected ones; the iteration budget is hard-capped so
// pathological inputs terminate.
func levenbergMarquardt(model Model, temperatures, conversions, theta []float64) ([]float64, int, error) {
	p := len(theta)
	clampParams(model, theta)
	sse := residualSSE(model, temperatures, conversions, theta)
	if math.IsNaN(sse) || math.IsInf(sse, 0) {
		return nil, 0, ErrFitDiverged
	}

	lambda := 1e-3
	const (
		lambdaMax = 1e10
		tolerance = 1e-12
	)

	for iter := 0; iter < maxFitIterations; iter++ {
		normal := make([][]float64, p)
		for i := range normal {
			normal[i] = make([]float64, p)
		}
		gradient := make([]float64, p)

		for i, t := range temperatures {
			row := jacobianRow(model, theta, t)
			r := conversions[i] - evaluateParams(model, theta, t)
			for j := 0; j < p; j++ {
				gradient[j] += row[j] * r
				for k := 0; k < p; k++ {
					normal[j][k] += row[j] * row[k]
				}
			}
		}

		improved := false
		for lambda <= lambdaMax {
			damped := make([][]float64, p)
			for j := 0; j < p; j++ {
				damped[j] = make([]float64, p)
				copy(damped[j], normal[j])
				damped[j][j] += lambda * (normal[j][j] + 1e-12)
			}
			delta, ok := solveLinear(damped, gradient)
			if !ok {
				lambda *= 10
				continue
			}

			trial := make([]float64, p)
			for j := 0; j < p; j++ {
				trial[j] = theta[j] + delta[j]
			}
			clampParams(model, trial)

			trialSSE := residualSSE(model, temperatures, conversions, trial)
			if math.IsNaN(trialSSE) || math.IsInf(trialSSE, 0) || trialSSE >= sse {
				lambda *= 10
				continue
			}

			reduction := sse - trialSSE
			theta = trial
			sse = trialSSE
			lambda /= 10
			if lambda < 1e-12 {
				lambda = 1e-12
			}
			improved = true

			if reduction <= tolerance*(sse+tolerance) {
				return theta, iter + 1, nil
			}
			break
		}

		if !improved {
			// No damping level yields progress: either converged at a
			// stationary point or genuinely stuck.
			if iter > 0 {
				return theta, iter, nil
			}
			return nil, 0, ErrFitDiverged
		}
	}

	return nil, maxFitIterations, ErrFitDiverged
}

func evaluateParams(model Model, theta []float64, t float64) float64 {
	if model == ModelUnconstrained {
		a, b, c, d := theta[0], theta[1], theta[2], theta[3]
		return d + (a-d)/(1+math.Exp(-b*(t-c)))
	}
	b, c := theta[0], theta[1]
	return 100 / (1 + math.Exp(-b*(t-c)))
}

func jacobianRow(model Model, theta []float64, t float64) []float64 {
	if model == ModelUnconstrained {
		a, b, c, d := theta[0], theta[1], theta[2], theta[3]
		s := 1 / (1 + math.Exp(-b*(t-c)))
		ds := s * (1 - s)
		return []float64{s, (a - d) * ds * (t - c), -(a - d) * ds * b, 1 - s}
	}
	b, c := theta[0], theta[1]
	s := 1 / (1 + math.Exp(-b*(t-c)))
	ds := s * (1 - s)
	return []float64{100 * ds * (t - c), -100 * ds * b}
}

func residualSSE(model Model, temperatures, conversions, theta []float64) float64 {
	sse := 0.0
	for i, t := range temperatures {
		r := conversions[i] - evaluateParams(model, theta, t)
		sse += r * r
	}
	return sse
}

// solveLinear solves a small dense system by Gaussian elimination with
// partial pivoting. The matrix is destroyed in place.
func solveLinear(a [][]float64, b []float64) ([]float64, bool) {
	n := len(a)
	rhs := make([]float64, n)
	copy(rhs, b)

	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < 1e-300 {
			return nil, false
		}
		a[col], a[pivot] = a[pivot], a[col]
		rhs[col], rhs[pivot] = rhs[pivot], rhs[col]

		for row := col + 1; row < n; row++ {
			factor := a[row][col] / a[col][col]
			for k := col; k < n; k++ {
				a[row][k] -= factor * a[col][k]
			}
			rhs[row] -= factor * rhs[col]
		}
	}

	x := make([]float64, n)
	for row := n - 1; row >= 0; row-- {
		sum := rhs[row]
		for col := row + 1; col < n; col++ {
			sum -= a[row][col] * x[col]
		}
		x[row] = sum / a[row][row]
	}
	return x, true
}
