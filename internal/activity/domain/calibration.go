package activity

// Curve is a two-point linear calibration mapping intensity to conversion.
// Conversion [%] = Slope * intensity + Intercept.
type Curve struct {
	Slope     float64
	Intercept float64
}

// Convert maps a raw intensity to a conversion percentage. The result is
// not clamped to [0,100].
func (c Curve) Convert(intensity float64) float64 {
	return c.Slope*intensity + c.Intercept
}

// AutoIntercept derives the intercept that maps the highest observed
// intensity to exactly 0% conversion (no benzene oxidized).
func AutoIntercept(slope float64, intensities []float64) float64 {
	if len(intensities) == 0 {
		return 0
	}
	max := intensities[0]
	for _, v := range intensities[1:] {
		if v > max {
			max = v
		}
	}
	return -slope * max
}

// DefaultCurve is the stock benzene FT-IR calibration.
func DefaultCurve() Curve {
	return Curve{Slope: -995.32, Intercept: 101.36}
}
