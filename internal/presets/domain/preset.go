package presets

import (
	"errors"
	"time"

	activity "catalysis-cloud/internal/activity/domain"
)

var (
	// ErrEmptyName is returned when a preset name is empty.
	ErrEmptyName = errors.New("presets: empty name")
	// ErrZeroSlope is returned when a calibration slope is zero.
	ErrZeroSlope = errors.New("presets: zero slope")
	// ErrNotFound is returned when a preset cannot be found.
	ErrNotFound = errors.New("presets: not found")
)

// ProtocolPreset is a named, stored temperature program.
type ProtocolPreset struct {
	Name      string
	TenantID  string
	Protocol  activity.Protocol
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks preset invariants including the embedded protocol.
func (p ProtocolPreset) Validate() error {
	if p.Name == "" {
		return ErrEmptyName
	}
	return p.Protocol.Validate()
}

// CalibrationPreset is a named, stored calibration curve. The stored
// intercept is only used when auto-intercept normalization is off; it is
// never overwritten by a derived intercept.
type CalibrationPreset struct {
	Name      string
	TenantID  string
	Slope     float64
	Intercept float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks calibration invariants. A zero slope would collapse
// every conversion onto the intercept, so it is rejected up front.
func (c CalibrationPreset) Validate() error {
	if c.Name == "" {
		return ErrEmptyName
	}
	if c.Slope == 0 {
		return ErrZeroSlope
	}
	return nil
}

// Curve returns the calibration as the core's value type.
func (c CalibrationPreset) Curve() activity.Curve {
	return activity.Curve{Slope: c.Slope, Intercept: c.Intercept}
}

// DefaultProtocolPreset is the stock descending program.
func DefaultProtocolPreset() ProtocolPreset {
	return ProtocolPreset{Name: "default", Protocol: activity.DefaultProtocol()}
}

// DefaultCalibrationPreset is the stock benzene FT-IR calibration.
func DefaultCalibrationPreset() CalibrationPreset {
	curve := activity.DefaultCurve()
	return CalibrationPreset{Name: "default", Slope: curve.Slope, Intercept: curve.Intercept}
}
