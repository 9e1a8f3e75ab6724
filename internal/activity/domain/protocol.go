package activity

import "time"

// Mode selects how reactor assignments are interpreted.
type Mode string

const (
	// ModeStandard runs every step on a single reactor.
	ModeStandard Mode = "standard"
	// ModeSemiAuto interleaves several reactors in one recording.
	ModeSemiAuto Mode = "semi_auto"
)

// IsValid reports whether the mode is supported.
func (m Mode) IsValid() bool {
	return m == ModeStandard || m == ModeSemiAuto
}

// TemperatureStep is one setpoint in a temperature program.
type TemperatureStep struct {
	Temperature float64 // °C
	HoldTime    time.Duration
	ReactorID   int
}

// Protocol describes a complete temperature program.
type Protocol struct {
	Name         string
	Steps        []TemperatureStep
	RampTime     time.Duration
	AnalysisTime time.Duration
	Mode         Mode
	NumReactors  int
}

// Validate rejects malformed protocols before segmentation sees them.
func (p Protocol) Validate() error {
	if len(p.Steps) == 0 {
		return ErrEmptySteps
	}
	if !p.Mode.IsValid() {
		return ErrInvalidMode
	}
	if p.RampTime < 0 {
		return ErrInvalidRampTime
	}
	if p.AnalysisTime <= 0 {
		return ErrInvalidAnalysisTime
	}
	if p.NumReactors < 1 {
		return ErrInvalidReactorID
	}
	for _, step := range p.Steps {
		if step.HoldTime <= 0 {
			return ErrInvalidHoldTime
		}
		switch p.Mode {
		case ModeStandard:
			if step.ReactorID != 1 {
				return ErrInvalidReactorID
			}
		case ModeSemiAuto:
			if step.ReactorID < 1 || step.ReactorID > p.NumReactors {
				return ErrInvalidReactorID
			}
		}
	}
	return nil
}

// RampAfter returns the ramp applied after step i. Adjacent steps at the
// same nominal temperature need no thermal transition, and the last step
// contributes no trailing ramp.
func (p Protocol) RampAfter(i int) time.Duration {
	if i < 0 || i+1 >= len(p.Steps) {
		return 0
	}
	if p.Steps[i].Temperature == p.Steps[i+1].Temperature {
		return 0
	}
	return p.RampTime
}

// TotalDuration is the run time the protocol requires from the recording.
func (p Protocol) TotalDuration() time.Duration {
	var total time.Duration
	for i, step := range p.Steps {
		total += step.HoldTime + p.RampAfter(i)
	}
	return total
}

// DefaultProtocol is the standard descending benzene-oxidation program.
func DefaultProtocol() Protocol {
	temps := []float64{500, 450, 400, 350, 300, 250, 200, 150}
	steps := make([]TemperatureStep, 0, len(temps))
	for _, t := range temps {
		steps = append(steps, TemperatureStep{Temperature: t, HoldTime: 20 * time.Minute, ReactorID: 1})
	}
	return Protocol{
		Name:         "Standard Protocol (500-150C)",
		Steps:        steps,
		RampTime:     10 * time.Minute,
		AnalysisTime: 10 * time.Minute,
		Mode:         ModeStandard,
		NumReactors:  1,
	}
}
